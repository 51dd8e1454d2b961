package rewards

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"firechain/crypto"
)

// NominationTargets reports the validators a nominator currently backs. The
// boolean is false when the account is not a nominator at all.
type NominationTargets interface {
	TargetsOf(nominator crypto.AccountID) ([]crypto.AccountID, bool, error)
}

// MigrationReport describes the outcome of MigrateNominatorRewards.
type MigrationReport struct {
	FromVersion uint64
	ToVersion   uint64
	Moved       int
	// Dropped counts legacy entries of nominators without any target.
	Dropped int
	// Retained counts legacy entries left in place because the account is no
	// longer a nominator.
	Retained int
}

// MigrateNominatorRewards upgrades a version 0 ledger, where nominator rewards
// were keyed by nominator only, to the per-validator layout. Each legacy
// balance is moved under the nominator's first target. Ledgers already at
// LedgerVersion are left untouched.
func MigrateNominatorRewards(ledger *Ledger, targets NominationTargets, logger *slog.Logger) (MigrationReport, error) {
	var report MigrationReport
	if ledger == nil || targets == nil {
		return report, ErrNotInitialised
	}
	if logger == nil {
		logger = slog.Default()
	}
	err := ledger.Update(func(tx *Tx) error {
		version, err := tx.Version()
		if err != nil {
			return err
		}
		report.FromVersion = version
		report.ToVersion = version
		if version >= LedgerVersion {
			return nil
		}
		type legacyEntry struct {
			key       []byte
			nominator crypto.AccountID
			amount    *uint256.Int
		}
		var (
			entries []legacyEntry
			iterErr error
		)
		err = tx.db.Iterate([]byte(legacyNominatorPrefix), func(key, value []byte) bool {
			raw, err := hex.DecodeString(strings.TrimPrefix(string(key), legacyNominatorPrefix))
			if err != nil {
				iterErr = fmt.Errorf("rewards: legacy key %q: %w", key, err)
				return false
			}
			nominator, err := crypto.AccountFromBytes(raw)
			if err != nil {
				iterErr = err
				return false
			}
			amount := new(uint256.Int)
			if err := rlp.DecodeBytes(value, amount); err != nil {
				iterErr = fmt.Errorf("rewards: legacy balance of %s: %w", nominator, err)
				return false
			}
			entries = append(entries, legacyEntry{key: append([]byte(nil), key...), nominator: nominator, amount: amount})
			return true
		})
		if err != nil {
			return err
		}
		if iterErr != nil {
			return iterErr
		}
		for _, entry := range entries {
			validators, ok, err := targets.TargetsOf(entry.nominator)
			if err != nil {
				return fmt.Errorf("rewards: targets of %s: %w", entry.nominator, err)
			}
			if !ok {
				report.Retained++
				continue
			}
			if len(validators) == 0 {
				logger.Warn("dropping legacy nominator reward without target",
					"nominator", entry.nominator.String(),
					"amount", entry.amount.Dec())
				report.Dropped++
			} else {
				if _, err := tx.AddNominatorPending(validators[0], entry.nominator, entry.amount); err != nil {
					return err
				}
				report.Moved++
			}
			tx.delete(entry.key)
		}
		report.ToVersion = LedgerVersion
		return tx.SetVersion(LedgerVersion)
	})
	if err != nil {
		return MigrationReport{}, err
	}
	if report.FromVersion != report.ToVersion {
		logger.Info("reward ledger migrated",
			"from", report.FromVersion,
			"to", report.ToVersion,
			"moved", report.Moved,
			"dropped", report.Dropped,
			"retained", report.Retained)
	}
	return report, nil
}
