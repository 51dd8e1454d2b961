package rewards

import (
	"testing"

	"github.com/stretchr/testify/require"

	"firechain/crypto"
	"firechain/storage"
)

type stubTargets map[crypto.AccountID][]crypto.AccountID

func (s stubTargets) TargetsOf(nominator crypto.AccountID) ([]crypto.AccountID, bool, error) {
	targets, ok := s[nominator]
	return targets, ok, nil
}

func seedLegacyLedger(t *testing.T, balances map[crypto.AccountID]uint64) *Ledger {
	t.Helper()
	ledger := NewLedger(storage.NewMemDB())
	pool, err := crypto.DerivePoolAccount(DefaultPoolSeed)
	require.NoError(t, err)
	require.NoError(t, ledger.Update(func(tx *Tx) error {
		if err := tx.putRLP([]byte(ledgerPoolKey), pool); err != nil {
			return err
		}
		for nominator, amount := range balances {
			if err := tx.setBalance(legacyNominatorKey(nominator), u(amount)); err != nil {
				return err
			}
		}
		return nil
	}))
	return ledger
}

func TestMigrateNominatorRewards(t *testing.T) {
	v1, v2 := testAccount(1), testAccount(2)
	moved, orphan, gone := testAccount(10), testAccount(11), testAccount(12)
	ledger := seedLegacyLedger(t, map[crypto.AccountID]uint64{moved: 70, orphan: 5, gone: 9})
	targets := stubTargets{
		moved:  {v2, v1},
		orphan: {},
	}

	report, err := MigrateNominatorRewards(ledger, targets, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), report.FromVersion)
	require.Equal(t, LedgerVersion, report.ToVersion)
	require.Equal(t, 1, report.Moved)
	require.Equal(t, 1, report.Dropped)
	require.Equal(t, 1, report.Retained)

	owed, err := ledger.NominatorPending(v2, moved)
	require.NoError(t, err)
	require.Equal(t, uint64(70), owed.Uint64())
	nominators, err := ledger.Nominators(v2)
	require.NoError(t, err)
	require.Equal(t, []crypto.AccountID{moved}, nominators)

	require.NoError(t, ledger.View(func(tx *Tx) error {
		_, ok, err := tx.get(legacyNominatorKey(moved))
		require.False(t, ok)
		_, ok, _ = tx.get(legacyNominatorKey(orphan))
		require.False(t, ok)
		_, ok, _ = tx.get(legacyNominatorKey(gone))
		require.True(t, ok)
		return err
	}))

	again, err := MigrateNominatorRewards(ledger, targets, nil)
	require.NoError(t, err)
	require.Equal(t, 0, again.Moved)
	require.Equal(t, LedgerVersion, again.FromVersion)
}

func TestNewRejectsLegacyLedger(t *testing.T) {
	ledger := seedLegacyLedger(t, nil)
	_, err := New(smallConfig(1000), ledger, Dependencies{
		Points:     &stubPoints{},
		Exposures:  &stubExposures{},
		Currency:   newStubCurrency(1),
		Validators: &stubValidators{},
	})
	require.ErrorIs(t, err, ErrMigrationRequired)
}
