package rewards

import (
	"fmt"

	"github.com/holiman/uint256"

	"firechain/crypto"
)

// ValidatorID is the session-level identifier reported by the validator set.
// It has to be resolved into an account before rewards can be credited.
type ValidatorID string

// EraPoints exposes the reward points earned during an era.
type EraPoints interface {
	ActiveEra() (uint32, error)
	PointsOf(validator crypto.AccountID, era uint32) (uint32, error)
	TotalPoints(era uint32) (uint32, error)
}

// Exposures exposes the stake backing each validator and its commission.
type Exposures interface {
	ExposureOf(validator crypto.AccountID, era uint32) (Exposure, error)
	CommissionOf(validator crypto.AccountID) (Perbill, error)
}

// Currency moves funds between accounts. With keepAlive set the transfer must
// fail with ErrInsufficientBalance rather than drop the source below its
// existential deposit.
type Currency interface {
	Transfer(from, to crypto.AccountID, amount *uint256.Int, keepAlive bool) error
}

// ValidatorSet lists the validators of the current session.
type ValidatorSet interface {
	CurrentValidators() ([]ValidatorID, error)
}

// IdentityResolver converts a validator id into the account that is paid.
type IdentityResolver interface {
	AccountOf(id ValidatorID) (crypto.AccountID, error)
}

// AccountResolver resolves validator ids written as bech32 or hex accounts.
type AccountResolver struct{}

// AccountOf implements IdentityResolver.
func (AccountResolver) AccountOf(id ValidatorID) (crypto.AccountID, error) {
	account, err := crypto.ParseAccount(string(id))
	if err != nil {
		return crypto.AccountID{}, fmt.Errorf("%w: %q: %v", ErrUnresolvedValidator, id, err)
	}
	if account.IsZero() {
		return crypto.AccountID{}, fmt.Errorf("%w: %q is the zero account", ErrUnresolvedValidator, id)
	}
	return account, nil
}

// Dependencies bundles the collaborators the engine reads from and pays through.
type Dependencies struct {
	Points     EraPoints
	Exposures  Exposures
	Currency   Currency
	Validators ValidatorSet
}

func (d Dependencies) validate() error {
	switch {
	case d.Points == nil:
		return fmt.Errorf("rewards: era points provider required")
	case d.Exposures == nil:
		return fmt.Errorf("rewards: exposure provider required")
	case d.Currency == nil:
		return fmt.Errorf("rewards: currency required")
	case d.Validators == nil:
		return fmt.Errorf("rewards: validator set required")
	}
	return nil
}
