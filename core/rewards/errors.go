package rewards

import (
	"errors"

	coreerrors "firechain/core/errors"
)

var (
	// ErrNoReward is returned when the validator has no pending reward.
	ErrNoReward = errors.New("rewards: no reward available")
	// ErrAlreadyQueued is returned when the validator is already waiting for settlement.
	ErrAlreadyQueued = errors.New("rewards: validator already queued")
	// ErrInvalidCaller is returned when a request carries no caller identity.
	ErrInvalidCaller = errors.New("rewards: caller required")
	// ErrUnresolvedValidator is returned when a validator id does not map to a payable account.
	ErrUnresolvedValidator = errors.New("rewards: validator does not resolve to an account")
	// ErrZeroTotalStake is returned when a stake total truncates to zero.
	ErrZeroTotalStake = errors.New("rewards: total stake truncates to zero")
	// ErrInvalidPoints is returned when a validator reports more points than the era total.
	ErrInvalidPoints = errors.New("rewards: validator points exceed era total")
	// ErrEraAlreadyComputed is returned when an era has already been credited.
	ErrEraAlreadyComputed = errors.New("rewards: era already computed")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("rewards: invalid config")
	// ErrGenesisRequired is returned when the ledger has no pool account recorded.
	ErrGenesisRequired = errors.New("rewards: genesis not initialised")
	// ErrPoolMismatch is returned when the configured pool differs from the genesis pool.
	ErrPoolMismatch = errors.New("rewards: pool account mismatch")
	// ErrMigrationRequired is returned when the ledger layout predates LedgerVersion.
	ErrMigrationRequired = errors.New("rewards: ledger migration required")
	// ErrNotInitialised is returned by methods invoked on a nil engine or ledger.
	ErrNotInitialised = errors.New("rewards: not initialised")

	// ErrInsufficientBalance is the currency error the settlement loop recovers from.
	ErrInsufficientBalance = coreerrors.ErrInsufficientBalance
)
