package rewards

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"firechain/crypto"
)

const (
	// DefaultMinutesPerYear is the number of minutes in a 365 day year.
	DefaultMinutesPerYear uint32 = 525_600
	// DefaultEraMinutes is the length of an era in minutes.
	DefaultEraMinutes uint32 = 720
	// DefaultPrecision is the number of decimals of the native token.
	DefaultPrecision uint8 = 18
	// DefaultPoolSeed identifies the module account that funds payouts.
	DefaultPoolSeed = "py/rewrd"
	// DefaultYearlyTokens is the whole-token yearly reward budget.
	DefaultYearlyTokens uint64 = 1_113_158
)

// Config controls the era reward budget. Every field is fixed at deployment.
type Config struct {
	// YearlyBudget is the total reward for a year, expressed as a scaled
	// balance (Precision implied decimals).
	YearlyBudget *uint256.Int

	// MinutesPerYear and EraMinutes derive the number of eras per year.
	MinutesPerYear uint32
	EraMinutes     uint32

	// Precision is the number of implied decimal digits of a scaled balance.
	Precision uint8

	// PoolSeed is the module identifier the pool account is derived from.
	PoolSeed string

	// HistoryLength controls how many era summaries are retained. A zero value
	// keeps the full history.
	HistoryLength uint64
}

// DefaultConfig returns the mainnet reward parameters.
func DefaultConfig() Config {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(DefaultPrecision)))
	budget := new(uint256.Int).Mul(uint256.NewInt(DefaultYearlyTokens), scale)
	return Config{
		YearlyBudget:   budget,
		MinutesPerYear: DefaultMinutesPerYear,
		EraMinutes:     DefaultEraMinutes,
		Precision:      DefaultPrecision,
		PoolSeed:       DefaultPoolSeed,
		HistoryLength:  84,
	}
}

// Validate ensures the configuration is internally consistent.
func (c Config) Validate() error {
	if c.YearlyBudget == nil {
		return fmt.Errorf("%w: yearly budget must be set", ErrInvalidConfig)
	}
	if c.EraMinutes == 0 {
		return fmt.Errorf("%w: era minutes must be greater than zero", ErrInvalidConfig)
	}
	if c.MinutesPerYear < c.EraMinutes {
		return fmt.Errorf("%w: minutes per year (%d) shorter than an era (%d)", ErrInvalidConfig, c.MinutesPerYear, c.EraMinutes)
	}
	if c.Precision > MaxPrecisionDigits {
		return fmt.Errorf("%w: precision %d exceeds %d digits", ErrInvalidConfig, c.Precision, MaxPrecisionDigits)
	}
	if strings.TrimSpace(c.PoolSeed) == "" {
		return fmt.Errorf("%w: pool seed must be set", ErrInvalidConfig)
	}
	if _, err := crypto.DerivePoolAccount(c.PoolSeed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ErasPerYear returns MinutesPerYear / EraMinutes using integer division.
func (c Config) ErasPerYear() uint32 {
	if c.EraMinutes == 0 {
		return 0
	}
	return c.MinutesPerYear / c.EraMinutes
}

// EraBudget returns YearlyBudget / (MinutesPerYear / EraMinutes). Both
// divisions truncate and the result is recomputed on every call.
func (c Config) EraBudget() *uint256.Int {
	eras := c.ErasPerYear()
	if eras == 0 || c.YearlyBudget == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Div(c.YearlyBudget, uint256.NewInt(uint64(eras)))
}

// PoolAccount derives the account holding reward funds.
func (c Config) PoolAccount() (crypto.AccountID, error) {
	return crypto.DerivePoolAccount(c.PoolSeed)
}

// Clone creates a deep copy of the configuration.
func (c Config) Clone() Config {
	clone := c
	if c.YearlyBudget != nil {
		clone.YearlyBudget = new(uint256.Int).Set(c.YearlyBudget)
	}
	return clone
}
