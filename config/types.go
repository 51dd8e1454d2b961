package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"firechain/core/rewards"
)

// Rewards mirrors rewards.Config. Amounts are decimal strings of scaled units.
type Rewards struct {
	YearlyBudget   string `toml:"YearlyBudget"`
	MinutesPerYear uint32 `toml:"MinutesPerYear"`
	EraMinutes     uint32 `toml:"EraMinutes"`
	Precision      uint8  `toml:"Precision"`
	PoolSeed       string `toml:"PoolSeed"`
	HistoryLength  uint64 `toml:"HistoryLength"`
}

// Bank configures the native currency.
type Bank struct {
	ExistentialDeposit string `toml:"ExistentialDeposit"`
}

// Journal configures the SQL payout journal. An empty driver disables it.
type Journal struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Webhook forwards reward events to an HTTP endpoint. The signing secret is
// read from the environment variable named by SecretEnv.
type Webhook struct {
	URL       string   `toml:"URL"`
	SecretEnv string   `toml:"SecretEnv"`
	Topics    []string `toml:"Topics,omitempty"`
}

// Metrics configures the prometheus endpoint. An empty address disables it.
type Metrics struct {
	ListenAddress string `toml:"ListenAddress"`
}

// DefaultRewards returns the mainnet reward parameters in file form.
func DefaultRewards() Rewards {
	cfg := rewards.DefaultConfig()
	return Rewards{
		YearlyBudget:   cfg.YearlyBudget.Dec(),
		MinutesPerYear: cfg.MinutesPerYear,
		EraMinutes:     cfg.EraMinutes,
		Precision:      cfg.Precision,
		PoolSeed:       cfg.PoolSeed,
		HistoryLength:  cfg.HistoryLength,
	}
}

// ToEngineConfig converts the section into a validated engine configuration.
func (r Rewards) ToEngineConfig() (rewards.Config, error) {
	budget, err := parseUintAmount(r.YearlyBudget)
	if err != nil {
		return rewards.Config{}, fmt.Errorf("invalid rewards.YearlyBudget: %w", err)
	}
	cfg := rewards.Config{
		YearlyBudget:   budget,
		MinutesPerYear: r.MinutesPerYear,
		EraMinutes:     r.EraMinutes,
		Precision:      r.Precision,
		PoolSeed:       r.PoolSeed,
		HistoryLength:  r.HistoryLength,
	}
	if err := cfg.Validate(); err != nil {
		return rewards.Config{}, err
	}
	return cfg, nil
}

// ExistentialDepositAmount parses the configured existential deposit.
func (b Bank) ExistentialDepositAmount() (*uint256.Int, error) {
	amount, err := parseUintAmount(b.ExistentialDeposit)
	if err != nil {
		return nil, fmt.Errorf("invalid bank.ExistentialDeposit: %w", err)
	}
	return amount, nil
}

func parseUintAmount(value string) (*uint256.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(trimmed)
}
