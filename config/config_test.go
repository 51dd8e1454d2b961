package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"firechain/core/rewards"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	engineCfg, err := cfg.Rewards.ToEngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if !engineCfg.EraBudget().Eq(rewards.DefaultConfig().EraBudget()) {
		t.Fatalf("default budget mismatch: %s", engineCfg.EraBudget().Dec())
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Rewards != cfg.Rewards {
		t.Fatalf("round trip changed rewards section: %+v vs %+v", reloaded.Rewards, cfg.Rewards)
	}
}

func TestLoadParsesRewardsSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `DataDir = "/var/lib/rewards"
SnapshotFile = "eras/current.yaml"

[rewards]
YearlyBudget = "20_000_000"
MinutesPerYear = 525600
EraMinutes = 2
Precision = 2
PoolSeed = "py/rewrd"
HistoryLength = 12

[bank]
ExistentialDeposit = "5"

[journal]
Driver = "postgres"
DSN = "postgres://rewards:secret@db/journal"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	engineCfg, err := cfg.Rewards.ToEngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if got := engineCfg.EraBudget().Uint64(); got != 76 {
		t.Fatalf("era budget: got %d want 76", got)
	}
	if engineCfg.HistoryLength != 12 {
		t.Fatalf("history length: got %d", engineCfg.HistoryLength)
	}
	ed, err := cfg.Bank.ExistentialDepositAmount()
	if err != nil || ed.Uint64() != 5 {
		t.Fatalf("existential deposit: %v %v", ed, err)
	}
	if got := cfg.ResolvePath(cfg.SnapshotFile); got != filepath.Join("/var/lib/rewards", "eras/current.yaml") {
		t.Fatalf("resolve path: %s", got)
	}
}

func TestLoadRejectsInvalidRewards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `[rewards]
YearlyBudget = "1000"
MinutesPerYear = 10
EraMinutes = 0
PoolSeed = "py/rewrd"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, rewards.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ValidatorKey") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateJournal(t *testing.T) {
	cfg := Default()
	cfg.Journal.Driver = "mysql"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	cfg.Journal = Journal{Driver: "sqlite"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing DSN error")
	}
	cfg.Journal = Journal{}
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled journal rejected: %v", err)
	}
}

func TestValidateWebhook(t *testing.T) {
	cfg := Default()
	cfg.Webhook = Webhook{URL: "https://hooks.example/rewards"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing secret env error")
	}
	cfg.Webhook.SecretEnv = "REWARDS_WEBHOOK_SECRET"
	if err := Validate(cfg); err != nil {
		t.Fatalf("valid webhook rejected: %v", err)
	}
}
