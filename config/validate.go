package config

import (
	"fmt"
	"strings"
)

var supportedJournalDrivers = map[string]struct{}{
	"":         {},
	"sqlite":   {},
	"postgres": {},
}

// Validate checks the sections that cannot be checked by the components
// consuming them.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if _, err := cfg.Rewards.ToEngineConfig(); err != nil {
		return err
	}
	if _, err := cfg.Bank.ExistentialDepositAmount(); err != nil {
		return err
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Journal.Driver))
	if _, ok := supportedJournalDrivers[driver]; !ok {
		return fmt.Errorf("journal: unsupported driver %q", cfg.Journal.Driver)
	}
	if driver != "" && strings.TrimSpace(cfg.Journal.DSN) == "" {
		return fmt.Errorf("journal: DSN required for driver %s", driver)
	}
	if strings.TrimSpace(cfg.Webhook.URL) != "" && strings.TrimSpace(cfg.Webhook.SecretEnv) == "" {
		return fmt.Errorf("webhook: SecretEnv required when URL is set")
	}
	return nil
}
