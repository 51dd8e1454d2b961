package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the rewardsd node configuration.
type Config struct {
	DataDir     string `toml:"DataDir"`
	Environment string `toml:"Environment"`
	LogLevel    string `toml:"LogLevel"`
	LogFile     string `toml:"LogFile,omitempty"`
	// SnapshotFile is the YAML era snapshot used as points, exposure and
	// validator set provider.
	SnapshotFile string `toml:"SnapshotFile"`

	Rewards Rewards `toml:"rewards"`
	Bank    Bank    `toml:"bank"`
	Journal Journal `toml:"journal"`
	Webhook Webhook `toml:"webhook"`
	Metrics Metrics `toml:"metrics"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./rewards-data"
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for new nodes.
func Default() *Config {
	return &Config{
		DataDir:      "./rewards-data",
		Environment:  "local",
		LogLevel:     "info",
		SnapshotFile: "era.yaml",
		Rewards:      DefaultRewards(),
		Bank:         Bank{ExistentialDeposit: "1"},
		Journal:      Journal{Driver: "sqlite", DSN: "journal.db"},
		Metrics:      Metrics{ListenAddress: ""},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ResolvePath joins relative paths onto the data directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}
