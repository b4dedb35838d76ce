package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the node-level settings for peerlyd. The Genesis block is
// consumed exactly once, when the daemon starts against an uninitialized
// database.
type Config struct {
	RPCAddress  string  `toml:"RPCAddress"`
	MetricsPath string  `toml:"MetricsPath"`
	DataDir     string  `toml:"DataDir"`
	NetworkName string  `toml:"NetworkName"`
	Genesis     Genesis `toml:"Genesis"`
}

// Genesis describes the initial module configuration and ledger allocations.
type Genesis struct {
	Admin           string       `toml:"Admin"`
	Arbiter         string       `toml:"Arbiter"`
	Pauser          string       `toml:"Pauser"`
	Token           string       `toml:"Token"`
	MaxDurationSecs uint64       `toml:"MaxDurationSecs"`
	FiatTimeoutSecs uint64       `toml:"FiatTimeoutSecs"`
	Allocations     []Allocation `toml:"Allocations"`
}

// Allocation funds an account at genesis. Amount is a decimal string so
// balances beyond uint64 survive the TOML round trip.
type Allocation struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.MetricsPath) == "" {
		cfg.MetricsPath = "/metrics"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./peerlypay-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "peerlypay-local"
	}
	if strings.TrimSpace(cfg.Genesis.Token) == "" {
		cfg.Genesis.Token = "PPUSD"
	}
	if cfg.Genesis.MaxDurationSecs == 0 {
		cfg.Genesis.MaxDurationSecs = 30 * 24 * 60 * 60
	}
	if cfg.Genesis.FiatTimeoutSecs == 0 {
		cfg.Genesis.FiatTimeoutSecs = 30 * 60
	}
}

// Validate rejects configurations that would fail later in the boot sequence.
func (c *Config) Validate() error {
	if c.Genesis.MaxDurationSecs == 0 || c.Genesis.FiatTimeoutSecs == 0 {
		return fmt.Errorf("config: genesis timeouts must be positive")
	}
	for _, alloc := range c.Genesis.Allocations {
		if strings.TrimSpace(alloc.Address) == "" {
			return fmt.Errorf("config: genesis allocation without address")
		}
		if strings.TrimSpace(alloc.Amount) == "" {
			return fmt.Errorf("config: genesis allocation without amount")
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
