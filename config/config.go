package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the node's deployment settings.
type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	ChainID     uint64 `toml:"ChainID"`
	Environment string `toml:"Environment"`
	LogFile     string `toml:"LogFile"`

	LogAPI LogAPIConfig `toml:"LogAPI"`
}

// LogAPIConfig points at the external append-only event-log collaborator.
// Custody correctness never depends on it; when disabled or unreachable,
// events are simply not forwarded.
type LogAPIConfig struct {
	Enabled bool   `toml:"Enabled"`
	URL     string `toml:"URL"`
}

const defaultConfig = `# jobescrow node configuration
RPCAddress = ":8645"
DataDir = "./escrow-data"
NetworkName = "jobescrow-local"
ChainID = 31337
Environment = "dev"
LogFile = ""

[LogAPI]
Enabled = false
URL = ""
`

// Load reads the configuration from the given path, writing a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return nil, fmt.Errorf("write default config: %w", err)
	}
	cfg := &Config{}
	if _, err := toml.Decode(defaultConfig, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields a node cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir is required")
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "jobescrow-local"
	}
	if c.LogAPI.Enabled && strings.TrimSpace(c.LogAPI.URL) == "" {
		return fmt.Errorf("config: LogAPI.URL is required when LogAPI is enabled")
	}
	return nil
}
