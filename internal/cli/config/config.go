package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable that overrides DefaultConfigPath.
const EnvConfigPath = "WALLETAUTH_CLI_CONFIG"

// CLIConfig holds defaults for walletauth-cli's global flags. Empty
// fields leave the built-in flag default in place.
type CLIConfig struct {
	Agent   string        `yaml:"agent,omitempty"`
	Output  string        `yaml:"output,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DefaultConfigPath returns ~/.walletauth/cli.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".walletauth", "cli.yaml")
}

// Load reads the file at path. A missing file yields an empty config.
func Load(path string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, readable by the owner only.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		return errors.New("no config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Merge returns base with the non-empty fields of update applied.
func Merge(base, update CLIConfig) CLIConfig {
	if update.Agent != "" {
		base.Agent = update.Agent
	}
	if update.Output != "" {
		base.Output = update.Output
	}
	if update.Timeout > 0 {
		base.Timeout = update.Timeout
	}
	return base
}
