package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// MinEncryptionKeyLength is the shortest accepted storage.encryption_key.
const MinEncryptionKeyLength = 16

// Verify validates the configuration and expands "~" in storage.data_dir.
func Verify(cfg *AgentConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyBackend(&cfg.Backend); err != nil {
		return err
	}
	if cfg.Auth.RequestTimeout <= 0 {
		return errors.New("auth.request_timeout must be positive")
	}
	if cfg.Connector.HeartbeatInterval < 0 {
		return errors.New("connector.heartbeat_interval must not be negative")
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if cfg.HTTP.RateLimit < 0 {
		return errors.New("server.http.rate_limit must not be negative")
	}
	return nil
}

func verifyBackend(cfg *BackendSection) error {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https, got %q", cfg.BaseURL)
	}
	if u.Host == "" {
		return errors.New("backend.base_url must include a host")
	}
	if cfg.TLSCAFile != "" {
		if _, err := os.Stat(cfg.TLSCAFile); err != nil {
			return fmt.Errorf("backend.tls_ca_file: %w", err)
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if key := cfg.EncryptionKey; key != "" && len(key) < MinEncryptionKeyLength {
		return fmt.Errorf("storage.encryption_key must be at least %d characters", MinEncryptionKeyLength)
	}

	switch cfg.Mode {
	case StorageMemory:
		return nil
	case StorageBadger:
	default:
		return fmt.Errorf("storage.mode must be %q or %q, got %q", StorageBadger, StorageMemory, cfg.Mode)
	}

	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	dir, err := ExpandHome(cfg.DataDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	cfg.DataDir = dir
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
