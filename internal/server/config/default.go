package config

import (
	"time"

	"github.com/yndnr/walletauth/internal/core/domain"
)

// Default configuration values.
const (
	DefaultHTTPAddr  = "127.0.0.1:7580"
	DefaultRateLimit = 20

	DefaultBackendURL = "http://localhost:8000"

	DefaultRequestTimeout    = 15 * time.Second
	DefaultHeartbeatInterval = 20 * time.Second

	DefaultDataDir    = "~/.walletauth/data"
	DefaultGCInterval = 10 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default agent configuration.
func Default() *AgentConfig {
	return &AgentConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:      DefaultHTTPAddr,
				RateLimit: DefaultRateLimit,
			},
		},
		Backend: BackendSection{
			BaseURL: DefaultBackendURL,
		},
		Auth: AuthSection{
			ProductName:    domain.DefaultProductName,
			RequestTimeout: DefaultRequestTimeout,
		},
		Connector: ConnectorSection{
			AllowedOrigins:    []string{"localhost:*", "127.0.0.1:*"},
			HeartbeatInterval: DefaultHeartbeatInterval,
		},
		Storage: StorageSection{
			Mode:       StorageBadger,
			DataDir:    DefaultDataDir,
			GCInterval: DefaultGCInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
