package config

import "time"

// AgentConfig is the root configuration for walletauth-agent.
type AgentConfig struct {
	Server    ServerSection    `koanf:"server" yaml:"server"`
	Backend   BackendSection   `koanf:"backend" yaml:"backend"`
	Auth      AuthSection      `koanf:"auth" yaml:"auth"`
	Connector ConnectorSection `koanf:"connector" yaml:"connector"`
	Storage   StorageSection   `koanf:"storage" yaml:"storage"`
	Log       LogSection       `koanf:"log" yaml:"log"`
}

// ServerSection configures the local API.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http" yaml:"http"`
}

// HTTPConfig configures the local HTTP server.
type HTTPConfig struct {
	Addr           string   `koanf:"addr" yaml:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins" yaml:"allowed_origins"`

	// RateLimit is the per-client request rate (requests/second). 0 disables it.
	RateLimit float64 `koanf:"rate_limit" yaml:"rate_limit"`

	// AllowReveal permits GET /v1/session?reveal=true to return the raw token.
	AllowReveal bool `koanf:"allow_reveal" yaml:"allow_reveal"`
}

// BackendSection configures the remote authentication API.
type BackendSection struct {
	BaseURL   string `koanf:"base_url" yaml:"base_url"`
	TLSCAFile string `koanf:"tls_ca_file" yaml:"tls_ca_file"`
	UserAgent string `koanf:"user_agent" yaml:"user_agent"`
}

// AuthSection configures the login flow.
type AuthSection struct {
	ProductName            string        `koanf:"product_name" yaml:"product_name"`
	RequestTimeout         time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
	VerifySignatureLocally bool          `koanf:"verify_signature_locally" yaml:"verify_signature_locally"`
}

// ConnectorSection configures the wallet bridge.
type ConnectorSection struct {
	ProjectID         string        `koanf:"project_id" yaml:"project_id"`
	AllowedOrigins    []string      `koanf:"allowed_origins" yaml:"allowed_origins"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" yaml:"heartbeat_interval"`
}

// Storage modes.
const (
	StorageBadger = "badger"
	StorageMemory = "memory"
)

// StorageSection configures the token store.
type StorageSection struct {
	Mode          string        `koanf:"mode" yaml:"mode"`
	DataDir       string        `koanf:"data_dir" yaml:"data_dir"`
	EncryptionKey string        `koanf:"encryption_key" yaml:"encryption_key"`
	GCInterval    time.Duration `koanf:"gc_interval" yaml:"gc_interval"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
