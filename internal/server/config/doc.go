// Package config provides the walletauth agent configuration.
//
//   - spec.go: AgentConfig struct definition
//   - default.go: default values
//   - verify.go: validation (URLs, modes, durations, data directory)
//   - sanitize.go: masking of secrets for logging
//
// Configuration is loaded via internal/infra/confloader from files,
// environment variables and flags.
package config
