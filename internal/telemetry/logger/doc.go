// Package logger builds the agent's log/slog logger.
//
//   - logger.go: handler selection and the shared, runtime-adjustable level
//   - context.go: request and login attempt IDs carried in a context and
//     stamped onto records logged with it
//   - redact.go: masking of session tokens, signatures and keys
//
// Redaction is applied to every attribute before it is written, so a
// session token or bearer header never reaches the log output in full.
// Wallet addresses are public and are logged as is.
package logger
