// Package domain defines the core domain models for walletauth.
//
// Domain models are pure value objects without IO dependencies or
// framework coupling. This package contains:
//
//   - Wallet: normalized addresses, connection snapshots, connector state
//   - Session: session token, cached user record, published session view
//   - Challenge: the human-readable message a wallet signs to log in
//   - Errors: structured error codes and the error kinds surfaced to
//     session subscribers
package domain
