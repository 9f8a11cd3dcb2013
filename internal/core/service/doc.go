// Package service contains the wallet session services of walletauth.
//
// The services own all session state and talk to the outside world only
// through the interfaces declared in interfaces.go, so each can be driven
// by fakes in tests. This package contains:
//
//   - Bootstrap: one-shot connector initialization shared by all callers
//   - Observer: deduplicated, ordered wallet connection snapshots
//   - SessionManager: the login state machine, run on a single goroutine
package service
