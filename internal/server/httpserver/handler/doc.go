// Package handler provides the local agent's HTTP endpoints.
//
//   - health.go: liveness with connector and session state
//   - session.go: session view and operator commands
//   - wallet.go: wallet snapshot and connector retry
//
// Every JSON response uses the Response envelope; failures carry a
// domain error code in both the body and the X-Error-Code header.
package handler
