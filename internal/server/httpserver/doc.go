// Package httpserver serves the agent's local API.
//
// Routes:
//
//   - /health, /v1/session, /v1/wallet, /v1/connector/retry (package handler)
//   - /metrics (Prometheus)
//   - /bridge (wallet connector WebSocket)
//
// API routes pass through Recover, CORS, RequestID, RateLimit and Audit.
// The bridge route skips the response wrappers so the connection can be
// hijacked.
package httpserver
