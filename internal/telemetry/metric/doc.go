// Package metric provides Prometheus metrics for the walletauth agent.
//
// Metrics include:
//
//   - Session state and transition counters
//   - Login attempt outcomes
//   - Connector state and wallet event counts
//   - Backend request latency
//   - Token store size (registered by the storage engine)
//
// Metrics are exposed at /metrics in Prometheus format. A nil *Registry
// accepts every call and records nothing.
package metric
