package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "walletauth"

// Session states exported by the session_state gauge.
var sessionStates = []string{"unauthenticated", "authenticating", "authenticated", "error"}

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	SessionState       *prometheus.GaugeVec
	SessionTransitions *prometheus.CounterVec
	LoginAttempts      *prometheus.CounterVec
	ConnectorState     prometheus.Gauge
	WalletEvents       *prometheus.CounterVec
	BackendDuration    *prometheus.HistogramVec
	HTTPRequests       *prometheus.CounterVec
}

// NewRegistry creates a registry with every metric registered, plus the
// Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state (1 for the active state, 0 otherwise)",
		}, []string{"state"}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions",
		}, []string{"from", "to"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login and startup verification attempts by outcome",
		}, []string{"outcome"}),
		ConnectorState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connector_state",
			Help:      "Wallet connector state (0 uninitialized, 1 initializing, 2 ready, 3 failed)",
		}),
		WalletEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_events_total",
			Help:      "Wallet snapshots delivered by the observer",
		}, []string{"kind"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of backend auth requests",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Local API requests by method and status class",
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		r.SessionState,
		r.SessionTransitions,
		r.LoginAttempts,
		r.ConnectorState,
		r.WalletEvents,
		r.BackendDuration,
		r.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, s := range sessionStates {
		r.SessionState.WithLabelValues(s).Set(0)
	}
	r.SessionState.WithLabelValues("unauthenticated").Set(1)

	return r
}

// Registerer exposes the underlying registry so other components can
// register their own collectors. Returns nil for a nil Registry.
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.registry
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// SessionTransition records a move between two session states.
func (r *Registry) SessionTransition(from, to string) {
	if r == nil {
		return
	}
	if from != to {
		r.SessionTransitions.WithLabelValues(from, to).Inc()
	}
	for _, s := range sessionStates {
		v := 0.0
		if s == to {
			v = 1
		}
		r.SessionState.WithLabelValues(s).Set(v)
	}
}

// LoginAttempt records the outcome of a login or startup verification.
func (r *Registry) LoginAttempt(outcome string) {
	if r == nil {
		return
	}
	r.LoginAttempts.WithLabelValues(outcome).Inc()
}

// SetConnectorState records the connector state ordinal.
func (r *Registry) SetConnectorState(state int) {
	if r == nil {
		return
	}
	r.ConnectorState.Set(float64(state))
}

// WalletEvent counts a delivered wallet snapshot.
func (r *Registry) WalletEvent(kind string) {
	if r == nil {
		return
	}
	r.WalletEvents.WithLabelValues(kind).Inc()
}

// ObserveBackend records the latency of a backend request.
func (r *Registry) ObserveBackend(op, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.BackendDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

// HTTPRequest counts a local API request.
func (r *Registry) HTTPRequest(method string, status int) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
