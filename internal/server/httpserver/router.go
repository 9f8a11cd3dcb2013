package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/walletauth/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// API serves /health and /v1/*.
	API http.Handler

	// Bridge serves the wallet connector WebSocket. Optional.
	Bridge http.Handler

	Metrics *metric.Registry
	Logger  *slog.Logger

	// CORSAllowedOrigins are origin host patterns allowed to call the API.
	CORSAllowedOrigins []string

	// RateLimit is the per-IP request rate (requests/second); 0 disables it.
	RateLimit float64

	// EnableAudit enables audit logging for API requests.
	EnableAudit bool
}

// NewRouter creates the top-level handler with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// Order: Recover -> CORS -> RequestID -> RateLimit -> Audit -> API
	chain := []Middleware{Recover(log), CORS(cfg.CORSAllowedOrigins), RequestID()}
	if cfg.RateLimit > 0 {
		chain = append(chain, RateLimit(cfg.RateLimit))
	}
	if cfg.EnableAudit {
		chain = append(chain, Audit(log, cfg.Metrics))
	}
	api := Chain(cfg.API, chain...)

	mux := http.NewServeMux()
	mux.Handle("/health", api)
	mux.Handle("/v1/", api)
	mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(log)))
	if cfg.Bridge != nil {
		mux.Handle("GET /bridge", Chain(cfg.Bridge, Recover(log), RequestID()))
	}
	return mux
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RateLimit:   20,
		EnableAudit: true,
	}
}
