package httpserver

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/walletauth/internal/core/domain"
	"github.com/yndnr/walletauth/internal/server/httpserver/handler"
	"github.com/yndnr/walletauth/internal/telemetry/logger"
	"github.com/yndnr/walletauth/internal/telemetry/metric"
	"github.com/yndnr/walletauth/pkg/cmap"
)

// Error codes written by the middleware.
const (
	CodeRateLimited     = "WA-API-4290"
	CodeOriginForbidden = "WA-API-4030"
)

// maxRequestIDLength bounds caller-supplied request IDs.
const maxRequestIDLength = 64

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware is
// the outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID tags each request with an ID, reusing a sane X-Request-ID
// from the caller.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > maxRequestIDLength || strings.ContainsAny(requestID, " \t\r\n") {
				requestID = ulid.Make().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// limiterRegistry hands out one token bucket per client IP.
type limiterRegistry struct {
	limiters *cmap.Map[*limiterEntry]
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// sweepThreshold is the registry size above which idle entries are dropped.
const sweepThreshold = 256

func newLimiterRegistry(rps float64, idle time.Duration) *limiterRegistry {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &limiterRegistry{
		limiters: cmap.New[*limiterEntry](cmap.DefaultShardCount),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     idle,
	}
}

func (r *limiterRegistry) get(key string, now time.Time) *rate.Limiter {
	if e, ok := r.limiters.Get(key); ok {
		e.lastSeen.Store(now.UnixNano())
		return e.limiter
	}
	if r.limiters.Len() >= sweepThreshold {
		cutoff := now.Add(-r.idle).UnixNano()
		r.limiters.DeleteIf(func(_ string, e *limiterEntry) bool {
			return e.lastSeen.Load() < cutoff
		})
	}
	e, _ := r.limiters.GetOrSet(key, &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)})
	e.lastSeen.Store(now.UnixNano())
	return e.limiter
}

func (r *limiterRegistry) size() int {
	return r.limiters.Len()
}

// RateLimit applies a per-IP token bucket of rps requests per second.
func RateLimit(rps float64) Middleware {
	limiters := newLimiterRegistry(rps, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.get(getClientIP(r), time.Now()).Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs every completed request and counts it in metrics.
func Audit(log *slog.Logger, metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			metrics.HTTPRequest(r.Method, wrapped.statusCode)
			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", getClientIP(r),
			}
			switch {
			case wrapped.statusCode >= 500:
				log.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Debug("request completed", attrs...)
			}
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.Error("panic recovered",
						"request_id", logger.RequestIDFromContext(r.Context()),
						"error", err,
						"path", r.URL.Path,
					)
					writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORS answers browser pages whose origin host matches one of patterns
// (path.Match syntax, e.g. "localhost:*"). With no patterns no
// cross-origin access is granted.
func CORS(patterns []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !originAllowed(origin, patterns) {
				if r.Method == http.MethodOptions {
					writeError(w, r, http.StatusForbidden, CodeOriginForbidden, "origin not allowed")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			h.Set("Access-Control-Max-Age", "600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, patterns []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, p := range patterns {
		if p == "*" {
			return true
		}
		if ok, err := path.Match(strings.ToLower(p), strings.ToLower(u.Host)); err == nil && ok {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(handler.NewErrorResponse(logger.RequestIDFromContext(r.Context()), code, message))
}

// getClientIP returns the peer address. Forwarding headers are ignored:
// the agent listens on loopback and no proxy sits in front of it.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
