package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yndnr/walletauth/internal/core/domain"
	"github.com/yndnr/walletauth/internal/core/service"
	"github.com/yndnr/walletauth/internal/telemetry/logger"
)

// SessionAPI is the session manager surface the handlers drive.
type SessionAPI interface {
	Current() domain.Session
	Logout(ctx context.Context) error
	Retry(ctx context.Context) error
	ClearError(ctx context.Context) error
	RefreshProfile(ctx context.Context) (*domain.UserRecord, error)
}

// WalletAPI reports the observed wallet.
type WalletAPI interface {
	Current() domain.WalletSnapshot
	Available() bool
}

// ConnectorAPI controls connector initialization.
type ConnectorAPI interface {
	State() domain.ConnectorState
	Retry(ctx context.Context) error
}

// Config holds the handler dependencies.
type Config struct {
	Session   SessionAPI
	Wallet    WalletAPI
	Connector ConnectorAPI
	Logger    *slog.Logger

	// AllowReveal permits ?reveal=true to return the raw token value.
	AllowReveal bool
	Version     string
}

// Handler routes local API requests to the session components.
type Handler struct {
	session     SessionAPI
	wallet      WalletAPI
	connector   ConnectorAPI
	logger      *slog.Logger
	allowReveal bool
	version     string
	mux         *http.ServeMux
}

// New creates a Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		session:     cfg.Session,
		wallet:      cfg.Wallet,
		connector:   cfg.Connector,
		logger:      cfg.Logger,
		allowReveal: cfg.AllowReveal,
		version:     cfg.Version,
		mux:         http.NewServeMux(),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)

	h.mux.HandleFunc("GET /v1/session", h.handleGetSession)
	h.mux.HandleFunc("POST /v1/session/logout", h.handleLogout)
	h.mux.HandleFunc("POST /v1/session/retry", h.handleRetry)
	h.mux.HandleFunc("POST /v1/session/clear-error", h.handleClearError)
	h.mux.HandleFunc("POST /v1/session/profile", h.handleProfile)

	h.mux.HandleFunc("GET /v1/wallet", h.handleWallet)
	h.mux.HandleFunc("POST /v1/connector/retry", h.handleConnectorRetry)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(getRequestID(r), data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(getRequestID(r), code, message))
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrStopped):
		h.writeError(w, r, http.StatusServiceUnavailable, CodeStopped, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, r, http.StatusGatewayTimeout, CodeTimeout, "request timed out")
		return
	case errors.Is(err, context.Canceled):
		h.writeError(w, r, StatusClientClosedRequest, CodeCanceled, "request canceled")
		return
	}

	if code := domain.GetErrorCode(err); code != "" {
		status := errorCodeToHTTPStatus(code)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("request failed", "request_id", getRequestID(r), "code", code, "error", err)
		}
		h.writeError(w, r, status, code, err.Error())
		return
	}

	h.logger.Error("internal error", "request_id", getRequestID(r), "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, "internal server error")
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.ErrInvalidArgument.Code:
		return http.StatusBadRequest
	case domain.ErrInvalidSession.Code, domain.ErrLoginRejected.Code:
		return http.StatusUnauthorized
	case domain.ErrSignatureRejected.Code, domain.ErrSigningFailed.Code:
		return http.StatusForbidden
	case domain.ErrNoSession.Code:
		return http.StatusNotFound
	case domain.ErrNotAuthenticated.Code:
		return http.StatusConflict
	case domain.ErrNetworkFailure.Code:
		return http.StatusBadGateway
	case domain.ErrConnectorUnavailable.Code:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
