package handler

import (
	"net/http"
	"strconv"

	"github.com/yndnr/walletauth/internal/core/domain"
)

// handleGetSession handles GET /v1/session.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.view(r))
}

// handleLogout handles POST /v1/session/logout.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.logger.Info("session logged out via api", "request_id", getRequestID(r))
	h.writeJSON(w, r, http.StatusOK, h.view(r))
}

// handleRetry handles POST /v1/session/retry.
// The login runs in the background; the response is the view at the
// time the attempt was accepted.
func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Retry(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, h.view(r))
}

// handleClearError handles POST /v1/session/clear-error.
func (h *Handler) handleClearError(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ClearError(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.view(r))
}

// handleProfile handles POST /v1/session/profile.
func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.session.RefreshProfile(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, user)
}

// view returns the current session, with the token masked unless the
// caller asked for it and the agent allows it.
func (h *Handler) view(r *http.Request) domain.Session {
	s := h.session.Current()
	if h.allowReveal {
		if reveal, _ := strconv.ParseBool(r.URL.Query().Get("reveal")); reveal {
			return s
		}
	}
	return s.Redacted()
}
