package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/walletauth/internal/core/domain"
)

// handleHealth handles GET /health.
//
// The agent is "degraded" while the connector has failed; the local API
// stays up so an operator can retry.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	connector := h.connector.State()
	status := "healthy"
	if connector == domain.ConnectorFailed {
		status = "degraded"
	}
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:       status,
		Connector:    connector.String(),
		SessionState: h.session.Current().State.String(),
		Version:      h.version,
		Time:         time.Now().UTC().Format(time.RFC3339),
	})
}
