package handler

import "net/http"

// handleWallet handles GET /v1/wallet.
func (h *Handler) handleWallet(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, WalletResponse{
		Wallet:    h.wallet.Current(),
		Available: h.wallet.Available(),
		Connector: h.connector.State().String(),
	})
}

// handleConnectorRetry handles POST /v1/connector/retry.
func (h *Handler) handleConnectorRetry(w http.ResponseWriter, r *http.Request) {
	if err := h.connector.Retry(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.logger.Info("connector retried via api", "request_id", getRequestID(r))
	h.writeJSON(w, r, http.StatusOK, ConnectorResponse{Connector: h.connector.State().String()})
}
