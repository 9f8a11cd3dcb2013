package handler

import (
	"time"

	"github.com/yndnr/walletauth/internal/core/domain"
)

// Codes for failures that do not come from the domain layer.
const (
	CodeStopped  = "WA-API-5031"
	CodeTimeout  = "WA-API-5040"
	CodeCanceled = "WA-API-4990"
)

// StatusClientClosedRequest is reported when the caller went away.
const StatusClientClosedRequest = 499

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Connector    string `json:"connector"`
	SessionState string `json:"session_state"`
	Version      string `json:"version,omitempty"`
	Time         string `json:"time"`
}

// WalletResponse is the body of GET /v1/wallet.
type WalletResponse struct {
	Wallet    domain.WalletSnapshot `json:"wallet"`
	Available bool                  `json:"available"`
	Connector string                `json:"connector"`
}

// ConnectorResponse is the body of POST /v1/connector/retry.
type ConnectorResponse struct {
	Connector string `json:"connector"`
}
