// Package domain defines the core domain models for walletauth.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "WA-AUTH-4001")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrSignatureRejected indicates the user declined to sign the challenge.
	ErrSignatureRejected = NewDomainError("WA-AUTH-4001", "signature rejected by user")

	// ErrSigningFailed indicates the wallet could not produce a usable signature.
	ErrSigningFailed = NewDomainError("WA-AUTH-4002", "message signing failed")

	// ErrLoginRejected indicates the backend refused the signed challenge.
	ErrLoginRejected = NewDomainError("WA-AUTH-4011", "login rejected by backend")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrInvalidSession indicates a stored token failed verification.
	ErrInvalidSession = NewDomainError("WA-SESS-4010", "session token is invalid")

	// ErrNoSession indicates there is no stored session.
	ErrNoSession = NewDomainError("WA-SESS-4040", "no session")

	// ErrNotAuthenticated indicates an operation needs an authenticated session.
	ErrNotAuthenticated = NewDomainError("WA-SESS-4090", "session is not authenticated")
)

// ============================================================================
// Upstream Errors (NET, CONN)
// ============================================================================

var (
	// ErrNetworkFailure indicates a backend request failed or timed out.
	ErrNetworkFailure = NewDomainError("WA-NET-5030", "backend request failed")

	// ErrConnectorUnavailable indicates the wallet connector is not usable.
	ErrConnectorUnavailable = NewDomainError("WA-CONN-5030", "wallet connector unavailable")
)

// ============================================================================
// System Errors (STOR, SYS, ARG)
// ============================================================================

var (
	// ErrStorageError indicates a token store failure.
	ErrStorageError = NewDomainError("WA-STOR-5001", "storage error")

	// ErrCorruptSession indicates the stored session could not be decoded.
	ErrCorruptSession = NewDomainError("WA-STOR-5002", "stored session is corrupt")

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError("WA-SYS-5000", "internal error")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("WA-ARG-1001", "invalid argument")
)

// ErrorKind classifies failures surfaced to session subscribers.
type ErrorKind string

// Error kinds.
const (
	KindNone                 ErrorKind = ""
	KindSignatureRejected    ErrorKind = "signature_rejected"
	KindNetworkFailure       ErrorKind = "network_failure"
	KindInvalidSession       ErrorKind = "invalid_session"
	KindConnectorUnavailable ErrorKind = "connector_unavailable"
)

// Retryable reports whether the UI should offer a retry for this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNetworkFailure, KindConnectorUnavailable, KindSignatureRejected:
		return true
	default:
		return false
	}
}

// KindOf maps an error to the kind surfaced to subscribers.
// Unknown errors are reported as network failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	switch GetErrorCode(err) {
	case ErrSignatureRejected.Code:
		return KindSignatureRejected
	case ErrInvalidSession.Code:
		return KindInvalidSession
	case ErrConnectorUnavailable.Code, ErrSigningFailed.Code:
		return KindConnectorUnavailable
	default:
		return KindNetworkFailure
	}
}

// SessionError is the error description carried by a published session.
type SessionError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message"`
}

// NewSessionError builds the published form of err.
func NewSessionError(err error) *SessionError {
	if err == nil {
		return nil
	}
	return &SessionError{
		Kind:    KindOf(err),
		Code:    GetErrorCode(err),
		Message: err.Error(),
	}
}
