package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("WA-TEST-1000", "test message"),
			expected: "[WA-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("WA-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[WA-TEST-1001] test message: extra info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("WA-TEST-1000", "message 1")
	err2 := NewDomainError("WA-TEST-1000", "message 2")
	err3 := NewDomainError("WA-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}

	wrapped := fmt.Errorf("login: %w", ErrNetworkFailure.WithDetails("timeout"))
	if !errors.Is(wrapped, ErrNetworkFailure) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := NewDomainError("WA-TEST-1000", "wrapper").WithCause(cause)

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if errors.Unwrap(NewDomainError("WA-TEST-1000", "no cause")) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_WithDetailsKeepsOriginal(t *testing.T) {
	original := NewDomainError("WA-TEST-1000", "original message")
	withDetails := original.WithDetails("additional details")

	if original.Details != "" {
		t.Error("WithDetails should not modify original error")
	}
	if withDetails.Code != original.Code {
		t.Errorf("Code = %s, want %s", withDetails.Code, original.Code)
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(ErrInvalidSession); got != "WA-SESS-4010" {
		t.Errorf("GetErrorCode() = %q", got)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode(plain) = %q, want empty", got)
	}
	if !IsDomainError(fmt.Errorf("x: %w", ErrStorageError), "") {
		t.Error("IsDomainError should find wrapped domain error")
	}
	if IsDomainError(ErrStorageError, ErrInternal.Code) {
		t.Error("IsDomainError should compare codes")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"signature rejected", ErrSignatureRejected, KindSignatureRejected},
		{"wrapped signature rejected", fmt.Errorf("sign: %w", ErrSignatureRejected.WithDetails("User rejected the request")), KindSignatureRejected},
		{"invalid session", ErrInvalidSession, KindInvalidSession},
		{"connector unavailable", ErrConnectorUnavailable, KindConnectorUnavailable},
		{"signing failed", ErrSigningFailed, KindConnectorUnavailable},
		{"network failure", ErrNetworkFailure, KindNetworkFailure},
		{"login rejected", ErrLoginRejected, KindNetworkFailure},
		{"unknown", errors.New("boom"), KindNetworkFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSessionError(t *testing.T) {
	if NewSessionError(nil) != nil {
		t.Fatal("NewSessionError(nil) should be nil")
	}

	se := NewSessionError(ErrSignatureRejected)
	if se.Kind != KindSignatureRejected || se.Code != "WA-AUTH-4001" {
		t.Errorf("unexpected session error: %+v", se)
	}
	if !se.Kind.Retryable() {
		t.Error("signature rejection should offer a manual retry")
	}
	if KindInvalidSession.Retryable() {
		t.Error("invalid session is not retryable without a fresh login")
	}
}
