package logger

import (
	"context"
	"testing"
)

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" || AttemptIDFromContext(ctx) != "" {
		t.Fatal("empty context should carry no ids")
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithAttemptID(ctx, "att-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext() = %q", got)
	}
	if got := AttemptIDFromContext(ctx); got != "att-1" {
		t.Errorf("AttemptIDFromContext() = %q", got)
	}
}

func TestContextIDs_IgnoreForeignKeys(t *testing.T) {
	type otherKey string
	ctx := context.WithValue(context.Background(), otherKey("walletauth.request_id"), "foreign")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}
}
