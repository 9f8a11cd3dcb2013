package logger

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	attemptIDKey
)

// WithRequestID returns ctx carrying the local API request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithAttemptID returns ctx carrying the ID of a login or verify attempt,
// so that backend and signer logs can be tied back to it.
func WithAttemptID(ctx context.Context, attemptID string) context.Context {
	return context.WithValue(ctx, attemptIDKey, attemptID)
}

// AttemptIDFromContext returns the attempt ID in ctx, or "".
func AttemptIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(attemptIDKey).(string)
	return id
}

// contextHandler adds request_id and attempt_id from the record's context.
// Records logged without a context (Info rather than InfoContext) pass
// through unchanged.
type contextHandler struct {
	inner slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id := RequestIDFromContext(ctx); id != "" {
			r.AddAttrs(slog.String("request_id", id))
		}
		if id := AttemptIDFromContext(ctx); id != "" {
			r.AddAttrs(slog.String("attempt_id", id))
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}
