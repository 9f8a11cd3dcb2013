package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, cfg Config) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = SetLevel("info") })
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"text", Config{Level: "debug", Format: "text"}, false},
		{"console", Config{Level: "warn", Format: "console"}, false},
		{"unknown format", Config{Format: "xml"}, true},
		{"unknown level", Config{Level: "verbose"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{Level: tt.cfg.Level, Format: tt.cfg.Format, Output: &bytes.Buffer{}})
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	_ = SetLevel("info")
}

func TestNew_ServiceAttrs(t *testing.T) {
	l, buf := newBufferLogger(t, Config{
		Level: "info",
		Attrs: []slog.Attr{slog.String("service", "walletauth-agent")},
	})
	l.Info("starting")

	if got := decodeLine(t, buf)["service"]; got != "walletauth-agent" {
		t.Errorf("service = %v", got)
	}
}

func TestContextHandler_StampsRequestAndAttempt(t *testing.T) {
	l, buf := newBufferLogger(t, Config{Level: "debug"})

	ctx := WithRequestID(context.Background(), "01HREQUEST")
	ctx = WithAttemptID(ctx, "01HATTEMPT")
	l.With("component", "session").InfoContext(ctx, "login started", "wallet", "0xabcd...ef01")

	entry := decodeLine(t, buf)
	if entry["request_id"] != "01HREQUEST" || entry["attempt_id"] != "01HATTEMPT" {
		t.Errorf("entry = %v", entry)
	}
	if entry["component"] != "session" {
		t.Errorf("component = %v", entry["component"])
	}

	buf.Reset()
	l.Info("no context")
	entry = decodeLine(t, buf)
	if _, ok := entry["request_id"]; ok {
		t.Errorf("record without context got a request id: %v", entry)
	}
}

func TestLogger_RedactsSessionCredentials(t *testing.T) {
	l, buf := newBufferLogger(t, Config{Level: "info"})

	signature := "0x" + strings.Repeat("ab", 65)
	l.Info("signed",
		"wallet", "0x00000000000000000000000000000000000000aa",
		"signature", signature,
		"access_token", "opaque-session-value",
		"fingerprint", "sha256:0123456789ab",
	)

	entry := decodeLine(t, buf)
	if entry["wallet"] != "0x00000000000000000000000000000000000000aa" {
		t.Errorf("wallet address should stay readable: %v", entry["wallet"])
	}
	if entry["signature"] != "0xaba...bab" {
		t.Errorf("signature = %v", entry["signature"])
	}
	if entry["access_token"] != redacted {
		t.Errorf("access_token = %v", entry["access_token"])
	}
	if entry["fingerprint"] != "sha256:0123456789ab" {
		t.Errorf("fingerprint = %v", entry["fingerprint"])
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newBufferLogger(t, Config{Level: "info"})

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug written at info: %s", buf.String())
	}

	if err := SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	if GetLevel() != "debug" {
		t.Errorf("GetLevel() = %q", GetLevel())
	}
	l.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("existing logger did not pick up the new level")
	}

	if err := SetLevel("loud"); err == nil {
		t.Error("SetLevel() should reject an unknown level")
	}
	if GetLevel() != "debug" {
		t.Errorf("a rejected level changed the level to %q", GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("nop logger should be disabled at every level")
	}
}
