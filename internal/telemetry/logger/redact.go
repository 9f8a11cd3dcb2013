package logger

import (
	"log/slog"
	"strings"
)

// sensitiveKeys are substrings of attribute names whose values are never
// logged. Wallet addresses, fingerprints and attempt IDs are public.
var sensitiveKeys = []string{
	"token",
	"signature",
	"secret",
	"encryption_key",
	"authorization",
	"bearer",
	"password",
	"private_key",
	"mnemonic",
}

const redacted = "***REDACTED***"

// redactSensitive masks credentials by value shape first, so the masked
// form keeps a hint, and by key name second.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if masked, ok := maskKnownFormat(v); ok {
			return slog.String(a.Key, masked)
		}
		if v != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redacted)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// maskKnownFormat recognizes bearer headers, JWTs, personal_sign
// signatures (65 bytes) and raw secp256k1 keys (32 bytes).
func maskKnownFormat(v string) (string, bool) {
	switch {
	case len(v) > 7 && strings.EqualFold(v[:7], "bearer "):
		return v[:7] + maskValue(v[7:], ""), true
	case strings.HasPrefix(v, "eyJ") && strings.Count(v, ".") == 2:
		return maskValue(v, ""), true
	case isHex(v, 65), isHex(v, 32):
		return maskValue(v, "0x"), true
	}
	return "", false
}

// isHex reports whether v is 0x followed by exactly n bytes of hex.
// 20 byte wallet addresses never match the lengths masked here.
func isHex(v string, n int) bool {
	if len(v) != 2+2*n || !strings.HasPrefix(v, "0x") {
		return false
	}
	for _, c := range v[2:] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// maskValue keeps prefix plus three characters at each end.
func maskValue(v, prefix string) string {
	if len(v) <= len(prefix)+6 {
		return prefix + "***"
	}
	body := v[len(prefix):]
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// RedactString masks v when it looks like a credential.
func RedactString(v string) string {
	if masked, ok := maskKnownFormat(v); ok {
		return masked
	}
	return v
}

// IsSensitiveKey reports whether an attribute name suggests a credential.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
