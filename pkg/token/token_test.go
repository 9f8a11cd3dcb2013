package token

import (
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("eyJhbGciOiJIUzI1NiJ9.payload.sig")
	if !strings.HasPrefix(fp, "sha256:") || len(fp) != len("sha256:")+fingerprintLength {
		t.Fatalf("Fingerprint() = %q", fp)
	}
	if Fingerprint("eyJhbGciOiJIUzI1NiJ9.payload.sig") != fp {
		t.Error("Fingerprint() is not stable")
	}
	if Fingerprint("other") == fp {
		t.Error("different values share a fingerprint")
	}
	if strings.Contains(fp, "payload") {
		t.Error("fingerprint leaks the value")
	}
	if Fingerprint("") != "" {
		t.Error("empty value should have no fingerprint")
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"abc", "abcd", false},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
