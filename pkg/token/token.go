package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// fingerprintLength is the number of hex digits kept.
const fingerprintLength = 12

// Fingerprint returns a short stable identifier for a credential. It is
// safe to log: it cannot be turned back into the value.
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return "sha256:" + hex.EncodeToString(sum[:])[:fingerprintLength]
}

// Equal compares two credentials in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
