package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SessionToken is an opaque backend-issued credential bound to one wallet.
type SessionToken struct {
	Value     string        `json:"value"`
	IssuedFor WalletAddress `json:"issued_for"`
}

// IsZero reports whether the token is empty.
func (t SessionToken) IsZero() bool {
	return t.Value == ""
}

// ValidFor reports whether the token was issued for addr.
func (t SessionToken) ValidFor(addr WalletAddress) bool {
	return !t.IsZero() && !addr.IsZero() && t.IssuedFor == addr
}

// BindUser returns u as it is persisted next to t. The stored token is
// the bare value, so the user's wallet address is what records whom it
// was issued for: an empty address takes t.IssuedFor, and a different
// one is rejected.
func (t SessionToken) BindUser(u UserRecord) (UserRecord, error) {
	u = u.Normalize()
	switch {
	case u.WalletAddress.IsZero():
		u.WalletAddress = t.IssuedFor
	case u.WalletAddress != t.IssuedFor:
		return u, ErrInvalidArgument.WithDetails("user " + u.WalletAddress.Short() + " does not own a token issued for " + t.IssuedFor.Short())
	}
	return u, nil
}

// Redacted returns a copy whose value is masked.
func (t SessionToken) Redacted() SessionToken {
	if len(t.Value) > 12 {
		t.Value = t.Value[:6] + "..." + t.Value[len(t.Value)-4:]
	} else if t.Value != "" {
		t.Value = "***"
	}
	return t
}

// naiveTimestampLayout is the backend's ISO-8601 form without a zone.
const naiveTimestampLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time that decodes both RFC 3339 and zone-less ISO-8601
// values. Zone-less values are taken as UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(naiveTimestampLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UserRecord is the backend's user profile, cached next to the token.
type UserRecord struct {
	ID            int64         `json:"id"`
	WalletAddress WalletAddress `json:"wallet_address"`
	Email         *string       `json:"email,omitempty"`
	CreatedAt     Timestamp     `json:"created_at"`
	UpdatedAt     Timestamp     `json:"updated_at"`
}

// Normalize lowercases the wallet address.
func (u UserRecord) Normalize() UserRecord {
	u.WalletAddress = NormalizeAddress(string(u.WalletAddress))
	return u
}

// StoredSession is the persisted (token, user) pair.
type StoredSession struct {
	Token SessionToken `json:"token"`
	User  UserRecord   `json:"user"`
}

// SessionState is the state published to session subscribers.
type SessionState int

// Session states.
const (
	StateUnauthenticated SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateError
)

// String implements fmt.Stringer.
func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *SessionState) UnmarshalText(text []byte) error {
	for _, c := range []SessionState{StateUnauthenticated, StateAuthenticating, StateAuthenticated, StateError} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// AttemptPhase tells which kind of attempt an Authenticating state is in.
type AttemptPhase string

// Attempt phases.
const (
	PhaseNone    AttemptPhase = ""
	PhaseStartup AttemptPhase = "startup"
	PhaseLogin   AttemptPhase = "login"
)

// Session is the immutable view published on every transition.
type Session struct {
	State     SessionState   `json:"state"`
	Phase     AttemptPhase   `json:"phase,omitempty"`
	Error     *SessionError  `json:"error,omitempty"`
	Wallet    WalletSnapshot `json:"wallet"`
	Token     *SessionToken  `json:"token,omitempty"`
	User      *UserRecord    `json:"user,omitempty"`
	AttemptID string         `json:"attempt_id,omitempty"`
	Version   uint64         `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsAuthenticated reports whether the session holds an adopted token.
func (s Session) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.Token != nil
}

// Redacted returns a copy with the token value masked.
func (s Session) Redacted() Session {
	if s.Token != nil {
		t := s.Token.Redacted()
		s.Token = &t
	}
	return s
}
