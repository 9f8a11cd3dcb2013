package domain

import (
	"fmt"
	"strings"
)

// WalletAddress is a lowercase-normalized wallet identifier.
type WalletAddress string

// NormalizeAddress trims and lowercases a raw address.
func NormalizeAddress(raw string) WalletAddress {
	return WalletAddress(strings.ToLower(strings.TrimSpace(raw)))
}

// String returns the address as a plain string.
func (a WalletAddress) String() string {
	return string(a)
}

// IsZero reports whether the address is empty.
func (a WalletAddress) IsZero() bool {
	return a == ""
}

// Short returns an abbreviated form for logs (0x1234...abcd).
func (a WalletAddress) Short() string {
	if len(a) <= 10 {
		return string(a)
	}
	return string(a[:6]) + "..." + string(a[len(a)-4:])
}

// WalletSnapshot is the latest connection state reported by the connector.
//
// Snapshots are replaced, never mutated; compare with Equal.
type WalletSnapshot struct {
	Address   WalletAddress `json:"address,omitempty"`
	Connected bool          `json:"connected"`
	ChainID   *int64        `json:"chain_id,omitempty"`
}

// Disconnected returns the canonical disconnected snapshot.
func Disconnected() WalletSnapshot {
	return WalletSnapshot{}
}

// Connected returns a connected snapshot for addr on chainID (0 = unknown).
func Connected(addr string, chainID int64) WalletSnapshot {
	s := WalletSnapshot{Address: NormalizeAddress(addr), Connected: true}
	if chainID != 0 {
		s.ChainID = &chainID
	}
	return s
}

// Normalize lowercases the address. A snapshot without an address is
// not connected, and a disconnected snapshot carries no address or chain.
func (s WalletSnapshot) Normalize() WalletSnapshot {
	s.Address = NormalizeAddress(string(s.Address))
	if s.Address.IsZero() {
		s.Connected = false
	}
	if !s.Connected {
		return WalletSnapshot{}
	}
	if s.ChainID != nil {
		id := *s.ChainID
		s.ChainID = &id
	}
	return s
}

// Equal reports value equality.
func (s WalletSnapshot) Equal(o WalletSnapshot) bool {
	if s.Address != o.Address || s.Connected != o.Connected {
		return false
	}
	switch {
	case s.ChainID == nil && o.ChainID == nil:
		return true
	case s.ChainID == nil || o.ChainID == nil:
		return false
	default:
		return *s.ChainID == *o.ChainID
	}
}

// SameAccount reports whether both snapshots are connected to the same address.
func (s WalletSnapshot) SameAccount(o WalletSnapshot) bool {
	return s.Connected && o.Connected && s.Address == o.Address
}

// String implements fmt.Stringer.
func (s WalletSnapshot) String() string {
	if !s.Connected {
		return "disconnected"
	}
	if s.ChainID != nil {
		return fmt.Sprintf("%s@%d", s.Address.Short(), *s.ChainID)
	}
	return s.Address.Short()
}

// ConnectorState tracks the one-time wallet connector initialization.
type ConnectorState int

// Connector states.
const (
	ConnectorUninitialized ConnectorState = iota
	ConnectorInitializing
	ConnectorReady
	ConnectorFailed
)

// String implements fmt.Stringer.
func (s ConnectorState) String() string {
	switch s {
	case ConnectorUninitialized:
		return "uninitialized"
	case ConnectorInitializing:
		return "initializing"
	case ConnectorReady:
		return "ready"
	case ConnectorFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name.
func (s ConnectorState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *ConnectorState) UnmarshalText(text []byte) error {
	for _, c := range []ConnectorState{ConnectorUninitialized, ConnectorInitializing, ConnectorReady, ConnectorFailed} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown connector state %q", text)
}

// Resolved reports whether initialization has finished (either way).
func (s ConnectorState) Resolved() bool {
	return s == ConnectorReady || s == ConnectorFailed
}
