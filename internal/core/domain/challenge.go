package domain

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultProductName is the product name embedded in challenge messages.
const DefaultProductName = "RWA Insurance Protocol"

// ChallengeTimestampLayout matches JavaScript's Date.toISOString output.
const ChallengeTimestampLayout = "2006-01-02T15:04:05.000Z"

const challengeTemplate = "Welcome to %s!\n\nSign this message to authenticate your wallet:\n%s\n\nTimestamp: %s"

// FormatChallenge renders the challenge message for addr at ts.
//
// The backend verifies signatures over this exact text.
func FormatChallenge(product string, addr WalletAddress, ts time.Time) string {
	return fmt.Sprintf(challengeTemplate, product, addr, ts.UTC().Format(ChallengeTimestampLayout))
}

// Challenge is a parsed challenge message.
type Challenge struct {
	Product   string
	Address   WalletAddress
	Timestamp time.Time
}

// ParseChallenge parses a message produced by FormatChallenge.
func ParseChallenge(msg string) (Challenge, error) {
	lines := strings.Split(msg, "\n")
	if len(lines) != 6 {
		return Challenge{}, ErrInvalidArgument.WithDetails("challenge must have 6 lines")
	}
	head := lines[0]
	if !strings.HasPrefix(head, "Welcome to ") || !strings.HasSuffix(head, "!") {
		return Challenge{}, ErrInvalidArgument.WithDetails("bad challenge greeting")
	}
	if lines[1] != "" || lines[2] != "Sign this message to authenticate your wallet:" || lines[4] != "" {
		return Challenge{}, ErrInvalidArgument.WithDetails("bad challenge body")
	}
	raw, ok := strings.CutPrefix(lines[5], "Timestamp: ")
	if !ok {
		return Challenge{}, ErrInvalidArgument.WithDetails("missing challenge timestamp")
	}
	ts, err := time.Parse(ChallengeTimestampLayout, raw)
	if err != nil {
		return Challenge{}, ErrInvalidArgument.WithDetails("bad challenge timestamp").WithCause(err)
	}
	return Challenge{
		Product:   strings.TrimSuffix(strings.TrimPrefix(head, "Welcome to "), "!"),
		Address:   WalletAddress(lines[3]),
		Timestamp: ts,
	}, nil
}

// ChallengeBuilder produces challenge messages with fresh timestamps.
//
// Successive messages never share a timestamp: when the clock has not
// advanced past the previous one, the timestamp is bumped by one millisecond.
type ChallengeBuilder struct {
	product string
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewChallengeBuilder creates a builder. An empty product uses
// DefaultProductName; a nil clock uses time.Now.
func NewChallengeBuilder(product string, now func() time.Time) *ChallengeBuilder {
	if product == "" {
		product = DefaultProductName
	}
	if now == nil {
		now = time.Now
	}
	return &ChallengeBuilder{product: product, now: now}
}

// Product returns the product name.
func (b *ChallengeBuilder) Product() string {
	return b.product
}

// Build returns a new challenge message for addr and the timestamp it embeds.
func (b *ChallengeBuilder) Build(addr WalletAddress) (string, time.Time) {
	b.mu.Lock()
	ts := b.now().UTC().Truncate(time.Millisecond)
	if !ts.After(b.last) {
		ts = b.last.Add(time.Millisecond)
	}
	b.last = ts
	b.mu.Unlock()

	return FormatChallenge(b.product, addr, ts), ts
}
