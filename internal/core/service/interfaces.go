package service

import (
	"context"
	"errors"
	"sync"

	"github.com/yndnr/walletauth/internal/core/domain"
)

// ErrStopped is returned by manager commands after Run has returned.
var ErrStopped = errors.New("service: session manager stopped")

// ============================================================================
// Dependencies
// ============================================================================

// TokenStore persists the (token, user) pair.
type TokenStore interface {
	// Load returns the stored session. ok is false when nothing is stored.
	Load(ctx context.Context) (*domain.StoredSession, bool, error)

	// Save writes token and user together.
	Save(ctx context.Context, token domain.SessionToken, user domain.UserRecord) error

	// Clear removes both entries together.
	Clear(ctx context.Context) error
}

// AuthBackend is the remote authentication API.
type AuthBackend interface {
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// Verify checks a token. The returned user may be nil when the
	// backend does not include one.
	Verify(ctx context.Context, token string) (*domain.UserRecord, error)

	Profile(ctx context.Context, token string) (*domain.UserRecord, error)
}

// Signer asks the wallet to personal_sign a message.
//
// A user refusal is reported as domain.ErrSignatureRejected.
type Signer interface {
	SignMessage(ctx context.Context, address domain.WalletAddress, message string) (string, error)
}

// Opener performs the one-time connector initialization.
type Opener interface {
	Open(ctx context.Context) error
}

// EventSource streams raw wallet snapshots once the connector is ready.
// The channel is closed when the connector goes away.
type EventSource interface {
	Watch(ctx context.Context) (<-chan domain.WalletSnapshot, error)
}

// SnapshotSource exposes the latest delivered wallet snapshot.
type SnapshotSource interface {
	Current() domain.WalletSnapshot
}

// SignatureChecker verifies a signature locally before it is sent.
type SignatureChecker interface {
	Check(address, message, signature string) error
}

// Metrics receives service level measurements.
type Metrics interface {
	SessionTransition(from, to string)
	LoginAttempt(outcome string)
	SetConnectorState(state int)
	WalletEvent(kind string)
}

type nopMetrics struct{}

func (nopMetrics) SessionTransition(string, string) {}
func (nopMetrics) LoginAttempt(string)              {}
func (nopMetrics) SetConnectorState(int)            {}
func (nopMetrics) WalletEvent(string)               {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// ============================================================================
// Mailbox
// ============================================================================

// mailbox is an unbounded FIFO with a wakeup channel.
//
// push never blocks, so completions posted from worker goroutines
// cannot deadlock against a loop that is itself publishing.
type mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{signal: make(chan struct{}, 1)}
}

func (m *mailbox[T]) push(v T) {
	m.mu.Lock()
	m.items = append(m.items, v)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// drain removes and returns everything queued.
func (m *mailbox[T]) drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

func (m *mailbox[T]) ready() <-chan struct{} {
	return m.signal
}
