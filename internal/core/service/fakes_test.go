package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/walletauth/internal/core/domain"
)

const (
	addrA = domain.WalletAddress("0xaaaa000000000000000000000000000000000001")
	addrB = domain.WalletAddress("0xbbbb000000000000000000000000000000000002")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ============================================================================
// Store
// ============================================================================

type fakeStore struct {
	mu      sync.Mutex
	session *domain.StoredSession
	loadErr error
	saves   int
	clears  int
}

func (s *fakeStore) Load(context.Context) (*domain.StoredSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	if s.session == nil {
		return nil, false, nil
	}
	c := *s.session
	return &c, true, nil
}

func (s *fakeStore) Save(_ context.Context, token domain.SessionToken, user domain.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.session = &domain.StoredSession{Token: token, User: user}
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.session = nil
	return nil
}

func (s *fakeStore) stored() *domain.StoredSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// ============================================================================
// Backend
// ============================================================================

type fakeBackend struct {
	loginCalls   atomic.Int32
	verifyCalls  atomic.Int32
	profileCalls atomic.Int32

	mu       sync.Mutex
	logins   []domain.LoginRequest
	login    func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	verifyFn func(ctx context.Context, token string) (*domain.UserRecord, error)
	profile  func(ctx context.Context, token string) (*domain.UserRecord, error)
}

func (b *fakeBackend) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	b.loginCalls.Add(1)
	b.mu.Lock()
	b.logins = append(b.logins, req)
	fn := b.login
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &domain.LoginResponse{
		AccessToken: "token-" + req.WalletAddress,
		TokenType:   "bearer",
		User:        domain.UserRecord{ID: 1, WalletAddress: domain.WalletAddress(req.WalletAddress)},
	}, nil
}

func (b *fakeBackend) Verify(ctx context.Context, token string) (*domain.UserRecord, error) {
	b.verifyCalls.Add(1)
	b.mu.Lock()
	fn := b.verifyFn
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, token)
	}
	return nil, nil
}

func (b *fakeBackend) Profile(ctx context.Context, token string) (*domain.UserRecord, error) {
	b.profileCalls.Add(1)
	b.mu.Lock()
	fn := b.profile
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, token)
	}
	return &domain.UserRecord{ID: 1}, nil
}

func (b *fakeBackend) loginRequests() []domain.LoginRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.LoginRequest(nil), b.logins...)
}

// ============================================================================
// Signer
// ============================================================================

type fakeSigner struct {
	calls atomic.Int32

	mu sync.Mutex
	fn func(ctx context.Context, addr domain.WalletAddress, msg string) (string, error)
}

func (s *fakeSigner) SignMessage(ctx context.Context, addr domain.WalletAddress, msg string) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, addr, msg)
	}
	return "0xsig-" + string(addr), nil
}

func (s *fakeSigner) set(fn func(ctx context.Context, addr domain.WalletAddress, msg string) (string, error)) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
}

// gate blocks callers until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a blocked call")
	}
}

// ============================================================================
// Snapshots, opener, event source, metrics
// ============================================================================

type fakeSnapshots struct {
	mu   sync.Mutex
	snap domain.WalletSnapshot
}

func (f *fakeSnapshots) Current() domain.WalletSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSnapshots) set(s domain.WalletSnapshot) {
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
}

type fakeOpener struct {
	calls atomic.Int32
	fn    func(ctx context.Context) error
}

func (o *fakeOpener) Open(ctx context.Context) error {
	o.calls.Add(1)
	if o.fn != nil {
		return o.fn(ctx)
	}
	return nil
}

type fakeSource struct {
	ch  chan domain.WalletSnapshot
	err error
}

func (s *fakeSource) Watch(context.Context) (<-chan domain.WalletSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ch, nil
}

type fakeMetrics struct {
	mu          sync.Mutex
	transitions []string
	logins      []string
	connector   []int
	wallet      []string
}

func (m *fakeMetrics) SessionTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func (m *fakeMetrics) LoginAttempt(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, outcome)
}

func (m *fakeMetrics) SetConnectorState(state int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connector = append(m.connector, state)
}

func (m *fakeMetrics) WalletEvent(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallet = append(m.wallet, kind)
}

func (m *fakeMetrics) loginOutcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.logins...)
}

var errBoom = errors.New("boom")
