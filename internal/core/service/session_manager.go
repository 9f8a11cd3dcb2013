package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/walletauth/internal/core/domain"
	"github.com/yndnr/walletauth/internal/telemetry/logger"
	"github.com/yndnr/walletauth/pkg/token"
)

// DefaultRequestTimeout bounds each backend call.
const DefaultRequestTimeout = 15 * time.Second

// errStaleAttempt marks a login abandoned because the wallet moved on.
var errStaleAttempt = errors.New("wallet changed during login")

// ManagerConfig holds the dependencies of a SessionManager.
type ManagerConfig struct {
	Store   TokenStore
	Backend AuthBackend
	Signer  Signer

	// Snapshots is re-read when an attempt completes. Optional.
	Snapshots SnapshotSource

	// Checker verifies signatures before login. Optional.
	Checker SignatureChecker

	Challenges     *domain.ChallengeBuilder
	Logger         *slog.Logger
	Metrics        Metrics
	Now            func() time.Time
	RequestTimeout time.Duration
	NewID          func() string
}

// SessionManager owns the authentication session of one wallet.
//
// All state changes happen on the goroutine running Run. Wallet events,
// commands and backend completions are queued to it, and every resulting
// transition is published to subscribers in order.
type SessionManager struct {
	store      TokenStore
	backend    AuthBackend
	signer     Signer
	snapshots  SnapshotSource
	checker    SignatureChecker
	challenges *domain.ChallengeBuilder
	logger     *slog.Logger
	metrics    Metrics
	now        func() time.Time
	timeout    time.Duration
	newID      func() string

	inbox   *mailbox[managerEvent]
	outbox  *mailbox[domain.Session]
	running atomic.Bool
	done    chan struct{}

	viewMu sync.RWMutex
	view   domain.Session

	subMu     sync.Mutex
	subs      []sessionSubscriber
	nextSubID uint64

	// Loop state. Only the Run goroutine touches these.
	state        domain.SessionState
	phase        domain.AttemptPhase
	lastErr      *domain.SessionError
	wallet       domain.WalletSnapshot
	token        *domain.SessionToken
	user         *domain.UserRecord
	attempt      *attempt
	loggedOutFor domain.WalletAddress
}

type attempt struct {
	id      string
	phase   domain.AttemptPhase
	address domain.WalletAddress
}

type sessionSubscriber struct {
	id uint64
	fn func(domain.Session)
}

// NewSessionManager validates cfg and creates a manager.
func NewSessionManager(cfg ManagerConfig) (*SessionManager, error) {
	if cfg.Store == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("session manager: store is required")
	}
	if cfg.Backend == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("session manager: backend is required")
	}
	if cfg.Signer == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("session manager: signer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Challenges == nil {
		cfg.Challenges = domain.NewChallengeBuilder("", cfg.Now)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return ulid.Make().String() }
	}

	m := &SessionManager{
		store:      cfg.Store,
		backend:    cfg.Backend,
		signer:     cfg.Signer,
		snapshots:  cfg.Snapshots,
		checker:    cfg.Checker,
		challenges: cfg.Challenges,
		logger:     cfg.Logger.With("component", "session"),
		metrics:    metricsOrNop(cfg.Metrics),
		now:        cfg.Now,
		timeout:    cfg.RequestTimeout,
		newID:      cfg.NewID,
		inbox:      newMailbox[managerEvent](),
		outbox:     newMailbox[domain.Session](),
		done:       make(chan struct{}),
		state:      domain.StateUnauthenticated,
		wallet:     domain.Disconnected(),
	}
	m.view = domain.Session{
		State:     domain.StateUnauthenticated,
		Wallet:    domain.Disconnected(),
		UpdatedAt: m.now(),
	}
	return m, nil
}

// ============================================================================
// Public API
// ============================================================================

// Current returns the latest published session.
func (m *SessionManager) Current() domain.Session {
	m.viewMu.RLock()
	defer m.viewMu.RUnlock()
	return m.view
}

// Subscribe registers fn for subsequent transitions.
//
// fn is called from a single dispatcher goroutine, in publication order,
// and may call back into the manager. The returned function unsubscribes.
func (m *SessionManager) Subscribe(fn func(domain.Session)) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs = append(m.subs, sessionSubscriber{id: id, fn: fn})
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			for i, sub := range m.subs {
				if sub.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// HandleWallet queues a wallet snapshot. It never blocks, so it can be
// passed directly to Observer.Subscribe.
func (m *SessionManager) HandleWallet(snap domain.WalletSnapshot) {
	m.inbox.push(walletEvent{snap: snap})
}

// ConnectorFailed reports that the wallet connector is unusable.
func (m *SessionManager) ConnectorFailed(err error) {
	m.inbox.push(connectorFailedEvent{err: err})
}

// Logout clears the session and the store. It is idempotent and does not
// start a new login while the same wallet stays connected.
func (m *SessionManager) Logout(ctx context.Context) error {
	reply := make(chan error, 1)
	return m.command(ctx, logoutCmd{reply: reply}, reply)
}

// Retry starts a login for the connected wallet unless an attempt is
// already running or the wallet already holds a valid token.
func (m *SessionManager) Retry(ctx context.Context) error {
	reply := make(chan error, 1)
	return m.command(ctx, retryCmd{reply: reply}, reply)
}

// ClearError moves an Error session back to Unauthenticated.
func (m *SessionManager) ClearError(ctx context.Context) error {
	reply := make(chan error, 1)
	return m.command(ctx, clearErrorCmd{reply: reply}, reply)
}

// RefreshProfile fetches the user profile with the current token and
// updates the cached user.
func (m *SessionManager) RefreshProfile(ctx context.Context) (*domain.UserRecord, error) {
	reply := make(chan profileReply, 1)
	m.inbox.push(profileCmd{ctx: ctx, reply: reply})

	select {
	case r := <-reply:
		return r.user, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrStopped
	}
}

func (m *SessionManager) command(ctx context.Context, ev managerEvent, reply <-chan error) error {
	m.inbox.push(ev)

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrStopped
	}
}

// Run loads the stored session and processes events until ctx ends.
// It may be called once.
func (m *SessionManager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return domain.ErrInternal.WithDetails("session manager already started")
	}

	stopDispatch := make(chan struct{})
	dispatched := make(chan struct{})
	go m.dispatch(stopDispatch, dispatched)
	defer func() {
		close(m.done)
		close(stopDispatch)
		<-dispatched
	}()

	m.restore(ctx)
	if m.snapshots != nil {
		m.handleWallet(ctx, m.snapshots.Current())
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session manager stopped")
			return ctx.Err()
		case <-m.inbox.ready():
			for _, ev := range m.inbox.drain() {
				m.handle(ctx, ev)
			}
		}
	}
}

// ============================================================================
// Events
// ============================================================================

type managerEvent interface {
	// abort answers a waiting caller when handling the event failed.
	abort(err error)
}

type walletEvent struct{ snap domain.WalletSnapshot }

type connectorFailedEvent struct{ err error }

type verifyResult struct {
	id     string
	stored domain.StoredSession
	user   *domain.UserRecord
	err    error
}

type loginResult struct {
	id      string
	address domain.WalletAddress
	resp    *domain.LoginResponse
	err     error
}

type logoutCmd struct{ reply chan<- error }

type retryCmd struct{ reply chan<- error }

type clearErrorCmd struct{ reply chan<- error }

type profileReply struct {
	user *domain.UserRecord
	err  error
}

type profileCmd struct {
	ctx   context.Context
	reply chan<- profileReply
}

type profileResult struct {
	token string
	user  *domain.UserRecord
	err   error
	reply chan<- profileReply
}

func (walletEvent) abort(error)          {}
func (connectorFailedEvent) abort(error) {}
func (verifyResult) abort(error)         {}
func (loginResult) abort(error)          {}
func (c logoutCmd) abort(err error)      { c.reply <- err }
func (c retryCmd) abort(err error)       { c.reply <- err }
func (c clearErrorCmd) abort(err error)  { c.reply <- err }
func (c profileCmd) abort(err error)     { c.reply <- profileReply{err: err} }
func (r profileResult) abort(err error)  { r.reply <- profileReply{err: err} }

func (m *SessionManager) handle(ctx context.Context, ev managerEvent) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("panic while handling session event",
				"event", fmt.Sprintf("%T", ev),
				"panic", p)
			ev.abort(domain.ErrInternal.WithDetails(fmt.Sprint(p)))
		}
	}()

	switch e := ev.(type) {
	case walletEvent:
		m.handleWallet(ctx, e.snap)
	case connectorFailedEvent:
		m.handleConnectorFailed(e.err)
	case verifyResult:
		m.handleVerifyResult(ctx, e)
	case loginResult:
		m.handleLoginResult(ctx, e)
	case logoutCmd:
		e.reply <- m.handleLogout(ctx)
	case retryCmd:
		e.reply <- m.handleRetry(ctx)
	case clearErrorCmd:
		m.handleClearError()
		e.reply <- nil
	case profileCmd:
		m.handleProfile(e)
	case profileResult:
		m.handleProfileResult(ctx, e)
	}
}

// ============================================================================
// Startup
// ============================================================================

func (m *SessionManager) restore(ctx context.Context) {
	stored, ok, err := m.store.Load(ctx)
	switch {
	case err != nil && domain.IsDomainError(err, domain.ErrCorruptSession.Code):
		m.logger.Warn("discarding corrupt stored session", "error", err)
		m.clearStore(ctx)
		return
	case err != nil:
		m.logger.Error("failed to load stored session", "error", err)
		return
	case !ok:
		m.logger.Debug("no stored session")
		return
	}

	if known := m.knownWallet(); known.Connected && known.Address != stored.Token.IssuedFor {
		m.logger.Info("stored session belongs to another wallet",
			"stored", stored.Token.IssuedFor.Short(),
			"connected", known.Address.Short())
		m.clearStore(ctx)
		return
	}

	id := m.newID()
	m.attempt = &attempt{id: id, phase: domain.PhaseStartup, address: stored.Token.IssuedFor}
	m.state = domain.StateAuthenticating
	m.phase = domain.PhaseStartup
	m.publish()

	m.logger.Info("verifying stored session", "attempt_id", id, "wallet", stored.Token.IssuedFor.Short())
	go m.verify(ctx, id, *stored)
}

func (m *SessionManager) verify(ctx context.Context, id string, stored domain.StoredSession) {
	res := verifyResult{id: id, stored: stored}
	defer func() {
		if p := recover(); p != nil {
			res.err = domain.ErrInternal.WithDetails(fmt.Sprint(p))
		}
		m.inbox.push(res)
	}()

	reqCtx, cancel := context.WithTimeout(logger.WithAttemptID(ctx, id), m.timeout)
	defer cancel()
	res.user, res.err = m.backend.Verify(reqCtx, stored.Token.Value)
}

func (m *SessionManager) handleVerifyResult(ctx context.Context, res verifyResult) {
	if !m.isCurrent(res.id) {
		m.logger.Debug("discarding superseded verify", "attempt_id", res.id)
		return
	}
	m.attempt = nil
	stored := res.stored.Token

	if res.err != nil {
		lastErr := domain.NewSessionError(res.err)
		if lastErr.Kind != domain.KindInvalidSession {
			lastErr.Kind = domain.KindNetworkFailure
		}
		m.logger.Warn("stored session rejected", "kind", lastErr.Kind, "error", res.err)
		m.clearStore(ctx)
		m.resetSession()
		m.lastErr = lastErr
		m.publish()
		m.maybeLogin(ctx)
		return
	}

	if m.isStale(stored.IssuedFor) {
		m.logger.Info("stored session belongs to another wallet", "stored", stored.IssuedFor.Short())
		m.clearStore(ctx)
		m.resetSession()
		m.publish()
		m.maybeLogin(ctx)
		return
	}

	user := res.stored.User
	if res.user != nil {
		user = res.user.Normalize()
		if err := m.store.Save(ctx, stored, user); err != nil {
			m.logger.Error("failed to persist verified user", "error", err)
		}
	}
	m.adopt(stored, user)
	m.logger.Info("stored session restored",
		"wallet", stored.IssuedFor.Short(),
		"user_id", user.ID,
		"fingerprint", token.Fingerprint(stored.Value))
}

// ============================================================================
// Wallet events
// ============================================================================

func (m *SessionManager) handleWallet(ctx context.Context, raw domain.WalletSnapshot) {
	snap := raw.Normalize()
	prev := m.wallet
	if snap.Equal(prev) {
		return
	}
	m.wallet = snap

	if prev.Connected == snap.Connected && prev.Address == snap.Address {
		// Chain-only change.
		m.publish()
		return
	}
	m.loggedOutFor = ""

	switch {
	case !snap.Connected:
		m.logger.Info("wallet disconnected")
		m.clearAll(ctx)
		return
	case prev.Connected:
		m.logger.Info("wallet account changed", "from", prev.Address.Short(), "to", snap.Address.Short())
		m.clearAll(ctx)
	case m.token != nil && m.token.IssuedFor != snap.Address,
		m.attempt != nil && m.attempt.address != snap.Address:
		m.logger.Info("session belongs to another wallet", "connected", snap.Address.Short())
		m.clearAll(ctx)
	default:
		m.logger.Info("wallet connected", "wallet", snap.Address.Short())
		m.publish()
	}
	m.maybeLogin(ctx)
}

func (m *SessionManager) handleConnectorFailed(err error) {
	if err == nil {
		err = domain.ErrConnectorUnavailable
	} else if !domain.IsDomainError(err, domain.ErrConnectorUnavailable.Code) {
		err = domain.ErrConnectorUnavailable.WithCause(err)
	}
	se := domain.NewSessionError(err)

	restoring := m.attempt != nil && m.attempt.phase == domain.PhaseStartup
	if m.state == domain.StateAuthenticated || restoring {
		m.logger.Warn("wallet connector unavailable", "error", err)
		if m.state == domain.StateAuthenticated {
			m.lastErr = se
			m.publish()
		}
		return
	}

	m.logger.Error("wallet connector unavailable", "error", err)
	m.attempt = nil
	m.state = domain.StateError
	m.phase = domain.PhaseNone
	m.lastErr = se
	m.publish()
}

// ============================================================================
// Login
// ============================================================================

func (m *SessionManager) maybeLogin(ctx context.Context) {
	w := m.wallet
	switch {
	case !w.Connected, m.attempt != nil:
		return
	case m.token != nil && m.token.ValidFor(w.Address):
		return
	case m.loggedOutFor == w.Address:
		m.logger.Debug("login suppressed after logout", "wallet", w.Address.Short())
		return
	}
	m.startLogin(ctx)
}

func (m *SessionManager) startLogin(ctx context.Context) {
	addr := m.wallet.Address
	id := m.newID()
	message, _ := m.challenges.Build(addr)

	m.attempt = &attempt{id: id, phase: domain.PhaseLogin, address: addr}
	m.state = domain.StateAuthenticating
	m.phase = domain.PhaseLogin
	m.lastErr = nil
	m.publish()

	m.metrics.LoginAttempt("started")
	m.logger.Info("login started", "attempt_id", id, "wallet", addr.Short())
	go m.login(ctx, id, addr, message)
}

func (m *SessionManager) login(ctx context.Context, id string, addr domain.WalletAddress, message string) {
	res := loginResult{id: id, address: addr}
	defer func() {
		if p := recover(); p != nil {
			res.err = domain.ErrInternal.WithDetails(fmt.Sprint(p))
		}
		m.inbox.push(res)
	}()
	res.resp, res.err = m.signAndLogin(logger.WithAttemptID(ctx, id), addr, message)
}

// signAndLogin asks the wallet for a signature and exchanges it for a token.
// Signing has no timeout of its own; the user may take a while to answer.
func (m *SessionManager) signAndLogin(ctx context.Context, addr domain.WalletAddress, message string) (*domain.LoginResponse, error) {
	signature, err := m.signer.SignMessage(ctx, addr, message)
	if err != nil {
		var de *domain.DomainError
		if !errors.As(err, &de) {
			err = domain.ErrSigningFailed.WithCause(err)
		}
		return nil, err
	}

	if m.checker != nil {
		if err := m.checker.Check(string(addr), message, signature); err != nil {
			return nil, domain.ErrSigningFailed.WithDetails("signature does not match wallet").WithCause(err)
		}
	}

	if m.snapshots != nil {
		if cur := m.snapshots.Current(); !cur.Connected || cur.Address != addr {
			return nil, errStaleAttempt
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.backend.Login(reqCtx, domain.LoginRequest{
		WalletAddress: string(addr),
		Signature:     signature,
		Message:       message,
	})
}

func (m *SessionManager) handleLoginResult(ctx context.Context, res loginResult) {
	if !m.isCurrent(res.id) {
		m.metrics.LoginAttempt("stale")
		m.logger.Debug("discarding superseded login", "attempt_id", res.id)
		return
	}
	m.attempt = nil

	if errors.Is(res.err, errStaleAttempt) || m.isStale(res.address) {
		m.metrics.LoginAttempt("stale")
		m.logger.Info("discarding login for a wallet that is no longer connected",
			"attempt_id", res.id,
			"wallet", res.address.Short())
		m.state = domain.StateUnauthenticated
		m.phase = domain.PhaseNone
		m.publish()
		return
	}

	if res.err != nil {
		kind := domain.KindOf(res.err)
		m.metrics.LoginAttempt(string(kind))
		m.logger.Warn("login failed", "attempt_id", res.id, "kind", kind, "error", res.err)
		m.state = domain.StateError
		m.phase = domain.PhaseNone
		m.lastErr = domain.NewSessionError(res.err)
		m.publish()
		return
	}

	issued := domain.SessionToken{Value: res.resp.AccessToken, IssuedFor: res.address}
	user := res.resp.User.Normalize()
	if err := m.store.Save(ctx, issued, user); err != nil {
		m.logger.Error("failed to persist session", "error", err)
	}
	m.metrics.LoginAttempt("ok")
	m.adopt(issued, user)
	m.logger.Info("login succeeded",
		"attempt_id", res.id,
		"wallet", res.address.Short(),
		"user_id", user.ID,
		"fingerprint", token.Fingerprint(issued.Value))
}

// ============================================================================
// Commands
// ============================================================================

func (m *SessionManager) handleLogout(ctx context.Context) error {
	if m.wallet.Connected {
		m.loggedOutFor = m.wallet.Address
	}
	m.resetSession()
	err := m.store.Clear(ctx)
	if err != nil {
		m.logger.Error("failed to clear stored session", "error", err)
	}
	m.publish()
	m.logger.Info("logged out")
	return err
}

func (m *SessionManager) handleRetry(ctx context.Context) error {
	switch {
	case m.attempt != nil:
		return nil
	case !m.wallet.Connected:
		return domain.ErrConnectorUnavailable.WithDetails("no wallet connected")
	case m.token != nil && m.token.ValidFor(m.wallet.Address):
		return nil
	}
	m.loggedOutFor = ""
	m.startLogin(ctx)
	return nil
}

func (m *SessionManager) handleClearError() {
	if m.state != domain.StateError {
		return
	}
	m.state = domain.StateUnauthenticated
	m.lastErr = nil
	m.publish()
}

func (m *SessionManager) handleProfile(cmd profileCmd) {
	if m.state != domain.StateAuthenticated || m.token == nil {
		cmd.reply <- profileReply{err: domain.ErrNotAuthenticated}
		return
	}
	value := m.token.Value
	go func() {
		res := profileResult{token: value, reply: cmd.reply}
		defer func() {
			if p := recover(); p != nil {
				res.err = domain.ErrInternal.WithDetails(fmt.Sprint(p))
			}
			m.inbox.push(res)
		}()
		reqCtx, cancel := context.WithTimeout(cmd.ctx, m.timeout)
		defer cancel()
		res.user, res.err = m.backend.Profile(reqCtx, value)
		if res.err == nil && res.user == nil {
			res.err = domain.ErrNetworkFailure.WithDetails("empty profile response")
		}
	}()
}

func (m *SessionManager) handleProfileResult(ctx context.Context, res profileResult) {
	if m.token == nil || !token.Equal(m.token.Value, res.token) {
		res.reply <- profileReply{err: domain.ErrNotAuthenticated}
		return
	}
	if res.err != nil {
		if domain.IsDomainError(res.err, domain.ErrInvalidSession.Code) {
			m.logger.Warn("session rejected by profile endpoint", "error", res.err)
			m.clearStore(ctx)
			m.resetSession()
			m.lastErr = domain.NewSessionError(res.err)
			m.publish()
			m.maybeLogin(ctx)
		}
		res.reply <- profileReply{err: res.err}
		return
	}

	user := res.user.Normalize()
	if err := m.store.Save(ctx, *m.token, user); err != nil {
		m.logger.Error("failed to persist profile", "error", err)
	}
	m.user = &user
	m.publish()

	out := user
	res.reply <- profileReply{user: &out}
}

// ============================================================================
// State helpers
// ============================================================================

func (m *SessionManager) isCurrent(id string) bool {
	return m.attempt != nil && m.attempt.id == id
}

// knownWallet prefers the processed snapshot and falls back to the
// observer's latest one while no event has been handled yet.
func (m *SessionManager) knownWallet() domain.WalletSnapshot {
	if m.wallet.Connected || m.snapshots == nil {
		return m.wallet
	}
	return m.snapshots.Current().Normalize()
}

// isStale reports whether either view of the wallet no longer shows addr.
// A restored session is not stale while no wallet is connected at all.
func (m *SessionManager) isStale(addr domain.WalletAddress) bool {
	views := []domain.WalletSnapshot{m.wallet}
	if m.snapshots != nil {
		views = append(views, m.snapshots.Current().Normalize())
	}
	for _, w := range views {
		if w.Connected && w.Address != addr {
			return true
		}
	}
	return false
}

func (m *SessionManager) adopt(tok domain.SessionToken, user domain.UserRecord) {
	m.token = &tok
	m.user = &user
	m.state = domain.StateAuthenticated
	m.phase = domain.PhaseNone
	m.lastErr = nil
	m.publish()
}

// resetSession drops token, user, attempt and error without publishing.
func (m *SessionManager) resetSession() {
	m.attempt = nil
	m.token = nil
	m.user = nil
	m.state = domain.StateUnauthenticated
	m.phase = domain.PhaseNone
	m.lastErr = nil
}

// clearAll drops the session and the store, then publishes.
func (m *SessionManager) clearAll(ctx context.Context) {
	m.resetSession()
	m.clearStore(ctx)
	m.publish()
}

func (m *SessionManager) clearStore(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear stored session", "error", err)
	}
}

// ============================================================================
// Publication
// ============================================================================

func (m *SessionManager) publish() {
	next := domain.Session{
		State:  m.state,
		Phase:  m.phase,
		Error:  cloneError(m.lastErr),
		Wallet: m.wallet,
		Token:  cloneToken(m.token),
		User:   cloneUser(m.user),
	}
	if m.attempt != nil {
		next.AttemptID = m.attempt.id
	}

	m.viewMu.Lock()
	prev := m.view
	next.Version, next.UpdatedAt = prev.Version, prev.UpdatedAt
	if reflect.DeepEqual(prev, next) {
		m.viewMu.Unlock()
		return
	}
	next.Version = prev.Version + 1
	next.UpdatedAt = m.now()
	m.view = next
	m.viewMu.Unlock()

	if prev.State != next.State {
		m.metrics.SessionTransition(prev.State.String(), next.State.String())
		m.logger.Debug("session transition",
			"from", prev.State.String(),
			"to", next.State.String(),
			"phase", string(next.Phase),
			"version", next.Version)
	}
	m.outbox.push(next)
}

func (m *SessionManager) dispatch(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-m.outbox.ready():
			m.deliver(m.outbox.drain())
		case <-stop:
			m.deliver(m.outbox.drain())
			return
		}
	}
}

func (m *SessionManager) deliver(views []domain.Session) {
	for _, view := range views {
		m.subMu.Lock()
		subs := m.subs
		m.subMu.Unlock()

		for _, sub := range subs {
			m.notify(sub, view)
		}
	}
}

func (m *SessionManager) notify(sub sessionSubscriber, view domain.Session) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("session subscriber panicked", "panic", p)
		}
	}()
	sub.fn(view)
}

func cloneError(e *domain.SessionError) *domain.SessionError {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

func cloneToken(t *domain.SessionToken) *domain.SessionToken {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneUser(u *domain.UserRecord) *domain.UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	if u.Email != nil {
		email := *u.Email
		c.Email = &email
	}
	return &c
}
