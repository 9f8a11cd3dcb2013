package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yndnr/walletauth/internal/core/domain"
)

// Bootstrap runs connector initialization at most once per round.
//
// Every caller of EnsureReady joins the same round and sees the same
// outcome. A failed round stays failed until Reset or Retry.
type Bootstrap struct {
	opener  Opener
	logger  *slog.Logger
	metrics Metrics

	mu        sync.Mutex
	state     domain.ConnectorState
	round     *bootstrapRound
	retried   chan struct{}
	listeners []func(domain.ConnectorState)

	// pending holds transitions not yet delivered to listeners, in the
	// order they happened. Only the goroutine that set notifying drains it.
	pending   []domain.ConnectorState
	notifying bool
}

type bootstrapRound struct {
	done    chan struct{}
	started bool
	err     error
}

func newBootstrapRound() *bootstrapRound {
	return &bootstrapRound{done: make(chan struct{})}
}

// NewBootstrap creates a bootstrap around opener.
func NewBootstrap(opener Opener, logger *slog.Logger, metrics Metrics) *Bootstrap {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bootstrap{
		opener:  opener,
		logger:  logger.With("component", "bootstrap"),
		metrics: metricsOrNop(metrics),
		state:   domain.ConnectorUninitialized,
		round:   newBootstrapRound(),
		retried: make(chan struct{}),
	}
	b.metrics.SetConnectorState(int(b.state))
	return b
}

// OnStateChange registers fn to be called on every state transition.
// Transitions reach listeners one at a time and in order; fn runs with
// no locks held and may call back into the bootstrap.
func (b *Bootstrap) OnStateChange(fn func(domain.ConnectorState)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// State returns the current connector state.
func (b *Bootstrap) State() domain.ConnectorState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Done returns a channel closed when the current round resolves.
func (b *Bootstrap) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.round.done
}

// Retried returns a channel closed the next time Reset starts a new round.
func (b *Bootstrap) Retried() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.retried
}

// EnsureReady starts the current round if needed and waits for it.
//
// The round runs detached from ctx. When ctx ends first, EnsureReady
// returns ctx.Err() and the round continues for the other callers.
func (b *Bootstrap) EnsureReady(ctx context.Context) error {
	b.mu.Lock()
	r := b.round
	start := !r.started
	if start {
		r.started = true
		b.setStateLocked(domain.ConnectorInitializing)
	}
	b.mu.Unlock()

	if start {
		b.flushNotifications()
		go b.run(context.WithoutCancel(ctx), r)
	}

	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset discards a failed round so the next EnsureReady opens again.
// It reports false, and does nothing, unless the state is Failed.
func (b *Bootstrap) Reset() bool {
	b.mu.Lock()
	if b.state != domain.ConnectorFailed {
		b.mu.Unlock()
		return false
	}
	b.round = newBootstrapRound()
	b.setStateLocked(domain.ConnectorUninitialized)
	close(b.retried)
	b.retried = make(chan struct{})
	b.mu.Unlock()

	b.logger.Info("connector bootstrap reset")
	b.flushNotifications()
	return true
}

// Retry resets a failed round and waits for a fresh one.
func (b *Bootstrap) Retry(ctx context.Context) error {
	b.Reset()
	return b.EnsureReady(ctx)
}

func (b *Bootstrap) run(ctx context.Context, r *bootstrapRound) {
	b.logger.Info("connector initializing")

	err := b.open(ctx)

	b.mu.Lock()
	if err != nil {
		r.err = domain.ErrConnectorUnavailable.WithDetails("initialization failed").WithCause(err)
		b.setStateLocked(domain.ConnectorFailed)
	} else {
		b.setStateLocked(domain.ConnectorReady)
	}
	close(r.done)
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("connector initialization failed", "error", err)
	} else {
		b.logger.Info("connector ready")
	}
	b.flushNotifications()
}

func (b *Bootstrap) open(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("connector panic: %v", p)
		}
	}()
	if b.opener == nil {
		return fmt.Errorf("no connector configured")
	}
	return b.opener.Open(ctx)
}

// setStateLocked must be called with b.mu held.
func (b *Bootstrap) setStateLocked(s domain.ConnectorState) {
	if b.state == s {
		return
	}
	b.logger.Debug("connector state", "from", b.state.String(), "to", s.String())
	b.state = s
	b.metrics.SetConnectorState(int(s))
	b.pending = append(b.pending, s)
}

// flushNotifications delivers pending transitions. If another goroutine
// is already delivering, it picks up what was queued here.
func (b *Bootstrap) flushNotifications() {
	b.mu.Lock()
	if b.notifying {
		b.mu.Unlock()
		return
	}
	b.notifying = true
	for len(b.pending) > 0 {
		s := b.pending[0]
		b.pending = b.pending[1:]
		listeners := b.listeners
		b.mu.Unlock()
		for _, fn := range listeners {
			fn(s)
		}
		b.mu.Lock()
	}
	b.notifying = false
	b.mu.Unlock()
}

