package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/walletauth/internal/core/domain"
)

// DefaultRewatchDelay is how long RunWithRetry waits before watching
// again after the event stream of a ready connector ends.
const DefaultRewatchDelay = time.Second

// Observer turns raw connector events into deduplicated wallet snapshots.
//
// Snapshots are delivered in arrival order, one at a time, to every
// subscriber. A snapshot equal to the last delivered one is dropped.
type Observer struct {
	bootstrap *Bootstrap
	source    EventSource
	logger    *slog.Logger
	metrics   Metrics

	rewatchDelay time.Duration

	mu        sync.RWMutex
	current   domain.WalletSnapshot
	available bool
	subs      []walletSubscriber
	nextID    uint64

	// deliverMu serializes delivery across Run invocations.
	deliverMu sync.Mutex
	running   atomic.Bool
}

type walletSubscriber struct {
	id uint64
	fn func(domain.WalletSnapshot)
}

// NewObserver creates an observer fed by source once bootstrap is ready.
func NewObserver(bootstrap *Bootstrap, source EventSource, logger *slog.Logger, metrics Metrics) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		bootstrap: bootstrap,
		source:    source,
		logger:    logger.With("component", "observer"),
		metrics:   metricsOrNop(metrics),
		current:   domain.Disconnected(),

		rewatchDelay: DefaultRewatchDelay,
	}
}

// Current returns the last delivered snapshot.
func (o *Observer) Current() domain.WalletSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// Available reports whether the connector is feeding events.
func (o *Observer) Available() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.available
}

// Subscribe registers fn for subsequent snapshots.
// The returned function unsubscribes; calling it again is a no-op.
func (o *Observer) Subscribe(fn func(domain.WalletSnapshot)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs = append(o.subs, walletSubscriber{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, sub := range o.subs {
				if sub.id == id {
					o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Run waits for the connector and consumes its events until ctx ends or
// the event stream closes.
//
// If bootstrap fails the observer stays disconnected and returns the
// bootstrap error.
func (o *Observer) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return domain.ErrInternal.WithDetails("observer already running")
	}
	defer o.running.Store(false)

	if err := o.bootstrap.EnsureReady(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.setUnavailable()
		return err
	}

	events, err := o.source.Watch(ctx)
	if err != nil {
		o.setUnavailable()
		return domain.ErrConnectorUnavailable.WithDetails("watch wallet events").WithCause(err)
	}

	o.mu.Lock()
	o.available = true
	o.mu.Unlock()
	o.logger.Info("observing wallet events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-events:
			if !ok {
				o.setUnavailable()
				return domain.ErrConnectorUnavailable.WithDetails("wallet event stream closed")
			}
			o.deliver(raw)
		}
	}
}

// RunWithRetry runs the observer until ctx ends.
//
// When the connector failed to initialize, onFailure is called and the
// observer waits for the bootstrap to be reset. When the connector is
// ready but its event stream ended or could not be opened, the observer
// watches again after a short delay.
func (o *Observer) RunWithRetry(ctx context.Context, onFailure func(error)) error {
	for {
		retried := o.bootstrap.Retried()
		err := o.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var wait <-chan time.Time
		if o.bootstrap.State() == domain.ConnectorReady {
			o.logger.Warn("wallet event stream lost, watching again", "error", err, "delay", o.rewatchDelay)
			wait = time.After(o.rewatchDelay)
		} else if onFailure != nil && err != nil {
			onFailure(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retried:
		case <-wait:
		}
	}
}

// setUnavailable reports a permanent disconnect.
func (o *Observer) setUnavailable() {
	o.mu.Lock()
	o.available = false
	o.mu.Unlock()
	o.deliver(domain.Disconnected())
}

func (o *Observer) deliver(raw domain.WalletSnapshot) {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	snap := raw.Normalize()

	o.mu.Lock()
	prev := o.current
	if snap.Equal(prev) {
		o.mu.Unlock()
		return
	}
	o.current = snap
	subs := o.subs
	o.mu.Unlock()

	kind := eventKind(prev, snap)
	o.metrics.WalletEvent(kind)
	o.logger.Debug("wallet snapshot", "kind", kind, "snapshot", snap.String())

	for _, sub := range subs {
		sub.fn(snap)
	}
}

func eventKind(prev, next domain.WalletSnapshot) string {
	switch {
	case !next.Connected:
		return "disconnect"
	case !prev.Connected:
		return "connect"
	case prev.Address != next.Address:
		return "account_change"
	default:
		return "chain_change"
	}
}
