package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/walletauth/internal/core/domain"
)

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []domain.WalletSnapshot
}

func (r *snapshotRecorder) record(s domain.WalletSnapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *snapshotRecorder) get() []domain.WalletSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.WalletSnapshot(nil), r.snaps...)
}

func TestObserver_DeduplicatesAndOrders(t *testing.T) {
	src := &fakeSource{ch: make(chan domain.WalletSnapshot, 16)}
	metrics := &fakeMetrics{}
	obs := NewObserver(NewBootstrap(&fakeOpener{}, discardLogger(), nil), src, discardLogger(), metrics)

	rec := &snapshotRecorder{}
	obs.Subscribe(rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- obs.Run(ctx) }()

	inputs := []domain.WalletSnapshot{
		domain.Disconnected(),                    // equal to baseline
		domain.Connected("0xAAAA", 1),            // connect
		domain.Connected("0xaaaa", 1),            // same after normalization
		domain.Connected("0xaaaa", 137),          // chain change
		domain.Connected("0xbbbb", 137),          // account change
		{Address: "0xbbbb", Connected: false},    // disconnect, address dropped
		domain.Disconnected(),                    // duplicate
	}
	for _, s := range inputs {
		src.ch <- s
	}

	waitUntil(t, "four deliveries", func() bool { return len(rec.get()) == 4 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	got := rec.get()
	want := []domain.WalletSnapshot{
		domain.Connected("0xaaaa", 1),
		domain.Connected("0xaaaa", 137),
		domain.Connected("0xbbbb", 137),
		domain.Disconnected(),
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("delivery %d = %s, want %s", i, got[i], want[i])
		}
	}
	if !obs.Current().Equal(domain.Disconnected()) {
		t.Errorf("Current() = %s, want disconnected", obs.Current())
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	wantKinds := []string{"connect", "chain_change", "account_change", "disconnect"}
	if len(metrics.wallet) != len(wantKinds) {
		t.Fatalf("wallet event kinds = %v, want %v", metrics.wallet, wantKinds)
	}
	for i := range wantKinds {
		if metrics.wallet[i] != wantKinds[i] {
			t.Errorf("kind %d = %s, want %s", i, metrics.wallet[i], wantKinds[i])
		}
	}
}

func TestObserver_BootstrapFailure(t *testing.T) {
	b := NewBootstrap(&fakeOpener{fn: func(context.Context) error { return errBoom }}, discardLogger(), nil)
	obs := NewObserver(b, &fakeSource{}, discardLogger(), nil)

	err := obs.Run(context.Background())
	if !errors.Is(err, domain.ErrConnectorUnavailable) {
		t.Fatalf("Run() error = %v, want ErrConnectorUnavailable", err)
	}
	if obs.Available() {
		t.Error("Available() should be false after bootstrap failure")
	}
	if obs.Current().Connected {
		t.Error("Current() should be disconnected after bootstrap failure")
	}
}

func TestObserver_StreamClosedDisconnects(t *testing.T) {
	src := &fakeSource{ch: make(chan domain.WalletSnapshot, 1)}
	obs := NewObserver(NewBootstrap(&fakeOpener{}, discardLogger(), nil), src, discardLogger(), nil)
	rec := &snapshotRecorder{}
	obs.Subscribe(rec.record)

	src.ch <- domain.Connected("0xaaaa", 1)
	close(src.ch)

	err := obs.Run(context.Background())
	if !errors.Is(err, domain.ErrConnectorUnavailable) {
		t.Fatalf("Run() error = %v, want ErrConnectorUnavailable", err)
	}
	got := rec.get()
	if len(got) != 2 || got[1].Connected {
		t.Errorf("deliveries = %v, want connect then disconnect", got)
	}
}

func TestObserver_WatchError(t *testing.T) {
	obs := NewObserver(NewBootstrap(&fakeOpener{}, discardLogger(), nil), &fakeSource{err: errBoom}, discardLogger(), nil)
	if err := obs.Run(context.Background()); !errors.Is(err, errBoom) {
		t.Errorf("Run() error = %v, want wrapped errBoom", err)
	}
}

func TestObserver_UnsubscribeIdempotent(t *testing.T) {
	src := &fakeSource{ch: make(chan domain.WalletSnapshot, 4)}
	obs := NewObserver(NewBootstrap(&fakeOpener{}, discardLogger(), nil), src, discardLogger(), nil)

	first := &snapshotRecorder{}
	second := &snapshotRecorder{}
	unsubscribe := obs.Subscribe(first.record)
	obs.Subscribe(second.record)
	unsubscribe()
	unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = obs.Run(ctx) }()

	src.ch <- domain.Connected("0xaaaa", 1)
	waitUntil(t, "delivery to remaining subscriber", func() bool { return len(second.get()) == 1 })
	if n := len(first.get()); n != 0 {
		t.Errorf("unsubscribed recorder got %d snapshots", n)
	}
}

func TestObserver_RunWithRetry(t *testing.T) {
	var mu sync.Mutex
	fail := true
	b := NewBootstrap(&fakeOpener{fn: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errBoom
		}
		return nil
	}}, discardLogger(), nil)
	src := &fakeSource{ch: make(chan domain.WalletSnapshot, 1)}
	obs := NewObserver(b, src, discardLogger(), nil)

	failures := make(chan error, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = obs.RunWithRetry(ctx, func(err error) { failures <- err }) }()

	if err := <-failures; !errors.Is(err, domain.ErrConnectorUnavailable) {
		t.Fatalf("failure = %v", err)
	}

	mu.Lock()
	fail = false
	mu.Unlock()
	if !b.Reset() {
		t.Fatal("Reset() should succeed after failure")
	}

	src.ch <- domain.Connected("0xaaaa", 1)
	waitUntil(t, "observer to recover", func() bool {
		return obs.Available() && obs.Current().Connected
	})
}

// streamSource hands out a new channel on every Watch.
type streamSource struct {
	mu      sync.Mutex
	streams []chan domain.WalletSnapshot
}

func (s *streamSource) Watch(context.Context) (<-chan domain.WalletSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan domain.WalletSnapshot, 1)
	s.streams = append(s.streams, ch)
	return ch, nil
}

func (s *streamSource) latest() (chan domain.WalletSnapshot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.streams) == 0 {
		return nil, 0
	}
	return s.streams[len(s.streams)-1], len(s.streams)
}

func TestObserver_RunWithRetry_WatchesAgainAfterStreamEnds(t *testing.T) {
	src := &streamSource{}
	obs := NewObserver(NewBootstrap(&fakeOpener{}, discardLogger(), nil), src, discardLogger(), nil)
	obs.rewatchDelay = 10 * time.Millisecond

	failures := make(chan error, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = obs.RunWithRetry(ctx, func(err error) { failures <- err }) }()

	waitUntil(t, "first watch", func() bool { _, n := src.latest(); return n == 1 })
	first, _ := src.latest()
	first <- domain.Connected("0xaaaa", 1)
	waitUntil(t, "connected snapshot", func() bool { return obs.Current().Connected })
	close(first)

	waitUntil(t, "second watch", func() bool { _, n := src.latest(); return n == 2 })
	second, _ := src.latest()
	second <- domain.Connected("0xbbbb", 1)
	waitUntil(t, "snapshot from new stream", func() bool {
		return obs.Available() && obs.Current().Address == "0xbbbb"
	})

	select {
	case err := <-failures:
		t.Errorf("onFailure called for a ready connector: %v", err)
	default:
	}
}
