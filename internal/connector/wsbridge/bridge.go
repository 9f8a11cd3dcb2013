package wsbridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/walletauth/internal/core/domain"
	"github.com/yndnr/walletauth/pkg/ethsig"
)

// Subprotocol is the only WebSocket subprotocol the bridge speaks.
const Subprotocol = "walletauth.v1"

const (
	maxFrameBytes    = 64 << 10
	sendQueueSize    = 16
	maxPingFailures  = 3
	defaultHeartbeat = 20 * time.Second
	defaultWrite     = 5 * time.Second
)

// Message types exchanged with the page.
const (
	TypeAccount     = "account"
	TypeSignRequest = "sign_request"
	TypeSignResult  = "sign_result"
	TypeSignError   = "sign_error"
	TypeError       = "error"
)

// CodeUserRejected is the sign_error code for a declined request.
const CodeUserRejected = "user_rejected"

// Message is the JSON frame exchanged with the page.
type Message struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Address   string `json:"address,omitempty"`
	Connected bool   `json:"connected,omitempty"`
	ChainID   *int64 `json:"chain_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Signature string `json:"signature,omitempty"`
	Code      string `json:"code,omitempty"`
}

// Config configures a Bridge.
type Config struct {
	// ProjectID identifies the wallet widget project. Open fails without it.
	ProjectID string

	// OriginPatterns are host patterns allowed to open the bridge.
	OriginPatterns []string

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	WriteTimeout      time.Duration
}

// Bridge implements the wallet connector over a WebSocket.
type Bridge struct {
	cfg    Config
	logger *slog.Logger

	opened   atomic.Bool
	watching atomic.Bool

	mu      sync.Mutex
	active  *page
	pending map[string]*pendingSign
	queue   []domain.WalletSnapshot
	wake    chan struct{}
}

type page struct {
	id   string
	send chan Message
	done chan struct{}
	once sync.Once
	conn *websocket.Conn
}

func (p *page) close(code websocket.StatusCode, reason string) {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close(code, reason)
	})
}

type pendingSign struct {
	page  *page
	reply chan Message
}

// New creates a bridge.
func New(cfg Config, logger *slog.Logger) *Bridge {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeat
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = cfg.HeartbeatInterval / 2
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWrite
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:     cfg,
		logger:  logger.With("component", "wsbridge"),
		pending: make(map[string]*pendingSign),
		wake:    make(chan struct{}, 1),
	}
}

// Open initializes the connector. It is idempotent.
func (b *Bridge) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(b.cfg.ProjectID) == "" {
		return errors.New("wallet connector project id is required")
	}
	if b.opened.CompareAndSwap(false, true) {
		b.logger.Info("wallet bridge ready", "project_id", b.cfg.ProjectID)
	}
	return nil
}

// PageConnected reports whether a wallet page is attached.
func (b *Bridge) PageConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active != nil
}

// Watch returns the raw snapshot stream. It may be called once; the
// channel closes when ctx ends.
func (b *Bridge) Watch(ctx context.Context) (<-chan domain.WalletSnapshot, error) {
	if !b.watching.CompareAndSwap(false, true) {
		return nil, errors.New("wallet events already watched")
	}
	out := make(chan domain.WalletSnapshot)
	go b.forward(ctx, out)
	return out, nil
}

func (b *Bridge) forward(ctx context.Context, out chan<- domain.WalletSnapshot) {
	defer close(out)
	defer b.watching.Store(false)
	for {
		b.mu.Lock()
		queued := b.queue
		b.queue = nil
		b.mu.Unlock()

		for _, snap := range queued {
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-b.wake:
		case <-ctx.Done():
			return
		}
	}
}

// emit must be called with b.mu held.
func (b *Bridge) emit(snap domain.WalletSnapshot) {
	b.queue = append(b.queue, snap)
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// SignMessage asks the active page to personal_sign message with address.
func (b *Bridge) SignMessage(ctx context.Context, address domain.WalletAddress, message string) (string, error) {
	b.mu.Lock()
	p := b.active
	if p == nil {
		b.mu.Unlock()
		return "", domain.ErrConnectorUnavailable.WithDetails("no wallet page connected")
	}
	id := ulid.Make().String()
	ps := &pendingSign{page: p, reply: make(chan Message, 1)}
	b.pending[id] = ps
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	req := Message{Type: TypeSignRequest, ID: id, Address: string(address), Message: message}
	select {
	case p.send <- req:
	case <-p.done:
		return "", domain.ErrConnectorUnavailable.WithDetails("wallet page closed")
	case <-ctx.Done():
		return "", domain.ErrSigningFailed.WithCause(ctx.Err())
	}

	select {
	case resp := <-ps.reply:
		return signOutcome(resp)
	case <-p.done:
		return "", domain.ErrConnectorUnavailable.WithDetails("wallet page closed")
	case <-ctx.Done():
		return "", domain.ErrSigningFailed.WithCause(ctx.Err())
	}
}

func signOutcome(resp Message) (string, error) {
	if resp.Type == TypeSignResult {
		if resp.Signature == "" {
			return "", domain.ErrSigningFailed.WithDetails("empty signature")
		}
		return resp.Signature, nil
	}
	if resp.Code == CodeUserRejected || strings.Contains(resp.Message, "User rejected") {
		return "", domain.ErrSignatureRejected.WithDetails(resp.Message)
	}
	details := resp.Message
	if resp.Code != "" {
		details = resp.Code + ": " + details
	}
	return "", domain.ErrSigningFailed.WithDetails(details)
}

// ServeHTTP upgrades the request and runs the page session.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !b.opened.Load() {
		http.Error(w, "wallet connector not initialized", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: b.cfg.OriginPatterns,
	})
	if err != nil {
		b.logger.Warn("bridge accept failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	if sp := conn.Subprotocol(); sp != Subprotocol {
		b.logger.Info("bridge rejected subprotocol", "got", sp)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	p := &page{
		id:   ulid.Make().String(),
		send: make(chan Message, sendQueueSize),
		done: make(chan struct{}),
		conn: conn,
	}
	b.attach(p)
	defer b.detach(p)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go b.writeLoop(ctx, p)
	go b.heartbeat(ctx, p)

	b.readLoop(ctx, p)
}

func (b *Bridge) attach(p *page) {
	b.mu.Lock()
	old := b.active
	b.active = p
	b.mu.Unlock()

	b.logger.Info("wallet page attached", "page_id", p.id)
	if old != nil {
		b.logger.Info("wallet page replaced", "page_id", old.id)
		old.close(websocket.StatusGoingAway, "replaced by a newer page")
	}
}

func (b *Bridge) detach(p *page) {
	p.close(websocket.StatusNormalClosure, "bye")

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active != p {
		return
	}
	b.active = nil
	b.emit(domain.Disconnected())
	b.logger.Info("wallet page detached", "page_id", p.id)
}

func (b *Bridge) readLoop(ctx context.Context, p *page) {
	for {
		var msg Message
		if err := wsjson.Read(ctx, p.conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				select {
				case <-p.done:
				default:
					b.logger.Info("bridge read failed", "page_id", p.id, "error", err)
				}
			}
			return
		}

		switch msg.Type {
		case TypeAccount:
			b.onAccount(p, msg)
		case TypeSignResult, TypeSignError:
			b.onSignReply(p, msg)
		default:
			b.trySend(p, Message{Type: TypeError, Code: "unsupported", Message: "unsupported type: " + msg.Type})
		}
	}
}

func (b *Bridge) onAccount(p *page, msg Message) {
	snap := domain.WalletSnapshot{Connected: msg.Connected, ChainID: msg.ChainID}
	if msg.Connected {
		if !ethsig.ValidAddress(msg.Address) {
			b.trySend(p, Message{Type: TypeError, Code: "bad_address", Message: "invalid wallet address"})
			return
		}
		snap.Address = domain.NormalizeAddress(msg.Address)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active != p {
		return
	}
	b.emit(snap)
}

func (b *Bridge) onSignReply(p *page, msg Message) {
	b.mu.Lock()
	ps, ok := b.pending[msg.ID]
	b.mu.Unlock()
	if !ok || ps.page != p {
		b.logger.Debug("ignoring unknown sign reply", "id", msg.ID)
		return
	}
	select {
	case ps.reply <- msg:
	default:
	}
}

func (b *Bridge) trySend(p *page, msg Message) {
	select {
	case p.send <- msg:
	default:
		b.logger.Warn("bridge send queue full", "page_id", p.id, "type", msg.Type)
	}
}

func (b *Bridge) writeLoop(ctx context.Context, p *page) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case msg := <-p.send:
			wctx, cancel := context.WithTimeout(ctx, b.cfg.WriteTimeout)
			err := wsjson.Write(wctx, p.conn, msg)
			cancel()
			if err != nil {
				b.logger.Info("bridge write failed", "page_id", p.id, "error", err)
				p.close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (b *Bridge) heartbeat(ctx context.Context, p *page) {
	t := time.NewTicker(b.cfg.HeartbeatInterval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-t.C:
			hctx, cancel := context.WithTimeout(ctx, b.cfg.HeartbeatTimeout)
			err := p.conn.Ping(hctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			b.logger.Info("bridge ping failed", "page_id", p.id, "failures", failures, "error", err)
			if failures >= maxPingFailures {
				p.close(websocket.StatusGoingAway, "heartbeat failed")
				return
			}
		}
	}
}
