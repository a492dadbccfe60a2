// Package realtime keeps one websocket connection to the order events
// channel and applies inbound events to the local stores.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/ledger"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/logging"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/notify"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/rider"
	"github.com/suevga/suvega-darkstore-sub001/internal/metrics"
)

const (
	// Time allowed to write a frame to the server.
	writeWait = 10 * time.Second

	// Maximum inbound frame size. Order payloads carry items and addresses.
	maxMessageSize = 1 << 20
)

// Config controls the connection.
type Config struct {
	URL         string
	DarkStoreID string
	Token       string

	// PingInterval must be less than PongWait.
	PingInterval   time.Duration
	PongWait       time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// DefaultConfig returns the keepalive and backoff defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		BackoffInitial: time.Second,
		BackoffMax:     30 * time.Second,
	}
}

// Stores are the event targets.
type Stores struct {
	Ledger *ledger.Ledger
	Queue  *notify.Queue
	Roster *rider.Roster
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics records event and connection metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(b *Bridge) { b.dialer = d }
}

// WithOnReconnect registers fn to run on the read goroutine after every
// reconnect, once the room is joined and before events are read. It is not
// called for the first connection.
func WithOnReconnect(fn func(ctx context.Context)) Option {
	return func(b *Bridge) { b.onReconnect = fn }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// Bridge owns the connection lifecycle and event dispatch.
type Bridge struct {
	cfg         Config
	stores      Stores
	dialer      *websocket.Dialer
	validate    *validator.Validate
	metrics     *metrics.Metrics
	onReconnect func(ctx context.Context)
	log         zerolog.Logger

	connected atomic.Bool

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a Bridge. Zero keepalive and backoff settings take the
// DefaultConfig values.
func New(cfg Config, stores Stores, opts ...Option) *Bridge {
	def := DefaultConfig()
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = (cfg.PongWait * 9) / 10
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = def.BackoffInitial
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = max(def.BackoffMax, cfg.BackoffInitial)
	}

	b := &Bridge{
		cfg:    cfg,
		stores: stores,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		validate: newValidator(),
		log:      logging.Component("bridge"),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connected reports whether a connection is currently established.
func (b *Bridge) Connected() bool {
	return b.connected.Load()
}

// Close tears down the connection and makes Run return. Ledger state is
// left untouched.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
		b.mu.Lock()
		if b.conn != nil {
			_ = b.conn.Close()
		}
		b.mu.Unlock()
	})
}

// Run connects and dispatches events until ctx is cancelled or Close is
// called. Lost connections are redialed with exponential backoff, reset
// after each successful connect.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	ctx = logging.WithDarkStoreID(ctx, b.cfg.DarkStoreID)
	backoff := b.cfg.BackoffInitial
	connects := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := b.dial(ctx)
		b.metrics.ConnectAttempt(err == nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Warn().Ctx(ctx).Err(err).Dur("retry_in", backoff).Msg("dial failed")
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = min(backoff*2, b.cfg.BackoffMax)
			continue
		}

		backoff = b.cfg.BackoffInitial
		connects++

		connCtx := logging.WithConnectionID(ctx, uuid.NewString())
		err = b.serve(connCtx, conn, connects > 1)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn().Ctx(connCtx).Err(err).Dur("retry_in", backoff).Msg("connection lost")
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if b.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+b.cfg.Token)
	}

	conn, resp, err := b.dialer.DialContext(ctx, b.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", b.cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", b.cfg.URL, err)
	}
	return conn, nil
}

// serve runs one connection: join, optional reconnect hook, then the read
// loop. The ping writer runs alongside and is the only writer after join.
func (b *Bridge) serve(ctx context.Context, conn *websocket.Conn, reconnect bool) error {
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	select {
	case <-b.closed:
		_ = conn.Close()
	default:
	}

	defer func() {
		b.connected.Store(false)
		b.metrics.SetConnected(false)
		b.mu.Lock()
		b.conn = nil
		b.mu.Unlock()
		_ = conn.Close()
	}()

	if err := b.join(conn); err != nil {
		return err
	}
	b.connected.Store(true)
	b.metrics.SetConnected(true)
	b.log.Info().Ctx(ctx).Str("room", RoomName(b.cfg.DarkStoreID)).Msg("joined room")

	if reconnect && b.onReconnect != nil {
		b.onReconnect(ctx)
	}

	done := make(chan struct{})
	defer close(done)
	go b.pingLoop(ctx, conn, done)

	return b.readLoop(ctx, conn)
}

func (b *Bridge) join(conn *websocket.Conn) error {
	data, err := json.Marshal(JoinRoom{
		Room:        RoomName(b.cfg.DarkStoreID),
		DarkStoreID: b.cfg.DarkStoreID,
	})
	if err != nil {
		return fmt.Errorf("encode join: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Envelope{Event: EventRoomJoin, Data: data}); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	return nil
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			b.metrics.EventRejected("", "decode")
			b.log.Warn().Ctx(ctx).Err(err).Msg("malformed frame skipped")
			continue
		}

		if err := b.Dispatch(ctx, env); err != nil {
			evt := b.log.Warn()
			if errors.Is(err, ErrUnknownEvent) {
				evt = b.log.Debug()
			}
			evt.Ctx(ctx).Err(err).Str("event", env.Event).Msg("event skipped")
		}
	}
}

func (b *Bridge) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			_ = conn.Close()
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.log.Debug().Ctx(ctx).Err(err).Msg("ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
