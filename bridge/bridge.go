// Package bridge serves playback payloads to the avatar renderer over a
// websocket. Animation frames travel on a normal lane; interrupts and the
// disconnect control message travel on a priority lane that always wins.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pithecene-io/mirabel/log"
)

// Defaults.
const (
	DefaultPath         = "/playback"
	DefaultWriteTimeout = 5 * time.Second
	DefaultPingInterval = 20 * time.Second

	normalBuffer     = 256
	priorityBuffer   = 16
	maxShutdownFlush = 8
	readLimit        = 4096
)

// DisconnectMessage asks the renderer to tear down its connection.
const DisconnectMessage = `{"action":"disconnect"}`

// ErrLaneFull is returned when the renderer is not draining fast enough.
var ErrLaneFull = errors.New("renderer lane full")

// Config configures a Bridge.
type Config struct {
	// Listen is the TCP address for ListenAndServe.
	Listen string
	// Path is the websocket endpoint. Empty uses DefaultPath.
	Path         string
	WriteTimeout time.Duration
	PingInterval time.Duration
	// OnReady is called with true when a renderer connects and false when it
	// goes away. Optional.
	OnReady func(ready bool)
	Logger  *log.Logger
}

// Stats counts bridge traffic.
type Stats struct {
	Connections int64 `json:"connections" yaml:"connections"`
	Sent        int64 `json:"sent" yaml:"sent"`
	Dropped     int64 `json:"dropped" yaml:"dropped"`
}

// Bridge is a frame.PrioritySink and mode.Renderer backed by one websocket
// renderer connection. A new connection replaces the previous one.
type Bridge struct {
	cfg      Config
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	client *client

	connections atomic.Int64
	sent        atomic.Int64
	dropped     atomic.Int64
}

type client struct {
	conn     *websocket.Conn
	priority chan []byte
	normal   chan []byte
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Bridge.
func New(cfg Config) *Bridge {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	return &Bridge{
		cfg:    cfg,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			// The renderer is a local webview.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(b.cfg.Path, b.serveWS)
	return mux
}

// ListenAndServe serves the bridge until ctx is done.
func (b *Bridge) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.cfg.Listen)
	if err != nil {
		return fmt.Errorf("bridge listen: %w", err)
	}
	return b.Serve(ctx, ln)
}

// Serve serves the bridge on ln until ctx is done.
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	b.logger.Info("playback bridge listening", map[string]any{
		"addr": ln.Addr().String(),
		"path": b.cfg.Path,
	})

	select {
	case err := <-errCh:
		b.Close()
		return err
	case <-ctx.Done():
		b.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), b.cfg.WriteTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}

func (b *Bridge) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("renderer upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:     conn,
		priority: make(chan []byte, priorityBuffer),
		normal:   make(chan []byte, normalBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	prev := b.client
	b.client = c
	b.mu.Unlock()
	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	b.connections.Add(1)
	b.logger.Info("renderer connected", map[string]any{"remote": r.RemoteAddr})
	b.setReady(true)

	go b.readLoop(c)

	lw := &laneWriter{
		ws:           conn,
		ctx:          ctx,
		writeTimeout: b.cfg.WriteTimeout,
		pingInterval: b.cfg.PingInterval,
		priority:     c.priority,
		normal:       c.normal,
	}
	if err := lw.Run(); err != nil {
		b.logger.Warn("renderer write failed", map[string]any{"error": err.Error()})
	}
	cancel()
	_ = conn.Close()
	close(c.done)

	b.mu.Lock()
	current := b.client == c
	if current {
		b.client = nil
	}
	b.mu.Unlock()
	if current {
		b.logger.Info("renderer disconnected", nil)
		b.setReady(false)
	}
}

// readLoop discards renderer messages and cancels the client when the
// connection closes.
func (b *Bridge) readLoop(c *client) {
	defer c.cancel()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Bridge) setReady(ready bool) {
	if b.cfg.OnReady != nil {
		b.cfg.OnReady(ready)
	}
}

func (b *Bridge) current() *client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

// Connected reports whether a renderer is connected.
func (b *Bridge) Connected() bool {
	return b.current() != nil
}

// Play queues payload on the normal lane. Without a renderer the payload is
// dropped and nil returned.
func (b *Bridge) Play(payload string) error {
	return b.enqueue(payload, false)
}

// PlayNow queues payload on the priority lane.
func (b *Bridge) PlayNow(payload string) error {
	return b.enqueue(payload, true)
}

// Disconnect sends the disconnect control message on the priority lane.
func (b *Bridge) Disconnect() error {
	return b.enqueue(DisconnectMessage, true)
}

func (b *Bridge) enqueue(payload string, priority bool) error {
	c := b.current()
	if c == nil {
		b.dropped.Add(1)
		return nil
	}
	lane := c.normal
	if priority {
		lane = c.priority
	}
	select {
	case lane <- []byte(payload):
		b.sent.Add(1)
		return nil
	default:
		b.dropped.Add(1)
		return ErrLaneFull
	}
}

// Close disconnects the current renderer.
func (b *Bridge) Close() {
	b.mu.Lock()
	c := b.client
	b.mu.Unlock()
	if c != nil {
		c.cancel()
		<-c.done
	}
}

// Stats returns traffic counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Connections: b.connections.Load(),
		Sent:        b.sent.Load(),
		Dropped:     b.dropped.Load(),
	}
}
