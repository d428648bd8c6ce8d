package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mirabel/adapter"
	"github.com/pithecene-io/mirabel/bridge"
	"github.com/pithecene-io/mirabel/frame"
	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/mode"
	"github.com/pithecene-io/mirabel/transport"
	"github.com/pithecene-io/mirabel/types"
)

// Exit codes for `mirabel run`.
const (
	exitSuccess        = 0
	exitConfigError    = 2
	exitTransportError = 3
)

// publisherDrainTimeout bounds how long pending transcript publishes may
// take at shutdown.
const publisherDrainTimeout = 5 * time.Second

// RunCommand returns the run command. It drives one kiosk session over the
// sidecar pipe on stdin/stdout; logs go to stderr.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run a kiosk session over the sidecar pipe (stdin/stdout)",
		Flags:  append(SessionFlags(), BridgeFlags()...),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	settings, err := resolveSettings(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meta := types.SessionMeta{
		SessionID: uuid.NewString(),
		Room:      settings.room,
		Identity:  settings.identity,
	}
	logger := log.NewLoggerWithLevel(&meta, settings.logLevel, os.Stderr)
	defer logger.Sync()

	adapterName := settings.adapter.typ
	collector := metrics.NewCollector(meta.SessionID, meta.Room, "ipc", adapterName)

	conn := transport.New(transport.Config{
		Reader:          os.Stdin,
		Writer:          os.Stdout,
		RPCTimeout:      settings.rpcTimeout,
		AwaitRPCResults: true,
		Identity:        settings.identity,
		Room:            settings.room,
		Logger:          logger.With("transport"),
		Metrics:         collector,
	})

	hello, err := conn.Handshake(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("handshake failed: %v", err), exitTransportError)
	}

	// The sidecar's hello is authoritative for identity and room.
	meta.Identity = hello.Identity
	meta.Room = hello.Room
	logger = log.NewLoggerWithLevel(&meta, settings.logLevel, os.Stderr)
	collector.SetRoom(meta.Room)

	parts := sessionParts{
		settings:  settings,
		transport: conn,
		sink:      conn,
		meta:      meta,
		logger:    logger,
		metrics:   collector,
	}

	var b *bridge.Bridge
	var ready func(bool)
	if settings.bridge.Listen != "" {
		bc := settings.bridge
		bc.Logger = logger.With("bridge")
		bc.OnReady = func(r bool) {
			if ready != nil {
				ready(r)
			}
		}
		b = bridge.New(bc)
		parts.sink = frame.Sink(b)
		parts.renderer = mode.Renderer(b)
	}

	sess, pub, err := newSession(parts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create session: %v", err), exitConfigError)
	}
	ready = sess.SetRendererReady
	conn.OnAction(sess.HandleAction)

	if err := sess.Start(ctx); err != nil {
		_ = sess.Close()
		closePublisher(pub, logger)
		return fmt.Errorf("failed to start session: %w", err)
	}
	if b == nil {
		// Frames play over the pipe; the sidecar's renderer is always attached.
		sess.SetRendererReady(true)
	}

	bridgeDone := make(chan error, 1)
	bridgeCtx, stopBridge := context.WithCancel(ctx)
	defer stopBridge()
	if b != nil {
		go func() { bridgeDone <- b.ListenAndServe(bridgeCtx) }()
	} else {
		close(bridgeDone)
	}

	logger.Info("session running", map[string]any{
		"identity": meta.Identity,
		"room":     meta.Room,
		"bridge":   settings.bridge.Listen,
		"adapter":  adapterName,
	})

	serveErr := conn.Serve(ctx)

	_ = sess.Close()
	stopBridge()
	if berr := <-bridgeDone; berr != nil {
		logger.Warn("bridge stopped with error", map[string]any{"error": berr.Error()})
	}
	closePublisher(pub, logger)

	m := collector.Snapshot()
	summary := map[string]any{
		"entries":         len(sess.Snapshot().Transcript),
		"frames_received": m.FramesReceived,
		"frames_played":   m.QueueDequeued,
		"frames_dropped":  m.QueueDropped,
		"chat_messages":   m.ChatMessages,
		"rpc_failures":    m.RPCFailures,
	}
	if b != nil {
		st := b.Stats()
		summary["bridge_sent"] = st.Sent
		summary["bridge_dropped"] = st.Dropped
	}
	logger.Info("session finished", summary)

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return cli.Exit(fmt.Sprintf("transport failed: %v", serveErr), exitTransportError)
	}
	return cli.Exit("", exitSuccess)
}

// closePublisher drains pending transcript publishes.
func closePublisher(pub *adapter.Publisher, logger *log.Logger) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publisherDrainTimeout)
	defer cancel()
	if err := pub.Close(ctx); err != nil {
		logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
	}
}
