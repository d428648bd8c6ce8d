package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mirabel/cli/reader"
	"github.com/pithecene-io/mirabel/cli/render"
	"github.com/pithecene-io/mirabel/iox"
	"github.com/pithecene-io/mirabel/ipc"
	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/transport"
	"github.com/pithecene-io/mirabel/types"
)

// Replay views selectable with --view under --tui.
const (
	viewTranscript = "transcript"
	viewMetrics    = "metrics"
)

// ReplayCommand returns the replay command. It feeds a captured inbound pipe
// through a session without a sidecar and reports the resulting state.
func ReplayCommand() *cli.Command {
	flags := append(SessionFlags(), ReadOnlyFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "output",
			Usage: "Write outbound frames (frames, RPCs, snapshots) to this file",
		},
		&cli.BoolFlag{
			Name:  "summary",
			Usage: "Include a frame-level summary of the capture file",
		},
		&cli.StringFlag{
			Name:  "view",
			Usage: "TUI view: transcript or metrics",
			Value: viewTranscript,
		},
	)
	return &cli.Command{
		Name:      "replay",
		Usage:     "Replay a captured sidecar pipe through a session",
		ArgsUsage: "<capture-file>",
		Flags:     flags,
		Action:    replayAction,
	}
}

func replayAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("replay requires exactly one <capture-file>", exitConfigError)
	}
	path := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	view := c.String("view")
	if view != viewTranscript && view != viewMetrics {
		return cli.Exit(fmt.Sprintf("invalid --view: %s (must be transcript or metrics)", view), exitConfigError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	settings, err := resolveSettings(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer iox.DiscardClose(in)

	out := io.Discard
	if p := c.String("output"); p != "" {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer iox.DiscardClose(f)
		out = f
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := replay(ctx, settings, in, out, os.Stderr)
	if err != nil {
		return err
	}

	if c.Bool("summary") {
		summary, err := reader.SummarizeCapture(path)
		if err != nil {
			return err
		}
		report.Capture = summary
	}

	if c.Bool("tui") {
		return r.RenderTUI("replay_"+view, report)
	}
	return r.Render(report)
}

// replay drives one session from the capture in. Outbound frames are written
// to out and logs to logOut. A capture cut off mid-frame is reported with
// whatever state it produced.
func replay(ctx context.Context, settings *sessionSettings, in io.Reader, out, logOut io.Writer) (*reader.ReplayReport, error) {
	meta := types.SessionMeta{
		SessionID: uuid.NewString(),
		Room:      settings.room,
		Identity:  settings.identity,
	}
	logger := log.NewLoggerWithLevel(&meta, settings.logLevel, logOut)
	defer logger.Sync()

	collector := metrics.NewCollector(meta.SessionID, meta.Room, "replay", settings.adapter.typ)
	conn := transport.New(transport.Config{
		Reader:     in,
		Writer:     out,
		RPCTimeout: settings.rpcTimeout,
		Identity:   settings.identity,
		Room:       settings.room,
		Logger:     logger.With("transport"),
		Metrics:    collector,
	})

	hello, err := conn.Handshake(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay handshake: %w", err)
	}
	meta.Identity = hello.Identity
	meta.Room = hello.Room
	logger = log.NewLoggerWithLevel(&meta, settings.logLevel, logOut)
	collector.SetRoom(meta.Room)

	sess, pub, err := newSession(sessionParts{
		settings:  settings,
		transport: conn,
		sink:      conn,
		meta:      meta,
		logger:    logger,
		metrics:   collector,
	})
	if err != nil {
		return nil, err
	}
	conn.OnAction(sess.HandleAction)
	if err := sess.Start(ctx); err != nil {
		_ = sess.Close()
		closePublisher(pub, logger)
		return nil, err
	}
	sess.SetRendererReady(true)

	serveErr := conn.Serve(ctx)
	var frameErr *ipc.FrameError
	switch {
	case serveErr == nil:
	case errors.As(serveErr, &frameErr) && frameErr.Kind == ipc.FrameErrorPartial:
		logger.Warn("capture truncated mid-frame", map[string]any{"error": serveErr.Error()})
	default:
		_ = sess.Close()
		closePublisher(pub, logger)
		return nil, fmt.Errorf("replay failed: %w", serveErr)
	}

	if err := sess.Flush(ctx); err != nil {
		logger.Warn("session flush failed", map[string]any{"error": err.Error()})
	}
	played := sess.Pipeline().Scheduler().Drain()
	snap := sess.Snapshot()
	_ = sess.Close()
	closePublisher(pub, logger)

	logger.Info("replay finished", map[string]any{
		"entries": len(snap.Transcript),
		"drained": played,
	})
	return reader.NewReplayReport(meta, snap, collector.Snapshot()), nil
}
