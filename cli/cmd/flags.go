// Package cmd provides CLI commands for the mirabel binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mirabel/bridge"
	"github.com/pithecene-io/mirabel/frame"
	"github.com/pithecene-io/mirabel/transport"
	"github.com/pithecene-io/mirabel/types"
)

// Shared flags for read-only output.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for replay.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (replay only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// SessionFlags returns the flags that configure a session. Each overrides
// the matching mirabel.yaml value when set.
func SessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to mirabel.yaml",
		},
		&cli.StringFlag{
			Name:  "identity",
			Usage: "Local participant identity (generated user-<hex> if empty)",
		},
		&cli.StringFlag{
			Name:  "room",
			Usage: "Room name (generated <room-prefix>-<hex> if empty)",
		},
		&cli.StringFlag{
			Name:  "room-prefix",
			Usage: "Prefix for generated room names",
			Value: DefaultRoomPrefix,
		},
		&cli.StringFlag{
			Name:  "agent-prefix",
			Usage: "Identity prefix of the remote agent",
			Value: types.DefaultAgentPrefix,
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "info",
		},
		// Frame pipeline flags
		&cli.IntFlag{
			Name:  "retain-every",
			Usage: "Keep one of every N animation frames",
			Value: frame.DefaultRetainEvery,
		},
		&cli.DurationFlag{
			Name:  "tick",
			Usage: "Frame scheduler period",
			Value: frame.DefaultTick,
		},
		&cli.IntFlag{
			Name:  "queue-capacity",
			Usage: "Frame queue bound (0 = unbounded)",
			Value: frame.DefaultQueueCapacity,
		},
		&cli.StringFlag{
			Name:  "overflow",
			Usage: "Full queue policy: drop_newest or drop_oldest",
			Value: string(frame.DropNewest),
		},
		// Transport flags
		&cli.DurationFlag{
			Name:  "rpc-timeout",
			Usage: "Timeout for RPCs awaiting the sidecar",
			Value: transport.DefaultRPCTimeout,
		},
		// Adapter flags
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Transcript adapter: redis or webhook (empty disables)",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.StringFlag{
			Name:  "adapter-stream",
			Usage: "Redis stream key receiving every entry (optional)",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retry attempts",
			Value: 3,
		},
	}
}

// BridgeFlags configure the websocket playback bridge (run only).
func BridgeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "bridge-listen",
			Usage: "Address for the renderer websocket bridge (empty plays over the pipe)",
		},
		&cli.StringFlag{
			Name:  "bridge-path",
			Usage: "Websocket endpoint path",
			Value: bridge.DefaultPath,
		},
		&cli.DurationFlag{
			Name:  "bridge-write-timeout",
			Usage: "Per-message write timeout to the renderer",
			Value: bridge.DefaultWriteTimeout,
		},
		&cli.DurationFlag{
			Name:  "bridge-ping-interval",
			Usage: "Renderer keepalive ping interval",
			Value: bridge.DefaultPingInterval,
		},
	}
}
