package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/mirabel/adapter"
	"github.com/pithecene-io/mirabel/adapter/redis"
	"github.com/pithecene-io/mirabel/adapter/webhook"
	"github.com/pithecene-io/mirabel/bridge"
	mirabelconfig "github.com/pithecene-io/mirabel/cli/config"
	"github.com/pithecene-io/mirabel/frame"
	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/mode"
	"github.com/pithecene-io/mirabel/session"
	"github.com/pithecene-io/mirabel/types"
)

// DefaultRoomPrefix prefixes generated room names.
const DefaultRoomPrefix = "kiosk"

// adapterChoice is the resolved adapter configuration.
type adapterChoice struct {
	typ     string
	url     string
	channel string
	stream  string
	headers map[string]string
	timeout time.Duration
	retries int
}

// sessionSettings is the merged result of mirabel.yaml and CLI flags.
type sessionSettings struct {
	identity    string
	room        string
	agentPrefix string
	logLevel    zapcore.Level
	frames      frame.Config
	rpcTimeout  time.Duration
	bridge      bridge.Config
	adapter     adapterChoice
}

// loadConfig reads --config when set. A nil config means no file.
func loadConfig(c *cli.Context) (*mirabelconfig.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	return mirabelconfig.Load(path)
}

// resolveSettings merges cfg under the CLI flags. Missing identity and room
// are generated.
func resolveSettings(c *cli.Context, cfg *mirabelconfig.Config) (*sessionSettings, error) {
	s := &sessionSettings{
		identity:    resolveString(c, "identity", configVal(cfg, func(c *mirabelconfig.Config) string { return c.Identity })),
		room:        resolveString(c, "room", configVal(cfg, func(c *mirabelconfig.Config) string { return c.Room })),
		agentPrefix: resolveString(c, "agent-prefix", configVal(cfg, func(c *mirabelconfig.Config) string { return c.AgentPrefix })),
		rpcTimeout:  resolveDuration(c, "rpc-timeout", configVal(cfg, func(c *mirabelconfig.Config) time.Duration { return c.Transport.RPCTimeout.Duration })),
	}

	level, err := log.ParseLevel(resolveString(c, "log-level", configVal(cfg, func(c *mirabelconfig.Config) string { return c.LogLevel })))
	if err != nil {
		return nil, err
	}
	s.logLevel = level

	if s.identity == "" {
		s.identity = generateIdentity()
	}
	if s.room == "" {
		prefix := resolveString(c, "room-prefix", configVal(cfg, func(c *mirabelconfig.Config) string { return c.RoomPrefix }))
		if prefix == "" {
			prefix = DefaultRoomPrefix
		}
		s.room = generateRoom(prefix)
	}

	// Frames
	overflow := frame.Overflow(resolveString(c, "overflow", configVal(cfg, func(c *mirabelconfig.Config) string { return c.Frames.Overflow })))
	switch overflow {
	case frame.DropNewest, frame.DropOldest:
	default:
		return nil, fmt.Errorf("invalid overflow: %s (must be drop_newest or drop_oldest)", overflow)
	}
	retainEvery := resolveInt(c, "retain-every", configVal(cfg, func(c *mirabelconfig.Config) int { return c.Frames.RetainEvery }))
	if retainEvery < 1 {
		return nil, fmt.Errorf("--retain-every must be >= 1, got %d", retainEvery)
	}
	capacity := c.Int("queue-capacity")
	if !c.IsSet("queue-capacity") && cfg != nil && cfg.Frames.QueueCapacity != nil {
		capacity = *cfg.Frames.QueueCapacity
	}
	if capacity < 0 {
		return nil, fmt.Errorf("--queue-capacity must be >= 0, got %d", capacity)
	}
	s.frames = frame.Config{
		RetainEvery:   retainEvery,
		Tick:          resolveDuration(c, "tick", configVal(cfg, func(c *mirabelconfig.Config) time.Duration { return c.Frames.Tick.Duration })),
		QueueCapacity: capacity,
		Overflow:      overflow,
	}

	// Bridge (run only; flags are absent on replay)
	s.bridge = bridge.Config{
		Listen:       resolveString(c, "bridge-listen", configVal(cfg, func(c *mirabelconfig.Config) string { return c.Bridge.Listen })),
		Path:         resolveString(c, "bridge-path", configVal(cfg, func(c *mirabelconfig.Config) string { return c.Bridge.Path })),
		WriteTimeout: resolveDuration(c, "bridge-write-timeout", configVal(cfg, func(c *mirabelconfig.Config) time.Duration { return c.Bridge.WriteTimeout.Duration })),
		PingInterval: resolveDuration(c, "bridge-ping-interval", configVal(cfg, func(c *mirabelconfig.Config) time.Duration { return c.Bridge.PingInterval.Duration })),
	}

	// Adapter
	choice := adapterChoice{
		typ:     resolveString(c, "adapter", configVal(cfg, func(c *mirabelconfig.Config) string { return c.Adapter.Type })),
		url:     resolveString(c, "adapter-url", configVal(cfg, func(c *mirabelconfig.Config) string { return c.Adapter.URL })),
		channel: resolveString(c, "adapter-channel", configVal(cfg, func(c *mirabelconfig.Config) string { return c.Adapter.Channel })),
		stream:  resolveString(c, "adapter-stream", configVal(cfg, func(c *mirabelconfig.Config) string { return c.Adapter.Stream })),
		timeout: resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *mirabelconfig.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		retries: c.Int("adapter-retries"),
	}
	if !c.IsSet("adapter-retries") && cfg != nil && cfg.Adapter.Retries != nil {
		choice.retries = *cfg.Adapter.Retries
	}
	headers, err := parseHeaders(c.StringSlice("adapter-header"))
	if err != nil {
		return nil, err
	}
	choice.headers = mergeHeaders(configVal(cfg, func(c *mirabelconfig.Config) map[string]string { return c.Adapter.Headers }), headers)
	switch choice.typ {
	case "":
	case "redis", "webhook":
		if choice.url == "" {
			return nil, fmt.Errorf("--adapter-url is required for %s adapter", choice.typ)
		}
	default:
		return nil, fmt.Errorf("invalid adapter: %s (must be redis or webhook)", choice.typ)
	}
	s.adapter = choice

	return s, nil
}

// parseHeaders parses key=value pairs from --adapter-header.
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (want key=value)", pair)
		}
		headers[strings.TrimSpace(k)] = v
	}
	return headers, nil
}

// mergeHeaders layers CLI headers over config headers.
func mergeHeaders(base, over map[string]string) map[string]string {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}

// resolveString returns the CLI value when set, else the config value when
// non-empty, else the flag default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

// resolveInt is resolveString for int flags. Zero config values fall through.
func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

// resolveDuration is resolveString for duration flags.
func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}

// configVal extracts a value from a possibly nil config.
func configVal[T any](cfg *mirabelconfig.Config, get func(*mirabelconfig.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

func generateIdentity() string {
	return "user-" + hexID(12)
}

func generateRoom(prefix string) string {
	return prefix + "-" + hexID(8)
}

// hexID returns the first n hex digits of a random uuid.
func hexID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// buildAdapter creates the configured adapter, or nil when none is set.
func buildAdapter(choice adapterChoice) (adapter.Adapter, error) {
	switch choice.typ {
	case "":
		return nil, nil
	case "redis":
		return redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Stream:  choice.stream,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter: %s", choice.typ)
	}
}

// sessionParts is what newSession wires together.
type sessionParts struct {
	settings  *sessionSettings
	transport session.Transport
	sink      frame.Sink
	renderer  mode.Renderer
	meta      types.SessionMeta
	logger    *log.Logger
	metrics   *metrics.Collector
}

// newSession builds the session and, when an adapter is configured, the
// publisher that receives finalized entries. The publisher may be nil.
func newSession(p sessionParts) (*session.Session, *adapter.Publisher, error) {
	cfg := session.Config{
		Transport:   p.transport,
		AgentPrefix: p.settings.agentPrefix,
		Frames:      p.settings.frames,
		Renderer:    p.renderer,
		Logger:      p.logger,
		Metrics:     p.metrics,
	}
	cfg.Frames.Sink = p.sink

	a, err := buildAdapter(p.settings.adapter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create adapter: %w", err)
	}
	var pub *adapter.Publisher
	if a != nil {
		pub, err = adapter.NewPublisher(adapter.PublisherConfig{
			Adapter: a,
			Meta:    p.meta,
			Logger:  p.logger.With("adapter"),
			Metrics: p.metrics,
		})
		if err != nil {
			return nil, nil, errors.Join(err, a.Close())
		}
		cfg.Notifier = pub
	}

	sess, err := session.New(cfg)
	if err != nil {
		if pub != nil {
			_ = pub.Close(context.Background())
		}
		return nil, nil, err
	}
	return sess, pub, nil
}
