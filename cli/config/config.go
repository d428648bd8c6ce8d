package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents a mirabel.yaml configuration file.
// All values are optional and act as defaults for mirabel run flags.
// CLI flags always override config values.
type Config struct {
	Identity    string          `yaml:"identity"`
	Room        string          `yaml:"room"`
	RoomPrefix  string          `yaml:"room_prefix"`
	AgentPrefix string          `yaml:"agent_prefix"`
	LogLevel    string          `yaml:"log_level"`
	Frames      FramesConfig    `yaml:"frames"`
	Transport   TransportConfig `yaml:"transport"`
	Bridge      BridgeConfig    `yaml:"bridge"`
	Adapter     AdapterConfig   `yaml:"adapter"`
}

// FramesConfig holds frame pipeline defaults.
type FramesConfig struct {
	RetainEvery   int      `yaml:"retain_every"`
	Tick          Duration `yaml:"tick"`
	QueueCapacity *int     `yaml:"queue_capacity,omitempty"`
	Overflow      string   `yaml:"overflow"`
}

// TransportConfig holds sidecar pipe defaults.
type TransportConfig struct {
	RPCTimeout Duration `yaml:"rpc_timeout"`
}

// BridgeConfig holds websocket playback bridge defaults.
// An empty Listen disables the bridge.
type BridgeConfig struct {
	Listen       string   `yaml:"listen"`
	Path         string   `yaml:"path"`
	WriteTimeout Duration `yaml:"write_timeout"`
	PingInterval Duration `yaml:"ping_interval"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Stream  string            `yaml:"stream,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "16.67ms", "5s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "16.67ms".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	var errs []error
	switch c.Frames.Overflow {
	case "", "drop_newest", "drop_oldest":
	default:
		errs = append(errs, fmt.Errorf("frames.overflow: unknown policy %q", c.Frames.Overflow))
	}
	if c.Frames.RetainEvery < 0 {
		errs = append(errs, fmt.Errorf("frames.retain_every must be >= 0, got %d", c.Frames.RetainEvery))
	}
	if c.Frames.QueueCapacity != nil && *c.Frames.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("frames.queue_capacity must be >= 0, got %d", *c.Frames.QueueCapacity))
	}
	switch c.Adapter.Type {
	case "":
	case "redis", "webhook":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for %s", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type: unknown adapter %q", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}
	return errors.Join(errs...)
}
