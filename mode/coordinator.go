// Package mode coordinates switches between chat and avatar mode.
package mode

import (
	"context"
	"sync"

	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/types"
)

// Agent is the remote side notified of mode changes.
type Agent interface {
	Interrupt(ctx context.Context) error
	NotifyMode(ctx context.Context, mode types.SessionMode, shouldInterrupt bool) error
}

// Microphone toggles the local microphone track.
type Microphone interface {
	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
}

// Renderer is the avatar renderer connection.
type Renderer interface {
	Disconnect() error
}

// Transition describes a completed mode change.
type Transition struct {
	From        types.SessionMode
	To          types.SessionMode
	Interrupted bool
	// Microphone is the microphone state the new mode starts with.
	Microphone bool
	// ClearAvatarMessage resets the avatar view to its greeting.
	ClearAvatarMessage bool
}

// Config configures a Coordinator.
type Config struct {
	Agent      Agent
	Microphone Microphone
	// Renderer is optional.
	Renderer Renderer
	// Apply receives each transition once remote notifications are done.
	Apply func(Transition)
	// ApplyMicrophone receives microphone changes made inside avatar mode.
	ApplyMicrophone func(enabled bool)
	Logger          *log.Logger
}

// Coordinator serializes mode transitions. Remote failures are logged and
// never block a transition.
type Coordinator struct {
	cfg Config

	mu   sync.Mutex
	mode types.SessionMode
}

// NewCoordinator creates a Coordinator starting in chat mode.
func NewCoordinator(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg, mode: types.ModeChat}
}

// Mode returns the current mode.
func (c *Coordinator) Mode() types.SessionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// EnterAvatar switches chat to avatar. The agent is interrupted first only
// when interrupt is set. Reports false if already in avatar mode.
func (c *Coordinator) EnterAvatar(ctx context.Context, interrupt bool) (Transition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == types.ModeAvatar {
		return Transition{}, false
	}
	t := Transition{
		From:               c.mode,
		To:                 types.ModeAvatar,
		Interrupted:        interrupt,
		Microphone:         true,
		ClearAvatarMessage: true,
	}

	if interrupt {
		c.interrupt(ctx, t)
	}
	c.notify(ctx, t)
	c.commit(t)
	c.setMicrophone(ctx, true)
	return t, true
}

// EnterChat switches avatar to chat, always interrupting the agent first.
// Reports false if already in chat mode.
func (c *Coordinator) EnterChat(ctx context.Context) (Transition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == types.ModeChat {
		return Transition{}, false
	}
	t := Transition{
		From:        c.mode,
		To:          types.ModeChat,
		Interrupted: true,
		Microphone:  false,
	}

	c.interrupt(ctx, t)
	c.notify(ctx, t)
	c.commit(t)
	c.setMicrophone(ctx, false)

	if c.cfg.Renderer != nil {
		if err := c.cfg.Renderer.Disconnect(); err != nil {
			c.cfg.Logger.Warn("renderer disconnect failed", map[string]any{"error": err.Error()})
		}
	}
	return t, true
}

// SetMicrophone toggles the microphone inside avatar mode.
// Reports false, doing nothing, in chat mode.
func (c *Coordinator) SetMicrophone(ctx context.Context, enabled bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != types.ModeAvatar {
		c.cfg.Logger.Debug("microphone toggle ignored outside avatar mode", map[string]any{
			"enabled": enabled,
		})
		return false
	}
	c.setMicrophone(ctx, enabled)
	if c.cfg.ApplyMicrophone != nil {
		c.cfg.ApplyMicrophone(enabled)
	}
	return true
}

func (c *Coordinator) interrupt(ctx context.Context, t Transition) {
	if err := c.cfg.Agent.Interrupt(ctx); err != nil {
		c.cfg.Logger.Warn("interrupt before mode change failed", map[string]any{
			"from":  string(t.From),
			"to":    string(t.To),
			"error": err.Error(),
		})
	}
}

func (c *Coordinator) notify(ctx context.Context, t Transition) {
	if err := c.cfg.Agent.NotifyMode(ctx, t.To, t.Interrupted); err != nil {
		c.cfg.Logger.Warn("mode change notification failed", map[string]any{
			"mode":  string(t.To),
			"error": err.Error(),
		})
	}
}

func (c *Coordinator) commit(t Transition) {
	c.mode = t.To
	if c.cfg.Apply != nil {
		c.cfg.Apply(t)
	}
	c.cfg.Logger.Info("mode changed", map[string]any{
		"from":        string(t.From),
		"to":          string(t.To),
		"interrupted": t.Interrupted,
	})
}

func (c *Coordinator) setMicrophone(ctx context.Context, enabled bool) {
	if c.cfg.Microphone == nil {
		return
	}
	if err := c.cfg.Microphone.SetMicrophoneEnabled(ctx, enabled); err != nil {
		c.cfg.Logger.Warn("microphone toggle failed", map[string]any{
			"enabled": enabled,
			"error":   err.Error(),
		})
	}
}
