// Package agent tracks the remote agent's activity state and issues the
// outbound RPCs addressed to it.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/rpc"
	"github.com/pithecene-io/mirabel/types"
)

// ErrAgentNotFound is returned when no remote participant carries the agent prefix.
var ErrAgentNotFound = errors.New("agent participant not found")

// Tracker is a last-write-wins holder for the agent activity state.
// The zero value has no state.
type Tracker struct {
	state types.AgentActivityState
}

// State returns the latest state; ok is false until the first update.
func (t Tracker) State() (state types.AgentActivityState, ok bool) {
	return t.state, t.state != ""
}

// Apply returns a tracker holding s.
func (t Tracker) Apply(s types.AgentActivityState) Tracker {
	return Tracker{state: s}
}

// Caller is the subset of the transport used to reach the agent.
type Caller interface {
	RemoteParticipants() []string
	PerformRPC(ctx context.Context, destination, method, payload string) (string, error)
}

// Link addresses RPCs to the single remote agent participant.
type Link struct {
	caller  Caller
	prefix  string
	logger  *log.Logger
	metrics *metrics.Collector
}

// NewLink creates a Link. An empty prefix uses types.DefaultAgentPrefix.
func NewLink(caller Caller, prefix string, logger *log.Logger, m *metrics.Collector) *Link {
	if prefix == "" {
		prefix = types.DefaultAgentPrefix
	}
	return &Link{caller: caller, prefix: prefix, logger: logger, metrics: m}
}

// Find returns the identity of the first remote participant with the agent prefix.
func (l *Link) Find() (string, error) {
	for _, id := range l.caller.RemoteParticipants() {
		if types.IsAgentIdentity(id, l.prefix) {
			return id, nil
		}
	}
	return "", ErrAgentNotFound
}

// Interrupt asks the agent to stop speaking.
func (l *Link) Interrupt(ctx context.Context) error {
	return l.call(ctx, rpc.MethodInterruptAgent, "")
}

// NotifyMode tells the agent which mode the user switched to.
func (l *Link) NotifyMode(ctx context.Context, mode types.SessionMode, shouldInterrupt bool) error {
	payload, err := rpc.UserModeChanged{Mode: mode, ShouldInterrupt: shouldInterrupt}.Encode()
	if err != nil {
		return err
	}
	return l.call(ctx, rpc.MethodUserModeChanged, payload)
}

func (l *Link) call(ctx context.Context, method, payload string) error {
	dest, err := l.Find()
	if err != nil {
		l.metrics.IncAgentMissing()
		l.logger.Warn("agent not found, skipping rpc", map[string]any{
			"method": method,
		})
		return err
	}

	if _, err := l.caller.PerformRPC(ctx, dest, method, payload); err != nil {
		l.metrics.IncRPCFailures()
		l.logger.Warn("agent rpc failed", map[string]any{
			"method":      method,
			"destination": dest,
			"error":       err.Error(),
		})
		return fmt.Errorf("%s to %s: %w", method, dest, err)
	}

	l.logger.Debug("agent rpc ok", map[string]any{
		"method":      method,
		"destination": dest,
	})
	return nil
}
