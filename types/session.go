package types

import (
	"context"
	"errors"
	"strings"
)

// DefaultAgentPrefix is the identity prefix that marks the remote agent participant.
const DefaultAgentPrefix = "agent"

// IsAgentIdentity returns true if identity names an agent participant.
func IsAgentIdentity(identity, prefix string) bool {
	if prefix == "" {
		prefix = DefaultAgentPrefix
	}
	return strings.HasPrefix(identity, prefix)
}

// SessionMeta identifies a session for logging and notifications.
type SessionMeta struct {
	// SessionID is generated per process run.
	SessionID string
	// Room is the room name, informational.
	Room string
	// Identity is the local participant identity.
	Identity string
}

// Validate checks required fields.
func (m *SessionMeta) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id is required")
	}
	if m.Identity == "" {
		return errors.New("identity is required")
	}
	return nil
}

// ChatEvent is a discrete chat message as seen by the core.
type ChatEvent struct {
	ID           string
	FromIdentity string
	Message      string
	TimestampMs  int64
}

// StreamInfo is the header of an incremental text stream.
type StreamInfo struct {
	ID          string
	Topic       string
	Participant string
	Attributes  map[string]string
	TimestampMs int64
}

// ChunkReader yields the text chunks of one stream in arrival order.
// Next returns io.EOF once the stream has ended cleanly.
type ChunkReader interface {
	Next(ctx context.Context) (string, error)
}

// RPCInvocation is an inbound RPC call.
type RPCInvocation struct {
	RequestID string
	Method    string
	Caller    string
	Payload   string
}

// Status line values derived from session state.
const (
	StatusConnecting = "connecting"
	StatusMuted      = "muted"
	StatusThinking   = "thinking"
	StatusAsk        = "ask"
)

// Snapshot is a read-only view of session state handed to rendering collaborators.
type Snapshot struct {
	Transcript        []TranscriptEntry  `json:"transcript" yaml:"transcript" msgpack:"transcript"`
	PendingTopic      string             `json:"pending_topic,omitempty" yaml:"pending_topic,omitempty" msgpack:"pending_topic,omitempty"`
	AgentState        AgentActivityState `json:"agent_state,omitempty" yaml:"agent_state,omitempty" msgpack:"agent_state,omitempty"`
	Mode              SessionMode        `json:"mode" yaml:"mode" msgpack:"mode"`
	AvatarMessage     *TranscriptEntry   `json:"avatar_message,omitempty" yaml:"avatar_message,omitempty" msgpack:"avatar_message,omitempty"`
	MicrophoneEnabled bool               `json:"microphone_enabled" yaml:"microphone_enabled" msgpack:"microphone_enabled"`
	RendererReady     bool               `json:"renderer_ready" yaml:"renderer_ready" msgpack:"renderer_ready"`
	Status            string             `json:"status" yaml:"status" msgpack:"status"`
}
