// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single session. It is a leaf
// package with no internal dependencies. Frame queue metrics are absorbed from
// the queue's own stats when the session closes rather than recorded live,
// avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Avatar frames
	FramesReceived  int64 `json:"frames_received" yaml:"frames_received"`
	FramesDiscarded int64 `json:"frames_discarded" yaml:"frames_discarded"`
	ControlReceived int64 `json:"control_received" yaml:"control_received"`
	Interrupts      int64 `json:"interrupts" yaml:"interrupts"`

	// Frame queue (absorbed from frame queue stats at close)
	QueueEnqueued int64 `json:"queue_enqueued" yaml:"queue_enqueued"`
	QueueDequeued int64 `json:"queue_dequeued" yaml:"queue_dequeued"`
	QueueDropped  int64 `json:"queue_dropped" yaml:"queue_dropped"`
	QueuePeak     int64 `json:"queue_peak" yaml:"queue_peak"`

	// Transcript
	TranscriptionStreams int64 `json:"transcription_streams" yaml:"transcription_streams"`
	StreamErrors         int64 `json:"stream_errors" yaml:"stream_errors"`
	ChatMessages         int64 `json:"chat_messages" yaml:"chat_messages"`
	ChatDuplicates       int64 `json:"chat_duplicates" yaml:"chat_duplicates"`
	AnnotationsReplaced  int64 `json:"annotations_replaced" yaml:"annotations_replaced"`

	// RPC
	RPCDecodeErrors int64 `json:"rpc_decode_errors" yaml:"rpc_decode_errors"`
	RPCFailures     int64 `json:"rpc_failures" yaml:"rpc_failures"`
	AgentMissing    int64 `json:"agent_missing" yaml:"agent_missing"`

	// Transport / adapter
	IPCDecodeErrors int64 `json:"ipc_decode_errors" yaml:"ipc_decode_errors"`
	NotifyFailures  int64 `json:"notify_failures" yaml:"notify_failures"`

	// Dimensions (informational, set at construction)
	SessionID string `json:"session_id" yaml:"session_id"`
	Room      string `json:"room,omitempty" yaml:"room,omitempty"`
	Transport string `json:"transport" yaml:"transport"`
	Adapter   string `json:"adapter,omitempty" yaml:"adapter,omitempty"`
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
// transport is "ipc" or "replay"; adapter may be empty.
func NewCollector(sessionID, room, transport, adapter string) *Collector {
	return &Collector{s: Snapshot{
		SessionID: sessionID,
		Room:      room,
		Transport: transport,
		Adapter:   adapter,
	}}
}

func (c *Collector) inc(field func(*Snapshot) *int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*field(&c.s)++
	c.mu.Unlock()
}

// --- Avatar frames ---

// IncFramesReceived records an animation frame from the agent.
func (c *Collector) IncFramesReceived() { c.inc(func(s *Snapshot) *int64 { return &s.FramesReceived }) }

// IncFramesDiscarded records a data payload ignored at classification.
func (c *Collector) IncFramesDiscarded() {
	c.inc(func(s *Snapshot) *int64 { return &s.FramesDiscarded })
}

// IncControlReceived records a control payload from the agent.
func (c *Collector) IncControlReceived() {
	c.inc(func(s *Snapshot) *int64 { return &s.ControlReceived })
}

// IncInterrupts records an interrupt signal forwarded out of band.
func (c *Collector) IncInterrupts() { c.inc(func(s *Snapshot) *int64 { return &s.Interrupts }) }

// --- Transcript ---

// IncTranscriptionStreams records an accepted transcription stream.
func (c *Collector) IncTranscriptionStreams() {
	c.inc(func(s *Snapshot) *int64 { return &s.TranscriptionStreams })
}

// IncStreamErrors records a transcription stream that failed mid-read.
func (c *Collector) IncStreamErrors() { c.inc(func(s *Snapshot) *int64 { return &s.StreamErrors }) }

// IncChatMessages records a chat message merged into the transcript.
func (c *Collector) IncChatMessages() { c.inc(func(s *Snapshot) *int64 { return &s.ChatMessages }) }

// IncChatDuplicates records a chat message whose id was already present.
func (c *Collector) IncChatDuplicates() {
	c.inc(func(s *Snapshot) *int64 { return &s.ChatDuplicates })
}

// IncAnnotationsReplaced records a pending topic overwritten before use.
func (c *Collector) IncAnnotationsReplaced() {
	c.inc(func(s *Snapshot) *int64 { return &s.AnnotationsReplaced })
}

// --- RPC ---

// IncRPCDecodeErrors records an inbound RPC payload that failed to decode.
func (c *Collector) IncRPCDecodeErrors() {
	c.inc(func(s *Snapshot) *int64 { return &s.RPCDecodeErrors })
}

// IncRPCFailures records a failed outbound RPC.
func (c *Collector) IncRPCFailures() { c.inc(func(s *Snapshot) *int64 { return &s.RPCFailures }) }

// IncAgentMissing records an outbound RPC skipped because no agent was present.
func (c *Collector) IncAgentMissing() { c.inc(func(s *Snapshot) *int64 { return &s.AgentMissing }) }

// --- Transport / adapter ---

// IncIPCDecodeErrors records an IPC message decode error.
func (c *Collector) IncIPCDecodeErrors() {
	c.inc(func(s *Snapshot) *int64 { return &s.IPCDecodeErrors })
}

// IncNotifyFailures records an adapter publish that failed after retries.
func (c *Collector) IncNotifyFailures() {
	c.inc(func(s *Snapshot) *int64 { return &s.NotifyFailures })
}

// --- Frame queue (absorbed) ---

// AbsorbQueueStats copies frame queue counters into the collector.
// Called once when the session closes with the final queue stats.
func (c *Collector) AbsorbQueueStats(enqueued, dequeued, dropped, peak int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.QueueEnqueued = enqueued
	c.s.QueueDequeued = dequeued
	c.s.QueueDropped = dropped
	c.s.QueuePeak = peak
	c.mu.Unlock()
}

// SetRoom updates the room dimension once the sidecar has named it.
func (c *Collector) SetRoom(room string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.Room = room
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
