// Package reader provides the read-side data layer for the mirabel CLI.
//
// It builds the payloads rendered by read-only commands (replay reports,
// capture summaries). Both table/json/yaml rendering and the TUI consume
// the same payloads; there is no TUI-exclusive data.
package reader

import (
	"github.com/pithecene-io/mirabel/metrics"
)

// TranscriptLine is one rendered transcript entry.
type TranscriptLine struct {
	ID          string `json:"id" yaml:"id"`
	Speaker     string `json:"speaker" yaml:"speaker"`
	Text        string `json:"text" yaml:"text"`
	DetailTopic string `json:"detail_topic" yaml:"detail_topic"`
	TimestampMs int64  `json:"timestamp_ms" yaml:"timestamp_ms"`
	Final       bool   `json:"final" yaml:"final"`
}

// SessionSummary is the flat view of the final session state.
type SessionSummary struct {
	SessionID         string `json:"session_id" yaml:"session_id"`
	Room              string `json:"room" yaml:"room"`
	Identity          string `json:"identity" yaml:"identity"`
	Mode              string `json:"mode" yaml:"mode"`
	AgentState        string `json:"agent_state" yaml:"agent_state"`
	Status            string `json:"status" yaml:"status"`
	PendingTopic      string `json:"pending_topic" yaml:"pending_topic"`
	MicrophoneEnabled bool   `json:"microphone_enabled" yaml:"microphone_enabled"`
	Entries           int    `json:"entries" yaml:"entries"`
	FramesPlayed      int64  `json:"frames_played" yaml:"frames_played"`
}

// CaptureSummary describes the frames of a capture file.
type CaptureSummary struct {
	Path         string           `json:"path" yaml:"path"`
	Frames       int64            `json:"frames" yaml:"frames"`
	ByType       map[string]int64 `json:"by_type" yaml:"by_type"`
	DecodeErrors int64            `json:"decode_errors" yaml:"decode_errors"`
	SeqGaps      int64            `json:"seq_gaps" yaml:"seq_gaps"`
	// Truncated is set when the file ends inside a frame.
	Truncated bool `json:"truncated" yaml:"truncated"`
}

// ReplayReport is the payload rendered by `mirabel replay`.
// Table output renders one table per section.
type ReplayReport struct {
	Session    SessionSummary   `json:"session" yaml:"session" table:"section"`
	Transcript []TranscriptLine `json:"transcript" yaml:"transcript" table:"section"`
	Metrics    metrics.Snapshot `json:"metrics" yaml:"metrics" table:"section"`
	Capture    *CaptureSummary  `json:"capture,omitempty" yaml:"capture,omitempty" table:"section"`
}
