// Package adapter defines the boundary for publishing finalized transcript
// entries to downstream systems.
//
// The session owns adapter lifecycle through a Publisher; users provide
// configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/mirabel/types"
)

// EventTypeTranscriptEntry is the event_type of every published event.
const EventTypeTranscriptEntry = "transcript_entry"

// TranscriptEntryEvent is the payload published for one finalized entry.
type TranscriptEntryEvent struct {
	ProtocolVersion string `json:"protocol_version"`
	EventType       string `json:"event_type"` // always "transcript_entry"
	SessionID       string `json:"session_id"`
	Room            string `json:"room,omitempty"`
	Identity        string `json:"identity"`
	EntryID         string `json:"entry_id"`
	Text            string `json:"text"`
	IsUser          bool   `json:"is_user"`
	Speaker         string `json:"speaker"`
	DetailTopic     string `json:"detail_topic,omitempty"`
	TimestampMs     int64  `json:"timestamp_ms"`
	Timestamp       string `json:"timestamp"` // ISO 8601
}

// NewTranscriptEntryEvent builds the event for entry.
func NewTranscriptEntryEvent(meta types.SessionMeta, entry types.TranscriptEntry) *TranscriptEntryEvent {
	return &TranscriptEntryEvent{
		ProtocolVersion: types.ProtocolVersion,
		EventType:       EventTypeTranscriptEntry,
		SessionID:       meta.SessionID,
		Room:            meta.Room,
		Identity:        meta.Identity,
		EntryID:         entry.ID,
		Text:            entry.Text,
		IsUser:          entry.IsUser,
		Speaker:         entry.SpeakerLabel,
		DetailTopic:     entry.DetailTopic,
		TimestampMs:     entry.TimestampMs,
		Timestamp:       time.UnixMilli(entry.TimestampMs).UTC().Format(time.RFC3339Nano),
	}
}

// Adapter publishes transcript entry events to a downstream system.
type Adapter interface {
	// Publish sends one event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *TranscriptEntryEvent) error

	// Close releases adapter resources.
	Close() error
}
