// Package types defines core domain types for the mirabel session core.
//
//nolint:revive // types is a common Go package naming convention
package types

// Speaker labels attached to transcript entries.
const (
	SpeakerUser  = "You"
	SpeakerAgent = "Agent"
)

// ChatIDPrefix namespaces discrete chat entries so they can never collide
// with transcription segment or stream identifiers.
const ChatIDPrefix = "chat-"

// TranscriptEntry is one line of the conversation log.
//
// ID is unique within a session. Streamed entries use the segment id (falling
// back to the stream id); discrete chat entries use ChatIDPrefix + message id
// (falling back to the timestamp).
type TranscriptEntry struct {
	// ID is the entry identity.
	ID string `json:"id" yaml:"id" msgpack:"id"`
	// Text is the current text, including the pending sentinel while streaming.
	Text string `json:"text" yaml:"text" msgpack:"text"`
	// IsUser is true for locally authored entries.
	IsUser bool `json:"is_user" yaml:"is_user" msgpack:"is_user"`
	// TimestampMs orders entries in the rendered transcript.
	TimestampMs int64 `json:"timestamp_ms" yaml:"timestamp_ms" msgpack:"timestamp_ms"`
	// SpeakerLabel is the display label ("You" or "Agent").
	SpeakerLabel string `json:"speaker" yaml:"speaker" msgpack:"speaker"`
	// DetailTopic is the attached annotation, empty when none.
	DetailTopic string `json:"detail_topic,omitempty" yaml:"detail_topic,omitempty" msgpack:"detail_topic,omitempty"`
	// Final is true once the writing stream has ended. That stream can no
	// longer change the entry; a later stream for the same segment can.
	Final bool `json:"final" yaml:"final" msgpack:"final"`
	// StreamID is the stream that last wrote a streamed entry.
	StreamID string `json:"stream_id,omitempty" yaml:"stream_id,omitempty" msgpack:"stream_id,omitempty"`
}

// SpeakerFor returns the speaker label for an entry author.
func SpeakerFor(isUser bool) string {
	if isUser {
		return SpeakerUser
	}
	return SpeakerAgent
}
