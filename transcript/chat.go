package transcript

import (
	"strconv"
	"strings"

	"github.com/pithecene-io/mirabel/types"
)

// ChatOutcome classifies a chat merge.
type ChatOutcome int

const (
	// ChatMerged means a new entry was inserted.
	ChatMerged ChatOutcome = iota
	// ChatDuplicate means an entry with the same id already existed.
	ChatDuplicate
	// ChatRemote means the message was not locally authored and was ignored.
	ChatRemote
)

// String returns the outcome name for logging.
func (o ChatOutcome) String() string {
	switch o {
	case ChatMerged:
		return "merged"
	case ChatDuplicate:
		return "duplicate"
	case ChatRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ChatMerger merges locally authored chat messages into the transcript.
// Remote text reaches the transcript as transcription, not as chat.
type ChatMerger struct {
	LocalIdentity string
}

// ChatEntryID returns the transcript id for a chat event.
func ChatEntryID(ev types.ChatEvent) string {
	if ev.ID != "" {
		return types.ChatIDPrefix + ev.ID
	}
	return types.ChatIDPrefix + strconv.FormatInt(ev.TimestampMs, 10)
}

// Merge inserts ev as a user entry unless its id is already present.
func (m ChatMerger) Merge(l Log, ev types.ChatEvent) (Log, types.TranscriptEntry, ChatOutcome) {
	if ev.FromIdentity != m.LocalIdentity {
		return l, types.TranscriptEntry{}, ChatRemote
	}
	id := ChatEntryID(ev)
	if existing, ok := l.Get(id); ok {
		return l, existing, ChatDuplicate
	}
	e := types.TranscriptEntry{
		ID:           id,
		Text:         ev.Message,
		IsUser:       true,
		TimestampMs:  ev.TimestampMs,
		SpeakerLabel: types.SpeakerUser,
		Final:        true,
	}
	return l.Upsert(e), e, ChatMerged
}

// NormalizeChat trims outbound chat text; empty means nothing to send.
func NormalizeChat(text string) string {
	return strings.TrimSpace(text)
}
