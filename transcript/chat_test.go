package transcript

import (
	"testing"

	"github.com/pithecene-io/mirabel/types"
)

func TestChatEntryID(t *testing.T) {
	tests := []struct {
		name string
		ev   types.ChatEvent
		want string
	}{
		{"with id", types.ChatEvent{ID: "m1", TimestampMs: 5}, "chat-m1"},
		{"timestamp fallback", types.ChatEvent{TimestampMs: 1700000000123}, "chat-1700000000123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChatEntryID(tt.ev); got != tt.want {
				t.Errorf("ChatEntryID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChatMerger_DuplicateIDProducesOneEntry(t *testing.T) {
	m := ChatMerger{LocalIdentity: "user-1"}
	ev := types.ChatEvent{ID: "m1", FromIdentity: "user-1", Message: "hi", TimestampMs: 10}

	l, e, outcome := m.Merge(Log{}, ev)
	if outcome != ChatMerged {
		t.Fatalf("outcome = %v, want merged", outcome)
	}
	if !e.IsUser || e.SpeakerLabel != types.SpeakerUser || e.ID != "chat-m1" {
		t.Errorf("entry = %+v", e)
	}

	l, _, outcome = m.Merge(l, ev)
	if outcome != ChatDuplicate {
		t.Errorf("outcome = %v, want duplicate", outcome)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestChatMerger_IgnoresRemote(t *testing.T) {
	m := ChatMerger{LocalIdentity: "user-1"}
	l, _, outcome := m.Merge(Log{}, types.ChatEvent{ID: "x", FromIdentity: "agent-1", Message: "hello"})
	if outcome != ChatRemote {
		t.Errorf("outcome = %v, want remote", outcome)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
}

func TestChatMerger_SortsByTimestamp(t *testing.T) {
	l := NewLog(types.TranscriptEntry{ID: "b", TimestampMs: 50})
	m := ChatMerger{LocalIdentity: "user-1"}

	l, _, _ = m.Merge(l, types.ChatEvent{ID: "a", FromIdentity: "user-1", TimestampMs: 100})
	l, _, _ = m.Merge(l, types.ChatEvent{ID: "c", FromIdentity: "user-1", TimestampMs: 20})

	equalIDs(t, ids(l), "chat-c", "b", "chat-a")
}

func TestNormalizeChat(t *testing.T) {
	if got := NormalizeChat("   "); got != "" {
		t.Errorf("NormalizeChat(blank) = %q", got)
	}
	if got := NormalizeChat(" hi \n"); got != "hi" {
		t.Errorf("NormalizeChat = %q, want hi", got)
	}
}
