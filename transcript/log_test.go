package transcript

import (
	"testing"

	"github.com/pithecene-io/mirabel/types"
)

func ids(l Log) []string {
	var out []string
	for _, e := range l.Entries() {
		out = append(out, e.ID)
	}
	return out
}

func equalIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestLog_UpsertSortsByTimestamp(t *testing.T) {
	var l Log
	l = l.Upsert(types.TranscriptEntry{ID: "a", TimestampMs: 100, IsUser: true})
	l = l.Upsert(types.TranscriptEntry{ID: "b", TimestampMs: 50})

	equalIDs(t, ids(l), "b", "a")
}

func TestLog_TiesKeepInsertionOrder(t *testing.T) {
	var l Log
	l = l.Upsert(types.TranscriptEntry{ID: "x", TimestampMs: 10})
	l = l.Upsert(types.TranscriptEntry{ID: "y", TimestampMs: 10})
	l = l.Upsert(types.TranscriptEntry{ID: "z", TimestampMs: 5})
	l = l.Upsert(types.TranscriptEntry{ID: "w", TimestampMs: 10})

	equalIDs(t, ids(l), "z", "x", "y", "w")
}

func TestLog_UpsertReplacesSameID(t *testing.T) {
	var l Log
	l = l.Upsert(types.TranscriptEntry{ID: "a", Text: "one", TimestampMs: 1})
	l = l.Upsert(types.TranscriptEntry{ID: "b", Text: "two", TimestampMs: 1})
	l = l.Upsert(types.TranscriptEntry{ID: "a", Text: "uno", TimestampMs: 1})

	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	equalIDs(t, ids(l), "a", "b")
	if e, _ := l.Get("a"); e.Text != "uno" {
		t.Errorf("a.Text = %q, want %q", e.Text, "uno")
	}
}

func TestLog_IsImmutable(t *testing.T) {
	l1 := NewLog(types.TranscriptEntry{ID: "a", TimestampMs: 1})
	l2 := l1.Upsert(types.TranscriptEntry{ID: "b", TimestampMs: 2})

	if l1.Len() != 1 {
		t.Errorf("original log mutated: Len = %d, want 1", l1.Len())
	}
	if l2.Len() != 2 {
		t.Errorf("new log Len = %d, want 2", l2.Len())
	}

	entries := l2.Entries()
	entries[0].Text = "changed"
	if e, _ := l2.Get("a"); e.Text != "" {
		t.Errorf("Entries() leaked internal slice")
	}
}

func TestLog_NewLogDropsDuplicates(t *testing.T) {
	l := NewLog(
		types.TranscriptEntry{ID: "a", Text: "first"},
		types.TranscriptEntry{ID: "a", Text: "second"},
	)
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
	if e, _ := l.Get("a"); e.Text != "first" {
		t.Errorf("Text = %q, want first", e.Text)
	}
}

func TestLog_ClearDetail(t *testing.T) {
	l := NewLog(
		types.TranscriptEntry{ID: "a", DetailTopic: "parking", TimestampMs: 1},
		types.TranscriptEntry{ID: "b", DetailTopic: "menu", TimestampMs: 2},
	)

	next, ok := l.ClearDetail("a")
	if !ok {
		t.Fatal("ClearDetail returned false")
	}
	if e, _ := next.Get("a"); e.DetailTopic != "" {
		t.Errorf("a.DetailTopic = %q, want empty", e.DetailTopic)
	}
	if e, _ := next.Get("b"); e.DetailTopic != "menu" {
		t.Errorf("b.DetailTopic = %q, want menu", e.DetailTopic)
	}
	if e, _ := l.Get("a"); e.DetailTopic != "parking" {
		t.Errorf("original log mutated")
	}

	if _, ok := next.ClearDetail("missing"); ok {
		t.Error("ClearDetail on missing id returned true")
	}
}
