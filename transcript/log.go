// Package transcript reconciles chat messages, streamed transcriptions and
// detail annotations into one ordered, id-deduplicated conversation log.
//
// Everything except Reconciler is a value type: operations return a new value
// and never mutate the receiver, so the session loop can hold them in an
// immutable state snapshot.
package transcript

import (
	"slices"

	"github.com/pithecene-io/mirabel/types"
)

// Log is an ordered transcript with at most one entry per id.
// Entries are kept in ascending TimestampMs order, ties in insertion order.
// The zero value is an empty log.
type Log struct {
	entries []types.TranscriptEntry
}

// NewLog builds a log from entries, dropping later duplicates of an id.
func NewLog(entries ...types.TranscriptEntry) Log {
	var l Log
	for _, e := range entries {
		if l.Has(e.ID) {
			continue
		}
		l = l.Upsert(e)
	}
	return l
}

// Len returns the number of entries.
func (l Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in render order.
func (l Log) Entries() []types.TranscriptEntry {
	return slices.Clone(l.entries)
}

// Get returns the entry with the given id.
func (l Log) Get(id string) (types.TranscriptEntry, bool) {
	if i := l.index(id); i >= 0 {
		return l.entries[i], true
	}
	return types.TranscriptEntry{}, false
}

// Has reports whether an entry with the given id exists.
func (l Log) Has(id string) bool {
	return l.index(id) >= 0
}

// Upsert returns a log with e inserted, or replacing the entry with the same id.
// A replaced entry keeps its position among equal timestamps.
func (l Log) Upsert(e types.TranscriptEntry) Log {
	next := slices.Clone(l.entries)
	if i := l.index(e.ID); i >= 0 {
		next[i] = e
	} else {
		next = append(next, e)
	}
	slices.SortStableFunc(next, func(a, b types.TranscriptEntry) int {
		switch {
		case a.TimestampMs < b.TimestampMs:
			return -1
		case a.TimestampMs > b.TimestampMs:
			return 1
		default:
			return 0
		}
	})
	return Log{entries: next}
}

// ClearDetail returns a log with DetailTopic removed from entry id.
// Reports false if the entry does not exist or carried no topic.
func (l Log) ClearDetail(id string) (Log, bool) {
	i := l.index(id)
	if i < 0 || l.entries[i].DetailTopic == "" {
		return l, false
	}
	next := slices.Clone(l.entries)
	next[i].DetailTopic = ""
	return Log{entries: next}, true
}

func (l Log) index(id string) int {
	return slices.IndexFunc(l.entries, func(e types.TranscriptEntry) bool {
		return e.ID == id
	})
}
