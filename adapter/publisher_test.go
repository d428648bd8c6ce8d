package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/types"
)

type fakeAdapter struct {
	mu     sync.Mutex
	events []*TranscriptEntryEvent
	fail   error
	block  chan struct{}
	closed bool
}

func (f *fakeAdapter) Publish(ctx context.Context, event *TranscriptEntryEvent) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAdapter) snapshot() ([]*TranscriptEntryEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*TranscriptEntryEvent(nil), f.events...), f.closed
}

var testMeta = types.SessionMeta{SessionID: "sess-1", Room: "room-1", Identity: "user-1"}

func TestNewTranscriptEntryEvent(t *testing.T) {
	ev := NewTranscriptEntryEvent(testMeta, types.TranscriptEntry{
		ID:           "SEG",
		Text:         "hello",
		SpeakerLabel: types.SpeakerAgent,
		TimestampMs:  1000,
		DetailTopic:  "booth",
	})
	if ev.EventType != EventTypeTranscriptEntry || ev.ProtocolVersion != types.ProtocolVersion {
		t.Errorf("envelope = %+v", ev)
	}
	if ev.SessionID != "sess-1" || ev.Room != "room-1" || ev.Identity != "user-1" {
		t.Errorf("meta = %+v", ev)
	}
	if ev.EntryID != "SEG" || ev.Speaker != "Agent" || ev.DetailTopic != "booth" || ev.IsUser {
		t.Errorf("entry = %+v", ev)
	}
	if ev.Timestamp != "1970-01-01T00:00:01Z" {
		t.Errorf("Timestamp = %q", ev.Timestamp)
	}
}

func TestPublisher_PublishesInOrder(t *testing.T) {
	fa := &fakeAdapter{}
	p, err := NewPublisher(PublisherConfig{Adapter: fa, Meta: testMeta, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		p.Notify(types.TranscriptEntry{ID: id})
	}
	if err := p.Close(t.Context()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, closed := fa.snapshot()
	if len(events) != 3 || events[0].EntryID != "a" || events[2].EntryID != "c" {
		t.Errorf("events = %v", events)
	}
	if !closed {
		t.Error("adapter not closed")
	}

	// Notify after Close is ignored.
	p.Notify(types.TranscriptEntry{ID: "late"})
	if events, _ := fa.snapshot(); len(events) != 3 {
		t.Errorf("late notify published")
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	fa := &fakeAdapter{block: make(chan struct{})}
	m := metrics.NewCollector("sess-1", "", "", "fake")
	p, err := NewPublisher(PublisherConfig{Adapter: fa, Buffer: 1, Logger: log.NewNop(), Metrics: m})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	// The first entry may be taken by the worker; with it blocked, at most
	// two entries fit (one in flight, one buffered).
	for i := range 5 {
		p.Notify(types.TranscriptEntry{ID: string(rune('a' + i))})
	}
	if n := m.Snapshot().NotifyFailures; n < 3 {
		t.Errorf("NotifyFailures = %d, want >= 3", n)
	}

	close(fa.block)
	if err := p.Close(t.Context()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublisher_CountsAdapterFailures(t *testing.T) {
	fa := &fakeAdapter{fail: errors.New("redis down")}
	m := metrics.NewCollector("sess-1", "", "", "fake")
	p, _ := NewPublisher(PublisherConfig{Adapter: fa, Logger: log.NewNop(), Metrics: m})

	p.Notify(types.TranscriptEntry{ID: "a"})
	p.Notify(types.TranscriptEntry{ID: "b"})
	if err := p.Close(t.Context()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := m.Snapshot().NotifyFailures; n != 2 {
		t.Errorf("NotifyFailures = %d, want 2", n)
	}
}

func TestPublisher_CloseDeadlineAbandons(t *testing.T) {
	fa := &fakeAdapter{block: make(chan struct{})}
	p, _ := NewPublisher(PublisherConfig{Adapter: fa, Logger: log.NewNop()})
	p.Notify(types.TranscriptEntry{ID: "stuck"})

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if err := p.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close = %v, want DeadlineExceeded", err)
	}
	if _, closed := fa.snapshot(); !closed {
		t.Error("adapter not closed")
	}
}

func TestNewPublisher_RequiresAdapter(t *testing.T) {
	if _, err := NewPublisher(PublisherConfig{}); err == nil {
		t.Error("expected error without adapter")
	}
}
