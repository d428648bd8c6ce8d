package frame

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/mirabel/log"
)

// recordingSink captures plays in order.
type recordingSink struct {
	mu       sync.Mutex
	plays    []string
	priority []string
	err      error
}

func (s *recordingSink) Play(payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, payload)
	return s.err
}

func (s *recordingSink) PlayNow(payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priority = append(s.priority, payload)
	return s.err
}

func (s *recordingSink) snapshot() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.plays...), append([]string(nil), s.priority...)
}

// plainSink has no priority lane.
type plainSink struct {
	mu    sync.Mutex
	plays []string
}

func (s *plainSink) Play(payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, payload)
	return nil
}

func TestScheduler_OnePayloadPerTick(t *testing.T) {
	q, _ := NewQueue(QueueConfig{})
	sink := &recordingSink{}
	s := NewScheduler(q, sink, SchedulerConfig{Logger: log.NewNop()})

	_ = q.Push(controlPayload(1, "a"))
	_ = q.Push(controlPayload(2, "b"))

	if !s.Tick() {
		t.Fatal("first tick played nothing")
	}
	plays, _ := sink.snapshot()
	if len(plays) != 1 || plays[0] != "a" {
		t.Fatalf("plays = %v, want [a]", plays)
	}
	if q.Len() != 1 {
		t.Errorf("queue len = %d, want 1", q.Len())
	}

	s.Tick()
	if s.Tick() {
		t.Error("tick on empty queue reported a play")
	}
	plays, _ = sink.snapshot()
	if len(plays) != 2 || plays[1] != "b" {
		t.Errorf("plays = %v, want [a b]", plays)
	}

	latest, ok := s.Latest()
	if !ok || latest.Seq != 2 {
		t.Errorf("Latest = %+v,%v, want seq 2", latest, ok)
	}
	if s.Stats().Dequeued != 2 {
		t.Errorf("Dequeued = %d, want 2", s.Stats().Dequeued)
	}
}

func TestScheduler_EmptyTickIsNoop(t *testing.T) {
	q, _ := NewQueue(QueueConfig{})
	s := NewScheduler(q, &recordingSink{}, SchedulerConfig{})
	if s.Tick() {
		t.Error("Tick on empty queue returned true")
	}
	if _, ok := s.Latest(); ok {
		t.Error("Latest set without any dequeue")
	}
}

func TestScheduler_SinkErrorDoesNotStop(t *testing.T) {
	q, _ := NewQueue(QueueConfig{})
	sink := &recordingSink{err: errors.New("closed")}
	s := NewScheduler(q, sink, SchedulerConfig{Logger: log.NewNop()})
	_ = q.Push(controlPayload(1, "a"))
	_ = q.Push(controlPayload(2, "b"))

	if n := s.Drain(); n != 2 {
		t.Errorf("Drain = %d, want 2", n)
	}
}

func TestScheduler_Rate(t *testing.T) {
	base := time.Unix(0, 0)
	var tick int
	q, _ := NewQueue(QueueConfig{})
	s := NewScheduler(q, nil, SchedulerConfig{Now: func() time.Time {
		tick++
		return base.Add(time.Duration(tick-1) * 50 * time.Millisecond)
	}})
	for i := int64(1); i <= 21; i++ {
		_ = q.Push(framePayload(i))
	}
	s.Drain()

	if got := s.Stats().Rate(); got < 19.9 || got > 20.1 {
		t.Errorf("Rate = %v, want ~20", got)
	}
}

func TestScheduler_RunStops(t *testing.T) {
	q, _ := NewQueue(QueueConfig{})
	sink := &recordingSink{}
	s := NewScheduler(q, sink, SchedulerConfig{Tick: time.Millisecond})
	_ = q.Push(controlPayload(1, "a"))

	go s.Run(t.Context())

	deadline := time.After(2 * time.Second)
	for q.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not drain queue")
		case <-time.After(time.Millisecond):
		}
	}

	s.Stop()
	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
