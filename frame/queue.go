package frame

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pithecene-io/mirabel/log"
)

// Overflow selects what a full queue does with an animation frame.
type Overflow string

const (
	// DropNewest rejects the incoming frame; nothing enqueued is ever dropped.
	DropNewest Overflow = "drop_newest"
	// DropOldest evicts the oldest queued animation frame.
	DropOldest Overflow = "drop_oldest"
)

// ErrQueueFull is returned when an incoming frame is rejected by a full queue.
var ErrQueueFull = errors.New("frame queue full")

// ErrInvalidOverflow is returned for an unknown Overflow value.
var ErrInvalidOverflow = errors.New("invalid overflow policy")

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Capacity bounds the queue. Zero means unbounded.
	Capacity int
	// Overflow applies to animation frames when the queue is full.
	// Default is DropNewest.
	Overflow Overflow
	// Logger is optional.
	Logger *log.Logger
}

// QueueStats reports queue activity.
type QueueStats struct {
	Enqueued int64
	Dequeued int64
	Dropped  int64
	Peak     int64
	Len      int64
}

// Queue is a FIFO of payloads shared by one producer and one consumer.
//
// Drop rules when full:
//   - animation frame, DropNewest: the frame is rejected
//   - animation frame, DropOldest: the oldest queued frame is evicted
//   - control payload: the oldest queued frame is evicted; with none left the
//     control is admitted over capacity
//
// Control payloads are never dropped.
type Queue struct {
	capacity int
	overflow Overflow
	logger   *log.Logger

	mu    sync.Mutex
	items []Payload
	stats QueueStats
}

// NewQueue creates a Queue.
func NewQueue(cfg QueueConfig) (*Queue, error) {
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("queue capacity must be >= 0, got %d", cfg.Capacity)
	}
	if cfg.Overflow == "" {
		cfg.Overflow = DropNewest
	}
	switch cfg.Overflow {
	case DropNewest, DropOldest:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidOverflow, cfg.Overflow)
	}
	return &Queue{
		capacity: cfg.Capacity,
		overflow: cfg.Overflow,
		logger:   cfg.Logger,
		items:    make([]Payload, 0, min(max(cfg.Capacity, 16), 1024)),
	}, nil
}

// Push appends p, applying the drop rules if the queue is full.
// Returns ErrQueueFull if p itself was rejected.
func (q *Queue) Push(p Payload) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.capacity == 0 || len(q.items) < q.capacity {
		q.appendLocked(p)
		return nil
	}

	if p.Kind == KindFrame && q.overflow == DropNewest {
		q.stats.Dropped++
		q.logDrop(p, "queue_full")
		return ErrQueueFull
	}

	if evicted, ok := q.evictOldestFrameLocked(); ok {
		q.logDrop(evicted, "evicted")
		q.appendLocked(p)
		return nil
	}

	if p.Kind == KindControl {
		q.appendLocked(p)
		return nil
	}

	q.stats.Dropped++
	q.logDrop(p, "queue_full")
	return ErrQueueFull
}

// Pop removes and returns the oldest payload.
func (q *Queue) Pop() (Payload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Payload{}, false
	}
	p := q.items[0]
	q.items[0] = Payload{}
	q.items = q.items[1:]
	q.stats.Dequeued++
	return p, true
}

// Len returns the number of queued payloads.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Len = int64(len(q.items))
	return s
}

func (q *Queue) appendLocked(p Payload) {
	q.items = append(q.items, p)
	q.stats.Enqueued++
	if n := int64(len(q.items)); n > q.stats.Peak {
		q.stats.Peak = n
	}
}

// evictOldestFrameLocked drops the oldest animation frame. Caller must hold mu.
func (q *Queue) evictOldestFrameLocked() (Payload, bool) {
	i := slices.IndexFunc(q.items, func(p Payload) bool { return p.Kind == KindFrame })
	if i < 0 {
		return Payload{}, false
	}
	evicted := q.items[i]
	q.items = slices.Delete(q.items, i, i+1)
	q.stats.Dropped++
	return evicted, true
}

func (q *Queue) logDrop(p Payload, reason string) {
	if q.logger == nil {
		return
	}
	q.logger.Warn("frame dropped", map[string]any{
		"seq":      p.Seq,
		"kind":     p.Kind.String(),
		"reason":   reason,
		"capacity": q.capacity,
		"overflow": string(q.overflow),
	})
}
