package frame

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/mirabel/log"
)

// DefaultTick is the playback period (about 60 Hz).
const DefaultTick = 16670 * time.Microsecond

// rateEvery controls how often the estimated playback rate is logged.
const rateEvery = 20

// Sink receives payloads for playback, in delivery order.
type Sink interface {
	Play(payload string) error
}

// PrioritySink is a Sink with an out-of-band lane that overtakes queued plays.
type PrioritySink interface {
	Sink
	PlayNow(payload string) error
}

// SchedulerStats reports dequeue timing.
type SchedulerStats struct {
	Dequeued int64
	First    time.Time
	Last     time.Time
}

// Rate returns the observed dequeue rate in payloads per second.
func (s SchedulerStats) Rate() float64 {
	elapsed := s.Last.Sub(s.First).Seconds()
	if s.Dequeued < 2 || elapsed <= 0 {
		return 0
	}
	return float64(s.Dequeued-1) / elapsed
}

// Scheduler pops at most one payload per tick and hands it to the sink.
// An empty queue makes the tick a no-op.
type Scheduler struct {
	queue  *Queue
	sink   Sink
	tick   time.Duration
	now    func() time.Time
	logger *log.Logger

	mu        sync.Mutex
	latest    Payload
	hasLatest bool
	stats     SchedulerStats

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Tick is the playback period. Zero uses DefaultTick.
	Tick time.Duration
	// Now is the clock used for stats. Nil uses time.Now.
	Now    func() time.Time
	Logger *log.Logger
}

// NewScheduler creates a Scheduler draining q into sink.
func NewScheduler(q *Queue, sink Sink, cfg SchedulerConfig) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		queue:  q,
		sink:   sink,
		tick:   cfg.Tick,
		now:    cfg.Now,
		logger: cfg.Logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Tick performs one scheduler step. Reports whether a payload was played.
func (s *Scheduler) Tick() bool {
	p, ok := s.queue.Pop()
	if !ok {
		return false
	}

	s.mu.Lock()
	s.latest = p
	s.hasLatest = true
	now := s.now()
	if s.stats.Dequeued == 0 {
		s.stats.First = now
	}
	s.stats.Last = now
	s.stats.Dequeued++
	stats := s.stats
	s.mu.Unlock()

	if s.sink != nil {
		if err := s.sink.Play(p.PlaybackString()); err != nil {
			s.logger.Warn("playback sink failed", map[string]any{
				"seq":   p.Seq,
				"kind":  p.Kind.String(),
				"error": err.Error(),
			})
		}
	}

	if stats.Dequeued%rateEvery == 0 {
		s.logger.Debug("frame playback", map[string]any{
			"dequeued":  stats.Dequeued,
			"rate_hz":   stats.Rate(),
			"queue_len": s.queue.Len(),
		})
	}
	return true
}

// Drain ticks until the queue is empty and returns the number played.
func (s *Scheduler) Drain() int {
	n := 0
	for s.Tick() {
		n++
	}
	return n
}

// Latest returns the most recently played payload.
func (s *Scheduler) Latest() (Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

// Stats returns dequeue timing stats.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run ticks on the configured period until ctx is done or Stop is called.
// Run must be called at most once.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Stop ends Run. Safe to call more than once, and before or without Run.
// Wait on Done to observe Run returning.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}
