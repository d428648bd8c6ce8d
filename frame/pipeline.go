package frame

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
)

// Defaults for Config.
const (
	DefaultRetainEvery   = 3
	DefaultQueueCapacity = 120
)

// logEvery throttles per-frame debug logging.
const logEvery = 30

// Config configures a Pipeline.
type Config struct {
	// AgentPrefix identifies the agent sender. Empty uses the default.
	AgentPrefix string
	// RetainEvery is the downsample factor. Zero uses DefaultRetainEvery.
	RetainEvery int
	// Tick is the scheduler period. Zero uses DefaultTick.
	Tick time.Duration
	// QueueCapacity bounds the queue; zero means unbounded.
	QueueCapacity int
	Overflow      Overflow
	Sink          Sink
	Now           func() time.Time
	Logger        *log.Logger
	Metrics       *metrics.Collector
}

// Pipeline wires classification, downsampling, the queue and the scheduler.
// Ingest and Interrupt may be called from any goroutine.
type Pipeline struct {
	prefix  string
	sink    Sink
	logger  *log.Logger
	metrics *metrics.Collector

	mu      sync.Mutex // serializes the producer side
	down    *Downsampler
	arrived int64

	queue *Queue
	sched *Scheduler
}

// NewPipeline creates a Pipeline. The scheduler is not started.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.RetainEvery == 0 {
		cfg.RetainEvery = DefaultRetainEvery
	}
	q, err := NewQueue(QueueConfig{
		Capacity: cfg.QueueCapacity,
		Overflow: cfg.Overflow,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		prefix:  cfg.AgentPrefix,
		sink:    cfg.Sink,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		down:    NewDownsampler(cfg.RetainEvery),
		queue:   q,
		sched: NewScheduler(q, cfg.Sink, SchedulerConfig{
			Tick:   cfg.Tick,
			Now:    cfg.Now,
			Logger: cfg.Logger,
		}),
	}, nil
}

// Ingest handles one data-channel payload from sender.
//
// Animation frames pass through the downsampler; control payloads bypass it
// and are always enqueued; the interrupt marker bypasses the queue entirely.
func (p *Pipeline) Ingest(sender string, data []byte) {
	payload, reason := Classify(sender, p.prefix, data)
	if reason != "" {
		p.metrics.IncFramesDiscarded()
		p.logger.Debug("data payload discarded", map[string]any{
			"sender": sender,
			"size":   len(data),
			"reason": reason,
		})
		return
	}

	if payload.IsInterrupt() {
		p.metrics.IncControlReceived()
		_ = p.Interrupt()
		return
	}

	p.mu.Lock()
	p.arrived++
	payload.Seq = p.arrived
	keep := true
	if payload.Kind == KindFrame {
		p.metrics.IncFramesReceived()
		keep = p.down.Admit()
		if n := p.down.Count(); n%logEvery == 0 {
			p.logger.Debug("frames received", map[string]any{
				"received":  n,
				"queue_len": p.queue.Len(),
			})
		}
	} else {
		p.metrics.IncControlReceived()
	}
	if keep {
		// Push under mu so enqueue order matches arrival order.
		// Rejections are counted and logged by the queue.
		_ = p.queue.Push(payload)
	}
	p.mu.Unlock()
}

// Interrupt delivers the interrupt marker to the sink immediately, using the
// priority lane when the sink has one. Queued payloads are left in place.
func (p *Pipeline) Interrupt() error {
	p.metrics.IncInterrupts()
	if p.sink == nil {
		return nil
	}
	var err error
	if ps, ok := p.sink.(PrioritySink); ok {
		err = ps.PlayNow(InterruptMarker)
	} else {
		err = p.sink.Play(InterruptMarker)
	}
	if err != nil {
		p.logger.Warn("interrupt delivery failed", map[string]any{"error": err.Error()})
	}
	return err
}

// Start runs the scheduler until ctx is done or Close is called.
func (p *Pipeline) Start(ctx context.Context) {
	go p.sched.Run(ctx)
}

// Close stops the scheduler.
func (p *Pipeline) Close() {
	p.sched.Stop()
}

// Queue returns the underlying queue.
func (p *Pipeline) Queue() *Queue {
	return p.queue
}

// Scheduler returns the underlying scheduler.
func (p *Pipeline) Scheduler() *Scheduler {
	return p.sched
}
