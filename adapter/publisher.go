package adapter

import (
	"context"
	"errors"
	"sync"

	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/types"
)

// DefaultBuffer bounds events waiting for publication.
const DefaultBuffer = 64

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Adapter Adapter
	Meta    types.SessionMeta
	// Buffer bounds pending events. Zero uses DefaultBuffer.
	Buffer  int
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// Publisher publishes finalized entries through an Adapter on its own
// goroutine. Notify never blocks: when the buffer is full the entry is
// dropped with a warning.
type Publisher struct {
	adapter Adapter
	meta    types.SessionMeta
	logger  *log.Logger
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	events chan *TranscriptEntryEvent
	done   chan struct{}
}

// NewPublisher starts a Publisher.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("publisher requires an adapter")
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		adapter: cfg.Adapter,
		meta:    cfg.Meta,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan *TranscriptEntryEvent, cfg.Buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// Notify queues entry for publication.
func (p *Publisher) Notify(entry types.TranscriptEntry) {
	event := NewTranscriptEntryEvent(p.meta, entry)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- event:
	default:
		p.metrics.IncNotifyFailures()
		p.logger.Warn("transcript notification dropped, buffer full", map[string]any{
			"entry_id": entry.ID,
		})
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.events {
		if err := p.adapter.Publish(p.ctx, event); err != nil {
			p.metrics.IncNotifyFailures()
			p.logger.Warn("transcript notification failed", map[string]any{
				"entry_id": event.EntryID,
				"error":    err.Error(),
			})
			continue
		}
		p.logger.Debug("transcript notification published", map[string]any{
			"entry_id": event.EntryID,
		})
	}
}

// Close stops accepting entries and waits for pending ones to publish until
// ctx is done, then abandons the rest and closes the adapter.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	var err error
	select {
	case <-p.done:
	case <-ctx.Done():
		p.cancel()
		<-p.done
		err = ctx.Err()
	}
	p.cancel()
	if cerr := p.adapter.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
