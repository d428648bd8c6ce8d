package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/mirabel/agent"
	"github.com/pithecene-io/mirabel/frame"
	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/mode"
	"github.com/pithecene-io/mirabel/rpc"
	"github.com/pithecene-io/mirabel/transcript"
	"github.com/pithecene-io/mirabel/types"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("session already started")

const (
	eventBuffer = 256
	// coalesceMax bounds how many queued events one snapshot publication covers.
	coalesceMax = 64
)

// Config configures a Session.
type Config struct {
	// Transport is required.
	Transport Transport
	// AgentPrefix identifies the remote agent. Empty uses the default.
	AgentPrefix string
	// Frames configures the frame pipeline; its prefix, logger and metrics
	// are taken from this Config.
	Frames frame.Config
	// Renderer is optional; it is disconnected when leaving avatar mode.
	Renderer mode.Renderer
	// Notifier is optional; it receives finalized entries.
	Notifier Notifier
	// Now is the session clock. Nil uses time.Now.
	Now     func() time.Time
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// Session runs one kiosk session.
type Session struct {
	transport Transport
	publisher StatePublisher
	notifier  Notifier
	logger    *log.Logger
	metrics   *metrics.Collector
	now       func() time.Time

	pipeline   *frame.Pipeline
	coord      *mode.Coordinator
	reconciler *transcript.Reconciler
	scope      Scope

	initial State
	events  chan Event
	snap    atomic.Pointer[types.Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan types.Snapshot
	nextSub int

	ctx       context.Context
	cancel    context.CancelFunc
	started   atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// New creates a Session. Nothing is registered until Start.
func New(cfg Config) (*Session, error) {
	if cfg.Transport == nil {
		return nil, errors.New("session: transport is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	identity := cfg.Transport.LocalIdentity()
	s := &Session{
		transport: cfg.Transport,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		initial:   NewState(identity),
		events:    make(chan Event, eventBuffer),
		subs:      make(map[int]chan types.Snapshot),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	if p, ok := cfg.Transport.(StatePublisher); ok {
		s.publisher = p
	}

	fc := cfg.Frames
	fc.AgentPrefix = cfg.AgentPrefix
	fc.Logger = cfg.Logger.With("frames")
	fc.Metrics = cfg.Metrics
	if fc.Now == nil {
		fc.Now = cfg.Now
	}
	pipeline, err := frame.NewPipeline(fc)
	if err != nil {
		return nil, fmt.Errorf("session: frame pipeline: %w", err)
	}
	s.pipeline = pipeline

	s.coord = mode.NewCoordinator(mode.Config{
		Agent:           agent.NewLink(cfg.Transport, cfg.AgentPrefix, cfg.Logger.With("agent"), cfg.Metrics),
		Microphone:      cfg.Transport,
		Renderer:        cfg.Renderer,
		Apply:           func(t mode.Transition) { s.post(ModeChanged{Transition: t}) },
		ApplyMicrophone: func(enabled bool) { s.post(MicrophoneChanged{Enabled: enabled}) },
		Logger:          cfg.Logger.With("mode"),
	})

	s.reconciler = transcript.NewReconciler(transcript.ReconcilerConfig{
		LocalIdentity: identity,
		Post:          func(u transcript.Update) { s.post(EntryUpdated{Update: u}) },
		Now:           s.nowMs,
		Logger:        cfg.Logger.With("transcript"),
		Metrics:       cfg.Metrics,
	})

	snap := s.initial.Snapshot()
	s.snap.Store(&snap)
	return s, nil
}

// Start registers every handler with the transport, starts the frame
// scheduler and the event loop. A failed registration is logged and the
// session runs without that input.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.register("text stream "+transcript.TopicTranscription, func() (Release, error) {
		return s.transport.RegisterTextStreamHandler(transcript.TopicTranscription, s.reconciler.HandleStream)
	})
	for _, method := range []string{rpc.MethodAgentStateChanged, rpc.MethodShowEventDetails} {
		s.register("rpc "+method, func() (Release, error) {
			return s.transport.RegisterRPCMethod(method, s.handleRPC)
		})
	}
	s.register("chat", func() (Release, error) {
		return s.transport.OnChatMessage(s.handleChat)
	})
	s.register("data", func() (Release, error) {
		return s.transport.OnDataReceived(s.pipeline.Ingest)
	})

	s.pipeline.Start(s.ctx)
	go s.loop()

	s.logger.Info("session started", map[string]any{
		"registrations": s.scope.Len(),
	})
	return nil
}

func (s *Session) register(name string, fn func() (Release, error)) {
	release, err := fn()
	if err != nil {
		s.logger.Error("handler registration failed", map[string]any{
			"handler": name,
			"error":   err.Error(),
		})
		return
	}
	s.scope.Add(release)
}

// Close releases every registration in reverse order, stops the scheduler
// and the loop. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.scope.Close()
		s.pipeline.Close()
		close(s.closed)
		if s.started.Load() {
			s.cancel()
			<-s.done
			<-s.pipeline.Scheduler().Done()
		}

		qs := s.pipeline.Queue().Stats()
		s.metrics.AbsorbQueueStats(qs.Enqueued, qs.Dequeued, qs.Dropped, qs.Peak)

		s.subMu.Lock()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
		s.subMu.Unlock()

		s.logger.Info("session closed", map[string]any{
			"entries":      len(s.Snapshot().Transcript),
			"frames_queue": qs.Len,
		})
	})
	return nil
}

// Done is closed when the event loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the latest published snapshot.
func (s *Session) Snapshot() types.Snapshot {
	return *s.snap.Load()
}

// Pipeline returns the frame pipeline.
func (s *Session) Pipeline() *frame.Pipeline {
	return s.pipeline
}

// Subscribe returns a channel receiving the latest snapshot after every
// change. Slow readers only ever see the newest value. The channel is closed
// by cancel or Close.
func (s *Session) Subscribe() (<-chan types.Snapshot, func()) {
	ch := make(chan types.Snapshot, 1)
	ch <- s.Snapshot()

	s.subMu.Lock()
	select {
	case <-s.closed:
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

// post hands ev to the loop. Reports false once the session is closed.
func (s *Session) post(ev Event) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.closed:
		return false
	case <-s.done:
		return false
	}
}

func (s *Session) loop() {
	defer close(s.done)

	state := s.initial
	for {
		select {
		case <-s.closed:
			return
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			var barriers []chan struct{}
			var changed bool
			state, changed = s.apply(state, ev, &barriers)
		coalesce:
			for range coalesceMax {
				select {
				case ev := <-s.events:
					var c bool
					state, c = s.apply(state, ev, &barriers)
					changed = changed || c
				default:
					break coalesce
				}
			}
			if changed {
				s.publish(state)
			}
			for _, b := range barriers {
				close(b)
			}
		}
	}
}

// flushed is a loop barrier posted by Flush.
type flushed struct {
	done chan struct{}
}

func (flushed) isEvent() {}

func (s *Session) apply(state State, ev Event, barriers *[]chan struct{}) (State, bool) {
	if f, ok := ev.(flushed); ok {
		*barriers = append(*barriers, f.done)
		return state, false
	}
	return s.step(state, ev)
}

// Flush waits until every event posted before the call has been applied and
// its snapshot published.
func (s *Session) Flush(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	done := make(chan struct{})
	if !s.post(flushed{done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// step applies one event and performs its side effects.
func (s *Session) step(state State, ev Event) (State, bool) {
	next, out := Reduce(state, ev)

	switch ev := ev.(type) {
	case ChatReceived:
		switch out.Chat {
		case transcript.ChatMerged:
			s.metrics.IncChatMessages()
		case transcript.ChatDuplicate:
			s.metrics.IncChatDuplicates()
			s.logger.Debug("duplicate chat ignored", map[string]any{"id": ev.Chat.ID})
		case transcript.ChatRemote:
			s.logger.Debug("remote chat ignored", map[string]any{"from": ev.Chat.FromIdentity})
		}
	case AgentStateChanged:
		if out.Changed {
			s.logger.Debug("agent state", map[string]any{"state": string(ev.State)})
		}
	case DetailRequested:
		if out.Displaced != "" {
			s.metrics.IncAnnotationsReplaced()
			s.logger.Warn("pending annotation replaced before use", map[string]any{
				"dropped": out.Displaced,
				"topic":   ev.Topic,
			})
		}
	}

	if out.Attached {
		s.logger.Info("annotation attached", map[string]any{
			"entry_id": out.EntryID,
		})
	}
	if out.Finalized != nil && s.notifier != nil {
		s.notifier.Notify(*out.Finalized)
	}
	return next, out.Changed
}

func (s *Session) publish(state State) {
	snap := state.Snapshot()
	s.snap.Store(&snap)

	s.subMu.Lock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	s.subMu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.PublishState(s.ctx, snap); err != nil {
			s.logger.Warn("state publication failed", map[string]any{"error": err.Error()})
		}
	}
}

func (s *Session) handleRPC(_ context.Context, call types.RPCInvocation) (string, error) {
	c, err := rpc.Decode(call.Method, call.Payload)
	if err != nil {
		s.metrics.IncRPCDecodeErrors()
		s.logger.Warn("malformed rpc payload dropped", map[string]any{
			"method": call.Method,
			"caller": call.Caller,
			"error":  err.Error(),
		})
		return "", err
	}

	var ev Event
	switch c := c.(type) {
	case rpc.AgentStateChanged:
		ev = AgentStateChanged{State: c.NewState}
	case rpc.ShowEventDetails:
		ev = DetailRequested{Topic: c.Topic}
	}
	if !s.post(ev) {
		return "", ErrClosed
	}
	return "", nil
}

func (s *Session) handleChat(ev types.ChatEvent) {
	if ev.TimestampMs == 0 {
		ev.TimestampMs = s.nowMs()
	}
	s.post(ChatReceived{Chat: ev})
}

func (s *Session) nowMs() int64 {
	return s.now().UnixMilli()
}
