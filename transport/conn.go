// Package transport implements session.Transport over the sidecar pipe.
//
// The sidecar owns the real-time room connection. It writes inbound messages
// (stream chunks, chat, RPC requests, data payloads, user actions) to the
// core's stdin and reads outbound messages (RPC calls and responses, chat,
// microphone, playback, state snapshots) from the core's stdout.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/mirabel/ipc"
	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/session"
	"github.com/pithecene-io/mirabel/types"
)

// DefaultRPCTimeout bounds an outbound RPC awaiting its rpc_result.
const DefaultRPCTimeout = 5 * time.Second

const (
	chunkBuffer  = 64
	actionBuffer = 16
)

var (
	// ErrClosed is returned once the inbound pipe has ended.
	ErrClosed = errors.New("transport closed")
	// ErrRPCTimeout is returned when no rpc_result arrives in time.
	ErrRPCTimeout = errors.New("rpc timed out")
	// ErrAlreadyRegistered is returned when a topic or method already has a handler.
	ErrAlreadyRegistered = errors.New("handler already registered")
	// ErrNoHello is returned by Handshake when the pipe ends before hello.
	ErrNoHello = errors.New("pipe ended before hello")
)

// RemoteError is an error reported by the remote side of an RPC.
type RemoteError struct {
	Method string
	Msg    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc %s: remote error: %s", e.Method, e.Msg)
}

// IsRemoteError returns true if err is a *RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// ActionHandler handles one user action.
type ActionHandler func(ctx context.Context, a types.ActionMessage) error

// Config configures a Conn.
type Config struct {
	// Reader is the inbound pipe (usually stdin).
	Reader io.Reader
	// Writer is the outbound pipe (usually stdout).
	Writer io.Writer
	// RPCTimeout bounds awaited RPCs. Zero uses DefaultRPCTimeout.
	RPCTimeout time.Duration
	// AwaitRPCResults makes PerformRPC wait for the matching rpc_result.
	// When false, calls are written and return immediately (replay).
	AwaitRPCResults bool
	// NewRequestID generates RPC request ids. Nil uses uuid.
	NewRequestID func() string
	// Identity and Room fill in a hello that leaves them empty.
	Identity string
	Room     string
	Logger   *log.Logger
	Metrics  *metrics.Collector
}

// Conn is a session.Transport backed by the sidecar pipe.
type Conn struct {
	decoder *ipc.FrameDecoder
	encoder *ipc.FrameEncoder
	timeout time.Duration
	await   bool
	newID   func() string
	defs    types.HelloMessage
	logger  *log.Logger
	metrics *metrics.Collector

	writeMu sync.Mutex
	outSeq  int64

	// inSeq is owned by the reading goroutine.
	inSeq int64

	mu           sync.Mutex
	hello        types.HelloMessage
	participants []string
	streamHs     map[string]session.StreamHandler
	rpcHs        map[string]session.RPCHandler
	chatHs       map[int]session.ChatHandler
	dataHs       map[int]session.DataHandler
	nextHandler  int
	streams      map[string]*chunkStream
	pending      map[string]chan types.RPCResultMessage
	onAction     ActionHandler

	serving atomic.Bool
	closed  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Conn. Call Handshake, then register handlers, then Serve.
func New(cfg Config) *Conn {
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = DefaultRPCTimeout
	}
	if cfg.NewRequestID == nil {
		cfg.NewRequestID = uuid.NewString
	}
	return &Conn{
		decoder:  ipc.NewFrameDecoder(cfg.Reader),
		encoder:  ipc.NewFrameEncoder(cfg.Writer),
		timeout:  cfg.RPCTimeout,
		await:    cfg.AwaitRPCResults,
		newID:    cfg.NewRequestID,
		defs:     types.HelloMessage{Identity: cfg.Identity, Room: cfg.Room},
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		streamHs: make(map[string]session.StreamHandler),
		rpcHs:    make(map[string]session.RPCHandler),
		chatHs:   make(map[int]session.ChatHandler),
		dataHs:   make(map[int]session.DataHandler),
		streams:  make(map[string]*chunkStream),
		pending:  make(map[string]chan types.RPCResultMessage),
		closed:   make(chan struct{}),
	}
}

// Handshake reads inbound messages until hello arrives. Participant lists
// seen before hello are applied; anything else is logged and dropped.
func (c *Conn) Handshake(ctx context.Context) (types.HelloMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return types.HelloMessage{}, err
		}
		msg, err := c.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return types.HelloMessage{}, ErrNoHello
			}
			return types.HelloMessage{}, err
		}
		switch m := msg.(type) {
		case nil:
		case *types.HelloMessage:
			c.applyHello(m)
			return c.helloMessage(), nil
		case *types.ParticipantsMessage:
			c.setParticipants(m.Identities)
		default:
			c.logger.Warn("message before hello dropped", map[string]any{
				"type": string(m.(types.Message).MessageHeader().Type),
			})
		}
	}
}

// OnAction sets the handler for user actions. Actions run one at a time on a
// worker goroutine so a handler may await RPC results from the same pipe.
func (c *Conn) OnAction(h ActionHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAction = h
}

// Serve reads the inbound pipe until EOF, a fatal frame error, or ctx is done.
// Open streams are ended and pending RPCs fail with ErrClosed on return.
// Returns nil on clean EOF.
func (c *Conn) Serve(ctx context.Context) error {
	if !c.serving.CompareAndSwap(false, true) {
		return errors.New("transport already serving")
	}
	ctx, cancel := context.WithCancel(ctx)

	actions := make(chan types.ActionMessage, actionBuffer)
	c.wg.Add(1)
	go c.runActions(ctx, actions)

	readDone := make(chan error, 1)
	go func() {
		readDone <- c.read(ctx, actions)
	}()

	select {
	case err := <-readDone:
		// Queued actions still run; RPCs they await fail fast once shut down.
		close(actions)
		c.shutdown()
		c.wg.Wait()
		cancel()
		return err
	case <-ctx.Done():
		// The reader stays blocked on the pipe until its writer closes.
		c.shutdown()
		cancel()
		c.wg.Wait()
		return nil
	}
}

// Closed is closed once Serve has returned or is returning.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

func (c *Conn) read(ctx context.Context, actions chan<- types.ActionMessage) error {
	for {
		msg, err := c.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Info("inbound pipe closed", nil)
				return nil
			}
			c.logger.Error("inbound pipe failed", map[string]any{"error": err.Error()})
			return fmt.Errorf("read frame: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if msg != nil {
			c.dispatch(ctx, msg, actions)
		}
	}
}

// next reads and decodes one frame. A skippable decode error yields a nil
// message and a nil error.
func (c *Conn) next() (any, error) {
	payload, err := c.decoder.ReadFrame()
	if err != nil {
		return nil, err
	}
	msg, err := ipc.DecodeMessage(payload)
	if err != nil {
		if ipc.IsFatalFrameError(err) {
			return nil, err
		}
		c.metrics.IncIPCDecodeErrors()
		c.logger.Warn("inbound message skipped", map[string]any{"error": err.Error()})
		return nil, nil
	}
	c.checkSeq(msg.(types.Message).MessageHeader())
	return msg, nil
}

func (c *Conn) checkSeq(h types.Header) {
	expected := c.inSeq + 1
	switch {
	case h.Seq == expected:
	case h.Seq > expected:
		c.logger.Warn("inbound sequence gap", map[string]any{
			"expected": expected,
			"got":      h.Seq,
			"type":     string(h.Type),
		})
	default:
		c.logger.Warn("inbound sequence regression", map[string]any{
			"expected": expected,
			"got":      h.Seq,
			"type":     string(h.Type),
		})
	}
	if h.Seq > c.inSeq {
		c.inSeq = h.Seq
	}
}

func (c *Conn) dispatch(ctx context.Context, msg any, actions chan<- types.ActionMessage) {
	switch m := msg.(type) {
	case *types.HelloMessage:
		c.logger.Warn("repeated hello ignored", map[string]any{"identity": m.Identity})
	case *types.ParticipantsMessage:
		c.setParticipants(m.Identities)
	case *types.ChatMessage:
		c.handleChat(m)
	case *types.StreamOpenMessage:
		c.openStream(ctx, m)
	case *types.StreamChunkMessage:
		c.pushChunk(ctx, m)
	case *types.StreamCloseMessage:
		c.closeStream(m)
	case *types.RPCRequestMessage:
		c.handleRPCRequest(ctx, m)
	case *types.RPCResultMessage:
		c.handleRPCResult(m)
	case *types.DataMessage:
		c.handleData(m)
	case *types.ActionMessage:
		select {
		case actions <- *m:
		case <-ctx.Done():
		}
	}
}

func (c *Conn) applyHello(m *types.HelloMessage) {
	hello := *m
	if hello.Identity == "" {
		hello.Identity = c.defs.Identity
	}
	if hello.Room == "" {
		hello.Room = c.defs.Room
	}
	c.mu.Lock()
	c.hello = hello
	c.mu.Unlock()
	if m.ProtocolVersion != "" && m.ProtocolVersion != types.ProtocolVersion {
		c.logger.Warn("sidecar protocol version mismatch", map[string]any{
			"sidecar": m.ProtocolVersion,
			"core":    types.ProtocolVersion,
		})
	}
	if c.defs.Identity != "" && m.Identity != "" && m.Identity != c.defs.Identity {
		c.logger.Warn("sidecar identity differs from requested", map[string]any{
			"requested": c.defs.Identity,
			"identity":  m.Identity,
		})
	}
	c.logger.Info("hello received", map[string]any{
		"identity": hello.Identity,
		"room":     hello.Room,
	})
}

func (c *Conn) helloMessage() types.HelloMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello
}

func (c *Conn) setParticipants(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants = slices.Clone(ids)
}

// LocalIdentity returns the identity announced by hello.
func (c *Conn) LocalIdentity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello.Identity
}

// Room returns the room announced by hello.
func (c *Conn) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello.Room
}

// RemoteParticipants returns the last announced participant set.
func (c *Conn) RemoteParticipants() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.participants)
}

// RegisterTextStreamHandler routes streams with topic to h.
func (c *Conn) RegisterTextStreamHandler(topic string, h session.StreamHandler) (session.Release, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.streamHs[topic]; ok {
		return nil, fmt.Errorf("text stream %q: %w", topic, ErrAlreadyRegistered)
	}
	c.streamHs[topic] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.streamHs, topic)
	}, nil
}

// RegisterRPCMethod routes inbound RPCs for method to h.
func (c *Conn) RegisterRPCMethod(method string, h session.RPCHandler) (session.Release, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rpcHs[method]; ok {
		return nil, fmt.Errorf("rpc method %q: %w", method, ErrAlreadyRegistered)
	}
	c.rpcHs[method] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.rpcHs, method)
	}, nil
}

// OnChatMessage adds a chat handler.
func (c *Conn) OnChatMessage(h session.ChatHandler) (session.Release, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextHandler
	c.nextHandler++
	c.chatHs[id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.chatHs, id)
	}, nil
}

// OnDataReceived adds a data handler.
func (c *Conn) OnDataReceived(h session.DataHandler) (session.Release, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextHandler
	c.nextHandler++
	c.dataHs[id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.dataHs, id)
	}, nil
}

func (c *Conn) handleChat(m *types.ChatMessage) {
	ev := types.ChatEvent{
		ID:           m.ID,
		FromIdentity: m.From,
		Message:      m.Message,
		TimestampMs:  m.TimestampMs,
	}
	c.mu.Lock()
	hs := make([]session.ChatHandler, 0, len(c.chatHs))
	for _, h := range c.chatHs {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (c *Conn) handleData(m *types.DataMessage) {
	c.mu.Lock()
	hs := make([]session.DataHandler, 0, len(c.dataHs))
	for _, h := range c.dataHs {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(m.Participant, m.Payload)
	}
}

func (c *Conn) runActions(ctx context.Context, actions <-chan types.ActionMessage) {
	defer c.wg.Done()
	for {
		var a types.ActionMessage
		select {
		case next, ok := <-actions:
			if !ok {
				return
			}
			a = next
		case <-ctx.Done():
			return
		}
		c.mu.Lock()
		h := c.onAction
		c.mu.Unlock()
		if h == nil {
			c.logger.Warn("action dropped, no handler", map[string]any{"action": string(a.Action)})
			continue
		}
		if err := h(ctx, a); err != nil {
			c.logger.Warn("action failed", map[string]any{
				"action": string(a.Action),
				"error":  err.Error(),
			})
		}
	}
}

// shutdown ends open streams and fails pending RPCs.
func (c *Conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return
	default:
	}
	close(c.closed)
	for id, st := range c.streams {
		st.finish(io.ErrUnexpectedEOF)
		delete(c.streams, id)
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// send assigns the next outbound seq to h and writes msg as one frame.
func (c *Conn) send(h *types.Header, msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.outSeq++
	h.Seq = c.outSeq
	if err := c.encoder.WriteMessage(msg); err != nil {
		return fmt.Errorf("send %s: %w", h.Type, err)
	}
	return nil
}
