package transport

import (
	"context"
	"errors"
	"io"

	"github.com/pithecene-io/mirabel/types"
)

// chunkStream is the ChunkReader handed to a stream handler.
// Chunks are written by the reading goroutine only, and always before finish,
// so a finished stream still yields every buffered chunk.
type chunkStream struct {
	chunks chan string
	done   chan struct{}
	// abandoned is closed when the handler returns. Later chunks are dropped.
	abandoned chan struct{}
	err       error
}

func newChunkStream() *chunkStream {
	return &chunkStream{
		chunks:    make(chan string, chunkBuffer),
		done:      make(chan struct{}),
		abandoned: make(chan struct{}),
	}
}

// Next returns the next chunk, io.EOF after a clean close, or the close error.
func (s *chunkStream) Next(ctx context.Context) (string, error) {
	select {
	case text := <-s.chunks:
		return text, nil
	default:
	}
	select {
	case text := <-s.chunks:
		return text, nil
	case <-s.done:
		select {
		case text := <-s.chunks:
			return text, nil
		default:
		}
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// push blocks while the handler is behind, never once it has returned.
func (s *chunkStream) push(ctx context.Context, text string) bool {
	select {
	case <-s.abandoned:
		return false
	default:
	}
	select {
	case s.chunks <- text:
		return true
	case <-s.abandoned:
		return false
	case <-ctx.Done():
		return false
	}
}

// abandon must be called at most once, after the handler returned.
func (s *chunkStream) abandon() {
	close(s.abandoned)
	for {
		select {
		case <-s.chunks:
		default:
			return
		}
	}
}

// finish must be called at most once.
func (s *chunkStream) finish(err error) {
	s.err = err
	close(s.done)
}

func (c *Conn) openStream(ctx context.Context, m *types.StreamOpenMessage) {
	info := types.StreamInfo{
		ID:          m.StreamID,
		Topic:       m.Topic,
		Participant: m.Participant,
		Attributes:  m.Attributes,
		TimestampMs: m.TimestampMs,
	}

	c.mu.Lock()
	h, ok := c.streamHs[m.Topic]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("stream for unregistered topic drained", map[string]any{
			"stream_id": m.StreamID,
			"topic":     m.Topic,
		})
		return
	}
	if _, dup := c.streams[m.StreamID]; dup {
		c.mu.Unlock()
		c.logger.Warn("duplicate stream open ignored", map[string]any{"stream_id": m.StreamID})
		return
	}
	if c.isClosedLocked() {
		c.mu.Unlock()
		return
	}
	st := newChunkStream()
	c.streams[m.StreamID] = st
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		h(ctx, info, st)
		c.releaseStream(info.ID, st)
	}()
}

// releaseStream unregisters st once its handler returned, whether or not the
// stream was closed.
func (c *Conn) releaseStream(id string, st *chunkStream) {
	c.mu.Lock()
	if c.streams[id] == st {
		delete(c.streams, id)
	}
	c.mu.Unlock()
	st.abandon()
}

func (c *Conn) pushChunk(ctx context.Context, m *types.StreamChunkMessage) {
	c.mu.Lock()
	st, ok := c.streams[m.StreamID]
	c.mu.Unlock()
	if !ok {
		return
	}
	if !st.push(ctx, m.Text) {
		c.logger.Debug("chunk for abandoned stream dropped", map[string]any{"stream_id": m.StreamID})
	}
}

func (c *Conn) closeStream(m *types.StreamCloseMessage) {
	c.mu.Lock()
	st, ok := c.streams[m.StreamID]
	delete(c.streams, m.StreamID)
	c.mu.Unlock()
	if !ok {
		return
	}
	var err error
	if m.Error != "" {
		err = errors.New(m.Error)
	}
	st.finish(err)
}

func (c *Conn) isClosedLocked() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
