package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordedWrite struct {
	messageType int
	data        string
}

type fakeWSWriter struct {
	mu     sync.Mutex
	writes []recordedWrite
	closed bool
}

func (f *fakeWSWriter) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWSWriter) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, recordedWrite{messageType: messageType, data: string(data)})
	return nil
}

func (f *fakeWSWriter) WriteControl(messageType int, data []byte, _ time.Time) error {
	return f.WriteMessage(messageType, data)
}

func (f *fakeWSWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWSWriter) snapshot() []recordedWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

func TestLaneWriter_PriorityBeatsNormal(t *testing.T) {
	priority := make(chan []byte, 1)
	normal := make(chan []byte, 2)

	normal <- []byte("0.1,0.2")
	normal <- []byte("0.3,0.4")
	priority <- []byte("interrupted")
	close(priority)
	close(normal)

	ws := &fakeWSWriter{}
	w := laneWriter{
		ws:           ws,
		ctx:          t.Context(),
		writeTimeout: time.Second,
		pingInterval: time.Hour,
		priority:     priority,
		normal:       normal,
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	writes := ws.snapshot()
	if len(writes) != 3 {
		t.Fatalf("writes = %+v, want 3", writes)
	}
	if writes[0].data != "interrupted" {
		t.Errorf("first write = %q, want interrupted", writes[0].data)
	}
	if writes[1].data != "0.1,0.2" || writes[2].data != "0.3,0.4" {
		t.Errorf("normal lane out of order: %+v", writes[1:])
	}
	for _, w := range writes {
		if w.messageType != websocket.TextMessage {
			t.Errorf("message type = %d, want text", w.messageType)
		}
	}
}

func TestLaneWriter_ShutdownFlushesPriority(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	priority := make(chan []byte, 2)
	priority <- []byte(DisconnectMessage)
	normal := make(chan []byte, 1)
	normal <- []byte("0.5")

	ws := &fakeWSWriter{}
	w := laneWriter{ws: ws, ctx: ctx, writeTimeout: time.Second, pingInterval: time.Hour, priority: priority, normal: normal}
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	writes := ws.snapshot()
	if len(writes) != 2 {
		t.Fatalf("writes = %+v, want disconnect then close", writes)
	}
	if writes[0].data != DisconnectMessage {
		t.Errorf("first write = %q", writes[0].data)
	}
	if writes[1].messageType != websocket.CloseMessage {
		t.Errorf("second write type = %d, want close", writes[1].messageType)
	}
	if !ws.closed {
		t.Error("websocket not closed")
	}
}
