package bridge

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// laneWriter drains the priority and normal lanes onto one websocket.
// A queued priority message is always written before the next normal one.
type laneWriter struct {
	ws           wsWriter
	ctx          context.Context
	writeTimeout time.Duration
	pingInterval time.Duration
	priority     <-chan []byte
	normal       <-chan []byte
}

func (w *laneWriter) Run() error {
	if w == nil || w.ws == nil {
		return nil
	}

	pingInterval := w.pingInterval
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	writeTimeout := w.writeTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	var pendingNormal []byte

	for {
		select {
		case <-w.ctx.Done():
			w.flushPriorityOnShutdown(writeTimeout)
			_ = w.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			_ = w.ws.Close()
			return nil
		default:
		}

		select {
		case msg, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.write(msg, writeTimeout); err != nil {
				return err
			}
			continue
		default:
		}

		// A pending normal message yields to priority traffic queued meanwhile.
		if pendingNormal != nil {
			select {
			case msg, ok := <-w.priority:
				if !ok {
					w.priority = nil
					continue
				}
				if err := w.write(msg, writeTimeout); err != nil {
					return err
				}
				continue
			default:
			}
			if err := w.write(pendingNormal, writeTimeout); err != nil {
				return err
			}
			pendingNormal = nil
			continue
		}

		if w.priority == nil && w.normal == nil {
			return nil
		}

		select {
		case <-w.ctx.Done():
		case <-pingTicker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := w.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		case msg, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.write(msg, writeTimeout); err != nil {
				return err
			}
		case msg, ok := <-w.normal:
			if !ok {
				w.normal = nil
				continue
			}
			pendingNormal = msg
		}
	}
}

func (w *laneWriter) flushPriorityOnShutdown(writeTimeout time.Duration) {
	if w.priority == nil {
		return
	}

	flushTimeout := 100 * time.Millisecond
	if writeTimeout < flushTimeout {
		flushTimeout = writeTimeout
	}
	deadline := time.Now().Add(flushTimeout)

	for i := 0; i < maxShutdownFlush && time.Now().Before(deadline); i++ {
		select {
		case msg, ok := <-w.priority:
			if !ok {
				return
			}
			_ = w.write(msg, writeTimeout)
		default:
			return
		}
	}
}

func (w *laneWriter) write(msg []byte, writeTimeout time.Duration) error {
	if len(msg) == 0 {
		return nil
	}
	if err := w.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, msg)
}
