package transport

import (
	"context"

	"github.com/pithecene-io/mirabel/types"
)

// SendChat writes a chat_send message. The sidecar echoes it back as chat.
func (c *Conn) SendChat(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &types.ChatSendMessage{Header: types.Header{Type: types.MsgChatSend}, Text: text}
	return c.send(&msg.Header, msg)
}

// SetMicrophoneEnabled writes a microphone message.
func (c *Conn) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &types.MicrophoneMessage{Header: types.Header{Type: types.MsgMicrophone}, Enabled: enabled}
	return c.send(&msg.Header, msg)
}

// PublishState writes a state snapshot.
func (c *Conn) PublishState(ctx context.Context, snap types.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &types.StateMessage{Header: types.Header{Type: types.MsgState}, Snapshot: snap}
	return c.send(&msg.Header, msg)
}

// Play writes one playback payload in order.
func (c *Conn) Play(payload string) error {
	return c.play(payload, false)
}

// PlayNow writes a playback payload flagged for immediate delivery.
func (c *Conn) PlayNow(payload string) error {
	return c.play(payload, true)
}

func (c *Conn) play(payload string, priority bool) error {
	msg := &types.PlaybackMessage{
		Header:   types.Header{Type: types.MsgPlayback},
		Payload:  payload,
		Priority: priority,
	}
	return c.send(&msg.Header, msg)
}
