package session

import (
	"context"
	"fmt"

	"github.com/pithecene-io/mirabel/transcript"
	"github.com/pithecene-io/mirabel/types"
)

// SendChat sends text to the shared chat channel. Blank text is ignored.
// The transport echoes the message back as a chat event, which merges it
// into the transcript.
func (s *Session) SendChat(ctx context.Context, text string) error {
	text = transcript.NormalizeChat(text)
	if text == "" {
		return nil
	}
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.transport.SendChat(ctx, text); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}
	return nil
}

// EnterAvatar switches to avatar mode, interrupting the agent first when
// interrupt is set. Reports false if already in avatar mode.
func (s *Session) EnterAvatar(ctx context.Context, interrupt bool) bool {
	_, ok := s.coord.EnterAvatar(ctx, interrupt)
	return ok
}

// EnterChat switches to chat mode, always interrupting the agent first.
// Reports false if already in chat mode.
func (s *Session) EnterChat(ctx context.Context) bool {
	_, ok := s.coord.EnterChat(ctx)
	return ok
}

// SetMicrophone toggles the microphone. Ignored outside avatar mode.
func (s *Session) SetMicrophone(ctx context.Context, enabled bool) bool {
	return s.coord.SetMicrophone(ctx, enabled)
}

// ClearAnnotation drops the pending annotation and strips DetailTopic from entryID.
func (s *Session) ClearAnnotation(entryID string) error {
	if !s.post(AnnotationCleared{EntryID: entryID}) {
		return ErrClosed
	}
	return nil
}

// SetRendererReady records the avatar renderer connection state.
func (s *Session) SetRendererReady(ready bool) {
	s.post(RendererChanged{Ready: ready})
}

// HandleAction dispatches a user action received over the wire.
func (s *Session) HandleAction(ctx context.Context, a types.ActionMessage) error {
	switch a.Action {
	case types.ActionSendChat:
		return s.SendChat(ctx, a.Text)
	case types.ActionEnterAvatar:
		s.EnterAvatar(ctx, a.Interrupt)
		return nil
	case types.ActionEnterChat:
		s.EnterChat(ctx)
		return nil
	case types.ActionClearAnnotation:
		return s.ClearAnnotation(a.EntryID)
	case types.ActionSetMicrophone:
		s.SetMicrophone(ctx, a.Enabled)
		return nil
	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
