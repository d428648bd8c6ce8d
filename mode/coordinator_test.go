package mode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/types"
)

// recorder logs every side effect in order.
type recorder struct {
	calls        []string
	interruptErr error
	notifyErr    error
}

func (r *recorder) Interrupt(context.Context) error {
	r.calls = append(r.calls, "interrupt")
	return r.interruptErr
}

func (r *recorder) NotifyMode(_ context.Context, m types.SessionMode, should bool) error {
	r.calls = append(r.calls, fmt.Sprintf("notify:%s:%t", m, should))
	return r.notifyErr
}

func (r *recorder) SetMicrophoneEnabled(_ context.Context, enabled bool) error {
	r.calls = append(r.calls, fmt.Sprintf("mic:%t", enabled))
	return nil
}

func (r *recorder) Disconnect() error {
	r.calls = append(r.calls, "disconnect")
	return nil
}

func newCoordinator(r *recorder) *Coordinator {
	return NewCoordinator(Config{
		Agent:      r,
		Microphone: r,
		Renderer:   r,
		Apply: func(t Transition) {
			r.calls = append(r.calls, "apply:"+string(t.To))
		},
		ApplyMicrophone: func(enabled bool) {
			r.calls = append(r.calls, fmt.Sprintf("apply-mic:%t", enabled))
		},
		Logger: log.NewNop(),
	})
}

func equalCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestEnterAvatar_WithoutInterrupt(t *testing.T) {
	r := &recorder{}
	c := newCoordinator(r)

	tr, ok := c.EnterAvatar(t.Context(), false)
	if !ok {
		t.Fatal("EnterAvatar returned false")
	}
	if !tr.ClearAvatarMessage || !tr.Microphone {
		t.Errorf("transition = %+v", tr)
	}
	equalCalls(t, r.calls, "notify:avatar:false", "apply:avatar", "mic:true")
	if c.Mode() != types.ModeAvatar {
		t.Errorf("Mode = %q, want avatar", c.Mode())
	}
}

func TestEnterAvatar_WithInterrupt(t *testing.T) {
	r := &recorder{}
	c := newCoordinator(r)

	c.EnterAvatar(t.Context(), true)
	equalCalls(t, r.calls, "interrupt", "notify:avatar:true", "apply:avatar", "mic:true")
}

func TestEnterChat_AlwaysInterruptsFirstEvenOnFailure(t *testing.T) {
	r := &recorder{}
	c := newCoordinator(r)
	c.EnterAvatar(t.Context(), false)
	r.calls = nil
	r.interruptErr = errors.New("agent gone")

	tr, ok := c.EnterChat(t.Context())
	if !ok {
		t.Fatal("EnterChat returned false")
	}
	if !tr.Interrupted || tr.Microphone {
		t.Errorf("transition = %+v", tr)
	}
	equalCalls(t, r.calls, "interrupt", "notify:chat:true", "apply:chat", "mic:false", "disconnect")
	if c.Mode() != types.ModeChat {
		t.Errorf("Mode = %q, want chat", c.Mode())
	}
}

func TestTransition_ProceedsWhenNotifyFails(t *testing.T) {
	r := &recorder{notifyErr: errors.New("no agent")}
	c := newCoordinator(r)

	if _, ok := c.EnterAvatar(t.Context(), false); !ok {
		t.Fatal("transition aborted")
	}
	if c.Mode() != types.ModeAvatar {
		t.Errorf("Mode = %q, want avatar", c.Mode())
	}
}

func TestSameModeIsNoop(t *testing.T) {
	r := &recorder{}
	c := newCoordinator(r)

	if _, ok := c.EnterChat(t.Context()); ok {
		t.Error("EnterChat from chat reported a transition")
	}
	c.EnterAvatar(t.Context(), false)
	r.calls = nil
	if _, ok := c.EnterAvatar(t.Context(), true); ok {
		t.Error("EnterAvatar from avatar reported a transition")
	}
	if len(r.calls) != 0 {
		t.Errorf("calls = %v, want none", r.calls)
	}
}

func TestSetMicrophone(t *testing.T) {
	r := &recorder{}
	c := newCoordinator(r)

	if c.SetMicrophone(t.Context(), true) {
		t.Error("microphone toggled in chat mode")
	}
	if len(r.calls) != 0 {
		t.Errorf("calls = %v, want none", r.calls)
	}

	c.EnterAvatar(t.Context(), false)
	r.calls = nil
	if !c.SetMicrophone(t.Context(), false) {
		t.Error("microphone toggle rejected in avatar mode")
	}
	equalCalls(t, r.calls, "mic:false", "apply-mic:false")
}
