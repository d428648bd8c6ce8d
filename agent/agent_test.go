package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/rpc"
	"github.com/pithecene-io/mirabel/types"
)

type rpcCall struct {
	dest, method, payload string
}

type fakeCaller struct {
	participants []string
	calls        []rpcCall
	err          error
}

func (f *fakeCaller) RemoteParticipants() []string { return f.participants }

func (f *fakeCaller) PerformRPC(_ context.Context, dest, method, payload string) (string, error) {
	f.calls = append(f.calls, rpcCall{dest, method, payload})
	return "", f.err
}

func TestTracker_LastWriteWins(t *testing.T) {
	var tr Tracker
	if _, ok := tr.State(); ok {
		t.Fatal("zero tracker has state")
	}
	tr = tr.Apply(types.AgentListening).Apply(types.AgentSpeaking)
	s, ok := tr.State()
	if !ok || s != types.AgentSpeaking {
		t.Errorf("State = %q,%v, want speaking,true", s, ok)
	}
}

func TestLink_FindUsesPrefix(t *testing.T) {
	c := &fakeCaller{participants: []string{"user-2", "agent-xyz", "agent-abc"}}
	l := NewLink(c, "", log.NewNop(), nil)

	got, err := l.Find()
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != "agent-xyz" {
		t.Errorf("Find = %q, want agent-xyz", got)
	}
}

func TestLink_NotFound(t *testing.T) {
	c := &fakeCaller{participants: []string{"user-2"}}
	m := metrics.NewCollector("s", "", "ipc", "")
	l := NewLink(c, "agent", log.NewNop(), m)

	err := l.Interrupt(t.Context())
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
	if len(c.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(c.calls))
	}
	if m.Snapshot().AgentMissing != 1 {
		t.Errorf("AgentMissing = %d, want 1", m.Snapshot().AgentMissing)
	}
}

func TestLink_NotifyModePayload(t *testing.T) {
	c := &fakeCaller{participants: []string{"agent-1"}}
	l := NewLink(c, "agent", log.NewNop(), nil)

	if err := l.NotifyMode(t.Context(), types.ModeChat, true); err != nil {
		t.Fatalf("NotifyMode: %v", err)
	}
	if len(c.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(c.calls))
	}
	got := c.calls[0]
	if got.dest != "agent-1" || got.method != rpc.MethodUserModeChanged {
		t.Errorf("call = %+v", got)
	}
	if got.payload != `{"mode":"chat","should_interrupt":true}` {
		t.Errorf("payload = %s", got.payload)
	}
}

func TestLink_RPCFailureWrapped(t *testing.T) {
	boom := errors.New("timeout")
	c := &fakeCaller{participants: []string{"agent-1"}, err: boom}
	m := metrics.NewCollector("s", "", "ipc", "")
	l := NewLink(c, "agent", log.NewNop(), m)

	err := l.Interrupt(t.Context())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped timeout", err)
	}
	if c.calls[0].method != rpc.MethodInterruptAgent || c.calls[0].payload != "" {
		t.Errorf("call = %+v", c.calls[0])
	}
	if m.Snapshot().RPCFailures != 1 {
		t.Errorf("RPCFailures = %d, want 1", m.Snapshot().RPCFailures)
	}
}
