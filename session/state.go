// Package session owns the kiosk session state.
//
// State is an immutable value. Every inbound event becomes an Event applied
// by the pure Reduce function on a single loop goroutine; collaborators only
// ever see Snapshots.
package session

import (
	"github.com/pithecene-io/mirabel/agent"
	"github.com/pithecene-io/mirabel/transcript"
	"github.com/pithecene-io/mirabel/types"
)

// State is the complete session state.
type State struct {
	// Identity is the local participant identity.
	Identity      string
	Transcript    transcript.Log
	Annotation    transcript.Annotation
	Agent         agent.Tracker
	Mode          types.SessionMode
	AvatarMessage *types.TranscriptEntry
	Microphone    bool
	RendererReady bool
}

// NewState returns the initial state for identity: chat mode, empty transcript.
func NewState(identity string) State {
	return State{Identity: identity, Mode: types.ModeChat}
}

// Status derives the status line shown by the avatar view.
func (s State) Status() string {
	switch {
	case !s.RendererReady:
		return types.StatusConnecting
	case !s.Microphone:
		return types.StatusMuted
	}
	if st, ok := s.Agent.State(); ok && st == types.AgentThinking {
		return types.StatusThinking
	}
	return types.StatusAsk
}

// Snapshot returns a read-only copy of s.
func (s State) Snapshot() types.Snapshot {
	snap := types.Snapshot{
		Transcript:        s.Transcript.Entries(),
		PendingTopic:      s.Annotation.Topic(),
		Mode:              s.Mode,
		MicrophoneEnabled: s.Microphone,
		RendererReady:     s.RendererReady,
		Status:            s.Status(),
	}
	if st, ok := s.Agent.State(); ok {
		snap.AgentState = st
	}
	if s.AvatarMessage != nil {
		m := *s.AvatarMessage
		snap.AvatarMessage = &m
	}
	return snap
}
