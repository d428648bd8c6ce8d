package session

import (
	"github.com/pithecene-io/mirabel/mode"
	"github.com/pithecene-io/mirabel/transcript"
	"github.com/pithecene-io/mirabel/types"
)

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// EntryUpdated carries one republish of a streamed transcription entry.
type EntryUpdated struct {
	Update transcript.Update
}

// ChatReceived carries a discrete chat message.
type ChatReceived struct {
	Chat types.ChatEvent
}

// AgentStateChanged carries a new agent activity state.
type AgentStateChanged struct {
	State types.AgentActivityState
}

// DetailRequested carries a topic to attach to the next agent entry.
type DetailRequested struct {
	Topic string
}

// AnnotationCleared is the user's explicit clear for one entry.
type AnnotationCleared struct {
	EntryID string
}

// ModeChanged carries a completed mode transition.
type ModeChanged struct {
	Transition mode.Transition
}

// MicrophoneChanged carries a microphone toggle made inside avatar mode.
type MicrophoneChanged struct {
	Enabled bool
}

// RendererChanged reports the avatar renderer connecting or disconnecting.
type RendererChanged struct {
	Ready bool
}

func (EntryUpdated) isEvent()      {}
func (ChatReceived) isEvent()      {}
func (AgentStateChanged) isEvent() {}
func (DetailRequested) isEvent()   {}
func (AnnotationCleared) isEvent() {}
func (ModeChanged) isEvent()       {}
func (MicrophoneChanged) isEvent() {}
func (RendererChanged) isEvent()   {}

// Outcome reports the side effects the loop should carry out after Reduce.
type Outcome struct {
	// Changed is true if the snapshot may differ.
	Changed bool
	// EntryID is the transcript entry touched by the event, if any.
	EntryID string
	// Finalized is set when an entry became final and should be published.
	Finalized *types.TranscriptEntry
	// Displaced is the pending topic overwritten by DetailRequested.
	Displaced string
	// Attached is true when a pending annotation was consumed.
	Attached bool
	// Chat is the merge outcome for ChatReceived.
	Chat transcript.ChatOutcome
}

// Reduce applies ev to s. It has no side effects.
func Reduce(s State, ev Event) (State, Outcome) {
	switch ev := ev.(type) {
	case EntryUpdated:
		tl, ann, res := transcript.ApplyUpdate(s.Transcript, s.Annotation, ev.Update)
		if !res.Changed {
			return s, Outcome{}
		}
		s.Transcript = tl
		s.Annotation = ann
		out := Outcome{Changed: true, EntryID: res.Entry.ID, Attached: res.Attached}
		if s.Mode == types.ModeAvatar && !res.Entry.IsUser {
			e := res.Entry
			s.AvatarMessage = &e
		}
		if res.Entry.Final {
			e := res.Entry
			out.Finalized = &e
		}
		return s, out

	case ChatReceived:
		merger := transcript.ChatMerger{LocalIdentity: s.Identity}
		tl, entry, outcome := merger.Merge(s.Transcript, ev.Chat)
		if outcome != transcript.ChatMerged {
			return s, Outcome{Chat: outcome}
		}
		s.Transcript = tl
		return s, Outcome{Changed: true, EntryID: entry.ID, Finalized: &entry, Chat: outcome}

	case AgentStateChanged:
		if cur, ok := s.Agent.State(); ok && cur == ev.State {
			return s, Outcome{}
		}
		s.Agent = s.Agent.Apply(ev.State)
		return s, Outcome{Changed: true}

	case DetailRequested:
		ann, displaced := s.Annotation.Replace(ev.Topic)
		changed := ann != s.Annotation
		s.Annotation = ann
		return s, Outcome{Changed: changed, Displaced: displaced}

	case AnnotationCleared:
		tl, ann := transcript.ClearAnnotation(s.Transcript, ev.EntryID)
		s.Transcript = tl
		s.Annotation = ann
		return s, Outcome{Changed: true, EntryID: ev.EntryID}

	case ModeChanged:
		t := ev.Transition
		s.Mode = t.To
		s.Microphone = t.Microphone
		if t.ClearAvatarMessage {
			s.AvatarMessage = nil
		}
		return s, Outcome{Changed: true}

	case MicrophoneChanged:
		if s.Microphone == ev.Enabled {
			return s, Outcome{}
		}
		s.Microphone = ev.Enabled
		return s, Outcome{Changed: true}

	case RendererChanged:
		if s.RendererReady == ev.Ready {
			return s, Outcome{}
		}
		s.RendererReady = ev.Ready
		return s, Outcome{Changed: true}
	}
	return s, Outcome{}
}
