package types

import "fmt"

// AgentActivityState is the coarse activity state reported by the remote agent.
type AgentActivityState string

// Agent activity states.
const (
	AgentInitializing AgentActivityState = "initializing"
	AgentIdle         AgentActivityState = "idle"
	AgentListening    AgentActivityState = "listening"
	AgentThinking     AgentActivityState = "thinking"
	AgentSpeaking     AgentActivityState = "speaking"
	AgentSearching    AgentActivityState = "searching"
)

var agentStates = map[AgentActivityState]bool{
	AgentInitializing: true,
	AgentIdle:         true,
	AgentListening:    true,
	AgentThinking:     true,
	AgentSpeaking:     true,
	AgentSearching:    true,
}

// Valid returns true if s is one of the known states.
func (s AgentActivityState) Valid() bool {
	return agentStates[s]
}

// ParseAgentState parses a wire value into an AgentActivityState.
func ParseAgentState(v string) (AgentActivityState, error) {
	s := AgentActivityState(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown agent state %q", v)
	}
	return s, nil
}
