// Package rpc decodes and encodes the RPC payloads exchanged with the agent.
//
// Inbound payloads decode into a closed set of Call variants. Anything else is
// a *DecodeError; callers log it and leave state untouched.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pithecene-io/mirabel/types"
)

// Inbound methods (agent to kiosk).
const (
	MethodAgentStateChanged = "agent_state_changed"
	MethodShowEventDetails  = "show_event_details"
)

// Outbound methods (kiosk to agent).
const (
	MethodInterruptAgent  = "interrupt_agent"
	MethodUserModeChanged = "user_mode_changed"
)

// Call is a decoded inbound RPC.
type Call interface {
	Method() string
	isCall()
}

// AgentStateChanged reports the agent's new activity state.
type AgentStateChanged struct {
	NewState types.AgentActivityState
}

// Method implements Call.
func (AgentStateChanged) Method() string { return MethodAgentStateChanged }
func (AgentStateChanged) isCall()        {}

// ShowEventDetails asks the kiosk to attach Topic to the next agent entry.
type ShowEventDetails struct {
	Topic string
}

// Method implements Call.
func (ShowEventDetails) Method() string { return MethodShowEventDetails }
func (ShowEventDetails) isCall()        {}

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind int

const (
	// DecodeUnknownMethod indicates a method outside the known set.
	DecodeUnknownMethod DecodeErrorKind = iota
	// DecodeMalformed indicates the payload is not valid JSON of the expected shape.
	DecodeMalformed
	// DecodeInvalidValue indicates well-formed JSON carrying an unacceptable value.
	DecodeInvalidValue
)

// String returns the kind name.
func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeUnknownMethod:
		return "unknown_method"
	case DecodeMalformed:
		return "malformed"
	case DecodeInvalidValue:
		return "invalid_value"
	default:
		return "unknown"
	}
}

// DecodeError is returned for any payload that does not decode to a Call.
type DecodeError struct {
	Kind   DecodeErrorKind
	Method string
	Msg    string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rpc %s: %s: %v", e.Method, e.Msg, e.Err)
	}
	return fmt.Sprintf("rpc %s: %s", e.Method, e.Msg)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err is a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

type agentStatePayload struct {
	NewState *string `json:"new_state"`
}

type eventDetailsPayload struct {
	Topic *string `json:"topic"`
}

// Decode parses an inbound RPC payload for method.
func Decode(method, payload string) (Call, error) {
	switch method {
	case MethodAgentStateChanged:
		var p agentStatePayload
		if err := unmarshal(method, payload, &p); err != nil {
			return nil, err
		}
		if p.NewState == nil {
			return nil, &DecodeError{Kind: DecodeMalformed, Method: method, Msg: "missing new_state"}
		}
		state, err := types.ParseAgentState(*p.NewState)
		if err != nil {
			return nil, &DecodeError{Kind: DecodeInvalidValue, Method: method, Msg: "invalid new_state", Err: err}
		}
		return AgentStateChanged{NewState: state}, nil

	case MethodShowEventDetails:
		var p eventDetailsPayload
		if err := unmarshal(method, payload, &p); err != nil {
			return nil, err
		}
		if p.Topic == nil {
			return nil, &DecodeError{Kind: DecodeMalformed, Method: method, Msg: "missing topic"}
		}
		if *p.Topic == "" {
			return nil, &DecodeError{Kind: DecodeInvalidValue, Method: method, Msg: "empty topic"}
		}
		return ShowEventDetails{Topic: *p.Topic}, nil

	default:
		return nil, &DecodeError{Kind: DecodeUnknownMethod, Method: method, Msg: "unknown method"}
	}
}

func unmarshal(method, payload string, v any) error {
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return &DecodeError{Kind: DecodeMalformed, Method: method, Msg: "invalid json", Err: err}
	}
	return nil
}

// UserModeChanged is the outbound mode notification.
type UserModeChanged struct {
	Mode            types.SessionMode `json:"mode"`
	ShouldInterrupt bool              `json:"should_interrupt"`
}

// Encode returns the JSON payload.
func (u UserModeChanged) Encode() (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", MethodUserModeChanged, err)
	}
	return string(b), nil
}
