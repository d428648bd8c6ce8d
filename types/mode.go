package types

import "fmt"

// SessionMode is the active interaction mode. Exactly one is active at a time.
type SessionMode string

// Session modes.
const (
	ModeChat   SessionMode = "chat"
	ModeAvatar SessionMode = "avatar"
)

// ParseSessionMode parses a wire value into a SessionMode.
func ParseSessionMode(v string) (SessionMode, error) {
	switch SessionMode(v) {
	case ModeChat, ModeAvatar:
		return SessionMode(v), nil
	default:
		return "", fmt.Errorf("unknown session mode %q", v)
	}
}
