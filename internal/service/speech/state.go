package speech

import "fmt"

// State is the lifecycle state of a session instance.
//
// State transitions:
//
//	Idle → Connecting → Streaming → (Reconnecting ⇄ Streaming) → Stopped
//
// Stopped is terminal; restarting requires a new session instance.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateReconnecting
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateReconnecting:
		return "RECONNECTING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Active reports whether the session still accepts or buffers audio.
func (s State) Active() bool {
	return s == StateStreaming || s == StateReconnecting
}
