// Package speech defines the capability contract for streaming
// speech-recognition sessions. Provider variants live in subpackages and
// deliver their results as a stream of tagged events; they never call back
// into pipeline state directly.
package speech

import (
	"context"
	"errors"
	"time"
)

// EventKind tags a session event.
type EventKind int

const (
	// EventPartial carries in-progress transcript text.
	EventPartial EventKind = iota
	// EventFinal carries transcript text the provider considers settled.
	EventFinal
	// EventError carries a session error. Fatal errors terminate the
	// session; recoverable ones are informational.
	EventError
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one tagged result from a speech session.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Semantics describes how a session's transcript events relate to
// utterances. The transcript state machine branches only on this trait,
// never on provider names.
type Semantics int

const (
	// Cumulative sessions emit the full session-lifetime transcript in
	// every partial and final event.
	Cumulative Semantics = iota
	// UtteranceScoped sessions emit text for the current utterance only;
	// a final closes the utterance and the next partial begins a new one.
	UtteranceScoped
)

// String returns the string representation of the semantics.
func (s Semantics) String() string {
	switch s {
	case Cumulative:
		return "cumulative"
	case UtteranceScoped:
		return "utterance-scoped"
	default:
		return "unknown"
	}
}

// Session is one live speech-recognition run. A stopped session cannot be
// restarted; callers construct a new one.
type Session interface {
	// Start opens the provider connection. It fails closed when no
	// credential is configured.
	Start(ctx context.Context) error

	// Stop shuts the session down. Idempotent, always safe to call, and
	// no events are delivered after it returns.
	Stop()

	// Feed hands one PCM frame to the session. Fire-and-forget; frames
	// are silently dropped unless the session is streaming.
	Feed(frame []byte)

	// Events returns the session's event stream. The channel is closed
	// when the session stops for any reason.
	Events() <-chan Event

	// Semantics reports the session's transcript delivery semantics.
	Semantics() Semantics
}

// Session error taxonomy. Start-time errors and ErrReconnectExhausted are
// fatal to the pipeline run; everything else is recoverable.
var (
	ErrCredentialMissing  = errors.New("speech: credential missing")
	ErrConnectionFailed   = errors.New("speech: connection failed")
	ErrPermissionDenied   = errors.New("speech: permission denied")
	ErrReconnectExhausted = errors.New("speech: reconnect attempts exhausted")
)

// Fatal reports whether err should terminate the pipeline run.
func Fatal(err error) bool {
	return errors.Is(err, ErrCredentialMissing) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrReconnectExhausted)
}

// Config holds the settings shared by the provider variants.
type Config struct {
	LanguageCode string
	SampleRateHz int
	APIKey       string
	StreamURL    string
	ChunkURL     string

	FlushInterval     time.Duration
	RecognitionWindow time.Duration
	SessionCap        time.Duration
	ReconnectMax      int
	ReconnectBackoff  time.Duration
	ChunkWindow       time.Duration
	ChunkMin          time.Duration
}
