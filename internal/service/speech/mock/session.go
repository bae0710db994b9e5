// Package mock provides a scripted speech session for tests and
// credential-free runs. It simulates realistic provider behavior:
// progressive partials per fed frame and exactly one final per utterance.
package mock

import (
	"context"
	"sync"

	"live-speech-translator/internal/service/speech"
)

// Utterance is one scripted utterance with progressive partial texts.
type Utterance struct {
	Partials []string
	Final    string
}

// DefaultScript provides sample utterances for simulation.
var DefaultScript = []Utterance{
	{
		Partials: []string{"The weather", "The weather is", "The weather is nice"},
		Final:    "The weather is nice today",
	},
	{
		Partials: []string{"Could you", "Could you repeat", "Could you repeat that"},
		Final:    "Could you repeat that please",
	},
	{
		Partials: []string{"We should", "We should start", "We should start the meeting"},
		Final:    "We should start the meeting now",
	},
}

// Session implements speech.Session with scripted responses. Each fed
// frame advances the script by one partial; once an utterance's partials
// are exhausted the next frame emits its final. With cumulative semantics
// the emitted text carries the whole session transcript.
type Session struct {
	emitter *speech.Emitter
	sem     speech.Semantics

	mu      sync.Mutex
	state   speech.State
	script  []Utterance
	uttIdx  int
	partIdx int
	carry   string
}

// New creates a mock session playing script with the given semantics.
// A nil script plays DefaultScript.
func New(script []Utterance, sem speech.Semantics) *Session {
	if script == nil {
		script = DefaultScript
	}
	return &Session{
		emitter: speech.NewEmitter(),
		sem:     sem,
		script:  script,
	}
}

// Start begins the scripted session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = speech.StateStreaming
	return nil
}

// Stop ends the session. No events are delivered after it returns.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == speech.StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = speech.StateStopped
	s.mu.Unlock()
	s.emitter.Close()
}

// Feed advances the script by one step per frame.
func (s *Session) Feed(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != speech.StateStreaming || s.uttIdx >= len(s.script) {
		return
	}

	utt := s.script[s.uttIdx]
	if s.partIdx < len(utt.Partials) {
		text := s.compose(utt.Partials[s.partIdx])
		s.partIdx++
		s.emitter.Partial(text)
		return
	}

	text := s.compose(utt.Final)
	if s.sem == speech.Cumulative {
		s.carry = text
	}
	s.uttIdx++
	s.partIdx = 0
	s.emitter.Final(text)
}

// Events returns the session event stream.
func (s *Session) Events() <-chan speech.Event {
	return s.emitter.Events()
}

// Semantics reports the configured delivery semantics.
func (s *Session) Semantics() speech.Semantics {
	return s.sem
}

// compose prefixes the session carry for cumulative semantics. Caller
// holds the lock.
func (s *Session) compose(text string) string {
	if s.sem == speech.Cumulative && s.carry != "" {
		return s.carry + " " + text
	}
	return text
}
