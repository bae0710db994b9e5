package speech

import "sync"

const eventBuffer = 64

// Emitter is the event-channel half shared by the provider variants. It
// guarantees the Session contract that no event is delivered after Close
// returns: emission and closing are serialized behind one mutex, and a
// closed emitter drops everything.
type Emitter struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewEmitter returns an emitter with a buffered event channel.
func NewEmitter() *Emitter {
	return &Emitter{ch: make(chan Event, eventBuffer)}
}

// Events returns the receive side of the event channel.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Partial emits a partial transcript event.
func (e *Emitter) Partial(text string) {
	e.emit(Event{Kind: EventPartial, Text: text})
}

// Final emits a final transcript event.
func (e *Emitter) Final(text string) {
	e.emit(Event{Kind: EventFinal, Text: text})
}

// Error emits an error event.
func (e *Emitter) Error(err error) {
	e.emit(Event{Kind: EventError, Err: err})
}

// Close closes the event channel. Idempotent; emissions racing with Close
// are either delivered before it returns or dropped.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

// emit delivers ev unless the emitter is closed. A full buffer drops the
// event rather than blocking the session's read loop.
func (e *Emitter) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- ev:
	default:
	}
}
