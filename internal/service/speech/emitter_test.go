package speech

import (
	"errors"
	"testing"
)

func TestEmitterDeliversInOrder(t *testing.T) {
	e := NewEmitter()
	e.Partial("one")
	e.Final("one two")
	e.Error(errors.New("boom"))
	e.Close()

	var got []Event
	for ev := range e.Events() {
		got = append(got, ev)
	}
	if len(got) != 3 {
		t.Fatalf("received %d events, want 3", len(got))
	}
	if got[0].Kind != EventPartial || got[0].Text != "one" {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].Kind != EventFinal || got[1].Text != "one two" {
		t.Errorf("event 1 = %+v", got[1])
	}
	if got[2].Kind != EventError || got[2].Err == nil {
		t.Errorf("event 2 = %+v", got[2])
	}
}

func TestEmitterNoEventsAfterClose(t *testing.T) {
	e := NewEmitter()
	e.Partial("before")
	e.Close()
	e.Partial("after")
	e.Final("after")
	e.Error(errors.New("after"))
	e.Close() // idempotent

	count := 0
	for range e.Events() {
		count++
	}
	if count != 1 {
		t.Errorf("received %d events, want 1", count)
	}
}

func TestEmitterDropsWhenFull(t *testing.T) {
	e := NewEmitter()
	// Nothing draining: emit far past the buffer and make sure no emit
	// blocks the caller.
	for i := 0; i < 500; i++ {
		e.Partial("x")
	}
	e.Close()

	count := 0
	for range e.Events() {
		count++
	}
	if count == 0 || count > 500 {
		t.Errorf("drained %d events", count)
	}
}

func TestFatalClassification(t *testing.T) {
	fatal := []error{
		ErrCredentialMissing,
		ErrConnectionFailed,
		ErrPermissionDenied,
		ErrReconnectExhausted,
	}
	for _, err := range fatal {
		if !Fatal(err) {
			t.Errorf("Fatal(%v) = false, want true", err)
		}
	}
	if Fatal(errors.New("transient hiccup")) {
		t.Error("arbitrary errors must not be fatal")
	}
	if Fatal(nil) {
		t.Error("Fatal(nil) must be false")
	}
}
