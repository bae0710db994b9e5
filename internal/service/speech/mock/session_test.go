package mock

import (
	"context"
	"strings"
	"testing"
	"time"

	"live-speech-translator/internal/service/speech"
)

func collect(t *testing.T, s *Session, want int) []speech.Event {
	t.Helper()
	var got []speech.Event
	timeout := time.After(2 * time.Second)
	for len(got) < want {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(got), want)
		}
	}
	return got
}

func TestScriptedUtterance(t *testing.T) {
	script := []Utterance{
		{Partials: []string{"hi", "hi there"}, Final: "hi there friend"},
	}
	s := New(script, speech.UtteranceScoped)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 3; i++ {
		s.Feed(make([]byte, 320))
	}

	got := collect(t, s, 3)
	if got[0].Kind != speech.EventPartial || got[0].Text != "hi" {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].Kind != speech.EventPartial || got[1].Text != "hi there" {
		t.Errorf("event 1 = %+v", got[1])
	}
	if got[2].Kind != speech.EventFinal || got[2].Text != "hi there friend" {
		t.Errorf("event 2 = %+v", got[2])
	}
	s.Stop()
}

func TestCumulativeScriptCarriesText(t *testing.T) {
	script := []Utterance{
		{Partials: []string{"one"}, Final: "one two"},
		{Partials: []string{"three"}, Final: "three four"},
	}
	s := New(script, speech.Cumulative)
	if got := s.Semantics(); got != speech.Cumulative {
		t.Fatalf("semantics = %v", got)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 4; i++ {
		s.Feed(make([]byte, 320))
	}

	got := collect(t, s, 4)
	wantTexts := []string{"one", "one two", "one two three", "one two three four"}
	for i, want := range wantTexts {
		if got[i].Text != want {
			t.Errorf("event %d text = %q, want %q", i, got[i].Text, want)
		}
	}
	if !strings.HasPrefix(got[3].Text, got[1].Text) {
		t.Error("cumulative texts must extend earlier finals")
	}
	s.Stop()
}

func TestFeedAfterStopIgnored(t *testing.T) {
	s := New(nil, speech.UtteranceScoped)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	s.Feed(make([]byte, 320))

	if _, ok := <-s.Events(); ok {
		t.Error("expected closed event stream after Stop")
	}
}
