package chunked

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"live-speech-translator/internal/service/speech"
)

func testConfig(url string) speech.Config {
	return speech.Config{
		LanguageCode: "en-US",
		SampleRateHz: 16000,
		APIKey:       "test-key",
		ChunkURL:     url,
		ChunkWindow:  30 * time.Millisecond,
		ChunkMin:     time.Millisecond, // 32 bytes at 16kHz 16-bit mono
	}
}

func TestStartRequiresCredentials(t *testing.T) {
	cfg := testConfig("http://example.invalid")
	cfg.APIKey = ""
	s := New(cfg)
	if err := s.Start(context.Background()); !errors.Is(err, speech.ErrCredentialMissing) {
		t.Errorf("err = %v, want ErrCredentialMissing", err)
	}
}

func TestStartRequiresEndpoint(t *testing.T) {
	cfg := testConfig("")
	s := New(cfg)
	if err := s.Start(context.Background()); !errors.Is(err, speech.ErrConnectionFailed) {
		t.Errorf("err = %v, want ErrConnectionFailed", err)
	}
}

func TestWindowedTranscription(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"text": "chunk result"})
	}))
	defer srv.Close()

	s := New(testConfig(srv.URL))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	s.Feed(make([]byte, 4000))

	select {
	case ev := <-s.Events():
		if ev.Kind != speech.EventFinal || ev.Text != "chunk result" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no final event from chunk window")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) == 0 || len(bodies[0]) != 4000 {
		t.Errorf("posted bodies = %d, first size %d", len(bodies), len(bodies[0]))
	}
}

func TestShortWindowCarriesOver(t *testing.T) {
	requests := make(chan int, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- len(body)
		json.NewEncoder(w).Encode(map[string]string{"text": "late"})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ChunkMin = 100 * time.Millisecond // 3200 bytes minimum
	s := New(cfg)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	// Below minimum: no request this window.
	s.Feed(make([]byte, 1000))
	time.Sleep(60 * time.Millisecond)
	select {
	case n := <-requests:
		t.Fatalf("short window was posted anyway (%d bytes)", n)
	default:
	}

	// Top it up past the minimum; the carried bytes go out together.
	s.Feed(make([]byte, 3000))
	select {
	case n := <-requests:
		if n != 4000 {
			t.Errorf("posted %d bytes, want 4000", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no request after topping up the window")
	}
}

func TestStopFlushesTrailingAudio(t *testing.T) {
	requests := make(chan int, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- len(body)
		json.NewEncoder(w).Encode(map[string]string{"text": "trailing"})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ChunkWindow = time.Hour // only the Stop flush can send
	s := New(cfg)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.Feed(make([]byte, 2000))
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case n := <-requests:
		if n != 2000 {
			t.Errorf("trailing flush posted %d bytes, want 2000", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not flush trailing audio")
	}
	<-done

	// The trailing final is delivered before the stream closes.
	var finals int
	for ev := range s.Events() {
		if ev.Kind == speech.EventFinal {
			finals++
		}
	}
	if finals != 1 {
		t.Errorf("finals after stop = %d, want 1", finals)
	}
}

func TestPermissionDeniedEmitsFatalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := New(testConfig(srv.URL))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	s.Feed(make([]byte, 4000))

	select {
	case ev := <-s.Events():
		if ev.Kind != speech.EventError {
			t.Fatalf("event = %+v, want error", ev)
		}
		if !errors.Is(ev.Err, speech.ErrPermissionDenied) {
			t.Errorf("err = %v, want ErrPermissionDenied", ev.Err)
		}
		if !speech.Fatal(ev.Err) {
			t.Error("permission denied must classify as fatal")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error event for rejected credentials")
	}
}
