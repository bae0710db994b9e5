package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-speech-translator/internal/models"
)

func TestTranslateSuccess(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("path = %q, want /translate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"translatedText": "hola mundo"})
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL, "secret", "es", time.Second)
	out, err := c.Translate(context.Background(), "hello world", nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "hola mundo" {
		t.Errorf("translation = %q, want %q", out, "hola mundo")
	}
	if gotBody["q"] != "hello world" || gotBody["target"] != "es" || gotBody["api_key"] != "secret" {
		t.Errorf("unexpected request body %v", gotBody)
	}
	if _, present := gotBody["context"]; present {
		t.Error("context field should be absent without pairs")
	}
}

func TestTranslateSendsContextPairs(t *testing.T) {
	var gotBody struct {
		Context []map[string]string `json:"context"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"translatedText": "ok"})
	}))
	defer srv.Close()

	pairs := []models.ContextPair{
		{SourceText: "good morning", TranslationText: "buenos dias"},
		{SourceText: "how are you", TranslationText: "como estas"},
	}
	c := NewHTTP(srv.URL, "", "es", time.Second)
	if _, err := c.Translate(context.Background(), "fine thanks", pairs); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(gotBody.Context) != 2 {
		t.Fatalf("context pairs sent = %d, want 2", len(gotBody.Context))
	}
	if gotBody.Context[0]["source"] != "good morning" || gotBody.Context[0]["translation"] != "buenos dias" {
		t.Errorf("unexpected first pair %v", gotBody.Context[0])
	}
}

func TestTranslateAuthRejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		c := NewHTTP(srv.URL, "bad", "es", time.Second)
		_, err := c.Translate(context.Background(), "text here", nil)
		if !errors.Is(err, ErrAuthMissing) {
			t.Errorf("status %d: err = %v, want ErrAuthMissing", status, err)
		}
		srv.Close()
	}
}

func TestTranslateInvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("not json"))
		}},
		{"empty translation", func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"translatedText": "  "})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.h)
			defer srv.Close()
			c := NewHTTP(srv.URL, "", "es", time.Second)
			_, err := c.Translate(context.Background(), "text", nil)
			if !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("err = %v, want ErrInvalidResponse", err)
			}
		})
	}
}

func TestTranslateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL, "", "es", 50*time.Millisecond)
	_, err := c.Translate(context.Background(), "slow", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestEchoReturnsInput(t *testing.T) {
	out, err := Echo{}.Translate(context.Background(), "unchanged", nil)
	if err != nil {
		t.Fatalf("Echo: %v", err)
	}
	if out != "unchanged" {
		t.Errorf("echo = %q, want %q", out, "unchanged")
	}
}
