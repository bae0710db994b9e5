// Package translate provides the translation provider transport. The
// pipeline depends only on the Client interface; the HTTP implementation
// speaks a LibreTranslate-compatible endpoint.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"live-speech-translator/internal/models"
)

// Translation request error taxonomy. A single failed request is a normal,
// recoverable outcome for the pipeline.
var (
	ErrAuthMissing     = errors.New("translate: authentication missing or rejected")
	ErrTimeout         = errors.New("translate: request timed out")
	ErrInvalidResponse = errors.New("translate: invalid response")
)

// Client requests translations. Context pairs, when non-empty, condition
// the translation on previously confirmed source/translation pairs.
type Client interface {
	Translate(ctx context.Context, text string, pairs []models.ContextPair) (string, error)
}

// HTTPClient talks to a LibreTranslate-compatible endpoint.
type HTTPClient struct {
	base   string
	apiKey string
	target string
	http   *http.Client
}

// NewHTTP creates an HTTP translation client. target is the translation
// target language code.
func NewHTTP(endpoint, apiKey, target string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPClient{
		base:   strings.TrimRight(endpoint, "/"),
		apiKey: apiKey,
		target: target,
		http:   &http.Client{Timeout: timeout},
	}
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate posts one translation request. Context pairs are passed as an
// ordered array the provider may use as conditioning history.
func (c *HTTPClient) Translate(ctx context.Context, text string, pairs []models.ContextPair) (string, error) {
	payload := map[string]any{
		"q":      text,
		"source": "auto",
		"target": c.target,
		"format": "text",
	}
	if c.apiKey != "" {
		payload["api_key"] = c.apiKey
	}
	if len(pairs) > 0 {
		ctxPairs := make([]map[string]string, 0, len(pairs))
		for _, p := range pairs {
			ctxPairs = append(ctxPairs, map[string]string{
				"source":      p.SourceText,
				"translation": p.TranslationText,
			})
		}
		payload["context"] = ctxPairs
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/translate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrAuthMissing
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("%w: http %d", ErrInvalidResponse, resp.StatusCode)
	}

	var tr translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	out := strings.TrimSpace(tr.TranslatedText)
	if out == "" {
		return "", fmt.Errorf("%w: empty translation", ErrInvalidResponse)
	}
	return out, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Echo is a development client that returns source text unchanged. It
// keeps the pipeline runnable when no translation endpoint is configured.
type Echo struct{}

// Translate returns text as its own translation.
func (Echo) Translate(_ context.Context, text string, _ []models.ContextPair) (string, error) {
	return text, nil
}
