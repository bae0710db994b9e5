// Package chunked implements a speech session over a batch transcription
// HTTP API. Audio is buffered locally and posted in fixed windows; the
// session emits only final events, one per transcribed chunk, and never
// emits partials.
package chunked

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-speech-translator/internal/observability/logging"
	"live-speech-translator/internal/observability/metrics"
	"live-speech-translator/internal/service/speech"
)

const requestTimeout = 15 * time.Second

// transcribeResponse is the provider's reply for one audio chunk.
type transcribeResponse struct {
	Text string `json:"text"`
}

// Session implements speech.Session by windowed batch transcription.
type Session struct {
	cfg     speech.Config
	emitter *speech.Emitter
	log     zerolog.Logger
	httpc   *http.Client

	minBytes int

	mu    sync.Mutex
	state speech.State
	buf   []byte

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a chunked session from cfg.
func New(cfg speech.Config) *Session {
	// 16-bit mono PCM
	bytesPerSecond := cfg.SampleRateHz * 2
	return &Session{
		cfg:      cfg,
		emitter:  speech.NewEmitter(),
		log:      logging.WithSession("chunked"),
		httpc:    &http.Client{Timeout: requestTimeout},
		minBytes: int(cfg.ChunkMin.Seconds() * float64(bytesPerSecond)),
	}
}

// Start validates configuration and begins the window loop.
func (s *Session) Start(ctx context.Context) error {
	if s.cfg.APIKey == "" {
		return speech.ErrCredentialMissing
	}
	if s.cfg.ChunkURL == "" {
		return fmt.Errorf("%w: chunk URL not configured", speech.ErrConnectionFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != speech.StateIdle {
		return fmt.Errorf("session already started (state %s)", s.state)
	}
	s.state = speech.StateStreaming
	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.windowLoop()

	s.log.Info().
		Str("url", s.cfg.ChunkURL).
		Dur("window", s.cfg.ChunkWindow).
		Dur("min", s.cfg.ChunkMin).
		Msg("chunked session started")
	return nil
}

// Stop flushes any trailing audio above the minimum chunk size, then
// closes the session. No events are delivered after it returns.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == speech.StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = speech.StateStopped
	if s.cancel != nil {
		s.cancel()
	}
	chunk := s.takeLocked()
	s.mu.Unlock()

	if len(chunk) >= s.minBytes {
		s.transcribe(chunk)
	}
	s.emitter.Close()
	s.log.Info().Msg("chunked session stopped")
}

// Feed appends an audio frame to the current window.
func (s *Session) Feed(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != speech.StateStreaming {
		return
	}
	s.buf = append(s.buf, frame...)
}

// Events returns the session event stream.
func (s *Session) Events() <-chan speech.Event {
	return s.emitter.Events()
}

// Semantics reports utterance-scoped delivery; each chunk's final stands
// alone.
func (s *Session) Semantics() speech.Semantics {
	return speech.UtteranceScoped
}

// windowLoop posts the buffered audio once per window. Windows below the
// minimum chunk size are carried into the next window instead of being
// sent, to avoid transcribing fragments too short to be useful.
func (s *Session) windowLoop() {
	ticker := time.NewTicker(s.cfg.ChunkWindow)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state != speech.StateStreaming || len(s.buf) < s.minBytes {
				s.mu.Unlock()
				continue
			}
			chunk := s.takeLocked()
			s.mu.Unlock()
			s.transcribe(chunk)
		}
	}
}

// takeLocked detaches and returns the buffered audio. Caller holds the
// lock.
func (s *Session) takeLocked() []byte {
	chunk := s.buf
	s.buf = nil
	return chunk
}

// transcribe posts one chunk and emits a final event with its text.
func (s *Session) transcribe(chunk []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ChunkURL, bytes.NewReader(chunk))
	if err != nil {
		s.log.Error().Err(err).Msg("building transcription request")
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "audio/l16; rate="+strconv.Itoa(s.cfg.SampleRateHz))
	req.Header.Set("Accept-Language", s.cfg.LanguageCode)

	resp, err := s.httpc.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Int("bytes", len(chunk)).Msg("chunk transcription failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		s.emitter.Error(fmt.Errorf("%w: status %d", speech.ErrPermissionDenied, resp.StatusCode))
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Warn().Int("status", resp.StatusCode).Msg("chunk transcription rejected")
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.log.Warn().Err(err).Msg("reading transcription response")
		return
	}

	var out transcribeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		s.log.Warn().Err(err).Msg("unparseable transcription response")
		return
	}
	if out.Text == "" {
		return
	}

	metrics.DefaultMetrics.RecordAudioFed(len(chunk))
	s.emitter.Final(out.Text)
}
