// Package google implements a speech session backed by Google Cloud
// Speech-to-Text streaming recognition. Delivery is utterance-scoped:
// each event's text covers only the utterance it belongs to, and every
// utterance closes with exactly one final result.
package google

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	speechgcp "cloud.google.com/go/speech/apiv1"
	"github.com/rs/zerolog"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"live-speech-translator/internal/observability/logging"
	"live-speech-translator/internal/observability/metrics"
	"live-speech-translator/internal/service/speech"
)

// Session implements speech.Session on the Google streaming API.
type Session struct {
	cfg     speech.Config
	emitter *speech.Emitter
	log     zerolog.Logger

	client *speechgcp.Client

	mu       sync.Mutex
	state    speech.State
	stream   speechpb.Speech_StreamingRecognizeClient
	pending  [][]byte
	capTimer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Google session from cfg.
func New(cfg speech.Config) *Session {
	return &Session{
		cfg:     cfg,
		emitter: speech.NewEmitter(),
		log:     logging.WithSession("google"),
	}
}

// Start creates the API client and opens the first recognition stream. It
// fails closed when no credentials are configured.
func (s *Session) Start(ctx context.Context) error {
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" && s.cfg.APIKey == "" {
		return speech.ErrCredentialMissing
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != speech.StateIdle {
		return fmt.Errorf("session already started (state %s)", s.state)
	}
	s.state = speech.StateConnecting
	s.ctx, s.cancel = context.WithCancel(context.Background())

	client, err := speechgcp.NewClient(s.ctx)
	if err != nil {
		s.state = speech.StateStopped
		s.cancel()
		return classify(err)
	}
	s.client = client

	stream, err := s.openStream()
	if err != nil {
		s.state = speech.StateStopped
		s.cancel()
		client.Close()
		return classify(err)
	}

	s.stream = stream
	s.state = speech.StateStreaming
	s.armCapLocked()
	go s.recvLoop(stream)
	go s.flushLoop()

	s.log.Info().
		Str("language", s.cfg.LanguageCode).
		Int("sampleRateHz", s.cfg.SampleRateHz).
		Msg("google session started")
	return nil
}

// openStream starts a recognition stream and sends its configuration.
func (s *Session) openStream() (speechpb.Speech_StreamingRecognizeClient, error) {
	stream, err := s.client.StreamingRecognize(s.ctx)
	if err != nil {
		return nil, err
	}

	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(s.cfg.SampleRateHz),
					LanguageCode:    s.cfg.LanguageCode,
				},
				InterimResults: true,
			},
		},
	}
	if err := stream.Send(req); err != nil {
		return nil, err
	}
	return stream, nil
}

// Stop closes the session. No events are delivered after it returns.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == speech.StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = speech.StateStopped
	if s.capTimer != nil {
		s.capTimer.Stop()
		s.capTimer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.stream != nil {
		s.stream.CloseSend()
		s.stream = nil
	}
	client := s.client
	s.client = nil
	s.pending = nil
	s.mu.Unlock()

	if client != nil {
		client.Close()
	}
	s.emitter.Close()
	s.log.Info().Msg("google session stopped")
}

// Feed buffers an audio frame for the next flush.
func (s *Session) Feed(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active() {
		return
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	s.pending = append(s.pending, buf)
}

// Events returns the session event stream.
func (s *Session) Events() <-chan speech.Event {
	return s.emitter.Events()
}

// Semantics reports utterance-scoped delivery.
func (s *Session) Semantics() speech.Semantics {
	return speech.UtteranceScoped
}

// flushLoop batches buffered audio into one request per interval.
func (s *Session) flushLoop() {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *Session) flush() {
	s.mu.Lock()
	stream := s.stream
	if stream == nil || s.state != speech.StateStreaming || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	total := 0
	for _, f := range s.pending {
		total += len(f)
	}
	batch := make([]byte, 0, total)
	for _, f := range s.pending {
		batch = append(batch, f...)
	}
	s.pending = nil
	s.mu.Unlock()

	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: batch,
		},
	}
	if err := stream.Send(req); err != nil {
		s.transportError(stream, err)
		return
	}
	metrics.DefaultMetrics.RecordAudioFed(len(batch))
}

// recvLoop consumes results from one recognition stream.
func (s *Session) recvLoop(stream speechpb.Speech_StreamingRecognizeClient) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			s.transportError(stream, err)
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := result.Alternatives[0].Transcript
			if text == "" {
				continue
			}
			if result.IsFinal {
				s.emitter.Final(text)
			} else {
				s.emitter.Partial(text)
			}
		}
	}
}

// armCapLocked schedules the proactive stream restart at the hard session
// cap. Google cuts streams that exceed it; restarting first keeps the
// recognizer available without an error round-trip. Caller holds the lock.
func (s *Session) armCapLocked() {
	if s.capTimer != nil {
		s.capTimer.Stop()
	}
	if s.cfg.SessionCap > 0 {
		s.capTimer = time.AfterFunc(s.cfg.SessionCap, s.restartAtCap)
	}
}

func (s *Session) restartAtCap() {
	s.mu.Lock()
	if s.state != speech.StateStreaming {
		s.mu.Unlock()
		return
	}
	s.log.Info().Msg("restarting recognition stream at session cap")
	s.state = speech.StateReconnecting
	if s.stream != nil {
		s.stream.CloseSend()
		s.stream = nil
	}
	s.mu.Unlock()

	go s.reconnect()
}

// transportError moves the session into reconnection after a stream
// failure, unless the failing stream has already been replaced. Credential
// and permission failures are fatal and terminate the session.
func (s *Session) transportError(stream speechpb.Speech_StreamingRecognizeClient, err error) {
	s.mu.Lock()
	if s.state == speech.StateStopped || s.stream != stream {
		s.mu.Unlock()
		return
	}

	classified := classify(err)
	if speech.Fatal(classified) {
		s.mu.Unlock()
		s.fail(classified)
		return
	}

	s.log.Warn().Err(err).Msg("google stream error")
	s.state = speech.StateReconnecting
	s.stream = nil
	s.mu.Unlock()

	go s.reconnect()
}

// reconnect reopens the recognition stream a bounded number of times with
// linear backoff. Audio fed during reconnection stays buffered.
func (s *Session) reconnect() {
	for attempt := 1; attempt <= s.cfg.ReconnectMax; attempt++ {
		metrics.DefaultMetrics.RecordReconnect("google")
		backoff := s.cfg.ReconnectBackoff * time.Duration(attempt)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(backoff):
		}

		stream, err := s.openStream()
		if err != nil {
			classified := classify(err)
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			if speech.Fatal(classified) {
				s.fail(classified)
				return
			}
			continue
		}

		s.mu.Lock()
		if s.state != speech.StateReconnecting {
			s.mu.Unlock()
			stream.CloseSend()
			return
		}
		s.stream = stream
		s.state = speech.StateStreaming
		s.armCapLocked()
		s.mu.Unlock()

		go s.recvLoop(stream)
		s.log.Info().Int("attempt", attempt).Msg("google stream reconnected")
		return
	}

	metrics.DefaultMetrics.RecordReconnectExhausted("google")
	s.fail(speech.ErrReconnectExhausted)
}

// fail terminates the session with a fatal error event.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == speech.StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = speech.StateStopped
	if s.capTimer != nil {
		s.capTimer.Stop()
		s.capTimer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.stream != nil {
		s.stream.CloseSend()
		s.stream = nil
	}
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil {
		client.Close()
	}
	s.log.Error().Err(err).Msg("google session failed")
	s.emitter.Error(err)
	s.emitter.Close()
}

// classify maps gRPC status codes onto session errors.
func classify(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", speech.ErrCredentialMissing, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", speech.ErrPermissionDenied, st.Message())
	default:
		return err
	}
}
