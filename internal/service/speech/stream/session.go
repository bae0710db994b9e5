// Package stream implements a websocket speech session with cumulative
// delivery semantics: every event's text covers the whole session from its
// start, including text recognized on earlier connections.
//
// The provider caps each connection; the session proactively reconnects
// before the recognition window closes and again at the hard session cap,
// folding the finalized text of the old connection into a carry prefix so
// the emitted transcript never restarts from empty.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-speech-translator/internal/observability/logging"
	"live-speech-translator/internal/observability/metrics"
	"live-speech-translator/internal/service/speech"
)

// startMessage configures a new recognition connection.
type startMessage struct {
	Type         string `json:"type"`
	LanguageCode string `json:"language_code"`
	SampleRateHz int    `json:"sample_rate_hz"`
}

// serverMessage is one recognition result from the provider. Text is
// cumulative within the connection that produced it.
type serverMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Session implements speech.Session over a websocket transport.
type Session struct {
	cfg     speech.Config
	emitter *speech.Emitter
	log     zerolog.Logger

	mu       sync.Mutex
	state    speech.State
	conn     *websocket.Conn
	pending  [][]byte // frames buffered between flushes and across reconnects
	carry    string   // finalized text from completed connections
	connText string   // latest cumulative text on the current connection

	rollTimer *time.Timer
	capTimer  *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stream session from cfg. Start must be called before Feed.
func New(cfg speech.Config) *Session {
	return &Session{
		cfg:     cfg,
		emitter: speech.NewEmitter(),
		log:     logging.WithSession("stream"),
	}
}

// Start validates credentials, dials the provider and begins streaming.
// It fails closed: a missing key is rejected before any dial attempt.
func (s *Session) Start(ctx context.Context) error {
	if s.cfg.APIKey == "" {
		return speech.ErrCredentialMissing
	}
	if s.cfg.StreamURL == "" {
		return fmt.Errorf("%w: stream URL not configured", speech.ErrConnectionFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != speech.StateIdle {
		return fmt.Errorf("session already started (state %s)", s.state)
	}
	s.state = speech.StateConnecting
	s.ctx, s.cancel = context.WithCancel(context.Background())

	conn, err := s.dial(ctx)
	if err != nil {
		s.state = speech.StateStopped
		s.cancel()
		return err
	}

	s.conn = conn
	s.state = speech.StateStreaming
	s.armTimersLocked()
	go s.readLoop(conn)
	go s.flushLoop()

	s.log.Info().
		Str("url", s.cfg.StreamURL).
		Dur("recognitionWindow", s.cfg.RecognitionWindow).
		Dur("sessionCap", s.cfg.SessionCap).
		Msg("stream session started")
	return nil
}

// dial opens one websocket connection and sends the start message.
func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.StreamURL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", speech.ErrPermissionDenied, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", speech.ErrConnectionFailed, err)
	}

	start := startMessage{
		Type:         "start",
		LanguageCode: s.cfg.LanguageCode,
		SampleRateHz: s.cfg.SampleRateHz,
	}
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: start message: %v", speech.ErrConnectionFailed, err)
	}
	return conn, nil
}

// Stop closes the session. No events are delivered after it returns.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == speech.StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = speech.StateStopped
	s.stopTimersLocked()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.pending = nil
	s.mu.Unlock()

	s.emitter.Close()
	s.log.Info().Msg("stream session stopped")
}

// Feed buffers an audio frame for the next flush. Frames fed while
// reconnecting are kept and replayed on the new connection; frames fed
// after Stop are dropped.
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

// Semantics reports cumulative delivery.
func (s *Session) Semantics() speech.Semantics {
	return speech.Cumulative
}

// flushLoop sends buffered audio on a fixed interval rather than per
// frame, batching small frames into one websocket message.
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
	conn := s.conn
	if conn == nil || s.state != speech.StateStreaming || len(s.pending) == 0 {
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

	if err := conn.WriteMessage(websocket.BinaryMessage, batch); err != nil {
		s.transportError(conn, err)
		return
	}
	metrics.DefaultMetrics.RecordAudioFed(len(batch))
}

// readLoop consumes recognition results from one connection. It exits when
// that connection dies or the session stops.
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.transportError(conn, err)
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn().Err(err).Msg("unparseable server message")
			continue
		}

		switch msg.Type {
		case "partial":
			s.mu.Lock()
			if s.state == speech.StateStopped || s.conn != conn {
				s.mu.Unlock()
				return
			}
			s.connText = msg.Text
			text := joinText(s.carry, msg.Text)
			s.mu.Unlock()
			s.emitter.Partial(text)
		case "final":
			s.mu.Lock()
			if s.state == speech.StateStopped || s.conn != conn {
				s.mu.Unlock()
				return
			}
			s.carry = joinText(s.carry, msg.Text)
			s.connText = ""
			text := s.carry
			s.mu.Unlock()
			s.emitter.Final(text)
		default:
			s.log.Debug().Str("type", msg.Type).Msg("ignoring server message")
		}
	}
}

// armTimersLocked schedules the proactive rollover before the provider's
// recognition window closes and the hard restart at the session cap.
// Caller holds the lock.
func (s *Session) armTimersLocked() {
	s.stopTimersLocked()
	if s.cfg.RecognitionWindow > 0 {
		s.rollTimer = time.AfterFunc(s.cfg.RecognitionWindow, func() { s.rollover("recognition window") })
	}
	if s.cfg.SessionCap > 0 {
		s.capTimer = time.AfterFunc(s.cfg.SessionCap, func() { s.rollover("session cap") })
	}
}

func (s *Session) stopTimersLocked() {
	if s.rollTimer != nil {
		s.rollTimer.Stop()
		s.rollTimer = nil
	}
	if s.capTimer != nil {
		s.capTimer.Stop()
		s.capTimer = nil
	}
}

// rollover restarts the provider connection before it is cut off,
// preserving the cumulative text across the restart. Interim text on the
// dying connection is folded into the carry so nothing is lost.
func (s *Session) rollover(cause string) {
	s.mu.Lock()
	if s.state != speech.StateStreaming {
		s.mu.Unlock()
		return
	}
	s.log.Info().Str("cause", cause).Msg("rolling over stream connection")
	s.carry = joinText(s.carry, s.connText)
	s.connText = ""
	s.state = speech.StateReconnecting
	s.stopTimersLocked()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	go s.reconnect()
}

// transportError moves the session into reconnection after a connection
// failure, unless the failing connection has already been replaced.
func (s *Session) transportError(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.state == speech.StateStopped || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.log.Warn().Err(err).Msg("stream transport error")
	s.carry = joinText(s.carry, s.connText)
	s.connText = ""
	s.state = speech.StateReconnecting
	s.stopTimersLocked()
	s.conn.Close()
	s.conn = nil
	s.mu.Unlock()

	go s.reconnect()
}

// reconnect retries the connection a bounded number of times with linear
// backoff. Audio fed during reconnection stays buffered and goes out with
// the first flush on the new connection.
func (s *Session) reconnect() {
	for attempt := 1; attempt <= s.cfg.ReconnectMax; attempt++ {
		metrics.DefaultMetrics.RecordReconnect("stream")
		backoff := s.cfg.ReconnectBackoff * time.Duration(attempt)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := s.dial(s.ctx)
		if err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			// A rejected credential will not heal with retries.
			if errors.Is(err, speech.ErrPermissionDenied) {
				s.fail(err)
				return
			}
			continue
		}

		s.mu.Lock()
		if s.state != speech.StateReconnecting {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.state = speech.StateStreaming
		s.armTimersLocked()
		s.mu.Unlock()

		go s.readLoop(conn)
		s.log.Info().Int("attempt", attempt).Msg("stream reconnected")
		return
	}

	metrics.DefaultMetrics.RecordReconnectExhausted("stream")
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
	s.stopTimersLocked()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	s.log.Error().Err(err).Msg("stream session failed")
	s.emitter.Error(err)
	s.emitter.Close()
}

// joinText appends b to a with a separating space, tolerating empty sides.
func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
