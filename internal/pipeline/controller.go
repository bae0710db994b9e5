// Package pipeline wires the audio source, speech session, transcript
// state machine, translation coordinator and event publisher into one
// controllable unit with an Idle → Running → Idle lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"live-speech-translator/internal/config"
	"live-speech-translator/internal/events"
	"live-speech-translator/internal/models"
	"live-speech-translator/internal/observability/logging"
	"live-speech-translator/internal/observability/metrics"
	"live-speech-translator/internal/service/coordinator"
	"live-speech-translator/internal/service/speech"
	"live-speech-translator/internal/service/speech/chunked"
	"live-speech-translator/internal/service/speech/google"
	"live-speech-translator/internal/service/speech/mock"
	"live-speech-translator/internal/service/speech/stream"
	"live-speech-translator/internal/service/transcript"
	"live-speech-translator/internal/service/translate"
	"live-speech-translator/internal/source"
)

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = errors.New("pipeline: already running")

// SessionFactory builds a speech session for a provider name. Tests
// substitute their own.
type SessionFactory func(provider string, cfg speech.Config) (speech.Session, error)

// NewSession is the default session factory.
func NewSession(provider string, cfg speech.Config) (speech.Session, error) {
	switch provider {
	case "mock", "":
		return mock.New(nil, speech.UtteranceScoped), nil
	case "stream":
		return stream.New(cfg), nil
	case "google":
		return google.New(cfg), nil
	case "chunked":
		return chunked.New(cfg), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", provider)
	}
}

// run holds the pieces that live for one Start/Stop cycle.
type run struct {
	cancel  context.CancelFunc
	session speech.Session
	machine *transcript.Machine
	coord   *coordinator.Coordinator
	done    chan struct{}
}

// Controller owns the pipeline lifecycle. The transcript store persists
// across runs so stopping does not erase already-recognized entries; each
// run gets a fresh session, state machine and coordinator.
type Controller struct {
	cfg        *config.Configuration
	src        source.Source
	translator translate.Client
	publisher  *events.Publisher
	factory    SessionFactory
	store      *transcript.Store
	log        zerolog.Logger

	mu      sync.Mutex
	current *run
	lastErr error
}

// New creates a pipeline controller.
func New(cfg *config.Configuration, src source.Source, translator translate.Client, publisher *events.Publisher) *Controller {
	return &Controller{
		cfg:        cfg,
		src:        src,
		translator: translator,
		publisher:  publisher,
		factory:    NewSession,
		store:      transcript.NewStore(),
		log:        logging.WithComponent("pipeline"),
	}
}

// WithFactory overrides the session factory. Must be called before Start.
func (c *Controller) WithFactory(f SessionFactory) *Controller {
	c.factory = f
	return c
}

// Store exposes the persistent transcript store.
func (c *Controller) Store() *transcript.Store {
	return c.store
}

// Start builds and starts a new run. It fails when a run is already
// active, and tears down cleanly when any component fails to start.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return ErrAlreadyRunning
	}

	provider := c.cfg.Speech.Provider
	session, err := c.factory(provider, speechConfig(c.cfg))
	if err != nil {
		c.lastErr = err
		return err
	}

	if err := session.Start(ctx); err != nil {
		c.lastErr = err
		return fmt.Errorf("starting speech session: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	coord := coordinator.New(runCtx, coordinator.Config{
		QuickMinWords: c.cfg.Translation.QuickMinWords,
		QuickInterval: c.cfg.Translation.QuickInterval,
		ContextWindow: c.cfg.Translation.ContextWindow,
	}, c.translator, c.store, c.publisher)
	machine := transcript.NewMachine(transcript.Config{
		WordCeiling:    c.cfg.Transcript.WordCeiling,
		SilenceTimeout: c.cfg.Transcript.SilenceTimeout,
	}, session.Semantics(), c.store, coord)

	r := &run{
		cancel:  cancel,
		session: session,
		machine: machine,
		coord:   coord,
		done:    make(chan struct{}),
	}

	if c.src != nil {
		if err := c.src.Start(runCtx, func(frame []byte) {
			metrics.DefaultMetrics.RecordAudioFed(len(frame))
			session.Feed(frame)
		}); err != nil {
			cancel()
			session.Stop()
			c.lastErr = err
			return fmt.Errorf("starting audio source: %w", err)
		}
	}

	c.current = r
	c.lastErr = nil
	metrics.DefaultMetrics.RecordSessionStart(provider)
	go c.eventLoop(r)

	c.log.Info().
		Str("provider", provider).
		Str("semantics", session.Semantics().String()).
		Msg("pipeline started")
	return nil
}

// Stop ends the active run. The transcript store keeps its entries; late
// translation results are discarded. Safe to call when idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	r := c.current
	c.current = nil
	c.mu.Unlock()
	if r == nil {
		return
	}

	c.teardown(r)
	<-r.done
	r.coord.Wait()
	c.log.Info().Msg("pipeline stopped")
}

// teardown shuts a run's components down. Order matters: the run context
// is cancelled first so in-flight translations detach, then the
// coordinator goes inert, then the state machine finalizes any open entry
// and starts discarding events, and only then the session and source stop.
// Stopping the session last makes anything it emits during its own Stop
// (the chunked variant flushes a trailing final there) a deterministic
// no-op instead of racing the event loop.
func (c *Controller) teardown(r *run) {
	r.cancel()
	r.coord.Stop()
	r.machine.Stop()
	if c.src != nil {
		c.src.Stop()
	}
	r.session.Stop()
	metrics.DefaultMetrics.RecordSessionEnd()
}

// Running reports whether a run is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// LastError returns the error that ended or prevented the last run, if
// any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns a copy of all transcript entries.
func (c *Controller) Snapshot() []models.TranscriptEntry {
	return c.store.Snapshot()
}

// Reset clears the transcript store. Only allowed while idle.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return ErrAlreadyRunning
	}
	c.store.Reset()
	c.lastErr = nil
	return nil
}

// eventLoop is the single consumer of the session's event stream. It exits
// when the session closes the stream, either on Stop or after a fatal
// error.
func (c *Controller) eventLoop(r *run) {
	defer close(r.done)
	for ev := range r.session.Events() {
		switch ev.Kind {
		case speech.EventPartial:
			r.machine.HandlePartial(ev.Text)
		case speech.EventFinal:
			r.machine.HandleFinal(ev.Text)
		case speech.EventError:
			if speech.Fatal(ev.Err) {
				c.failRun(r, ev.Err)
				return
			}
			c.log.Warn().Err(ev.Err).Msg("recoverable session error")
		}
	}

	// Stream closed without a fatal error event: either Stop already
	// detached this run, or the session ended on its own.
	c.mu.Lock()
	if c.current == r {
		c.current = nil
		c.mu.Unlock()
		c.teardown(r)
		return
	}
	c.mu.Unlock()
}

// failRun terminates the run after a fatal session error. Runs on the
// event loop goroutine, so it never waits for the loop itself.
func (c *Controller) failRun(r *run, err error) {
	c.mu.Lock()
	if c.current != r {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.lastErr = err
	c.mu.Unlock()

	metrics.DefaultMetrics.RecordSessionError(c.cfg.Speech.Provider, errorType(err))
	c.log.Error().Err(err).Msg("pipeline run failed")
	c.teardown(r)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, speech.ErrCredentialMissing):
		return "credential_missing"
	case errors.Is(err, speech.ErrConnectionFailed):
		return "connection_failed"
	case errors.Is(err, speech.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, speech.ErrReconnectExhausted):
		return "reconnect_exhausted"
	default:
		return "other"
	}
}

// speechConfig maps service configuration onto the session config shared
// by provider variants.
func speechConfig(cfg *config.Configuration) speech.Config {
	return speech.Config{
		LanguageCode:      cfg.Speech.LanguageCode,
		SampleRateHz:      cfg.Speech.SampleRateHz,
		APIKey:            cfg.Speech.APIKey,
		StreamURL:         cfg.Speech.StreamURL,
		ChunkURL:          cfg.Speech.ChunkURL,
		FlushInterval:     cfg.Speech.FlushInterval,
		RecognitionWindow: cfg.Speech.RecognitionWindow,
		SessionCap:        cfg.Speech.SessionCap,
		ReconnectMax:      cfg.Speech.ReconnectMax,
		ReconnectBackoff:  cfg.Speech.ReconnectBackoff,
		ChunkWindow:       cfg.Speech.ChunkWindow,
		ChunkMin:          cfg.Speech.ChunkMin,
	}
}
