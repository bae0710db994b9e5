// Package coordinator schedules quick and refined translations for
// transcript entries. The quick path is throttled to one in-flight request
// plus a single pending replacement slot with a minimum spacing between
// dispatches; the refined path runs exactly once per finalized entry
// against a snapshot of the bounded context window.
package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"live-speech-translator/internal/events"
	"live-speech-translator/internal/models"
	"live-speech-translator/internal/observability/logging"
	"live-speech-translator/internal/observability/metrics"
	"live-speech-translator/internal/service/transcript"
	"live-speech-translator/internal/service/translate"
)

// FailedPlaceholder is shown for a finalized entry whose refined
// translation failed and which has no quick translation to fall back on.
const FailedPlaceholder = "[translation failed]"

// Config holds coordinator tuning.
type Config struct {
	QuickMinWords int           // quick path triggers at this word count
	QuickInterval time.Duration // minimum spacing between quick dispatches
	ContextWindow int           // refined context pairs kept
}

type quickRequest struct {
	entryID string
	text    string
}

// Coordinator implements transcript.Sink. It lives for one pipeline run;
// Stop discards all late results and a new run builds a fresh coordinator.
type Coordinator struct {
	mu  sync.Mutex
	ctx context.Context
	cfg Config

	translator translate.Client
	store      *transcript.Store
	publisher  *events.Publisher

	// Quick path throttle state: at most one request in flight, at most
	// one pending replacement, dispatches spaced by QuickInterval.
	quickInflight bool
	quickPending  *quickRequest
	quickTimer    *time.Timer
	lastDispatch  time.Time

	window      []models.ContextPair
	refinedDone map[string]bool
	stopped     bool
	wg          sync.WaitGroup
}

// New creates a coordinator for one run. ctx is the run context; results
// arriving after it is cancelled are discarded.
func New(ctx context.Context, cfg Config, translator translate.Client, store *transcript.Store, publisher *events.Publisher) *Coordinator {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 10
	}
	return &Coordinator{
		ctx:         ctx,
		cfg:         cfg,
		translator:  translator,
		store:       store,
		publisher:   publisher,
		refinedDone: make(map[string]bool),
	}
}

// ContextWindow returns a copy of the current context pairs.
func (c *Coordinator) ContextWindow() []models.ContextPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ContextPair(nil), c.window...)
}

// Stop discards pending work and makes all late completions no-ops. Safe
// to call more than once.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.quickPending = nil
	if c.quickTimer != nil {
		c.quickTimer.Stop()
		c.quickTimer = nil
	}
	c.mu.Unlock()
}

// Wait blocks until all in-flight translation calls have returned. Their
// results have already been discarded if Stop was called.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// --- transcript.Sink implementation ---

// EntryUpdated schedules a quick translation for the entry's current text
// once it is long enough. Newer updates overwrite the single pending slot.
func (c *Coordinator) EntryUpdated(entry models.TranscriptEntry) {
	if len(strings.Fields(entry.OriginalText)) < c.cfg.QuickMinWords {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.quickPending = &quickRequest{entryID: entry.ID, text: entry.OriginalText}
	c.maybeDispatchLocked()
}

// EntryFinalized publishes the finalized entry and schedules its refined
// translation.
func (c *Coordinator) EntryFinalized(entry models.TranscriptEntry, reason string) {
	if c.publisher != nil {
		evt := models.EntryFinalized{
			EventType: "caption.entry.finalized",
			EntryID:   entry.ID,
			Text:      entry.OriginalText,
			Reason:    reason,
			Timestamp: time.Now().UnixMilli(),
		}
		// Detached from the run context so entries finalized during
		// shutdown still publish; async so a slow broker cannot stall
		// the event loop.
		go c.publisher.PublishEntryFinalized(context.Background(), entry.ID, evt)
	}
	if reason == transcript.ReasonStop {
		return
	}
	c.refine(entry)
}

// EntryEarlyRefine schedules a refined translation for a still-open entry
// after silence on an utterance-scoped session. The per-entry guard means
// the eventual finalization will not request a second one.
func (c *Coordinator) EntryEarlyRefine(entry models.TranscriptEntry) {
	c.refine(entry)
}

// --- quick path ---

// maybeDispatchLocked sends the pending quick request when nothing is in
// flight and the spacing since the last dispatch allows it; otherwise it
// arms a timer for the earliest permitted dispatch. Caller holds the lock.
func (c *Coordinator) maybeDispatchLocked() {
	if c.stopped || c.quickInflight || c.quickPending == nil {
		return
	}
	if wait := c.cfg.QuickInterval - time.Since(c.lastDispatch); wait > 0 {
		if c.quickTimer == nil {
			c.quickTimer = time.AfterFunc(wait, func() {
				c.mu.Lock()
				c.quickTimer = nil
				c.maybeDispatchLocked()
				c.mu.Unlock()
			})
		}
		return
	}

	req := *c.quickPending
	c.quickPending = nil
	c.quickInflight = true
	c.lastDispatch = time.Now()
	metrics.DefaultMetrics.QuickDispatched.Inc()

	c.wg.Add(1)
	go c.runQuick(req)
}

func (c *Coordinator) runQuick(req quickRequest) {
	defer c.wg.Done()
	start := time.Now()
	out, err := c.translator.Translate(c.ctx, req.text, nil)
	metrics.DefaultMetrics.RecordTranslateLatency("quick", time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.quickInflight = false
	if c.stopped {
		return
	}

	applied := false
	if err != nil {
		logger := logging.WithEntry(req.entryID)
		logger.Warn().Err(err).Msg("quick translation failed")
	} else {
		applied = c.applyQuick(req, out)
	}
	metrics.DefaultMetrics.RecordQuickResult(applied, err)

	c.maybeDispatchLocked()
}

// applyQuick writes a quick result onto its entry unless staleness checks
// reject it: a refined translation always wins, the request text must be
// prefix-compatible with the entry's current text, and a result built
// from more text than this request must not be overwritten.
func (c *Coordinator) applyQuick(req quickRequest, translation string) bool {
	applied := false
	c.store.Update(req.entryID, func(e *models.TranscriptEntry) {
		if e.ContextTranslation != "" {
			return
		}
		if !prefixCompatible(e.OriginalText, req.text) {
			return
		}
		if len(req.text) <= len(e.QuickSourceText) {
			return
		}
		e.QuickTranslation = translation
		e.QuickSourceText = req.text
		applied = true
	})
	return applied
}

// prefixCompatible reports whether one string is a prefix of the other.
func prefixCompatible(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// --- refined path ---

// refine dispatches the one refined translation an entry gets, against a
// snapshot of the context window taken now.
func (c *Coordinator) refine(entry models.TranscriptEntry) {
	c.mu.Lock()
	if c.stopped || c.refinedDone[entry.ID] {
		c.mu.Unlock()
		return
	}
	c.refinedDone[entry.ID] = true
	snapshot := append([]models.ContextPair(nil), c.window...)
	c.mu.Unlock()

	metrics.DefaultMetrics.RefinedTotal.Inc()
	c.wg.Add(1)
	go c.runRefined(entry, snapshot)
}

func (c *Coordinator) runRefined(entry models.TranscriptEntry, snapshot []models.ContextPair) {
	defer c.wg.Done()
	start := time.Now()
	out, err := c.translator.Translate(c.ctx, entry.OriginalText, snapshot)
	metrics.DefaultMetrics.RecordTranslateLatency("refined", time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	if err != nil {
		metrics.DefaultMetrics.RefinedFailed.Inc()
		logger := logging.WithEntry(entry.ID)
		logger.Warn().Err(err).Msg("refined translation failed")
		// Never blank an entry that already has usable text; show the
		// placeholder only when nothing else is visible. QuickSourceText
		// stays empty so a late quick result may still replace it.
		c.store.Update(entry.ID, func(e *models.TranscriptEntry) {
			if e.QuickTranslation == "" && e.ContextTranslation == "" {
				e.QuickTranslation = FailedPlaceholder
			}
		})
		return
	}

	c.store.Update(entry.ID, func(e *models.TranscriptEntry) {
		e.ContextTranslation = out
	})
	c.window = append(c.window, models.ContextPair{
		SourceText:      entry.OriginalText,
		TranslationText: out,
	})
	if over := len(c.window) - c.cfg.ContextWindow; over > 0 {
		c.window = append([]models.ContextPair(nil), c.window[over:]...)
	}

	if c.publisher != nil {
		evt := models.TranslationRefined{
			EventType:   "caption.translation.refined",
			EntryID:     entry.ID,
			SourceText:  entry.OriginalText,
			Translation: out,
			Timestamp:   time.Now().UnixMilli(),
		}
		// Async like the finalized-entry publish: runRefined holds the
		// coordinator lock here, and a slow broker must not stall every
		// coordinator entry point behind it.
		go c.publisher.PublishTranslationRefined(context.Background(), entry.ID, evt)
	}
}
