// Package transcript converts a speech session's partial/final event
// stream into a sequence of discrete utterance entries. It owns the single
// open-entry pointer, the cumulative finalized-prefix tracking, forced
// splitting of over-long runs, and silence-based promotion.
package transcript

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"live-speech-translator/internal/models"
	"live-speech-translator/internal/observability/logging"
	"live-speech-translator/internal/observability/metrics"
	"live-speech-translator/internal/service/speech"
)

// Finalization reasons, recorded in metrics and published events.
const (
	ReasonFinal       = "final"
	ReasonSilence     = "silence"
	ReasonForcedSplit = "forced_split"
	ReasonStop        = "stop"
)

// Sink receives entry lifecycle notifications from the state machine.
// The coordinator implements it.
type Sink interface {
	// EntryUpdated fires when the open entry's text changes (including
	// creation). The entry is a copy.
	EntryUpdated(entry models.TranscriptEntry)

	// EntryFinalized fires exactly once per entry when it closes.
	EntryFinalized(entry models.TranscriptEntry, reason string)

	// EntryEarlyRefine fires when silence is detected on an
	// utterance-scoped session: the entry stays open but is ready for a
	// refined translation of its current text.
	EntryEarlyRefine(entry models.TranscriptEntry)
}

// Config holds state machine tuning.
type Config struct {
	WordCeiling    int           // forced split threshold, cumulative sessions only
	SilenceTimeout time.Duration // quiet period before the open entry is promoted
}

// Machine is the transcript state machine for one run. Handle methods are
// invoked from the pipeline's single event loop; the silence timer fires
// on its own goroutine, so state is mutex-guarded.
type Machine struct {
	mu   sync.Mutex
	cfg  Config
	sem  speech.Semantics
	ids  *Generator
	sink Sink
	log  zerolog.Logger

	store          *Store
	openID         string
	prefixLen      int    // finalized byte length of the cumulative transcript
	lastCumulative string // most recent cumulative text seen
	earlyRefined   bool   // silence already early-refined the open entry

	silenceGen   int
	silenceTimer *time.Timer
	stopped      bool
}

// NewMachine creates a state machine writing entries into store and
// notifying sink.
func NewMachine(cfg Config, sem speech.Semantics, store *Store, sink Sink) *Machine {
	return &Machine{
		cfg:   cfg,
		sem:   sem,
		ids:   NewGenerator(),
		sink:  sink,
		store: store,
		log:   logging.WithComponent("transcript"),
	}
}

// HandlePartial processes an in-progress transcript event.
func (m *Machine) HandlePartial(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	current, ok := m.currentUtteranceText(text)
	if !ok {
		return
	}
	metrics.DefaultMetrics.PartialEvents.Inc()

	if m.openID == "" {
		m.openEntry(current)
	} else {
		m.updateOpen(current)
	}

	if m.sem == speech.Cumulative {
		m.forceSplitLocked(text)
	}
	m.resetSilenceTimer()
}

// HandleFinal processes a settled transcript event. With no open entry it
// creates one first, so chunk-only sessions that never emit partials still
// produce entries.
func (m *Machine) HandleFinal(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	current, ok := m.currentUtteranceText(text)
	if !ok {
		return
	}
	metrics.DefaultMetrics.FinalEvents.Inc()

	if m.openID == "" {
		m.openEntry(current)
	} else {
		m.updateOpen(current)
	}

	if m.sem == speech.Cumulative {
		m.prefixLen = len(text)
	}
	m.finalizeOpen(ReasonFinal)
}

// Stop cancels the silence timer and finalizes any still-open entry using
// its last known text. Further events are discarded.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.silenceGen++
	if m.silenceTimer != nil {
		m.silenceTimer.Stop()
		m.silenceTimer = nil
	}
	if m.openID != "" {
		m.finalizeOpen(ReasonStop)
	}
}

// currentUtteranceText derives the open-utterance text from an event's
// payload. Returns false for empty or already-consumed text.
func (m *Machine) currentUtteranceText(text string) (string, bool) {
	if m.sem == speech.Cumulative {
		m.lastCumulative = text
		if len(text) <= m.prefixLen {
			return "", false
		}
		text = text[m.prefixLen:]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, true
}

func (m *Machine) openEntry(text string) {
	e := &models.TranscriptEntry{
		ID:           m.ids.Next(),
		OriginalText: text,
		CreatedAt:    time.Now(),
	}
	m.store.Append(e)
	m.openID = e.ID
	m.earlyRefined = false
	metrics.DefaultMetrics.EntriesCreated.Inc()
	m.sink.EntryUpdated(*e)
}

func (m *Machine) updateOpen(text string) {
	var snap models.TranscriptEntry
	m.store.Update(m.openID, func(e *models.TranscriptEntry) {
		e.OriginalText = text
		snap = *e
	})
	m.sink.EntryUpdated(snap)
}

// forceSplitLocked finalizes the open entry at the word ceiling and opens
// a new one with the remainder. cumulative is the raw session-lifetime
// text the current prefix tracking is relative to. Loops in case a single
// event jumps past several ceilings.
func (m *Machine) forceSplitLocked(cumulative string) {
	for m.openID != "" {
		remainder := cumulative[m.prefixLen:]
		trimmed := strings.TrimSpace(remainder)
		if wordCount(trimmed) <= m.cfg.WordCeiling {
			return
		}
		cut := cutAfterWords(remainder, m.cfg.WordCeiling)
		head := strings.TrimSpace(remainder[:cut])
		tail := strings.TrimSpace(remainder[cut:])

		m.store.Update(m.openID, func(e *models.TranscriptEntry) {
			e.OriginalText = head
		})
		m.prefixLen += cut
		m.finalizeOpen(ReasonForcedSplit)

		if tail != "" {
			m.openEntry(tail)
		}
	}
}

// finalizeOpen closes the current open entry. Caller holds the lock.
func (m *Machine) finalizeOpen(reason string) {
	var snap models.TranscriptEntry
	m.store.Update(m.openID, func(e *models.TranscriptEntry) {
		e.Finalized = true
		snap = *e
	})
	m.openID = ""
	m.silenceGen++
	metrics.DefaultMetrics.RecordEntryFinalized(reason)
	m.log.Debug().Str("entryId", snap.ID).Str("reason", reason).Msg("entry finalized")
	m.sink.EntryFinalized(snap, reason)
}

// resetSilenceTimer (re)arms the silence timer for the open entry. Caller
// holds the lock.
func (m *Machine) resetSilenceTimer() {
	m.silenceGen++
	gen := m.silenceGen
	if m.silenceTimer != nil {
		m.silenceTimer.Stop()
	}
	if m.cfg.SilenceTimeout <= 0 {
		return
	}
	m.silenceTimer = time.AfterFunc(m.cfg.SilenceTimeout, func() {
		m.onSilence(gen)
	})
}

// onSilence fires when no event arrived within the silence timeout. A
// stale generation means a newer event or a finalization got there first.
func (m *Machine) onSilence(gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || gen != m.silenceGen || m.openID == "" {
		return
	}

	if m.sem == speech.UtteranceScoped {
		// The session owns utterance boundaries; request a refined
		// translation early but defer finalization to its final event.
		if m.earlyRefined {
			return
		}
		m.earlyRefined = true
		if e, ok := m.store.Get(m.openID); ok {
			m.sink.EntryEarlyRefine(e)
		}
		return
	}

	m.prefixLen = len(m.lastCumulative)
	m.finalizeOpen(ReasonSilence)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// cutAfterWords returns the byte index in s just before the start of word
// n+1, or len(s) when s holds at most n words.
func cutAfterWords(s string, n int) int {
	inWord := false
	count := 0
	for i, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			count++
			if count == n+1 {
				return i
			}
		}
	}
	return len(s)
}
