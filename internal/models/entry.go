// Package models defines the data structures shared across the pipeline.
package models

import "time"

// TranscriptEntry is one utterance flowing through the pipeline. It is
// created when the transcript state machine opens a new utterance, mutated
// in place while the utterance grows and translations complete, and frozen
// once Finalized is set. Entries are never removed during a run.
type TranscriptEntry struct {
	ID                 string    `json:"id"`
	OriginalText       string    `json:"originalText"`
	QuickTranslation   string    `json:"quickTranslation,omitempty"`
	QuickSourceText    string    `json:"quickSourceText,omitempty"`
	ContextTranslation string    `json:"contextTranslation,omitempty"`
	Finalized          bool      `json:"finalized"`
	CreatedAt          time.Time `json:"createdAt"`
}

// DisplayTranslation returns the best translation currently available for
// the entry. A refined (context-aware) translation always wins over the
// quick one.
func (e *TranscriptEntry) DisplayTranslation() string {
	if e.ContextTranslation != "" {
		return e.ContextTranslation
	}
	return e.QuickTranslation
}

// ContextPair is a confirmed source/translation pair used to condition
// subsequent refined translations.
type ContextPair struct {
	SourceText      string `json:"sourceText"`
	TranslationText string `json:"translationText"`
}

// EntryFinalized is the event published when an utterance entry closes.
type EntryFinalized struct {
	EventType string `json:"eventType"`
	EntryID   string `json:"entryId"`
	Text      string `json:"text"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// TranslationRefined is the event published when a refined translation
// completes for a finalized entry.
type TranslationRefined struct {
	EventType   string `json:"eventType"`
	EntryID     string `json:"entryId"`
	SourceText  string `json:"sourceText"`
	Translation string `json:"translation"`
	Timestamp   int64  `json:"timestamp"`
}
