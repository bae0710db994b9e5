// Package schema validates outgoing events before publishing.
package schema

import (
	"errors"
	"fmt"

	"live-speech-translator/internal/models"
)

// Validation errors.
var (
	ErrMissingEntryID = errors.New("schema: missing entry id")
	ErrMissingText    = errors.New("schema: missing text")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the required fields of a known event type. Unknown
// event types pass through unchecked.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.EntryFinalized:
		if e.EntryID == "" {
			return ErrMissingEntryID
		}
		if e.Text == "" {
			return fmt.Errorf("%w: entry %s", ErrMissingText, e.EntryID)
		}
	case models.TranslationRefined:
		if e.EntryID == "" {
			return ErrMissingEntryID
		}
		if e.SourceText == "" || e.Translation == "" {
			return fmt.Errorf("%w: entry %s", ErrMissingText, e.EntryID)
		}
	}
	return nil
}
