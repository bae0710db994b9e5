package schema

import (
	"errors"
	"testing"

	"live-speech-translator/internal/models"
)

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		event   any
		wantErr error
	}{
		{
			name: "valid entry finalized",
			event: models.EntryFinalized{
				EntryID: "e1",
				Text:    "hello",
				Reason:  "final",
			},
		},
		{
			name:    "entry missing id",
			event:   models.EntryFinalized{Text: "hello"},
			wantErr: ErrMissingEntryID,
		},
		{
			name:    "entry missing text",
			event:   models.EntryFinalized{EntryID: "e1"},
			wantErr: ErrMissingText,
		},
		{
			name: "valid translation refined",
			event: models.TranslationRefined{
				EntryID:     "e1",
				SourceText:  "hello",
				Translation: "hola",
			},
		},
		{
			name:    "translation missing id",
			event:   models.TranslationRefined{SourceText: "a", Translation: "b"},
			wantErr: ErrMissingEntryID,
		},
		{
			name:    "translation missing translation",
			event:   models.TranslationRefined{EntryID: "e1", SourceText: "a"},
			wantErr: ErrMissingText,
		},
		{
			name:  "unknown type passes",
			event: struct{ X int }{X: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
