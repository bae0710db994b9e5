package events

import (
	"context"
	"errors"
	"testing"

	"live-speech-translator/internal/models"
	"live-speech-translator/internal/schema"
)

func TestDisabledPublisherAcceptsEvents(t *testing.T) {
	p := New(&Config{
		Enabled:           false,
		TopicEntries:      "caption.entry.finalized",
		TopicTranslations: "caption.translation.refined",
		Principal:         "svc-test",
	})
	defer p.Close()

	err := p.PublishEntryFinalized(context.Background(), "e1", models.EntryFinalized{
		EventType: "caption.entry.finalized",
		EntryID:   "e1",
		Text:      "hello world",
		Reason:    "final",
		Timestamp: 1700000000000,
	})
	if err != nil {
		t.Errorf("disabled publish returned %v", err)
	}

	err = p.PublishTranslationRefined(context.Background(), "e1", models.TranslationRefined{
		EventType:   "caption.translation.refined",
		EntryID:     "e1",
		SourceText:  "hello world",
		Translation: "hola mundo",
		Timestamp:   1700000000000,
	})
	if err != nil {
		t.Errorf("disabled publish returned %v", err)
	}
}

func TestNilConfigFallsBackToLogOnly(t *testing.T) {
	p := New(nil)
	defer p.Close()

	err := p.PublishEntryFinalized(context.Background(), "e1", models.EntryFinalized{
		EntryID: "e1",
		Text:    "hello",
	})
	if err != nil {
		t.Errorf("publish with nil config returned %v", err)
	}
}

func TestPublishRejectsInvalidEvents(t *testing.T) {
	p := New(&Config{Enabled: false})
	defer p.Close()

	err := p.PublishEntryFinalized(context.Background(), "", models.EntryFinalized{Text: "orphan"})
	if !errors.Is(err, schema.ErrMissingEntryID) {
		t.Errorf("err = %v, want ErrMissingEntryID", err)
	}

	err = p.PublishTranslationRefined(context.Background(), "e1", models.TranslationRefined{EntryID: "e1"})
	if !errors.Is(err, schema.ErrMissingText) {
		t.Errorf("err = %v, want ErrMissingText", err)
	}
}

func TestBrokerlessConfigDisablesKafka(t *testing.T) {
	p := New(&Config{Enabled: true, Brokers: nil})
	defer p.Close()
	if p.enabled {
		t.Error("publisher enabled without brokers")
	}
}
