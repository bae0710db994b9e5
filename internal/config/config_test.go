package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if got, want := cfg.Speech.Provider, "mock"; got != want {
		t.Errorf("Provider = %q, want %q", got, want)
	}
	if got, want := cfg.Speech.FlushInterval, 250*time.Millisecond; got != want {
		t.Errorf("FlushInterval = %v, want %v", got, want)
	}
	if got, want := cfg.Speech.RecognitionWindow, 55*time.Second; got != want {
		t.Errorf("RecognitionWindow = %v, want %v", got, want)
	}
	if got, want := cfg.Speech.SessionCap, 290*time.Second; got != want {
		t.Errorf("SessionCap = %v, want %v", got, want)
	}
	if got, want := cfg.Speech.ReconnectMax, 4; got != want {
		t.Errorf("ReconnectMax = %d, want %d", got, want)
	}
	if got, want := cfg.Transcript.WordCeiling, 20; got != want {
		t.Errorf("WordCeiling = %d, want %d", got, want)
	}
	if got, want := cfg.Transcript.SilenceTimeout, 2*time.Second; got != want {
		t.Errorf("SilenceTimeout = %v, want %v", got, want)
	}
	if got, want := cfg.Translation.QuickMinWords, 3; got != want {
		t.Errorf("QuickMinWords = %d, want %d", got, want)
	}
	if got, want := cfg.Translation.QuickInterval, 700*time.Millisecond; got != want {
		t.Errorf("QuickInterval = %v, want %v", got, want)
	}
	if got, want := cfg.Translation.ContextWindow, 10; got != want {
		t.Errorf("ContextWindow = %d, want %d", got, want)
	}
	if cfg.Kafka.Enabled {
		t.Error("Kafka should default to disabled")
	}
	if got, want := cfg.Kafka.TopicEntries, "caption.entry.finalized"; got != want {
		t.Errorf("TopicEntries = %q, want %q", got, want)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SPEECH_PROVIDER", "stream")
	t.Setenv("SPEECH_API_KEY", "k-123")
	t.Setenv("SPEECH_STREAM_URL", "wss://stt.example.com/v1")
	t.Setenv("SPEECH_RECONNECT_MAX", "7")
	t.Setenv("TRANSCRIPT_SILENCE_TIMEOUT", "1500ms")
	t.Setenv("TRANSLATION_TARGET_LANGUAGE", "de")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")

	cfg := Load()

	if got, want := cfg.Speech.Provider, "stream"; got != want {
		t.Errorf("Provider = %q, want %q", got, want)
	}
	if got, want := cfg.Speech.APIKey, "k-123"; got != want {
		t.Errorf("APIKey = %q, want %q", got, want)
	}
	if got, want := cfg.Speech.StreamURL, "wss://stt.example.com/v1"; got != want {
		t.Errorf("StreamURL = %q, want %q", got, want)
	}
	if got, want := cfg.Speech.ReconnectMax, 7; got != want {
		t.Errorf("ReconnectMax = %d, want %d", got, want)
	}
	if got, want := cfg.Transcript.SilenceTimeout, 1500*time.Millisecond; got != want {
		t.Errorf("SilenceTimeout = %v, want %v", got, want)
	}
	if got, want := cfg.Translation.TargetLanguage, "de"; got != want {
		t.Errorf("TargetLanguage = %q, want %q", got, want)
	}
	if !cfg.Kafka.Enabled {
		t.Error("Kafka should be enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b2:9092" {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("SPEECH_RECONNECT_MAX", "many")
	t.Setenv("SPEECH_FLUSH_INTERVAL", "soon")
	t.Setenv("KAFKA_ENABLED", "yep")

	cfg := Load()

	if got, want := cfg.Speech.ReconnectMax, 4; got != want {
		t.Errorf("ReconnectMax = %d, want default %d", got, want)
	}
	if got, want := cfg.Speech.FlushInterval, 250*time.Millisecond; got != want {
		t.Errorf("FlushInterval = %v, want default %v", got, want)
	}
	if cfg.Kafka.Enabled {
		t.Error("unparsable bool should fall back to default")
	}
}
