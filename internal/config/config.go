// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all runtime settings for the pipeline.
type Configuration struct {
	Service       ServiceConfig
	Speech        SpeechConfig
	Transcript    TranscriptConfig
	Translation   TranslationConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds process identity and serving settings.
type ServiceConfig struct {
	Name     string
	HTTPPort string
}

// SpeechConfig holds speech-session settings shared by all provider variants.
type SpeechConfig struct {
	Provider     string // mock, stream, google, chunked
	LanguageCode string
	SampleRateHz int
	APIKey       string
	StreamURL    string // websocket endpoint for the stream provider
	ChunkURL     string // HTTP transcription endpoint for the chunked provider
	AudioFile    string // raw PCM file replayed as the audio source

	FlushInterval     time.Duration // audio buffer flush cadence
	RecognitionWindow time.Duration // cumulative providers: transparent restart interval
	SessionCap        time.Duration // hard provider limit: proactive reconnect before it
	ReconnectMax      int
	ReconnectBackoff  time.Duration // delay = backoff * attempt
	ChunkWindow       time.Duration // chunked provider: audio per request
	ChunkMin          time.Duration // chunked provider: smallest window worth sending
}

// TranscriptConfig holds transcript state machine tuning.
type TranscriptConfig struct {
	WordCeiling    int           // forced split threshold for cumulative sessions
	SilenceTimeout time.Duration // promote the open entry after this much quiet
}

// TranslationConfig holds translation provider and coordinator tuning.
type TranslationConfig struct {
	Endpoint       string
	APIKey         string
	TargetLanguage string
	Timeout        time.Duration
	QuickMinWords  int           // quick path triggers at this word count
	QuickInterval  time.Duration // minimum spacing between quick dispatches
	ContextWindow  int           // refined translation context pairs kept
}

// KafkaConfig holds downstream event publishing settings.
type KafkaConfig struct {
	Enabled           bool
	Brokers           []string
	TopicEntries      string
	TopicTranslations string
	Principal         string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	MetricsAddr string
}

// Load reads configuration from the environment, falling back to defaults
// for anything unset or unparsable.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-live-speech-translator")
	return &Configuration{
		Service: ServiceConfig{
			Name:     principal,
			HTTPPort: envOrDefault("HTTP_PORT", "8080"),
		},
		Speech: SpeechConfig{
			Provider:          envOrDefault("SPEECH_PROVIDER", "mock"),
			LanguageCode:      envOrDefault("SPEECH_LANGUAGE_CODE", "en-US"),
			SampleRateHz:      envOrDefaultInt("SPEECH_SAMPLE_RATE_HZ", 16000),
			APIKey:            os.Getenv("SPEECH_API_KEY"),
			StreamURL:         os.Getenv("SPEECH_STREAM_URL"),
			ChunkURL:          os.Getenv("SPEECH_CHUNK_URL"),
			AudioFile:         os.Getenv("SPEECH_AUDIO_FILE"),
			FlushInterval:     envOrDefaultDuration("SPEECH_FLUSH_INTERVAL", 250*time.Millisecond),
			RecognitionWindow: envOrDefaultDuration("SPEECH_RECOGNITION_WINDOW", 55*time.Second),
			SessionCap:        envOrDefaultDuration("SPEECH_SESSION_CAP", 290*time.Second),
			ReconnectMax:      envOrDefaultInt("SPEECH_RECONNECT_MAX", 4),
			ReconnectBackoff:  envOrDefaultDuration("SPEECH_RECONNECT_BACKOFF", time.Second),
			ChunkWindow:       envOrDefaultDuration("SPEECH_CHUNK_WINDOW", 4*time.Second),
			ChunkMin:          envOrDefaultDuration("SPEECH_CHUNK_MIN", 500*time.Millisecond),
		},
		Transcript: TranscriptConfig{
			WordCeiling:    envOrDefaultInt("TRANSCRIPT_WORD_CEILING", 20),
			SilenceTimeout: envOrDefaultDuration("TRANSCRIPT_SILENCE_TIMEOUT", 2*time.Second),
		},
		Translation: TranslationConfig{
			Endpoint:       os.Getenv("TRANSLATION_ENDPOINT"),
			APIKey:         os.Getenv("TRANSLATION_API_KEY"),
			TargetLanguage: envOrDefault("TRANSLATION_TARGET_LANGUAGE", "es"),
			Timeout:        envOrDefaultDuration("TRANSLATION_TIMEOUT", 8*time.Second),
			QuickMinWords:  envOrDefaultInt("TRANSLATION_QUICK_MIN_WORDS", 3),
			QuickInterval:  envOrDefaultDuration("TRANSLATION_QUICK_INTERVAL", 700*time.Millisecond),
			ContextWindow:  envOrDefaultInt("TRANSLATION_CONTEXT_WINDOW", 10),
		},
		Kafka: KafkaConfig{
			Enabled:           envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:           envOrDefaultSlice("KAFKA_BROKERS", nil),
			TopicEntries:      envOrDefault("KAFKA_TOPIC_ENTRIES", "caption.entry.finalized"),
			TopicTranslations: envOrDefault("KAFKA_TOPIC_TRANSLATIONS", "caption.translation.refined"),
			Principal:         envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
