// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_speech_translator"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted    *prometheus.CounterVec
	SessionsActive     prometheus.Gauge
	SessionReconnects  *prometheus.CounterVec
	ReconnectExhausted *prometheus.CounterVec
	SessionErrors      *prometheus.CounterVec

	// Transcript metrics
	PartialEvents    prometheus.Counter
	FinalEvents      prometheus.Counter
	EntriesCreated   prometheus.Counter
	EntriesFinalized *prometheus.CounterVec

	// Audio metrics
	AudioBytesFed  prometheus.Counter
	AudioFramesFed prometheus.Counter

	// Translation metrics
	QuickDispatched  prometheus.Counter
	QuickApplied     prometheus.Counter
	QuickStale       prometheus.Counter
	QuickFailed      prometheus.Counter
	RefinedTotal     prometheus.Counter
	RefinedFailed    prometheus.Counter
	TranslateLatency *prometheus.HistogramVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of speech sessions started",
		}, []string{"provider"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active speech sessions",
		}),
		SessionReconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_reconnects_total",
			Help:      "Total number of speech session reconnect attempts",
		}, []string{"provider"}),
		ReconnectExhausted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_reconnect_exhausted_total",
			Help:      "Total number of sessions terminated after exhausting the reconnect budget",
		}, []string{"provider"}),
		SessionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Total number of speech session errors",
		}, []string{"provider", "error_type"}),

		PartialEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_events_total",
			Help:      "Total number of partial transcript events received",
		}),
		FinalEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "final_events_total",
			Help:      "Total number of final transcript events received",
		}),
		EntriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_created_total",
			Help:      "Total number of transcript entries opened",
		}),
		EntriesFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_finalized_total",
			Help:      "Total number of transcript entries finalized",
		}, []string{"reason"}),

		AudioBytesFed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_fed_total",
			Help:      "Total audio bytes fed to the speech session",
		}),
		AudioFramesFed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_fed_total",
			Help:      "Total audio frames fed to the speech session",
		}),

		QuickDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quick_translations_dispatched_total",
			Help:      "Total number of quick translation requests dispatched",
		}),
		QuickApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quick_translations_applied_total",
			Help:      "Total number of quick translation results applied to entries",
		}),
		QuickStale: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quick_translations_stale_total",
			Help:      "Total number of quick translation results discarded as stale",
		}),
		QuickFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quick_translations_failed_total",
			Help:      "Total number of failed quick translation requests",
		}),
		RefinedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refined_translations_total",
			Help:      "Total number of refined translation requests dispatched",
		}),
		RefinedFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refined_translations_failed_total",
			Help:      "Total number of failed refined translation requests",
		}),
		TranslateLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translate_latency_seconds",
			Help:      "Translation request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"path"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a new speech session starting.
func (m *Metrics) RecordSessionStart(provider string) {
	m.SessionsStarted.WithLabelValues(provider).Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a speech session ending.
func (m *Metrics) RecordSessionEnd() {
	m.SessionsActive.Dec()
}

// RecordReconnect records a reconnect attempt.
func (m *Metrics) RecordReconnect(provider string) {
	m.SessionReconnects.WithLabelValues(provider).Inc()
}

// RecordReconnectExhausted records a session giving up after its budget.
func (m *Metrics) RecordReconnectExhausted(provider string) {
	m.ReconnectExhausted.WithLabelValues(provider).Inc()
}

// RecordSessionError records a speech session error.
func (m *Metrics) RecordSessionError(provider, errorType string) {
	m.SessionErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordEntryFinalized records an entry finalization and its reason
// (final, silence, forced_split, stop).
func (m *Metrics) RecordEntryFinalized(reason string) {
	m.EntriesFinalized.WithLabelValues(reason).Inc()
}

// RecordAudioFed records audio bytes and frames fed to the session.
func (m *Metrics) RecordAudioFed(bytes int) {
	m.AudioBytesFed.Add(float64(bytes))
	m.AudioFramesFed.Inc()
}

// RecordQuickResult records the outcome of a completed quick translation.
func (m *Metrics) RecordQuickResult(applied bool, err error) {
	if err != nil {
		m.QuickFailed.Inc()
		return
	}
	if applied {
		m.QuickApplied.Inc()
	} else {
		m.QuickStale.Inc()
	}
}

// RecordTranslateLatency records a translation round trip for a path
// (quick or refined).
func (m *Metrics) RecordTranslateLatency(path string, seconds float64) {
	m.TranslateLatency.WithLabelValues(path).Observe(seconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
