// Package events publishes pipeline events downstream.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-speech-translator/internal/observability/metrics"
	"live-speech-translator/internal/schema"
)

// Publisher publishes finalized-entry and refined-translation events to
// separate Kafka topics. With Kafka disabled it runs in log-only mode, so
// the pipeline stays runnable without a broker.
type Publisher struct {
	writerEntries      *kafka.Writer
	writerTranslations *kafka.Writer
	principal          string
	topicEntries       string
	topicTranslations  string
	enabled            bool
	validator          *schema.Validator
	metrics            *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers           []string
	TopicEntries      string
	TopicTranslations string
	Principal         string
	Enabled           bool
}

// New creates an event publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, validator: v, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:         cfg.Principal,
			topicEntries:      cfg.TopicEntries,
			topicTranslations: cfg.TopicTranslations,
			enabled:           false,
			validator:         v,
			metrics:           m,
		}
	}

	// Longer dial timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerEntries := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicEntries,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerTranslations := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTranslations,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicEntries", cfg.TopicEntries).
		Str("topicTranslations", cfg.TopicTranslations).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerEntries:      writerEntries,
		writerTranslations: writerTranslations,
		principal:          cfg.Principal,
		topicEntries:       cfg.TopicEntries,
		topicTranslations:  cfg.TopicTranslations,
		enabled:            true,
		validator:          v,
		metrics:            m,
	}
}

// PublishEntryFinalized publishes a finalized-entry event.
func (p *Publisher) PublishEntryFinalized(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerEntries, p.topicEntries, "entry", key, event)
}

// PublishTranslationRefined publishes a refined-translation event.
func (p *Publisher) PublishTranslationRefined(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerTranslations, p.topicTranslations, "translation", key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Event failed validation")
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerEntries != nil {
		if e := p.writerEntries.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing entries writer")
			err = e
		}
	}
	if p.writerTranslations != nil {
		if e := p.writerTranslations.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing translations writer")
			err = e
		}
	}
	return err
}
