package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"live-speech-translator/internal/config"
	"live-speech-translator/internal/events"
	apihttp "live-speech-translator/internal/http"
	"live-speech-translator/internal/observability"
	"live-speech-translator/internal/observability/logging"
	"live-speech-translator/internal/pipeline"
	"live-speech-translator/internal/service/translate"
	"live-speech-translator/internal/source"
)

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     logging.DefaultConfig().Format,
		TimeFormat: logging.DefaultConfig().TimeFormat,
	})

	publisher := events.New(&events.Config{
		Enabled:           cfg.Kafka.Enabled,
		Brokers:           cfg.Kafka.Brokers,
		TopicEntries:      cfg.Kafka.TopicEntries,
		TopicTranslations: cfg.Kafka.TopicTranslations,
		Principal:         cfg.Kafka.Principal,
	})
	defer publisher.Close()

	var translator translate.Client
	if cfg.Translation.Endpoint != "" {
		translator = translate.NewHTTP(cfg.Translation.Endpoint, cfg.Translation.APIKey,
			cfg.Translation.TargetLanguage, cfg.Translation.Timeout)
	} else {
		log.Warn().Msg("no translation endpoint configured, echoing source text")
		translator = translate.Echo{}
	}

	src := buildSource(cfg)
	ctrl := pipeline.New(cfg, src, translator, publisher)

	obs := observability.NewServer(cfg.Observability.MetricsAddr)
	obs.Start()

	api := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      apihttp.NewRouter(ctrl),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", api.Addr).Msg("control API listening")
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("control API serve failed")
		}
	}()

	if err := ctrl.Start(context.Background()); err != nil {
		log.Error().Err(err).Msg("pipeline did not start, waiting for API start request")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	ctrl.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = api.Shutdown(shutdownCtx)
	_ = obs.Shutdown(shutdownCtx)
}

// buildSource picks the audio frame source: a PCM file when configured,
// otherwise a silent ticker that keeps scripted sessions advancing.
func buildSource(cfg *config.Configuration) source.Source {
	if cfg.Speech.AudioFile != "" {
		return source.NewFileSource(cfg.Speech.AudioFile, cfg.Speech.SampleRateHz, 100*time.Millisecond)
	}
	frameBytes := cfg.Speech.SampleRateHz * 2 / 10
	return source.NewTickerSource(100*time.Millisecond, frameBytes)
}
