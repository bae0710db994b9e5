package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-speech-translator/internal/observability/logging"
)

// FileSource replays a raw PCM file at real-time pace, one frame per
// interval, sized to the stream's byte rate. It stops at EOF.
type FileSource struct {
	path         string
	sampleRateHz int
	interval     time.Duration
	log          zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewFileSource creates a source replaying the raw 16-bit mono PCM file at
// path. interval controls frame pacing; zero means 100ms frames.
func NewFileSource(path string, sampleRateHz int, interval time.Duration) *FileSource {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &FileSource{
		path:         path,
		sampleRateHz: sampleRateHz,
		interval:     interval,
		log:          logging.WithComponent("source.file"),
	}
}

// Start opens the file and begins delivering frames on a ticker.
func (f *FileSource) Start(ctx context.Context, push PushFunc) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("opening audio file: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	// bytes of 16-bit mono PCM per frame interval
	frameSize := int(float64(f.sampleRateHz*2) * f.interval.Seconds())

	go func() {
		defer file.Close()
		defer cancel()
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		buf := make([]byte, frameSize)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				n, err := io.ReadFull(file, buf)
				if n > 0 {
					frame := make([]byte, n)
					copy(frame, buf[:n])
					push(frame)
				}
				if err != nil {
					if err != io.EOF && err != io.ErrUnexpectedEOF {
						f.log.Error().Err(err).Msg("reading audio file")
					} else {
						f.log.Info().Str("path", f.path).Msg("audio file exhausted")
					}
					return
				}
			}
		}
	}()

	f.log.Info().Str("path", f.path).Int("frameBytes", frameSize).Msg("file source started")
	return nil
}

// Stop halts frame delivery.
func (f *FileSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}
