package source

import (
	"context"
	"sync"
	"time"
)

// TickerSource emits zero-filled frames on a fixed interval. It stands in
// for a capture device in development and keeps scripted speech sessions
// advancing.
type TickerSource struct {
	interval  time.Duration
	frameSize int

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewTickerSource creates a ticker source. Zero values fall back to 100ms
// frames of 3200 bytes (16kHz, 16-bit mono).
func NewTickerSource(interval time.Duration, frameSize int) *TickerSource {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if frameSize <= 0 {
		frameSize = 3200
	}
	return &TickerSource{interval: interval, frameSize: frameSize}
}

// Start begins emitting frames.
func (t *TickerSource) Start(ctx context.Context, push PushFunc) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				push(make([]byte, t.frameSize))
			}
		}
	}()
	return nil
}

// Stop halts frame delivery.
func (t *TickerSource) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
