// Package source produces the PCM audio frames fed into the pipeline.
package source

import "context"

// PushFunc receives one audio frame. Implementations must not retain the
// slice after returning.
type PushFunc func(frame []byte)

// Source is an audio frame producer. Start begins delivery to push and
// returns immediately; Stop halts delivery and is idempotent.
type Source interface {
	Start(ctx context.Context, push PushFunc) error
	Stop()
}
