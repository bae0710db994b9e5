package transcript

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces transcript entry IDs unique within and across runs.
type Generator struct {
	runID   string
	counter uint64
}

// NewGenerator returns a generator scoped to a fresh run ID.
func NewGenerator() *Generator {
	return &Generator{runID: uuid.NewString()[:8]}
}

// Next returns the next entry ID.
func (g *Generator) Next() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-ent-%d", g.runID, n)
}
