// Package processors contains the consumers of acquired sample blocks:
// counting, statistics, display snapshots, recording and MQTT publishing.
package processors

import (
	"context"
	"fmt"
	"sync"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/errors"
)

// Chain hands every block to each of its processors in order. A failing
// processor does not stop the others; their errors are joined.
type Chain struct {
	mu         sync.RWMutex
	processors []acqcore.Processor
}

// NewChain returns a chain of the given processors, skipping nil entries
func NewChain(processors ...acqcore.Processor) *Chain {
	c := &Chain{}
	for _, p := range processors {
		c.Add(p)
	}
	return c
}

// Add appends a processor
func (c *Chain) Add(p acqcore.Processor) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processors = append(c.processors, p)
}

// Len returns the number of processors
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.processors)
}

// ID implements acqcore.Processor
func (c *Chain) ID() string { return "chain" }

// Process implements acqcore.Processor
func (c *Chain) Process(ctx context.Context, block *acqcore.SampleBlock) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	for _, p := range c.processors {
		if err := p.Process(ctx, block); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.ID(), err))
		}
	}
	return errors.Join(errs...)
}
