package processors

import (
	"context"
	"sync/atomic"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// Counter counts blocks and logs progress every interval blocks
type Counter struct {
	interval uint64
	logger   logger.Logger
	count    atomic.Uint64
}

// NewCounter returns a counter that logs every interval blocks. An interval
// below 1 logs every block.
func NewCounter(interval int, log logger.Logger) *Counter {
	if interval < 1 {
		interval = 1
	}
	return &Counter{interval: uint64(interval), logger: log}
}

// ID implements acqcore.Processor
func (c *Counter) ID() string { return "counter" }

// Process implements acqcore.Processor
func (c *Counter) Process(_ context.Context, block *acqcore.SampleBlock) error {
	n := c.count.Add(1)
	if n%c.interval == 0 {
		c.logger.Info("received block",
			logger.Uint64("count", n),
			logger.String("shape", block.Shape().String()))
	}
	return nil
}

// Count returns the number of blocks seen
func (c *Counter) Count() uint64 {
	return c.count.Load()
}
