package acqcore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// ConsumerStats is a snapshot of consumer counters
type ConsumerStats struct {
	Processed uint64 `json:"processed"`
	Skipped   uint64 `json:"skipped"`
	Failed    uint64 `json:"failed"`
}

// Consumer pops blocks from a MatrixBuffer and passes them to a Processor
// until the buffer is closed or the consumer is stopped.
type Consumer struct {
	buffer    *MatrixBuffer
	processor Processor
	logger    logger.Logger
	metrics   Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}

	processed atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64

	errLimiter *rate.Limiter
}

// ConsumerOption configures a Consumer
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger
func WithConsumerLogger(l logger.Logger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConsumerMetrics sets the metrics sink
func WithConsumerMetrics(m Metrics) ConsumerOption {
	return func(c *Consumer) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewConsumer creates a stopped consumer
func NewConsumer(buffer *MatrixBuffer, processor Processor, opts ...ConsumerOption) (*Consumer, error) {
	if buffer == nil {
		return nil, newConfigError("consumer requires a buffer")
	}
	if processor == nil {
		return nil, newConfigError("consumer requires a processor")
	}

	c := &Consumer{
		buffer:     buffer,
		processor:  processor,
		logger:     logger.Global().Module(ComponentAcqCore).Module("consumer"),
		metrics:    noopMetrics{},
		done:       closedChan(),
		errLimiter: rate.NewLimiter(rate.Every(errorLogInterval), errorLogBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.String("processor", processor.ID()))

	return c, nil
}

// Start launches the consume loop
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return newStateError("consumer", ErrAlreadyRunning)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	c.wg.Add(1)
	go c.run(runCtx, c.done)

	c.logger.Debug("consumer started")
	return nil
}

// Stop cancels the loop and waits for it to exit. Stop on a stopped consumer is a no-op.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	c.cancel()
	c.wg.Wait()
	c.cancel = nil
	c.running = false

	stats := c.Stats()
	c.logger.Info("consumer stopped",
		logger.Uint64("processed", stats.Processed),
		logger.Uint64("skipped", stats.Skipped),
		logger.Uint64("failed", stats.Failed))
}

// Done is closed when the loop exits
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Count returns the number of blocks processed successfully
func (c *Consumer) Count() uint64 {
	return c.processed.Load()
}

// Stats returns a snapshot of the consumer counters
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed: c.processed.Load(),
		Skipped:   c.skipped.Load(),
		Failed:    c.failed.Load(),
	}
}

func (c *Consumer) run(ctx context.Context, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)

	shape := c.buffer.Shape()
	block := &SampleBlock{shape: shape, data: make([]float64, shape.Len())}
	processorID := c.processor.ID()

	for {
		if err := c.buffer.PopInto(ctx, block); err != nil {
			switch {
			case errors.Is(err, ErrBufferClosed):
				c.logger.Debug("buffer closed, consumer loop finished")
			case ctx.Err() != nil:
				c.logger.Debug("consumer cancelled")
			default:
				c.logger.Error("pop failed, consumer loop finished", logger.Error(err))
			}
			return
		}

		// Buffers built before real dimensions were known hold empty blocks
		if block.IsEmpty() {
			c.skipped.Add(1)
			continue
		}

		start := time.Now()
		if err := c.processor.Process(ctx, block); err != nil {
			c.failed.Add(1)
			c.metrics.RecordProcessorError(processorID)
			if c.errLimiter.Allow() {
				c.logger.Warn("processor failed, skipping block",
					logger.Uint64("sequence", block.Sequence),
					logger.Error(err))
			}
			continue
		}

		c.processed.Add(1)
		c.metrics.RecordBlockConsumed(processorID, time.Since(start))
	}
}
