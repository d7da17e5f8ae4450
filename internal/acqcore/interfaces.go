package acqcore

import (
	"context"
	"time"
)

// Device is the acquisition hardware or data source feeding the producer.
type Device interface {
	// ID returns a stable identifier used in logs and metrics
	ID() string

	// Open prepares the device for reading. A failure keeps the producer idle.
	Open(ctx context.Context) error

	// Close releases the device. It is called once after the run loop exits.
	Close() error

	// Shape returns the channels x samples dimension of every chunk
	Shape() Shape

	// SampleRate returns samples per second per channel
	SampleRate() float64

	// ReadChunk blocks until one chunk is available. It returns one slice per
	// channel, each Shape().Samples long. Finite sources return
	// ErrDeviceExhausted when done.
	ReadChunk(ctx context.Context) ([][]float64, error)
}

// Processor handles blocks popped by the consumer.
// The block is owned by the consumer and is reused after Process returns;
// processors that keep data must copy it.
type Processor interface {
	ID() string
	Process(ctx context.Context, block *SampleBlock) error
}

// ProcessorFunc adapts a function to the Processor interface
type ProcessorFunc func(ctx context.Context, block *SampleBlock) error

// ID implements Processor
func (f ProcessorFunc) ID() string { return "func" }

// Process implements Processor
func (f ProcessorFunc) Process(ctx context.Context, block *SampleBlock) error {
	return f(ctx, block)
}

// BufferObserver receives buffer timing and occupancy. Implementations must not block.
type BufferObserver interface {
	ObservePush(wait time.Duration, size int)
	ObservePop(wait time.Duration, size int)
}

// Metrics records pipeline events. The Prometheus collector in
// observability/metrics implements it.
type Metrics interface {
	BufferObserver
	RecordBlockProduced(deviceID string)
	RecordBlockConsumed(processorID string, duration time.Duration)
	RecordBlockDropped(reason string)
	RecordDeviceError(deviceID string)
	RecordProcessorError(processorID string)
	SetSessionState(state string)
}

// SessionListener is notified about controller session transitions.
type SessionListener interface {
	SessionStarted(status Status)
	SessionStopped(status Status)
	SessionFailed(status Status, err error)
}

// SessionPreparer is an optional SessionListener extension. SessionStarting
// runs before the consumer starts, so the first processed block already
// belongs to the announced session. The status carries the new session id
// with the state still idle.
type SessionPreparer interface {
	SessionStarting(status Status)
}

// noopMetrics is used when no metrics are configured
type noopMetrics struct{}

func (noopMetrics) ObservePush(time.Duration, int)              {}
func (noopMetrics) ObservePop(time.Duration, int)               {}
func (noopMetrics) RecordBlockProduced(string)                  {}
func (noopMetrics) RecordBlockConsumed(string, time.Duration)   {}
func (noopMetrics) RecordBlockDropped(string)                   {}
func (noopMetrics) RecordDeviceError(string)                    {}
func (noopMetrics) RecordProcessorError(string)                 {}
func (noopMetrics) SetSessionState(string)                      {}
