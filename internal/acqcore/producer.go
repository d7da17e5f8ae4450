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

// errorBackoff pauses the run loop after a failed device read so a broken
// device cannot spin the CPU.
const errorBackoff = 50 * time.Millisecond

// ProducerState is the lifecycle state of a Producer
type ProducerState int32

const (
	ProducerIdle ProducerState = iota
	ProducerRunning
	ProducerStopping
)

// String implements fmt.Stringer
func (s ProducerState) String() string {
	switch s {
	case ProducerIdle:
		return "idle"
	case ProducerRunning:
		return "running"
	case ProducerStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ProducerStats is a snapshot of producer counters
type ProducerStats struct {
	BlocksProduced uint64 `json:"blocks_produced"`
	DeviceErrors   uint64 `json:"device_errors"`
	DroppedBlocks  uint64 `json:"dropped_blocks"`
}

// Producer reads chunks from a Device on its own goroutine, wraps them into
// SampleBlocks and pushes them into a MatrixBuffer.
type Producer struct {
	device  Device
	buffer  *MatrixBuffer
	logger  logger.Logger
	metrics Metrics

	closeBufferOnStop bool

	mu            sync.Mutex // serialises Start and Stop
	state         atomic.Int32
	stopRequested atomic.Bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	done          chan struct{}

	produced     atomic.Uint64
	deviceErrors atomic.Uint64
	dropped      atomic.Uint64

	errLimiter *rate.Limiter
}

// ProducerOption configures a Producer
type ProducerOption func(*Producer)

// WithProducerLogger sets the logger
func WithProducerLogger(l logger.Logger) ProducerOption {
	return func(p *Producer) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProducerMetrics sets the metrics sink
func WithProducerMetrics(m Metrics) ProducerOption {
	return func(p *Producer) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithCloseBufferOnStop controls whether Stop closes the buffer. It defaults
// to true so a standalone producer releases a consumer blocked on Pop. The
// Controller disables it because it drains the buffer before closing.
func WithCloseBufferOnStop(enabled bool) ProducerOption {
	return func(p *Producer) {
		p.closeBufferOnStop = enabled
	}
}

// NewProducer creates an idle producer
func NewProducer(device Device, buffer *MatrixBuffer, opts ...ProducerOption) (*Producer, error) {
	if device == nil {
		return nil, newConfigError("producer requires a device")
	}
	if buffer == nil {
		return nil, newConfigError("producer requires a buffer")
	}

	p := &Producer{
		device:            device,
		buffer:            buffer,
		logger:            logger.Global().Module(ComponentAcqCore).Module("producer"),
		metrics:           noopMetrics{},
		closeBufferOnStop: true,
		done:              closedChan(),
		errLimiter:        rate.NewLimiter(rate.Every(errorLogInterval), errorLogBurst),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logger.String("device_id", device.ID()))

	return p, nil
}

// Start opens the device and launches the run loop. If the device cannot be
// opened the producer stays idle and the device error is returned.
func (p *Producer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != ProducerIdle {
		return newStateError("producer", ErrAlreadyRunning)
	}

	if err := p.device.Open(ctx); err != nil {
		p.metrics.RecordDeviceError(p.device.ID())
		p.logger.Error("device open failed", logger.Error(err))
		return NewDeviceError(p.device.ID(), "open", err)
	}

	if shape := p.device.Shape(); shape != p.buffer.Shape() {
		_ = p.device.Close()
		return newShapeMismatchError("device_open", p.buffer.Shape(), shape)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.stopRequested.Store(false)
	p.state.Store(int32(ProducerRunning))

	p.wg.Add(1)
	go p.run(runCtx, p.done)

	p.logger.Info("producer started",
		logger.String("shape", p.buffer.Shape().String()),
		logger.Float64("sample_rate", p.device.SampleRate()))

	return nil
}

// Stop requests the run loop to end, waits for it and closes the device.
// No push happens after Stop returns. Stop on an idle producer is a no-op.
func (p *Producer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != ProducerRunning {
		return nil
	}

	p.state.Store(int32(ProducerStopping))
	p.stopRequested.Store(true)
	p.cancel()
	if p.closeBufferOnStop {
		p.buffer.Close()
	}

	p.wg.Wait()

	var closeErr error
	if err := p.device.Close(); err != nil {
		closeErr = NewDeviceError(p.device.ID(), "close", err)
		p.logger.Warn("device close failed", logger.Error(err))
	}

	p.cancel = nil
	p.state.Store(int32(ProducerIdle))

	stats := p.Stats()
	p.logger.Info("producer stopped",
		logger.Uint64("blocks_produced", stats.BlocksProduced),
		logger.Uint64("device_errors", stats.DeviceErrors),
		logger.Uint64("dropped_blocks", stats.DroppedBlocks))

	return closeErr
}

// State returns the current lifecycle state
func (p *Producer) State() ProducerState {
	return ProducerState(p.state.Load())
}

// Stats returns a snapshot of the producer counters
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		BlocksProduced: p.produced.Load(),
		DeviceErrors:   p.deviceErrors.Load(),
		DroppedBlocks:  p.dropped.Load(),
	}
}

// Done is closed when the run loop exits, either after Stop or because the
// device was exhausted or the buffer was closed.
func (p *Producer) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Producer) run(ctx context.Context, done chan struct{}) {
	defer p.wg.Done()
	defer close(done)

	shape := p.buffer.Shape()
	staging := &SampleBlock{shape: shape, data: make([]float64, shape.Len())}
	blockSpan := time.Duration(0)
	if sr := p.device.SampleRate(); sr > 0 {
		blockSpan = time.Duration(float64(shape.Samples) / sr * float64(time.Second))
	}

	var sequence uint64
	for !p.stopRequested.Load() {
		rows, err := p.device.ReadChunk(ctx)
		if err != nil {
			if errors.Is(err, ErrDeviceExhausted) {
				p.logger.Info("device exhausted, producer loop finished",
					logger.Uint64("blocks_produced", p.produced.Load()))
				return
			}
			if ctx.Err() != nil {
				return
			}
			p.deviceErrors.Add(1)
			p.metrics.RecordDeviceError(p.device.ID())
			if p.errLimiter.Allow() {
				p.logger.Warn("device read failed, continuing", logger.Error(err))
			}
			if !sleepContext(ctx, errorBackoff) {
				return
			}
			continue
		}

		if err := fillBlock(staging, rows); err != nil {
			p.dropped.Add(1)
			p.metrics.RecordBlockDropped("shape_mismatch")
			if p.errLimiter.Allow() {
				p.logger.Error("device returned chunk with wrong shape, dropping", logger.Error(err))
			}
			continue
		}

		sequence++
		staging.Sequence = sequence
		staging.Timestamp = time.Now().Add(-blockSpan)

		if err := p.buffer.PushContext(ctx, staging); err != nil {
			if errors.Is(err, ErrBufferClosed) {
				p.logger.Debug("buffer closed, producer loop finished")
				return
			}
			if ctx.Err() != nil {
				return
			}
			p.dropped.Add(1)
			p.metrics.RecordBlockDropped("push_failed")
			if p.errLimiter.Allow() {
				p.logger.Warn("push failed, dropping block", logger.Error(err))
			}
			continue
		}

		p.produced.Add(1)
		p.metrics.RecordBlockProduced(p.device.ID())
	}
}

// fillBlock copies per-channel rows into dst, rejecting any shape difference
func fillBlock(dst *SampleBlock, rows [][]float64) error {
	got := Shape{Channels: len(rows)}
	if len(rows) > 0 {
		got.Samples = len(rows[0])
	}
	if got != dst.shape {
		return newShapeMismatchError("read_chunk", dst.shape, got)
	}
	for ch, row := range rows {
		if len(row) != dst.shape.Samples {
			return newShapeMismatchError("read_chunk", dst.shape, Shape{Channels: len(rows), Samples: len(row)})
		}
		copy(dst.data[ch*dst.shape.Samples:], row)
	}
	return nil
}

// sleepContext waits for d or until ctx ends; it reports whether the full wait elapsed
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
