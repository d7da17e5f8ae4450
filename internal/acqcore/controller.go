package acqcore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// Controller session states
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateStopping = "stopping"
)

// ControllerConfig fixes the buffer geometry before any goroutine starts
type ControllerConfig struct {
	Channels        int
	SamplesPerBlock int
	Capacity        int
	// DrainTimeout bounds how long Stop waits for the consumer to empty the
	// buffer. Zero selects DefaultDrainTimeout.
	DrainTimeout time.Duration
}

// Shape returns the block shape described by the configuration
func (c ControllerConfig) Shape() Shape {
	return Shape{Channels: c.Channels, Samples: c.SamplesPerBlock}
}

// Validate checks the configuration and returns a configuration error
func (c ControllerConfig) Validate() error {
	if c.DrainTimeout < 0 {
		return newConfigError("drain timeout must not be negative", "drain_timeout", c.DrainTimeout.String())
	}
	return validateBufferSize(c.Capacity, c.Shape())
}

func (c ControllerConfig) drainTimeout() time.Duration {
	if c.DrainTimeout == 0 {
		return DefaultDrainTimeout
	}
	return c.DrainTimeout
}

// Status is a point-in-time view of the controller and its current or last session
type Status struct {
	State           string     `json:"state"`
	SessionID       string     `json:"session_id,omitempty"`
	DeviceID        string     `json:"device_id"`
	Shape           Shape      `json:"shape"`
	Capacity        int        `json:"capacity"`
	BufferSize      int        `json:"buffer_size"`
	Produced        uint64     `json:"produced"`
	Consumed        uint64     `json:"consumed"`
	Skipped         uint64     `json:"skipped"`
	Dropped         uint64     `json:"dropped"`
	DeviceErrors    uint64     `json:"device_errors"`
	ProcessorErrors uint64     `json:"processor_errors"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	StoppedAt       *time.Time `json:"stopped_at,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Controller owns one device, one processor and, per session, the buffer,
// producer and consumer connecting them.
type Controller struct {
	cfg       ControllerConfig
	device    Device
	processor Processor
	logger    logger.Logger
	metrics   Metrics
	listeners []SessionListener

	opMu sync.Mutex // serialises Start and Stop

	mu        sync.Mutex // guards the fields below
	state     string
	sessionID string
	buffer    *MatrixBuffer
	producer  *Producer
	consumer  *Consumer
	discarded uint64
	startedAt time.Time
	stoppedAt time.Time
	lastErr   error
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithControllerLogger sets the base logger. Producer and consumer loggers derive from it.
func WithControllerLogger(l logger.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithControllerMetrics sets the metrics sink shared by buffer, producer and consumer
func WithControllerMetrics(m Metrics) ControllerOption {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSessionListener registers a listener for session transitions
func WithSessionListener(l SessionListener) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// NewController validates cfg and returns an idle controller
func NewController(cfg ControllerConfig, device Device, processor Processor, opts ...ControllerOption) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if device == nil {
		return nil, newConfigError("controller requires a device")
	}
	if processor == nil {
		return nil, newConfigError("controller requires a processor")
	}

	c := &Controller{
		cfg:       cfg,
		device:    device,
		processor: processor,
		logger:    logger.Global().Module(ComponentAcqCore),
		metrics:   noopMetrics{},
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Start builds the session buffer and starts the consumer, then the producer.
// ctx bounds the whole session, not just the call: cancelling it stops both
// loops. Start on a running controller returns ErrAlreadyRunning.
func (c *Controller) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	running := c.state != StateIdle
	c.mu.Unlock()
	if running {
		return newStateError("controller", ErrAlreadyRunning)
	}

	log := c.logger.Module("controller")
	shape := c.cfg.Shape()
	sessionID := uuid.NewString()

	if got := c.device.Shape(); got != shape {
		err := newShapeMismatchError("controller_start", shape, got)
		c.fail(sessionID, err)
		return err
	}

	buffer, err := NewMatrixBuffer(c.cfg.Capacity, shape, WithBufferObserver(c.metrics))
	if err != nil {
		c.fail(sessionID, err)
		return err
	}

	consumer, err := NewConsumer(buffer, c.processor,
		WithConsumerLogger(c.logger.Module("consumer")),
		WithConsumerMetrics(c.metrics))
	if err != nil {
		c.fail(sessionID, err)
		return err
	}

	producer, err := NewProducer(c.device, buffer,
		WithProducerLogger(c.logger.Module("producer")),
		WithProducerMetrics(c.metrics),
		WithCloseBufferOnStop(false))
	if err != nil {
		c.fail(sessionID, err)
		return err
	}

	pending := Status{
		State:     StateIdle,
		SessionID: sessionID,
		DeviceID:  c.device.ID(),
		Shape:     shape,
		Capacity:  c.cfg.Capacity,
	}
	for _, l := range c.listeners {
		if p, ok := l.(SessionPreparer); ok {
			p.SessionStarting(pending)
		}
	}

	if err := consumer.Start(ctx); err != nil {
		c.fail(sessionID, err)
		return err
	}

	if err := producer.Start(ctx); err != nil {
		buffer.Close()
		consumer.Stop()
		log.Error("session failed to start",
			logger.String("session_id", sessionID),
			logger.Error(err))
		c.fail(sessionID, err)
		return err
	}

	c.mu.Lock()
	c.state = StateRunning
	c.sessionID = sessionID
	c.buffer = buffer
	c.producer = producer
	c.consumer = consumer
	c.discarded = 0
	c.startedAt = time.Now()
	c.stoppedAt = time.Time{}
	c.lastErr = nil
	status := c.statusLocked()
	c.mu.Unlock()

	c.metrics.SetSessionState(StateRunning)
	log.Info("session started",
		logger.String("session_id", sessionID),
		logger.String("device_id", c.device.ID()),
		logger.String("shape", shape.String()),
		logger.Int("capacity", c.cfg.Capacity))

	for _, l := range c.listeners {
		l.SessionStarted(status)
	}
	return nil
}

// Stop shuts the session down in order: producer, drain, close, consumer.
// Blocks still queued when the drain timeout expires are discarded and
// counted as dropped. Stop on an idle controller is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	producer, consumer, buffer := c.producer, c.consumer, c.buffer
	sessionID := c.sessionID
	c.mu.Unlock()

	c.metrics.SetSessionState(StateStopping)
	log := c.logger.Module("controller").With(logger.String("session_id", sessionID))

	stopErr := producer.Stop()

	drainCtx, cancel := context.WithTimeout(ctx, c.cfg.drainTimeout())
	err := buffer.WaitEmpty(drainCtx)
	cancel()
	if err != nil && !errors.Is(err, ErrBufferClosed) {
		log.Warn("buffer not drained before close, discarding queued blocks",
			logger.Int("remaining", buffer.Size()),
			logger.Error(err))
	}

	// Size is stable here: the producer has stopped and Close ends the consumer
	buffer.Close()
	remaining := buffer.Size()
	for range remaining {
		c.metrics.RecordBlockDropped("drain_timeout")
	}
	consumer.Stop()

	c.mu.Lock()
	c.state = StateIdle
	c.buffer = nil
	c.discarded = uint64(remaining)
	c.stoppedAt = time.Now()
	status := c.statusLocked()
	c.mu.Unlock()

	c.metrics.SetSessionState(StateIdle)
	log.Info("session stopped",
		logger.Uint64("produced", status.Produced),
		logger.Uint64("consumed", status.Consumed),
		logger.Uint64("dropped", status.Dropped))

	for _, l := range c.listeners {
		l.SessionStopped(status)
	}
	return stopErr
}

// Wait blocks until the producer loop of the current session ends on its own,
// for example when a file device is exhausted, or until ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	producer := c.producer
	running := c.state == StateRunning
	c.mu.Unlock()

	if !running || producer == nil {
		return newStateError("controller", ErrNotRunning)
	}

	select {
	case <-producer.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the current or last session
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Config returns the controller configuration
func (c *Controller) Config() ControllerConfig {
	return c.cfg
}

// IsRunning reports whether a session is active
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning
}

func (c *Controller) statusLocked() Status {
	s := Status{
		State:     c.state,
		SessionID: c.sessionID,
		DeviceID:  c.device.ID(),
		Shape:     c.cfg.Shape(),
		Capacity:  c.cfg.Capacity,
		Dropped:   c.discarded,
	}
	if c.buffer != nil {
		s.BufferSize = c.buffer.Size()
	}
	if c.producer != nil {
		ps := c.producer.Stats()
		s.Produced = ps.BlocksProduced
		s.DeviceErrors = ps.DeviceErrors
		s.Dropped += ps.DroppedBlocks
	}
	if c.consumer != nil {
		cs := c.consumer.Stats()
		s.Consumed = cs.Processed
		s.Skipped = cs.Skipped
		s.ProcessorErrors = cs.Failed
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		s.StartedAt = &t
	}
	if !c.stoppedAt.IsZero() {
		t := c.stoppedAt
		s.StoppedAt = &t
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	return s
}

// fail records a start failure and notifies listeners. The state stays idle.
func (c *Controller) fail(sessionID string, err error) {
	now := time.Now()

	c.mu.Lock()
	c.sessionID = sessionID
	c.producer = nil
	c.consumer = nil
	c.discarded = 0
	c.startedAt = now
	c.stoppedAt = now
	c.lastErr = err
	status := c.statusLocked()
	c.mu.Unlock()

	for _, l := range c.listeners {
		l.SessionFailed(status, err)
	}
}
