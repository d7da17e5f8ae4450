package acqcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, cfg ControllerConfig, dev Device, proc Processor, opts ...ControllerOption) *Controller {
	t.Helper()
	opts = append([]ControllerOption{WithControllerLogger(testLogger())}, opts...)
	c, err := NewController(cfg, dev, proc, opts...)
	require.NoError(t, err)
	return c
}

func TestControllerConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ControllerConfig
		wantErr bool
	}{
		{"valid", ControllerConfig{Channels: 8, SamplesPerBlock: 256, Capacity: 64}, false},
		{"explicit drain timeout", ControllerConfig{Channels: 1, SamplesPerBlock: 1, Capacity: 1, DrainTimeout: time.Second}, false},
		{"zero capacity", ControllerConfig{Channels: 8, SamplesPerBlock: 256}, true},
		{"negative samples", ControllerConfig{Channels: 8, SamplesPerBlock: -1, Capacity: 4}, true},
		{"negative drain timeout", ControllerConfig{Channels: 1, SamplesPerBlock: 1, Capacity: 1, DrainTimeout: -time.Second}, true},
		{"oversized block", ControllerConfig{Channels: 8, SamplesPerBlock: 1_000_000_000, Capacity: 64}, true},
		{"oversized buffer", ControllerConfig{Channels: 1024, SamplesPerBlock: 1 << 16, Capacity: 64}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfiguration))
				return
			}
			require.NoError(t, err)
		})
	}

	assert.Equal(t, DefaultDrainTimeout, ControllerConfig{}.drainTimeout())
}

func TestNewController_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 1, Samples: 1}
	_, err := NewController(ControllerConfig{Channels: 1, SamplesPerBlock: 1}, newFakeDevice(shape), &recordingProcessor{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewController(ControllerConfig{Channels: 1, SamplesPerBlock: 1, Capacity: 1}, nil, &recordingProcessor{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestController_SessionDeliversEveryBlock(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 4, Samples: 32}
	dev := newFakeDevice(shape)
	dev.maxChunks = 200
	proc := &recordingProcessor{}
	listener := &recordingListener{}
	c := newTestController(t, ControllerConfig{Channels: 4, SamplesPerBlock: 32, Capacity: 8}, dev, proc,
		WithSessionListener(listener))

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	require.NoError(t, c.Stop(context.Background()))

	values := proc.snapshot()
	require.Len(t, values, 200)
	for i, v := range values {
		require.InDelta(t, float64(i+1), v, 0)
	}

	status := c.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Equal(t, uint64(200), status.Produced)
	assert.Equal(t, uint64(200), status.Consumed)
	assert.Zero(t, status.Dropped)
	assert.Zero(t, status.BufferSize)
	assert.NotEmpty(t, status.SessionID)
	require.NotNil(t, status.StartedAt)
	require.NotNil(t, status.StoppedAt)

	started, stopped, failed := listener.counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
	assert.Zero(t, failed)
}

func TestController_StartStopIdempotency(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 1, Samples: 4}
	dev := newFakeDevice(shape)
	dev.delay = time.Millisecond
	c := newTestController(t, ControllerConfig{Channels: 1, SamplesPerBlock: 4, Capacity: 4}, dev, &recordingProcessor{})

	require.NoError(t, c.Stop(context.Background()), "stop when idle is a no-op")

	require.NoError(t, c.Start(context.Background()))
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	assert.False(t, c.IsRunning())
}

func TestController_DeviceShapeMismatch(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice(Shape{Channels: 2, Samples: 10})
	listener := &recordingListener{}
	c := newTestController(t, ControllerConfig{Channels: 2, SamplesPerBlock: 16, Capacity: 4}, dev, &recordingProcessor{},
		WithSessionListener(listener))

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Equal(t, StateIdle, c.Status().State)

	opens, _ := dev.counts()
	assert.Zero(t, opens, "mismatch is detected before the device is opened")
	_, _, failed := listener.counts()
	assert.Equal(t, 1, failed)
}

func TestController_DeviceOpenFailure(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 2, Samples: 8}
	dev := newFakeDevice(shape)
	dev.openErr = fmt.Errorf("usb link down")
	listener := &recordingListener{}
	c := newTestController(t, ControllerConfig{Channels: 2, SamplesPerBlock: 8, Capacity: 4}, dev, &recordingProcessor{},
		WithSessionListener(listener))

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDevice))

	status := c.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Contains(t, status.Error, "usb link down")
	assert.NotEmpty(t, status.SessionID)

	started, _, failed := listener.counts()
	assert.Zero(t, started)
	assert.Equal(t, 1, failed)

	// The failed session leaves nothing running, so a later start succeeds
	dev.mu.Lock()
	dev.openErr = nil
	dev.mu.Unlock()
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	assert.Empty(t, c.Status().Error)
}

func TestController_DrainTimeoutDiscardsQueuedBlocks(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 1, Samples: 1}
	dev := newFakeDevice(shape)
	dev.maxChunks = 16
	proc := &recordingProcessor{delay: 50 * time.Millisecond}
	c := newTestController(t, ControllerConfig{
		Channels:        1,
		SamplesPerBlock: 1,
		Capacity:        16,
		DrainTimeout:    20 * time.Millisecond,
	}, dev, proc)

	require.NoError(t, c.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, c.Wait(ctx))

	start := time.Now()
	require.NoError(t, c.Stop(context.Background()))
	assert.Less(t, time.Since(start), waitTimeout)

	status := c.Status()
	assert.Equal(t, uint64(16), status.Produced)
	assert.Positive(t, status.Dropped)
	assert.Equal(t, status.Produced, status.Consumed+status.Dropped)
}

func TestController_RestartCreatesNewSession(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 2, Samples: 2}
	dev := newFakeDevice(shape)
	dev.maxChunks = 3
	listener := &recordingListener{}
	c := newTestController(t, ControllerConfig{Channels: 2, SamplesPerBlock: 2, Capacity: 2}, dev, &recordingProcessor{},
		WithSessionListener(listener))

	ids := make(map[string]bool)
	for range 3 {
		require.NoError(t, c.Start(context.Background()))
		require.NoError(t, c.Wait(context.Background()))
		require.NoError(t, c.Stop(context.Background()))
		status := c.Status()
		assert.Equal(t, uint64(3), status.Consumed)
		ids[status.SessionID] = true
	}
	assert.Len(t, ids, 3)

	started, stopped, _ := listener.counts()
	assert.Equal(t, 3, started)
	assert.Equal(t, 3, stopped)
}

func TestController_WaitWhenIdle(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 1, Samples: 1}
	c := newTestController(t, ControllerConfig{Channels: 1, SamplesPerBlock: 1, Capacity: 1}, newFakeDevice(shape), &recordingProcessor{})

	err := c.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRunning))
}

func TestController_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 1, Samples: 1}
	dev := newFakeDevice(shape)
	dev.delay = time.Millisecond
	c := newTestController(t, ControllerConfig{Channels: 1, SamplesPerBlock: 1, Capacity: 4}, dev, &recordingProcessor{})
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)

	require.NoError(t, c.Stop(context.Background()))
}

// sessionAwareProcessor tags each block with the session announced by SessionStarting
type sessionAwareProcessor struct {
	noopListener

	mu      sync.Mutex
	session string
	seen    []string
}

func (p *sessionAwareProcessor) ID() string { return "session-aware" }

func (p *sessionAwareProcessor) SessionStarting(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = s.SessionID
}

func (p *sessionAwareProcessor) Process(context.Context, *SampleBlock) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, p.session)
	return nil
}

type noopListener struct{}

func (noopListener) SessionStarted(Status)       {}
func (noopListener) SessionStopped(Status)       {}
func (noopListener) SessionFailed(Status, error) {}

func TestController_SessionStartingPrecedesFirstBlock(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 1, Samples: 2}
	dev := newFakeDevice(shape)
	dev.maxChunks = 50
	proc := &sessionAwareProcessor{}
	c := newTestController(t, ControllerConfig{Channels: 1, SamplesPerBlock: 2, Capacity: 2}, dev, proc,
		WithSessionListener(proc))

	for range 2 {
		require.NoError(t, c.Start(context.Background()))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, c.Wait(ctx))
		cancel()
		require.NoError(t, c.Stop(context.Background()))

		id := c.Status().SessionID
		proc.mu.Lock()
		seen := proc.seen
		proc.seen = nil
		proc.mu.Unlock()

		require.Len(t, seen, 50)
		for _, s := range seen {
			require.Equal(t, id, s, "every block belongs to the announced session")
		}
	}
}

func TestController_SessionStartingSkippedOnShapeMismatch(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice(Shape{Channels: 2, Samples: 2})
	proc := &sessionAwareProcessor{}
	c := newTestController(t, ControllerConfig{Channels: 1, SamplesPerBlock: 2, Capacity: 2}, dev, proc,
		WithSessionListener(proc))

	require.ErrorIs(t, c.Start(context.Background()), ErrShapeMismatch)
	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Empty(t, proc.session)
}
