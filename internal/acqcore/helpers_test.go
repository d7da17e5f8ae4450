package acqcore

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eegstream/eegstream-go/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// newTestBlock returns a block whose every sample equals value
func newTestBlock(t *testing.T, shape Shape, value float64) *SampleBlock {
	t.Helper()
	b, err := NewSampleBlock(shape.Channels, shape.Samples)
	require.NoError(t, err)
	for i := range b.data {
		b.data[i] = value
	}
	return b
}

func newTestBuffer(t *testing.T, capacity int, shape Shape, opts ...BufferOption) *MatrixBuffer {
	t.Helper()
	b, err := NewMatrixBuffer(capacity, shape, opts...)
	require.NoError(t, err)
	return b
}

// fakeDevice emits chunks whose samples all equal the chunk number, starting at 1
type fakeDevice struct {
	id         string
	shape      Shape
	sampleRate float64
	openErr    error
	maxChunks  int           // 0 means unlimited
	delay      time.Duration // per chunk
	readErr    func(n int) error
	badShapeAt int // chunk number returned with a wrong shape

	mu     sync.Mutex
	opens  int
	closes int
	next   int
}

func newFakeDevice(shape Shape) *fakeDevice {
	return &fakeDevice{id: "fake", shape: shape, sampleRate: 0}
}

func (d *fakeDevice) ID() string          { return d.id }
func (d *fakeDevice) Shape() Shape        { return d.shape }
func (d *fakeDevice) SampleRate() float64 { return d.sampleRate }

func (d *fakeDevice) Open(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return d.openErr
	}
	d.opens++
	d.next = 0
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *fakeDevice) counts() (opens, closes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens, d.closes
}

func (d *fakeDevice) ReadChunk(ctx context.Context) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.delay > 0 && !sleepContext(ctx, d.delay) {
		return nil, ctx.Err()
	}

	d.mu.Lock()
	if d.maxChunks > 0 && d.next >= d.maxChunks {
		d.mu.Unlock()
		return nil, ErrDeviceExhausted
	}
	d.next++
	n := d.next
	d.mu.Unlock()

	if d.readErr != nil {
		if err := d.readErr(n); err != nil {
			return nil, err
		}
	}

	shape := d.shape
	if n == d.badShapeAt {
		shape.Samples++
	}
	rows := make([][]float64, shape.Channels)
	for ch := range rows {
		rows[ch] = make([]float64, shape.Samples)
		for s := range rows[ch] {
			rows[ch][s] = float64(n)
		}
	}
	return rows, nil
}

// recordingProcessor keeps the first sample of every block it sees
type recordingProcessor struct {
	mu     sync.Mutex
	values []float64
	seqs   []uint64
	fail   func(value float64) error
	delay  time.Duration
	calls  atomic.Int64
}

func (p *recordingProcessor) ID() string { return "recorder" }

func (p *recordingProcessor) Process(ctx context.Context, block *SampleBlock) error {
	p.calls.Add(1)
	if p.delay > 0 {
		sleepContext(ctx, p.delay)
	}
	v := block.At(0, 0)
	if p.fail != nil {
		if err := p.fail(v); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
	p.seqs = append(p.seqs, block.Sequence)
	return nil
}

func (p *recordingProcessor) snapshot() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.values))
	copy(out, p.values)
	return out
}

type recordingListener struct {
	mu      sync.Mutex
	started []Status
	stopped []Status
	failed  []error
}

func (l *recordingListener) SessionStarted(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, s)
}

func (l *recordingListener) SessionStopped(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = append(l.stopped, s)
}

func (l *recordingListener) SessionFailed(_ Status, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, err)
}

func (l *recordingListener) counts() (started, stopped, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.started), len(l.stopped), len(l.failed)
}

// countingObserver records buffer observer calls
type countingObserver struct {
	noopMetrics
	pushes atomic.Int64
	pops   atomic.Int64
	maxLen atomic.Int64
}

func (o *countingObserver) ObservePush(_ time.Duration, size int) {
	o.pushes.Add(1)
	for {
		cur := o.maxLen.Load()
		if int64(size) <= cur || o.maxLen.CompareAndSwap(cur, int64(size)) {
			return
		}
	}
}

func (o *countingObserver) ObservePop(time.Duration, int) {
	o.pops.Add(1)
}
