package acqcore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MatrixBuffer is a bounded, thread-safe FIFO of SampleBlocks.
//
// Every slot is preallocated with the buffer shape. Push copies a block into
// the next write slot and Pop copies the oldest slot out, so no block storage
// is ever shared between the producer and the consumer.
//
// Push blocks while the buffer is full and Pop blocks while it is empty. Close
// wakes all waiters; after Close both return ErrBufferClosed, even when blocks
// remain queued. Callers that need the remaining blocks drain with WaitEmpty
// before closing.
type MatrixBuffer struct {
	mu       sync.Mutex
	notEmpty *sync.Cond // signalled after a push
	notFull  *sync.Cond // signalled after a pop or clear
	drained  *sync.Cond // broadcast when count drops to zero

	slots    []*SampleBlock
	shape    Shape
	readPos  int
	writePos int
	count    int
	closed   bool

	observer BufferObserver
}

// BufferOption configures a MatrixBuffer
type BufferOption func(*MatrixBuffer)

// WithBufferObserver reports push and pop wait times and occupancy
func WithBufferObserver(o BufferObserver) BufferOption {
	return func(b *MatrixBuffer) {
		if o != nil {
			b.observer = o
		}
	}
}

// NewMatrixBuffer allocates capacity slots of the given shape.
// Capacity must be at least 1; dimensions may be zero but not negative.
func NewMatrixBuffer(capacity int, shape Shape, opts ...BufferOption) (*MatrixBuffer, error) {
	if err := validateBufferSize(capacity, shape); err != nil {
		return nil, err
	}

	b := &MatrixBuffer{
		slots:    make([]*SampleBlock, capacity),
		shape:    shape,
		observer: noopMetrics{},
	}
	for i := range b.slots {
		b.slots[i] = &SampleBlock{shape: shape, data: make([]float64, shape.Len())}
	}
	b.notEmpty = sync.NewCond(&b.mu)
	b.notFull = sync.NewCond(&b.mu)
	b.drained = sync.NewCond(&b.mu)

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// validateBufferSize rejects geometries that are empty, negative or too
// large to allocate
func validateBufferSize(capacity int, shape Shape) error {
	if capacity < 1 {
		return newConfigError("buffer capacity must be at least 1", "capacity", capacity)
	}
	if capacity > MaxCapacity {
		return newConfigError(fmt.Sprintf("buffer capacity must not exceed %d", MaxCapacity), "capacity", capacity)
	}
	if err := shape.validate(); err != nil {
		return err
	}
	if total := uint64(capacity) * uint64(shape.Len()); total > MaxBufferSamples {
		return newConfigError(fmt.Sprintf("buffer would hold %d samples, limit is %d", total, MaxBufferSamples),
			"capacity", capacity, "shape", shape.String())
	}
	return nil
}

// Push copies block into the buffer, waiting while the buffer is full.
func (b *MatrixBuffer) Push(block *SampleBlock) error {
	return b.PushContext(context.Background(), block)
}

// PushContext is Push with a bounded wait. When ctx ends before a slot frees
// up, the context error is returned and the buffer is unchanged.
func (b *MatrixBuffer) PushContext(ctx context.Context, block *SampleBlock) error {
	if err := b.checkShape("push", block); err != nil {
		return err
	}

	start := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.waitLocked(ctx, b.notFull, "push", func() bool { return b.count < len(b.slots) }); err != nil {
		return err
	}

	// checkShape guarantees equal shapes so the copy cannot fail
	_ = b.slots[b.writePos].CopyFrom(block)
	b.writePos = (b.writePos + 1) % len(b.slots)
	b.count++

	b.notEmpty.Signal()
	b.observer.ObservePush(time.Since(start), b.count)

	return nil
}

// Pop removes the oldest block, waiting while the buffer is empty.
// The returned block is a fresh copy owned by the caller.
func (b *MatrixBuffer) Pop() (*SampleBlock, error) {
	return b.PopContext(context.Background())
}

// PopContext is Pop with a bounded wait.
func (b *MatrixBuffer) PopContext(ctx context.Context) (*SampleBlock, error) {
	var out *SampleBlock
	err := b.pop(ctx, func(slot *SampleBlock) {
		out = slot.Clone()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PopInto copies the oldest block into dst, which must have the buffer shape.
// Consumers use it to reuse one block instead of allocating per pop.
func (b *MatrixBuffer) PopInto(ctx context.Context, dst *SampleBlock) error {
	if err := b.checkShape("pop_into", dst); err != nil {
		return err
	}
	return b.pop(ctx, func(slot *SampleBlock) {
		_ = dst.CopyFrom(slot)
	})
}

func (b *MatrixBuffer) pop(ctx context.Context, take func(slot *SampleBlock)) error {
	start := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.waitLocked(ctx, b.notEmpty, "pop", func() bool { return b.count > 0 }); err != nil {
		return err
	}

	take(b.slots[b.readPos])
	b.readPos = (b.readPos + 1) % len(b.slots)
	b.count--

	b.notFull.Signal()
	if b.count == 0 {
		b.drained.Broadcast()
	}
	b.observer.ObservePop(time.Since(start), b.count)

	return nil
}

// waitLocked waits on cond until ready, the buffer closes or ctx ends.
// The caller holds b.mu. Closed takes precedence over ready, and ready over
// a finished context so a consumed wakeup is never lost.
func (b *MatrixBuffer) waitLocked(ctx context.Context, cond *sync.Cond, operation string, ready func() bool) error {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			cond.Broadcast()
		})
		defer stop()
	}

	for {
		if b.closed {
			return ErrBufferClosed
		}
		if ready() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return waitError(operation, err)
		}
		cond.Wait()
	}
}

func (b *MatrixBuffer) checkShape(operation string, block *SampleBlock) error {
	var got Shape
	if block != nil {
		got = block.shape
	}
	if block == nil || got != b.shape {
		return newShapeMismatchError(operation, b.shape, got)
	}
	return nil
}

// Size returns the number of queued blocks
func (b *MatrixBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns the number of slots
func (b *MatrixBuffer) Capacity() int {
	return len(b.slots)
}

// Shape returns the block shape accepted by the buffer
func (b *MatrixBuffer) Shape() Shape {
	return b.shape
}

// IsClosed reports whether Close has been called
func (b *MatrixBuffer) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Clear drops all queued blocks. Slots stay allocated.
func (b *MatrixBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.readPos = 0
	b.writePos = 0
	b.count = 0

	b.notFull.Broadcast()
	b.drained.Broadcast()
}

// Close marks the buffer closed and wakes every blocked Push, Pop and WaitEmpty.
// It is safe to call more than once.
func (b *MatrixBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
	b.drained.Broadcast()
}

// WaitEmpty blocks until every queued block has been popped. It returns
// ErrBufferClosed if the buffer closes first, or the context error.
func (b *MatrixBuffer) WaitEmpty(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	return b.waitLocked(ctx, b.drained, "wait_empty", func() bool { return b.count == 0 })
}
