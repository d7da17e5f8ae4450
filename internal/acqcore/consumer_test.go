package acqcore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T, buf *MatrixBuffer, proc Processor) *Consumer {
	t.Helper()
	c, err := NewConsumer(buf, proc, WithConsumerLogger(testLogger()))
	require.NoError(t, err)
	return c
}

func TestConsumer_ProcessesUntilClosed(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 2, Samples: 4}
	buf := newTestBuffer(t, 4, shape)
	proc := &recordingProcessor{}
	c := newTestConsumer(t, buf, proc)

	require.NoError(t, c.Start(context.Background()))

	for i := 1; i <= 20; i++ {
		blk := newTestBlock(t, shape, float64(i))
		blk.Sequence = uint64(i)
		require.NoError(t, buf.Push(blk))
	}
	require.NoError(t, buf.WaitEmpty(context.Background()))
	require.Eventually(t, func() bool { return c.Count() == 20 }, waitTimeout, time.Millisecond)

	buf.Close()
	waitDone(t, c.Done(), "consumer loop")
	c.Stop()

	want := make([]float64, 20)
	for i := range want {
		want[i] = float64(i + 1)
	}
	assert.Equal(t, want, proc.snapshot())
	assert.Equal(t, ConsumerStats{Processed: 20}, c.Stats())
}

func TestConsumer_StartTwice(t *testing.T) {
	t.Parallel()

	buf := newTestBuffer(t, 1, Shape{Channels: 1, Samples: 1})
	c := newTestConsumer(t, buf, &recordingProcessor{})

	require.NoError(t, c.Start(context.Background()))
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	c.Stop()
	c.Stop()
}

func TestConsumer_StopWhileWaiting(t *testing.T) {
	t.Parallel()

	buf := newTestBuffer(t, 2, Shape{Channels: 1, Samples: 1})
	c := newTestConsumer(t, buf, &recordingProcessor{})

	c.Stop() // never started
	require.NoError(t, c.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()
	waitDone(t, stopped, "consumer stop")
	assert.False(t, buf.IsClosed(), "stopping the consumer does not close the buffer")
}

func TestConsumer_ProcessorErrorsDoNotStopPipeline(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 1, Samples: 1}
	buf := newTestBuffer(t, 8, shape)
	proc := &recordingProcessor{
		fail: func(v float64) error {
			if int(v)%2 == 0 {
				return fmt.Errorf("cannot process block %v", v)
			}
			return nil
		},
	}
	c := newTestConsumer(t, buf, proc)
	require.NoError(t, c.Start(context.Background()))

	for i := 1; i <= 10; i++ {
		require.NoError(t, buf.Push(newTestBlock(t, shape, float64(i))))
	}
	require.Eventually(t, func() bool { return proc.calls.Load() == 10 }, waitTimeout, time.Millisecond)
	buf.Close()
	waitDone(t, c.Done(), "consumer loop")
	c.Stop()

	assert.Equal(t, []float64{1, 3, 5, 7, 9}, proc.snapshot())
	assert.Equal(t, ConsumerStats{Processed: 5, Failed: 5}, c.Stats())
}

func TestConsumer_SkipsEmptyBlocks(t *testing.T) {
	t.Parallel()

	empty := Shape{}
	buf := newTestBuffer(t, 4, empty)
	proc := &recordingProcessor{}
	c := newTestConsumer(t, buf, proc)
	require.NoError(t, c.Start(context.Background()))

	for range 3 {
		require.NoError(t, buf.Push(newTestBlock(t, empty, 0)))
	}
	require.Eventually(t, func() bool { return c.Stats().Skipped == 3 }, waitTimeout, time.Millisecond)
	c.Stop()

	assert.Zero(t, proc.calls.Load())
	assert.Zero(t, c.Count())
}

func TestConsumer_ProcessorFunc(t *testing.T) {
	t.Parallel()

	shape := Shape{Channels: 1, Samples: 3}
	buf := newTestBuffer(t, 2, shape)
	sums := make(chan float64, 4)
	proc := ProcessorFunc(func(_ context.Context, b *SampleBlock) error {
		var sum float64
		for _, v := range b.Row(0) {
			sum += v
		}
		sums <- sum
		return nil
	})
	assert.Equal(t, "func", proc.ID())

	c := newTestConsumer(t, buf, proc)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, buf.Push(newTestBlock(t, shape, 2)))

	select {
	case sum := <-sums:
		assert.InDelta(t, 6.0, sum, 1e-9)
	case <-time.After(waitTimeout):
		t.Fatal("processor not called")
	}
	buf.Close()
	c.Stop()
}
