package devices

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"
)

// stagingRing moves raw frames from a network or driver goroutine to the
// producer. Writes are whole frames only so a dropped write never breaks
// frame alignment.
type stagingRing struct {
	rb         *ringbuffer.RingBuffer
	frameBytes int
	notify     chan struct{}

	mu      sync.Mutex
	partial []byte // bytes of an incomplete frame
	err     error  // terminal writer error, reported once the ring is empty

	overruns atomic.Uint64
}

func newStagingRing(capacityBytes, frameBytes int) *stagingRing {
	return &stagingRing{
		rb:         ringbuffer.New(capacityBytes),
		frameBytes: frameBytes,
		notify:     make(chan struct{}, 1),
	}
}

// write stages p, keeping any trailing partial frame for the next call.
// When the ring lacks room the whole frames in p are dropped and counted.
func (s *stagingRing) write(p []byte) {
	s.mu.Lock()
	data := append(s.partial, p...)
	whole := len(data) - len(data)%s.frameBytes

	if whole > 0 {
		if s.rb.Free() < whole {
			s.overruns.Add(1)
		} else if _, err := s.rb.Write(data[:whole]); err != nil {
			if errors.Is(err, ringbuffer.ErrIsFull) {
				s.overruns.Add(1)
			}
		}
	}
	s.partial = append(s.partial[:0], data[whole:]...)
	s.mu.Unlock()

	s.signal()
}

// fail records the writer's terminal error and wakes the reader
func (s *stagingRing) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.signal()
}

func (s *stagingRing) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// readFull waits until len(dst) bytes are staged and copies them into dst.
// Once the writer has failed and too little data remains, it returns the
// writer error.
func (s *stagingRing) readFull(ctx context.Context, dst []byte) error {
	for {
		s.mu.Lock()
		if s.rb.Length() >= len(dst) {
			_, err := s.rb.Read(dst)
			s.mu.Unlock()
			return err
		}
		werr := s.err
		s.mu.Unlock()

		if werr != nil {
			return werr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.notify:
		}
	}
}

func (s *stagingRing) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rb.Reset()
	s.partial = s.partial[:0]
	s.err = nil
	s.overruns.Store(0)
}
