package devices

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/logger"
)

const (
	float32Bytes       = 4
	streamReadSize     = 32 * 1024
	defaultDialTimeout = 5 * time.Second
)

// StreamConfig configures the TCP sample stream client
type StreamConfig struct {
	ID           string
	Address      string
	Shape        acqcore.Shape
	SampleRate   float64
	DialTimeout  time.Duration
	BufferBlocks int
}

// Stream receives little endian float32 frames over TCP. A frame holds one
// sample per channel. A reader goroutine stages bytes in a ring so a slow
// consumer drops whole frames instead of stalling the sender.
type Stream struct {
	cfg    StreamConfig
	logger logger.Logger

	mu      sync.Mutex
	conn    net.Conn
	staging *stagingRing
	wg      sync.WaitGroup
	chunk   []byte
}

// NewStream validates cfg and returns a closed stream device
func NewStream(cfg StreamConfig, log logger.Logger) (*Stream, error) {
	if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		return nil, configError("stream", fmt.Sprintf("invalid address %q", cfg.Address))
	}
	if cfg.Shape.Channels < 1 || cfg.Shape.Samples < 1 {
		return nil, configError("stream", "stream blocks need at least one channel and one sample")
	}
	if cfg.BufferBlocks < 1 {
		cfg.BufferBlocks = 1
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ID == "" {
		cfg.ID = "stream:" + cfg.Address
	}

	chunkBytes := cfg.Shape.Len() * float32Bytes
	return &Stream{
		cfg:     cfg,
		logger:  log,
		staging: newStagingRing(chunkBytes*cfg.BufferBlocks, cfg.Shape.Channels*float32Bytes),
		chunk:   make([]byte, chunkBytes),
	}, nil
}

// ID implements acqcore.Device
func (s *Stream) ID() string { return s.cfg.ID }

// Shape implements acqcore.Device
func (s *Stream) Shape() acqcore.Shape { return s.cfg.Shape }

// SampleRate implements acqcore.Device
func (s *Stream) SampleRate() float64 { return s.cfg.SampleRate }

// Open dials the sample server and starts the reader goroutine
func (s *Stream) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return acqcore.NewDeviceError(s.cfg.ID, "open", err)
	}

	s.conn = conn
	s.staging.reset()
	s.wg.Add(1)
	go s.readLoop(conn)

	s.logger.Info("connected to sample stream", logger.String("address", s.cfg.Address))
	return nil
}

func (s *Stream) readLoop(conn net.Conn) {
	defer s.wg.Done()

	buf := make([]byte, streamReadSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.staging.write(buf[:n])
		}
		if err != nil {
			s.staging.fail(err)
			return
		}
	}
}

// Close disconnects and waits for the reader goroutine
func (s *Stream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	s.wg.Wait()

	if overruns := s.staging.overruns.Load(); overruns > 0 {
		s.logger.Warn("stream staging overruns, frames were dropped", logger.Uint64("overruns", overruns))
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// ReadChunk waits for one block worth of frames and de-interleaves them
func (s *Stream) ReadChunk(ctx context.Context) ([][]float64, error) {
	s.mu.Lock()
	open := s.conn != nil
	s.mu.Unlock()
	if !open {
		return nil, notOpenError(s.cfg.ID)
	}

	if err := s.staging.readFull(ctx, s.chunk); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return nil, acqcore.ErrDeviceExhausted
		}
		return nil, acqcore.NewDeviceError(s.cfg.ID, "read", err)
	}

	return deinterleaveFloat32(s.chunk, s.cfg.Shape), nil
}

func deinterleaveFloat32(b []byte, shape acqcore.Shape) [][]float64 {
	rows := make([][]float64, shape.Channels)
	for ch := range rows {
		rows[ch] = make([]float64, shape.Samples)
	}
	for i := range shape.Len() {
		v := math.Float32frombits(binary.LittleEndian.Uint32(b[i*float32Bytes:]))
		rows[i%shape.Channels][i/shape.Channels] = float64(v)
	}
	return rows
}
