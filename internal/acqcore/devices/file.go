package devices

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// FileConfig configures playback of a recording
type FileConfig struct {
	ID         string
	Path       string
	Shape      acqcore.Shape
	SampleRate float64 // reported until the file header has been read
	Scale      float64 // applied after normalisation to [-1, 1]
	Realtime   bool
}

// File plays a WAV or FLAC recording back as sample blocks. Every audio
// channel becomes one block row. The final partial block is zero padded,
// after which ReadChunk reports acqcore.ErrDeviceExhausted.
type File struct {
	cfg    FileConfig
	logger logger.Logger

	mu         sync.Mutex
	file       *os.File
	src        pcmSource
	sampleRate float64
	pending    []float64 // interleaved samples not yet handed out
	eof        bool
	pacer      *pacer
}

// NewFile validates cfg and returns a closed file device
func NewFile(cfg FileConfig, log logger.Logger) (*File, error) {
	ext := strings.ToLower(filepath.Ext(cfg.Path))
	if ext != ".wav" && ext != ".flac" {
		return nil, configError("file", fmt.Sprintf("unsupported file extension %q", ext))
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if cfg.ID == "" {
		cfg.ID = "file:" + filepath.Base(cfg.Path)
	}
	return &File{
		cfg:        cfg,
		logger:     log,
		sampleRate: cfg.SampleRate,
		pacer:      &pacer{},
	}, nil
}

// ID implements acqcore.Device
func (f *File) ID() string { return f.cfg.ID }

// Shape implements acqcore.Device
func (f *File) Shape() acqcore.Shape { return f.cfg.Shape }

// SampleRate returns the file sample rate once opened
func (f *File) SampleRate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sampleRate
}

// Open reads the file header and checks the channel count against the block shape
func (f *File) Open(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.cfg.Path)
	if err != nil {
		return acqcore.NewDeviceError(f.cfg.ID, "open", err)
	}

	var src pcmSource
	switch strings.ToLower(filepath.Ext(f.cfg.Path)) {
	case ".wav":
		src, err = newWAVSource(file)
	default:
		src, err = newFLACSource(file)
	}
	if err != nil {
		_ = file.Close()
		return acqcore.NewDeviceError(f.cfg.ID, "open", err)
	}

	if src.channels() != f.cfg.Shape.Channels {
		_ = file.Close()
		return acqcore.NewDeviceError(f.cfg.ID, "open",
			fmt.Errorf("file has %d channels, blocks expect %d", src.channels(), f.cfg.Shape.Channels))
	}

	f.file = file
	f.src = src
	f.sampleRate = float64(src.sampleRate())
	f.pending = f.pending[:0]
	f.eof = false
	if f.cfg.Realtime {
		f.pacer = newPacer(f.cfg.Shape.Samples, f.sampleRate)
	}

	f.logger.Info("recording opened",
		logger.String("path", f.cfg.Path),
		logger.Int("channels", src.channels()),
		logger.Int("sample_rate", src.sampleRate()))
	return nil
}

// Close implements acqcore.Device
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.src = nil
	return err
}

// ReadChunk returns the next block of samples, zero padding the last one
func (f *File) ReadChunk(ctx context.Context) ([][]float64, error) {
	if err := f.pacer.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.src == nil {
		return nil, notOpenError(f.cfg.ID)
	}

	nch, ns := f.cfg.Shape.Channels, f.cfg.Shape.Samples
	want := nch * ns

	for len(f.pending) < want && !f.eof {
		samples, err := f.src.read()
		if err == io.EOF {
			f.eof = true
			break
		}
		if err != nil {
			return nil, acqcore.NewDeviceError(f.cfg.ID, "read", err)
		}
		f.pending = append(f.pending, samples...)
	}

	if len(f.pending) == 0 {
		return nil, acqcore.ErrDeviceExhausted
	}

	take := min(want, len(f.pending))
	rows := make([][]float64, nch)
	for ch := range rows {
		rows[ch] = make([]float64, ns)
	}
	for i := range take {
		rows[i%nch][i/nch] = f.pending[i] * f.cfg.Scale
	}

	f.pending = append(f.pending[:0], f.pending[take:]...)
	return rows, nil
}
