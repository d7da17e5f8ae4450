package processors

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/diskspace"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// RecorderConfig configures WAV recording
type RecorderConfig struct {
	Dir        string
	BitDepth   int     // 16 or 32
	Scale      float64 // samples are divided by Scale, then clamped to [-1, 1]
	SampleRate float64
	Channels   int
	// MinFreeBytes refuses to open a new file when less space is free in Dir.
	// Zero disables the check.
	MinFreeBytes uint64
}

// maxNameAttempts bounds the numbered suffixes tried when a file name is taken
const maxNameAttempts = 100

// WAVRecorder writes every block to a multichannel WAV file, one file per
// session. It implements acqcore.SessionListener and acqcore.SessionPreparer
// so the controller names files before the first block and finalises them
// at session end. Existing files are never overwritten.
type WAVRecorder struct {
	cfg    RecorderConfig
	logger logger.Logger

	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	path    string
	name    string // base name for the next file
	buf     *audio.IntBuffer
	frames  uint64
}

// NewWAVRecorder validates cfg and returns a recorder with no open file
func NewWAVRecorder(cfg RecorderConfig, log logger.Logger) (*WAVRecorder, error) {
	if cfg.BitDepth != 16 && cfg.BitDepth != 32 {
		return nil, recorderConfigError(fmt.Sprintf("bit depth must be 16 or 32, got %d", cfg.BitDepth))
	}
	if cfg.Scale <= 0 {
		return nil, recorderConfigError("scale must be positive")
	}
	if cfg.SampleRate < 1 || cfg.Channels < 1 {
		return nil, recorderConfigError("sample rate and channel count must be positive")
	}
	return &WAVRecorder{cfg: cfg, logger: log}, nil
}

func recorderConfigError(msg string) error {
	return errors.New(fmt.Errorf("%w: recorder %s", acqcore.ErrInvalidConfiguration, msg)).
		Component("acqcore.processors").
		Category(errors.CategoryConfiguration).
		Build()
}

// ID implements acqcore.Processor
func (r *WAVRecorder) ID() string { return "recorder" }

// Process appends the block as interleaved frames, opening a file if needed
func (r *WAVRecorder) Process(_ context.Context, block *acqcore.SampleBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if block.Channels() != r.cfg.Channels {
		return errors.New(fmt.Errorf("%w: recorder expects %d channels, got %d",
			acqcore.ErrShapeMismatch, r.cfg.Channels, block.Channels())).
			Component("acqcore.processors").
			Category(errors.CategoryValidation).
			Build()
	}

	if r.encoder == nil {
		if err := r.openLocked(); err != nil {
			return err
		}
	}

	nch, ns := block.Channels(), block.Samples()
	if r.buf == nil || len(r.buf.Data) != nch*ns {
		r.buf = &audio.IntBuffer{
			Data:           make([]int, nch*ns),
			Format:         &audio.Format{SampleRate: int(r.cfg.SampleRate), NumChannels: nch},
			SourceBitDepth: r.cfg.BitDepth,
		}
	}

	fullScale := float64(int64(1)<<(r.cfg.BitDepth-1) - 1)
	for ch := range nch {
		for s, v := range block.Row(ch) {
			r.buf.Data[s*nch+ch] = quantize(v/r.cfg.Scale, fullScale)
		}
	}

	if err := r.encoder.Write(r.buf); err != nil {
		return errors.New(fmt.Errorf("failed to write to WAV encoder: %w", err)).
			Component("acqcore.processors").
			Category(errors.CategoryFileIO).
			Context("path", r.path).
			Build()
	}
	r.frames += uint64(ns)
	return nil
}

// quantize clamps v to [-1, 1] and scales it to an integer sample
func quantize(v, fullScale float64) int {
	if math.IsNaN(v) {
		return 0
	}
	v = max(-1, min(1, v))
	return int(math.Round(v * fullScale))
}

func (r *WAVRecorder) openLocked() error {
	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		return errors.New(fmt.Errorf("failed to create directories: %w", err)).
			Component("acqcore.processors").
			Category(errors.CategoryFileIO).
			Build()
	}

	if err := diskspace.Check(r.cfg.Dir, r.cfg.MinFreeBytes); err != nil {
		return err
	}

	name := r.name
	if name == "" {
		name = time.Now().Format("20060102T150405.000")
	}

	f, path, err := createExclusive(r.cfg.Dir, "eegstream_"+name)
	if err != nil {
		return err
	}

	r.file = f
	r.path = path
	r.frames = 0
	r.encoder = wav.NewEncoder(f, int(r.cfg.SampleRate), r.cfg.BitDepth, r.cfg.Channels, 1)
	r.logger.Info("recording started", logger.String("path", path))
	return nil
}

// createExclusive creates base.wav in dir, or base_N.wav when that name is
// taken. It never truncates an existing file.
func createExclusive(dir, base string) (*os.File, string, error) {
	for attempt := range maxNameAttempts {
		name := base + ".wav"
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d.wav", base, attempt)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", errors.New(fmt.Errorf("failed to create file: %w", err)).
				Component("acqcore.processors").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}
	return nil, "", errors.Newf("no free file name for %s after %d attempts", base, maxNameAttempts).
		Component("acqcore.processors").
		Category(errors.CategoryFileIO).
		Context("dir", dir).
		Build()
}

// Close finalises the WAV header and closes the file. Later blocks open a new file.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *WAVRecorder) closeLocked() error {
	if r.encoder == nil {
		return nil
	}

	encErr := r.encoder.Close()
	fileErr := r.file.Close()
	r.logger.Info("recording finished",
		logger.String("path", r.path),
		logger.Uint64("frames", r.frames))

	r.encoder = nil
	r.file = nil
	r.name = ""
	return errors.Join(encErr, fileErr)
}

// Path returns the file currently or most recently written
func (r *WAVRecorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// SessionStarting finalises any stray file and names the next one after the session
func (r *WAVRecorder) SessionStarting(status acqcore.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.closeLocked(); err != nil {
		r.logger.Error("failed to finalise recording", logger.Error(err))
	}
	r.name = status.SessionID
}

// SessionStarted names the next file when no block has been written yet.
// Controllers call SessionStarting first, which makes this a no-op.
func (r *WAVRecorder) SessionStarted(status acqcore.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		r.name = status.SessionID
	}
}

// SessionStopped finalises the session file
func (r *WAVRecorder) SessionStopped(acqcore.Status) {
	if err := r.Close(); err != nil {
		r.logger.Error("failed to finalise recording", logger.Error(err))
	}
}

// SessionFailed finalises any partial file
func (r *WAVRecorder) SessionFailed(acqcore.Status, error) {
	if err := r.Close(); err != nil {
		r.logger.Error("failed to finalise recording", logger.Error(err))
	}
}
