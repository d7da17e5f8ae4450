package processors

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/diskspace"
	"github.com/eegstream/eegstream-go/internal/errors"
)

func newTestRecorder(t *testing.T) *WAVRecorder {
	t.Helper()
	r, err := NewWAVRecorder(RecorderConfig{
		Dir:        t.TempDir(),
		BitDepth:   16,
		Scale:      1,
		SampleRate: 250,
		Channels:   2,
	}, testLogger())
	require.NoError(t, err)
	return r
}

func TestNewWAVRecorder_Validation(t *testing.T) {
	t.Parallel()

	valid := RecorderConfig{Dir: t.TempDir(), BitDepth: 16, Scale: 1, SampleRate: 250, Channels: 1}
	tests := []struct {
		name   string
		mutate func(*RecorderConfig)
	}{
		{"bit depth", func(c *RecorderConfig) { c.BitDepth = 24 }},
		{"scale", func(c *RecorderConfig) { c.Scale = 0 }},
		{"sample rate", func(c *RecorderConfig) { c.SampleRate = 0 }},
		{"channels", func(c *RecorderConfig) { c.Channels = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewWAVRecorder(cfg, testLogger())
			require.ErrorIs(t, err, acqcore.ErrInvalidConfiguration)
		})
	}
}

func TestWAVRecorder_WritesSessionFile(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	r.SessionStarted(acqcore.Status{SessionID: "abc"})

	require.NoError(t, r.Process(t.Context(), blockFromRows(t, 1,
		[]float64{0, 1, 2},
		[]float64{-1, 0.5, -2},
	)))
	require.NoError(t, r.Process(t.Context(), blockFromRows(t, 2,
		[]float64{0, 0, 0},
		[]float64{0, 0, 0},
	)))

	path := r.Path()
	assert.Equal(t, "eegstream_abc.wav", filepath.Base(path))

	r.SessionStopped(acqcore.Status{SessionID: "abc"})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, 250, buf.Format.SampleRate)
	require.Len(t, buf.Data, 12)
	// interleaved, clamped to full scale
	assert.Equal(t, []int{0, -32767, 32767, 16384, 32767, -32767}, buf.Data[:6])
}

func TestWAVRecorder_ShapeMismatch(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	err := r.Process(t.Context(), blockFromRows(t, 1, []float64{1}))
	require.ErrorIs(t, err, acqcore.ErrShapeMismatch)
	assert.Empty(t, r.Path(), "no file is created for a rejected block")
	require.NoError(t, r.Close())
}

func TestWAVRecorder_NewFileAfterClose(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	r.SessionStarted(acqcore.Status{SessionID: "one"})
	require.NoError(t, r.Process(t.Context(), blockFromRows(t, 1, []float64{0}, []float64{0})))
	first := r.Path()
	r.SessionFailed(acqcore.Status{}, errors.NewStd("device lost"))

	r.SessionStarted(acqcore.Status{SessionID: "two"})
	require.NoError(t, r.Process(t.Context(), blockFromRows(t, 1, []float64{0}, []float64{0})))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "close is idempotent")

	assert.NotEqual(t, first, r.Path())
	assert.FileExists(t, first)
	assert.FileExists(t, r.Path())
}

func TestWAVRecorder_DoesNotOverwriteExistingFile(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	existing := filepath.Join(r.cfg.Dir, "eegstream_same.wav")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o644))

	r.SessionStarting(acqcore.Status{SessionID: "same"})
	require.NoError(t, r.Process(t.Context(), blockFromRows(t, 1, []float64{0}, []float64{0})))
	require.NoError(t, r.Close())

	assert.Equal(t, "eegstream_same_1.wav", filepath.Base(r.Path()))
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestWAVRecorder_SessionStartingClosesStrayFile(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	require.NoError(t, r.Process(t.Context(), blockFromRows(t, 1, []float64{0}, []float64{0})))
	stray := r.Path()

	r.SessionStarting(acqcore.Status{SessionID: "next"})
	require.NoError(t, r.Process(t.Context(), blockFromRows(t, 2, []float64{0}, []float64{0})))
	require.NoError(t, r.Close())

	assert.NotEqual(t, stray, r.Path())
	assert.Equal(t, "eegstream_next.wav", filepath.Base(r.Path()))
}

func TestWAVRecorder_RefusesWhenDiskFull(t *testing.T) {
	t.Parallel()

	r, err := NewWAVRecorder(RecorderConfig{
		Dir:          t.TempDir(),
		BitDepth:     16,
		Scale:        1,
		SampleRate:   250,
		Channels:     1,
		MinFreeBytes: math.MaxUint64,
	}, testLogger())
	require.NoError(t, err)

	err = r.Process(t.Context(), blockFromRows(t, 1, []float64{0}))
	require.ErrorIs(t, err, diskspace.ErrInsufficientSpace)
	assert.Empty(t, r.Path())
}

func TestQuantize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, quantize(0, 32767))
	assert.Equal(t, 32767, quantize(5, 32767))
	assert.Equal(t, -32767, quantize(-5, 32767))
	assert.Equal(t, 0, quantize(math.NaN(), 32767))
}
