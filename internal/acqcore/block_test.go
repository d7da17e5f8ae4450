package acqcore

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampleBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		samples  int
		wantErr  bool
	}{
		{"regular", 8, 256, false},
		{"single sample", 1, 1, false},
		{"zero channels", 0, 16, false},
		{"zero samples", 4, 0, false},
		{"negative channels", -1, 16, true},
		{"negative samples", 4, -2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := NewSampleBlock(tt.channels, tt.samples)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.channels, b.Channels())
			assert.Equal(t, tt.samples, b.Samples())
			assert.Equal(t, tt.channels*tt.samples, b.Len())
			assert.Equal(t, b.Len() == 0, b.IsEmpty())
		})
	}
}

func TestSampleBlock_RowMajorAccess(t *testing.T) {
	t.Parallel()

	b, err := NewSampleBlockFromRows([][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	require.NoError(t, err)

	assert.Equal(t, Shape{Channels: 2, Samples: 3}, b.Shape())
	assert.InDelta(t, 6.0, b.At(1, 2), 0)
	assert.Equal(t, []float64{4, 5, 6}, b.Row(1))

	b.Set(0, 1, 42)
	assert.InDelta(t, 42.0, b.At(0, 1), 0)

	// Row aliases storage, Rows copies it
	b.Row(0)[0] = -1
	assert.InDelta(t, -1.0, b.At(0, 0), 0)
	rows := b.Rows()
	rows[0][0] = 100
	assert.InDelta(t, -1.0, b.At(0, 0), 0)

	assert.Panics(t, func() { b.At(2, 0) })
	assert.Panics(t, func() { b.Set(0, 3, 1) })
	assert.Panics(t, func() { b.Row(-1) })
}

func TestNewSampleBlockFromRows_Ragged(t *testing.T) {
	t.Parallel()

	_, err := NewSampleBlockFromRows([][]float64{{1, 2}, {3}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestSampleBlock_CloneIsDeep(t *testing.T) {
	t.Parallel()

	b := newTestBlock(t, Shape{Channels: 2, Samples: 4}, 1.5)
	b.Sequence = 7

	c := b.Clone()
	require.True(t, b.Equal(c))
	assert.Equal(t, uint64(7), c.Sequence)

	c.Set(1, 3, 99)
	assert.False(t, b.Equal(c))
	assert.InDelta(t, 1.5, b.At(1, 3), 0)
}

func TestSampleBlock_CopyFrom(t *testing.T) {
	t.Parallel()

	src := newTestBlock(t, Shape{Channels: 2, Samples: 2}, 3)
	src.Sequence = 11
	dst := newTestBlock(t, Shape{Channels: 2, Samples: 2}, 0)

	require.NoError(t, dst.CopyFrom(src))
	assert.True(t, dst.Equal(src))
	assert.Equal(t, uint64(11), dst.Sequence)

	other := newTestBlock(t, Shape{Channels: 3, Samples: 2}, 0)
	err := other.CopyFrom(src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestSampleBlock_EqualIsBitwise(t *testing.T) {
	t.Parallel()

	a := newTestBlock(t, Shape{Channels: 1, Samples: 2}, math.NaN())
	b := a.Clone()
	assert.True(t, a.Equal(b), "identical NaN payloads compare equal")

	negZero := newTestBlock(t, Shape{Channels: 1, Samples: 2}, math.Copysign(0, -1))
	posZero := newTestBlock(t, Shape{Channels: 1, Samples: 2}, 0)
	assert.False(t, negZero.Equal(posZero))

	var nilBlock *SampleBlock
	assert.True(t, nilBlock.Equal(nil))
	assert.False(t, a.Equal(nil))
}

func TestShape_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "8x256", Shape{Channels: 8, Samples: 256}.String())
}
