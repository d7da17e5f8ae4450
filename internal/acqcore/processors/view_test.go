package processors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView_SnapshotFollowsLatestBlock(t *testing.T) {
	t.Parallel()

	v := NewView(2, 256)
	assert.Empty(t, v.Snapshot().Rows)

	block := blockFromRows(t, 1, []float64{1, 1}, []float64{2, 2})
	require.NoError(t, v.Process(t.Context(), block))

	// the consumer reuses its block; the view must hold a copy
	block.Set(0, 0, 99)

	snap := v.Snapshot()
	assert.Equal(t, uint64(1), snap.Sequence)
	assert.Equal(t, []int{0, 1}, snap.Channels)
	assert.Equal(t, [][]float64{{1, 1}, {2, 2}}, snap.Rows)
	assert.Len(t, snap.FrequencyScale, 2)
}

func TestView_VisibleChannels(t *testing.T) {
	t.Parallel()

	v := NewView(3, 100)
	require.NoError(t, v.Process(t.Context(), blockFromRows(t, 1,
		[]float64{0}, []float64{1}, []float64{2})))

	require.NoError(t, v.SetVisibleChannels([]int{2, 0}))
	snap := v.Snapshot()
	assert.Equal(t, []int{2, 0}, snap.Channels)
	assert.Equal(t, [][]float64{{2}, {0}}, snap.Rows)

	require.Error(t, v.SetVisibleChannels([]int{3}))
	require.Error(t, v.SetVisibleChannels([]int{-1}))
	assert.Equal(t, []int{2, 0}, v.VisibleChannels(), "invalid selection must not change state")

	require.NoError(t, v.SetVisibleChannels(nil))
	assert.Equal(t, []int{0, 1, 2}, v.VisibleChannels())
}

func TestView_Freeze(t *testing.T) {
	t.Parallel()

	v := NewView(1, 100)
	require.NoError(t, v.Process(t.Context(), blockFromRows(t, 1, []float64{1})))

	assert.True(t, v.ToggleFreeze())
	require.NoError(t, v.Process(t.Context(), blockFromRows(t, 2, []float64{2})))

	snap := v.Snapshot()
	assert.True(t, snap.Frozen)
	assert.Equal(t, uint64(1), snap.Sequence)
	assert.Equal(t, [][]float64{{1}}, snap.Rows)

	assert.False(t, v.ToggleFreeze())
	snap = v.Snapshot()
	assert.Equal(t, uint64(2), snap.Sequence)

	v.SetFrozen(true)
	require.NoError(t, v.Process(t.Context(), blockFromRows(t, 3, []float64{3})))
	assert.Equal(t, uint64(2), v.Snapshot().Sequence)
}

func TestFrequencyScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		sfreq float64
		cols  int
	}{
		{"no columns", 256, 0},
		{"invalid rate", 0, 4},
		{"single column", 256, 1},
		{"eeg block", 512, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			scale := FrequencyScale(tt.sfreq, tt.cols)
			require.Len(t, scale, tt.cols)
			if tt.cols == 0 || tt.sfreq <= 0 {
				for _, v := range scale {
					assert.Zero(t, v)
				}
				return
			}
			assert.InDelta(t, 1.0, scale[tt.cols-1], 1e-12)
			for i := 1; i < len(scale); i++ {
				assert.Greater(t, scale[i], scale[i-1])
			}
		})
	}

	freqRes := 128.0 / 4
	want := math.Log10(freqRes+1) / math.Log10(4*freqRes+1)
	assert.InDelta(t, want, FrequencyScale(256, 4)[0], 1e-12)
}
