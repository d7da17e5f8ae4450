package processors

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/errors"
)

// ViewSnapshot is what display clients receive
type ViewSnapshot struct {
	Sequence       uint64      `json:"sequence"`
	Timestamp      time.Time   `json:"timestamp"`
	Frozen         bool        `json:"frozen"`
	Channels       []int       `json:"channels"`
	Rows           [][]float64 `json:"rows"`
	FrequencyScale []float64   `json:"frequency_scale"`
}

// View keeps the latest block for display. Clients choose visible rows and
// may freeze the view, after which they keep seeing the block that was
// current when freezing while acquisition continues.
type View struct {
	channels   int
	sampleRate float64

	mu        sync.RWMutex
	current   *acqcore.SampleBlock
	frozen    *acqcore.SampleBlock
	isFrozen  bool
	selection []int // nil selects all channels
	freqScale []float64
}

// NewView returns a view over blocks with the given channel count
func NewView(channels int, sampleRate float64) *View {
	return &View{channels: channels, sampleRate: sampleRate}
}

// ID implements acqcore.Processor
func (v *View) ID() string { return "view" }

// Process copies the block since the consumer reuses it
func (v *View) Process(_ context.Context, block *acqcore.SampleBlock) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current == nil || v.current.Shape() != block.Shape() {
		v.current = block.Clone()
	} else {
		_ = v.current.CopyFrom(block)
	}

	if len(v.freqScale) != block.Samples() {
		v.freqScale = FrequencyScale(v.sampleRate, block.Samples())
	}
	return nil
}

// SetVisibleChannels selects the rows returned by Snapshot. An empty
// selection shows every channel.
func (v *View) SetVisibleChannels(channels []int) error {
	for _, ch := range channels {
		if ch < 0 || ch >= v.channels {
			return errors.New(fmt.Errorf("channel %d out of range [0,%d)", ch, v.channels)).
				Component("acqcore.processors").
				Category(errors.CategoryValidation).
				Context("channel", ch).
				Build()
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if len(channels) == 0 {
		v.selection = nil
	} else {
		v.selection = slices.Clone(channels)
	}
	return nil
}

// VisibleChannels returns the selected channel indices
func (v *View) VisibleChannels() []int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.visibleLocked()
}

func (v *View) visibleLocked() []int {
	if v.selection != nil {
		return slices.Clone(v.selection)
	}
	all := make([]int, v.channels)
	for i := range all {
		all[i] = i
	}
	return all
}

// ToggleFreeze flips the freeze state and returns the new state
func (v *View) ToggleFreeze() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setFrozenLocked(!v.isFrozen)
	return v.isFrozen
}

// SetFrozen sets the freeze state
func (v *View) SetFrozen(frozen bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setFrozenLocked(frozen)
}

func (v *View) setFrozenLocked(frozen bool) {
	v.isFrozen = frozen
	v.frozen = nil
	if frozen && v.current != nil {
		v.frozen = v.current.Clone()
	}
}

// Snapshot returns the visible rows of the displayed block
func (v *View) Snapshot() ViewSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	snap := ViewSnapshot{
		Frozen:         v.isFrozen,
		Channels:       v.visibleLocked(),
		FrequencyScale: slices.Clone(v.freqScale),
	}

	block := v.current
	if v.isFrozen {
		block = v.frozen
	}
	if block == nil {
		return snap
	}

	snap.Sequence = block.Sequence
	snap.Timestamp = block.Timestamp
	for _, ch := range snap.Channels {
		if ch < block.Channels() {
			snap.Rows = append(snap.Rows, slices.Clone(block.Row(ch)))
		}
	}
	return snap
}

// FrequencyScale returns a log-spaced axis for cols frequency bins up to the
// Nyquist frequency of sfreq, normalised so the last bin is 1.
func FrequencyScale(sfreq float64, cols int) []float64 {
	scale := make([]float64, cols)
	if cols == 0 || sfreq <= 0 {
		return scale
	}

	freqRes := (sfreq / 2) / float64(cols)
	for i := range scale {
		scale[i] = math.Log10(float64(i+1)*freqRes + 1)
	}

	peak := scale[cols-1]
	for i := range scale {
		scale[i] /= peak
	}
	return scale
}
