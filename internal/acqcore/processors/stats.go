package processors

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/eegstream/eegstream-go/internal/acqcore"
)

// ChannelStats summarises one channel of a block
type ChannelStats struct {
	Mean float64 `json:"mean"`
	RMS  float64 `json:"rms"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	// NonFinite counts NaN and ±Inf samples left out of the statistics
	NonFinite int `json:"non_finite,omitempty"`
}

// StatsSnapshot is the latest block summary plus running totals
type StatsSnapshot struct {
	Blocks    uint64         `json:"blocks"`
	Samples   uint64         `json:"samples"`
	Sequence  uint64         `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Channels  []ChannelStats `json:"channels"`
}

// Stats keeps per-channel statistics of the most recent block
type Stats struct {
	mu       sync.RWMutex
	blocks   uint64
	samples  uint64
	sequence uint64
	ts       time.Time
	channels []ChannelStats
}

// NewStats returns an empty statistics processor
func NewStats() *Stats {
	return &Stats{}
}

// ID implements acqcore.Processor
func (s *Stats) ID() string { return "stats" }

// Process implements acqcore.Processor
func (s *Stats) Process(_ context.Context, block *acqcore.SampleBlock) error {
	channels := computeChannelStats(block)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks++
	s.samples += uint64(block.Len())
	s.sequence = block.Sequence
	s.ts = block.Timestamp
	s.channels = channels
	return nil
}

// Snapshot returns a copy of the current statistics
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make([]ChannelStats, len(s.channels))
	copy(channels, s.channels)
	return StatsSnapshot{
		Blocks:    s.blocks,
		Samples:   s.samples,
		Sequence:  s.sequence,
		Timestamp: s.ts,
		Channels:  channels,
	}
}

func computeChannelStats(block *acqcore.SampleBlock) []ChannelStats {
	out := make([]ChannelStats, block.Channels())
	if block.Samples() == 0 {
		return out
	}
	for ch := range out {
		cs := ChannelStats{Min: math.Inf(1), Max: math.Inf(-1)}
		var sum, sumSq float64
		var n int
		for _, v := range block.Row(ch) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				cs.NonFinite++
				continue
			}
			n++
			sum += v
			sumSq += v * v
			cs.Min = min(cs.Min, v)
			cs.Max = max(cs.Max, v)
		}
		if n == 0 {
			out[ch] = ChannelStats{NonFinite: cs.NonFinite}
			continue
		}
		cs.Mean = clampFinite(sum / float64(n))
		cs.RMS = clampFinite(math.Sqrt(sumSq / float64(n)))
		out[ch] = cs
	}
	return out
}

// clampFinite maps the ±Inf produced by overflowing sums to the largest
// finite float so the stats always encode as JSON
func clampFinite(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	case math.IsNaN(v):
		return 0
	}
	return v
}
