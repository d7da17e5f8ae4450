package acqcore

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Shape is the channels x samples dimension of a SampleBlock
type Shape struct {
	Channels int `json:"channels"`
	Samples  int `json:"samples"`
}

// String formats the shape as "rows x cols"
func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Channels, s.Samples)
}

// Len returns the number of elements in a block of this shape
func (s Shape) Len() int {
	return s.Channels * s.Samples
}

// validate rejects negative dimensions. Zero is allowed.
func (s Shape) validate() error {
	if s.Channels < 0 || s.Samples < 0 {
		return newConfigError("block dimensions must not be negative",
			"channels", s.Channels, "samples", s.Samples)
	}
	if s.Channels > MaxChannels || s.Samples > MaxSamplesPerBlock {
		return newConfigError(fmt.Sprintf("block dimensions exceed %d channels or %d samples",
			MaxChannels, MaxSamplesPerBlock),
			"channels", s.Channels, "samples", s.Samples)
	}
	return nil
}

// SampleBlock is one chunk of multichannel samples stored row-major.
// Row i holds the samples of channel i.
type SampleBlock struct {
	shape Shape
	data  []float64

	// Sequence is assigned by the producer, starting at 1
	Sequence uint64
	// Timestamp is the acquisition time of the first sample
	Timestamp time.Time
}

// NewSampleBlock returns a zero-filled block
func NewSampleBlock(channels, samples int) (*SampleBlock, error) {
	shape := Shape{Channels: channels, Samples: samples}
	if err := shape.validate(); err != nil {
		return nil, err
	}
	return &SampleBlock{shape: shape, data: make([]float64, shape.Len())}, nil
}

// NewSampleBlockFromRows copies rows into a new block. All rows must have the same length.
func NewSampleBlockFromRows(rows [][]float64) (*SampleBlock, error) {
	samples := 0
	if len(rows) > 0 {
		samples = len(rows[0])
	}

	b := &SampleBlock{
		shape: Shape{Channels: len(rows), Samples: samples},
		data:  make([]float64, len(rows)*samples),
	}
	for ch, row := range rows {
		if len(row) != samples {
			return nil, newShapeMismatchError("from_rows",
				Shape{Channels: len(rows), Samples: samples},
				Shape{Channels: len(rows), Samples: len(row)})
		}
		copy(b.data[ch*samples:], row)
	}
	return b, nil
}

// Channels returns the row count
func (b *SampleBlock) Channels() int { return b.shape.Channels }

// Samples returns the column count
func (b *SampleBlock) Samples() int { return b.shape.Samples }

// Shape returns the block dimensions
func (b *SampleBlock) Shape() Shape { return b.shape }

// Len returns the number of elements
func (b *SampleBlock) Len() int { return len(b.data) }

// IsEmpty reports whether the block holds no samples
func (b *SampleBlock) IsEmpty() bool { return b == nil || len(b.data) == 0 }

// At returns the sample of channel ch at index s
func (b *SampleBlock) At(ch, s int) float64 {
	return b.data[b.index(ch, s)]
}

// Set stores v at channel ch, index s
func (b *SampleBlock) Set(ch, s int, v float64) {
	b.data[b.index(ch, s)] = v
}

func (b *SampleBlock) index(ch, s int) int {
	if ch < 0 || ch >= b.shape.Channels || s < 0 || s >= b.shape.Samples {
		panic(fmt.Sprintf("acqcore: index (%d,%d) out of range for block %s", ch, s, b.shape))
	}
	return ch*b.shape.Samples + s
}

// Row returns channel ch as a slice that aliases the block storage
func (b *SampleBlock) Row(ch int) []float64 {
	if ch < 0 || ch >= b.shape.Channels {
		panic(fmt.Sprintf("acqcore: channel %d out of range for block %s", ch, b.shape))
	}
	start := ch * b.shape.Samples
	return b.data[start : start+b.shape.Samples : start+b.shape.Samples]
}

// Rows returns a deep copy of the block as one slice per channel
func (b *SampleBlock) Rows() [][]float64 {
	rows := make([][]float64, b.shape.Channels)
	for ch := range rows {
		rows[ch] = slices.Clone(b.Row(ch))
	}
	return rows
}

// Clone returns a deep copy that shares no storage with b
func (b *SampleBlock) Clone() *SampleBlock {
	return &SampleBlock{
		shape:     b.shape,
		data:      slices.Clone(b.data),
		Sequence:  b.Sequence,
		Timestamp: b.Timestamp,
	}
}

// CopyFrom overwrites b with the values and metadata of src
func (b *SampleBlock) CopyFrom(src *SampleBlock) error {
	if src.shape != b.shape {
		return newShapeMismatchError("copy", b.shape, src.shape)
	}
	copy(b.data, src.data)
	b.Sequence = src.Sequence
	b.Timestamp = src.Timestamp
	return nil
}

// Equal reports whether both blocks have the same shape and bit-identical samples
func (b *SampleBlock) Equal(other *SampleBlock) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.shape != other.shape {
		return false
	}
	for i := range b.data {
		if math.Float64bits(b.data[i]) != math.Float64bits(other.data[i]) {
			return false
		}
	}
	return true
}
