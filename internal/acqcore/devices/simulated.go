package devices

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/eegstream/eegstream-go/internal/acqcore"
)

// defaultFrequency is used when no per-channel frequency is configured
const defaultFrequency = 10.0

// SimulatedConfig configures the signal generator
type SimulatedConfig struct {
	ID          string
	Shape       acqcore.Shape
	SampleRate  float64
	Amplitude   float64
	Frequencies []float64 // cycled over channels
	NoiseLevel  float64   // gaussian noise standard deviation
	Seed        int64     // 0 picks a time based seed
	MaxBlocks   int       // 0 means unlimited
	Realtime    bool

	// FailOpen makes Open return this error, for exercising start failures
	FailOpen error
}

// Simulated generates per-channel sine waves with additive noise. It stands
// in for an amplifier when no hardware is attached.
type Simulated struct {
	cfg   SimulatedConfig
	pacer *pacer

	mu     sync.Mutex
	open   bool
	rng    *rand.Rand
	sample uint64 // index of the next sample in the stream
	blocks int
}

// NewSimulated validates cfg and returns a closed generator
func NewSimulated(cfg SimulatedConfig) (*Simulated, error) {
	if cfg.SampleRate <= 0 {
		return nil, configError("simulated", "sample rate must be positive")
	}
	if cfg.MaxBlocks < 0 {
		return nil, configError("simulated", "max blocks must not be negative")
	}
	if cfg.ID == "" {
		cfg.ID = "simulated"
	}
	if len(cfg.Frequencies) == 0 {
		cfg.Frequencies = []float64{defaultFrequency}
	}

	s := &Simulated{cfg: cfg}
	if cfg.Realtime {
		s.pacer = newPacer(cfg.Shape.Samples, cfg.SampleRate)
	} else {
		s.pacer = &pacer{}
	}
	return s, nil
}

// ID implements acqcore.Device
func (s *Simulated) ID() string { return s.cfg.ID }

// Shape implements acqcore.Device
func (s *Simulated) Shape() acqcore.Shape { return s.cfg.Shape }

// SampleRate implements acqcore.Device
func (s *Simulated) SampleRate() float64 { return s.cfg.SampleRate }

// Open resets the generator so every session produces the same sequence for a fixed seed
func (s *Simulated) Open(context.Context) error {
	if s.cfg.FailOpen != nil {
		return acqcore.NewDeviceError(s.cfg.ID, "open", s.cfg.FailOpen)
	}

	seed := uint64(s.cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s.sample = 0
	s.blocks = 0
	s.open = true
	s.pacer.reset()
	return nil
}

// Close implements acqcore.Device
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// ReadChunk generates the next block of samples
func (s *Simulated) ReadChunk(ctx context.Context) ([][]float64, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, notOpenError(s.cfg.ID)
	}
	if s.cfg.MaxBlocks > 0 && s.blocks >= s.cfg.MaxBlocks {
		s.mu.Unlock()
		return nil, acqcore.ErrDeviceExhausted
	}
	s.mu.Unlock()

	if err := s.pacer.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	shape := s.cfg.Shape
	rows := make([][]float64, shape.Channels)
	for ch := range rows {
		freq := s.cfg.Frequencies[ch%len(s.cfg.Frequencies)]
		row := make([]float64, shape.Samples)
		for i := range row {
			t := float64(s.sample+uint64(i)) / s.cfg.SampleRate
			row[i] = s.cfg.Amplitude * math.Sin(2*math.Pi*freq*t)
			if s.cfg.NoiseLevel > 0 {
				row[i] += s.rng.NormFloat64() * s.cfg.NoiseLevel
			}
		}
		rows[ch] = row
	}

	s.sample += uint64(shape.Samples)
	s.blocks++
	return rows, nil
}
