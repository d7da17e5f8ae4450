package devices

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/patrickmn/go-cache"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/logger"
)

const (
	int16Bytes         = 2
	deviceListCacheKey = "capture_devices"
	deviceListTTL      = 30 * time.Second
)

// deviceCache holds the capture device enumeration. No janitor goroutine is
// started; expired entries are skipped on Get.
var deviceCache = cache.New(deviceListTTL, 0)

// CaptureDevice describes one system capture device
type CaptureDevice struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	ID    string `json:"id"`
}

// ListDevices enumerates capture devices. Results are cached briefly because
// backend enumeration is slow on some systems.
func ListDevices() ([]CaptureDevice, error) {
	if cached, ok := deviceCache.Get(deviceListCacheKey); ok {
		if devices, ok := cached.([]CaptureDevice); ok {
			return devices, nil
		}
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, acqcore.NewDeviceError("soundcard", "enumerate", fmt.Errorf("failed to initialize context: %w", err))
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, acqcore.NewDeviceError("soundcard", "enumerate", fmt.Errorf("failed to get devices: %w", err))
	}

	devices := make([]CaptureDevice, 0, len(infos))
	for i := range infos {
		devices = append(devices, CaptureDevice{
			Index: i,
			Name:  infos[i].Name(),
			ID:    infos[i].ID.String(),
		})
	}

	deviceCache.Set(deviceListCacheKey, devices, cache.DefaultExpiration)
	return devices, nil
}

// SoundcardConfig configures soundcard capture
type SoundcardConfig struct {
	ID           string
	Device       string // name or id substring, empty for the default input
	Shape        acqcore.Shape
	SampleRate   float64
	BufferBlocks int
}

// Soundcard captures signed 16-bit frames from an audio input. Each input
// channel becomes one block row, scaled to [-1, 1].
type Soundcard struct {
	cfg    SoundcardConfig
	logger logger.Logger

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	staging *stagingRing
	chunk   []byte
}

// NewSoundcard validates cfg and returns a closed soundcard device
func NewSoundcard(cfg SoundcardConfig, log logger.Logger) (*Soundcard, error) {
	if cfg.Shape.Channels < 1 || cfg.Shape.Channels > 2 {
		return nil, configError("soundcard", fmt.Sprintf("soundcard capture supports 1 or 2 channels, got %d", cfg.Shape.Channels))
	}
	if cfg.Shape.Samples < 1 {
		return nil, configError("soundcard", "samples per block must be at least 1")
	}
	if cfg.SampleRate <= 0 {
		return nil, configError("soundcard", "sample rate must be positive")
	}
	if cfg.BufferBlocks < 1 {
		cfg.BufferBlocks = 1
	}
	if cfg.ID == "" {
		cfg.ID = "soundcard"
		if cfg.Device != "" {
			cfg.ID += ":" + cfg.Device
		}
	}

	chunkBytes := cfg.Shape.Len() * int16Bytes
	return &Soundcard{
		cfg:     cfg,
		logger:  log,
		staging: newStagingRing(chunkBytes*cfg.BufferBlocks, cfg.Shape.Channels*int16Bytes),
		chunk:   make([]byte, chunkBytes),
	}, nil
}

// ID implements acqcore.Device
func (s *Soundcard) ID() string { return s.cfg.ID }

// Shape implements acqcore.Device
func (s *Soundcard) Shape() acqcore.Shape { return s.cfg.Shape }

// SampleRate implements acqcore.Device
func (s *Soundcard) SampleRate() float64 { return s.cfg.SampleRate }

// Open initialises the audio backend and starts capture
func (s *Soundcard) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return acqcore.NewDeviceError(s.cfg.ID, "open", fmt.Errorf("context init failed: %w", err))
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(s.cfg.Shape.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	name := "default"
	if s.cfg.Device != "" {
		infos, err := mctx.Devices(malgo.Capture)
		if err != nil {
			releaseContext(mctx)
			return acqcore.NewDeviceError(s.cfg.ID, "open", fmt.Errorf("failed to get devices: %w", err))
		}
		idx := matchCaptureDevice(infos, s.cfg.Device)
		if idx < 0 {
			releaseContext(mctx)
			return acqcore.NewDeviceError(s.cfg.ID, "open", fmt.Errorf("no capture device matches %q", s.cfg.Device))
		}
		deviceConfig.Capture.DeviceID = infos[idx].ID.Pointer()
		name = infos[idx].Name()
	}

	s.staging.reset()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			s.staging.write(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		releaseContext(mctx)
		return acqcore.NewDeviceError(s.cfg.ID, "open", fmt.Errorf("device init failed: %w", err))
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(mctx)
		return acqcore.NewDeviceError(s.cfg.ID, "open", fmt.Errorf("device start failed: %w", err))
	}

	s.ctx = mctx
	s.device = device
	s.logger.Info("soundcard capture started",
		logger.String("device", name),
		logger.Int("channels", s.cfg.Shape.Channels),
		logger.Float64("sample_rate", s.cfg.SampleRate))
	return nil
}

// Close stops capture and releases the backend
func (s *Soundcard) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return nil
	}

	err := s.device.Stop()
	s.device.Uninit()
	releaseContext(s.ctx)
	s.device = nil
	s.ctx = nil

	if overruns := s.staging.overruns.Load(); overruns > 0 {
		s.logger.Warn("capture staging overruns, frames were dropped", logger.Uint64("overruns", overruns))
	}
	return err
}

// ReadChunk waits for one block of captured frames
func (s *Soundcard) ReadChunk(ctx context.Context) ([][]float64, error) {
	s.mu.Lock()
	open := s.device != nil
	s.mu.Unlock()
	if !open {
		return nil, notOpenError(s.cfg.ID)
	}

	if err := s.staging.readFull(ctx, s.chunk); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, acqcore.NewDeviceError(s.cfg.ID, "read", err)
	}
	return deinterleaveS16(s.chunk, s.cfg.Shape), nil
}

func deinterleaveS16(b []byte, shape acqcore.Shape) [][]float64 {
	rows := make([][]float64, shape.Channels)
	for ch := range rows {
		rows[ch] = make([]float64, shape.Samples)
	}
	for i := range shape.Len() {
		v := int16(binary.LittleEndian.Uint16(b[i*int16Bytes:]))
		rows[i%shape.Channels][i/shape.Channels] = float64(v) / 32768.0
	}
	return rows
}

// matchCaptureDevice returns the index of the first device whose name or id
// contains want, or -1
func matchCaptureDevice(infos []malgo.DeviceInfo, want string) int {
	want = strings.ToLower(want)
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), want) ||
			strings.Contains(strings.ToLower(infos[i].ID.String()), want) {
			return i
		}
	}
	return -1
}

func releaseContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	_ = ctx.Uninit()
	ctx.Free()
}
