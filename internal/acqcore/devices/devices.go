// Package devices provides the acquisition sources the producer reads from:
// a signal generator, WAV/FLAC playback, a TCP sample stream and soundcard capture.
package devices

import (
	"context"
	"fmt"
	"time"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/conf"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

const componentDevices = "acqcore.devices"

// Option configures a device built by New
type Option func(*options)

type options struct {
	logger logger.Logger
}

// WithLogger sets the device logger
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New builds the device selected by settings.Type. Every device emits blocks
// of the given shape.
func New(settings *conf.DeviceSettings, shape acqcore.Shape, opts ...Option) (acqcore.Device, error) {
	o := options{logger: logger.Global().Module("acqcore").Module("devices")}
	for _, opt := range opts {
		opt(&o)
	}

	switch settings.Type {
	case conf.DeviceSimulated:
		s := settings.Simulated
		return NewSimulated(SimulatedConfig{
			Shape:       shape,
			SampleRate:  settings.SampleRate,
			Amplitude:   s.Amplitude,
			Frequencies: s.Frequencies,
			NoiseLevel:  s.NoiseLevel,
			Seed:        s.Seed,
			MaxBlocks:   s.MaxBlocks,
			Realtime:    s.Realtime,
		})
	case conf.DeviceFile:
		f := settings.File
		return NewFile(FileConfig{
			Path:       f.Path,
			Shape:      shape,
			SampleRate: settings.SampleRate,
			Scale:      f.Scale,
			Realtime:   f.Realtime,
		}, o.logger)
	case conf.DeviceStream:
		s := settings.Stream
		return NewStream(StreamConfig{
			Address:      s.Address,
			Shape:        shape,
			SampleRate:   settings.SampleRate,
			DialTimeout:  s.DialTimeout,
			BufferBlocks: s.BufferBlocks,
		}, o.logger)
	case conf.DeviceSoundcard:
		s := settings.Soundcard
		return NewSoundcard(SoundcardConfig{
			Device:       s.Device,
			Shape:        shape,
			SampleRate:   settings.SampleRate,
			BufferBlocks: s.BufferBlocks,
		}, o.logger)
	default:
		return nil, errors.Newf("unknown device type %q", settings.Type).
			Component(componentDevices).
			Category(errors.CategoryConfiguration).
			Context("device_type", settings.Type).
			Build()
	}
}

// Types lists the device types New understands
func Types() []string {
	return []string{conf.DeviceSimulated, conf.DeviceFile, conf.DeviceStream, conf.DeviceSoundcard}
}

func configError(deviceType, msg string) error {
	return errors.New(fmt.Errorf("%w: %s", acqcore.ErrInvalidConfiguration, msg)).
		Component(componentDevices).
		Category(errors.CategoryConfiguration).
		Context("device_type", deviceType).
		Build()
}

func notOpenError(deviceID string) error {
	return acqcore.NewDeviceError(deviceID, "read", errors.NewStd("device is not open"))
}

// pacer releases one block per block span so playback follows the sample rate
type pacer struct {
	span time.Duration
	next time.Time
}

func newPacer(samples int, sampleRate float64) *pacer {
	if sampleRate <= 0 || samples <= 0 {
		return &pacer{}
	}
	return &pacer{span: time.Duration(float64(samples) / sampleRate * float64(time.Second))}
}

func (p *pacer) reset() {
	p.next = time.Time{}
}

// wait blocks until the next block is due. The schedule is absolute so
// a late reader catches up instead of drifting.
func (p *pacer) wait(ctx context.Context) error {
	if p.span == 0 {
		return ctx.Err()
	}
	now := time.Now()
	if p.next.IsZero() {
		p.next = now
	}
	p.next = p.next.Add(p.span)
	if d := p.next.Sub(now); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
