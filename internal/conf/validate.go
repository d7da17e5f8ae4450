// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/eegstream/eegstream-go/internal/acqcore"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func() error{
		func() error { return validateAcquisitionSettings(&settings.Acquisition) },
		func() error { return validateDeviceSettings(&settings.Device, settings.Acquisition.Channels) },
		func() error { return validateProcessingSettings(&settings.Processing, settings.Acquisition.Channels) },
		func() error { return validateOutputSettings(&settings.Output) },
		func() error { return validateWebServerSettings(&settings.WebServer) },
		func() error { return validateNotificationSettings(&settings.Notification) },
		func() error { return validateSentrySettings(&settings.Sentry) },
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}

	return nil
}

func validateAcquisitionSettings(a *AcquisitionSettings) error {
	var errs []string
	if a.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("acquisition.capacity must be at least 1, got %d", a.Capacity))
	}
	if a.Channels < 1 {
		errs = append(errs, fmt.Sprintf("acquisition.channels must be at least 1, got %d", a.Channels))
	}
	if a.SamplesPerBlock < 1 {
		errs = append(errs, fmt.Sprintf("acquisition.samplesperblock must be at least 1, got %d", a.SamplesPerBlock))
	}
	if a.Capacity > acqcore.MaxCapacity {
		errs = append(errs, fmt.Sprintf("acquisition.capacity must not exceed %d, got %d", acqcore.MaxCapacity, a.Capacity))
	}
	if a.Channels > acqcore.MaxChannels {
		errs = append(errs, fmt.Sprintf("acquisition.channels must not exceed %d, got %d", acqcore.MaxChannels, a.Channels))
	}
	if a.SamplesPerBlock > acqcore.MaxSamplesPerBlock {
		errs = append(errs, fmt.Sprintf("acquisition.samplesperblock must not exceed %d, got %d",
			acqcore.MaxSamplesPerBlock, a.SamplesPerBlock))
	}
	if len(errs) == 0 {
		if total := uint64(a.Capacity) * uint64(a.Channels) * uint64(a.SamplesPerBlock); total > acqcore.MaxBufferSamples {
			errs = append(errs, fmt.Sprintf("acquisition buffer would hold %d samples (capacity x channels x samplesperblock), limit is %d",
				total, acqcore.MaxBufferSamples))
		}
	}
	if a.DrainTimeout < 0 {
		errs = append(errs, "acquisition.draintimeout must not be negative")
	}
	return joinMessages(errs)
}

func validateDeviceSettings(d *DeviceSettings, channels int) error {
	var errs []string

	if d.SampleRate <= 0 {
		errs = append(errs, fmt.Sprintf("device.samplerate must be positive, got %v", d.SampleRate))
	}

	switch d.Type {
	case DeviceSimulated:
		if d.Simulated.MaxBlocks < 0 {
			errs = append(errs, "device.simulated.maxblocks must not be negative")
		}
		if d.Simulated.NoiseLevel < 0 {
			errs = append(errs, "device.simulated.noiselevel must not be negative")
		}
	case DeviceFile:
		if d.File.Path == "" {
			errs = append(errs, "device.file.path is required for file devices")
		} else if ext := strings.ToLower(filepath.Ext(d.File.Path)); ext != ".wav" && ext != ".flac" {
			errs = append(errs, fmt.Sprintf("device.file.path must be a .wav or .flac file, got %q", ext))
		}
	case DeviceStream:
		if _, _, err := net.SplitHostPort(d.Stream.Address); err != nil {
			errs = append(errs, fmt.Sprintf("device.stream.address is invalid: %v", err))
		}
		if d.Stream.BufferBlocks < 1 {
			errs = append(errs, "device.stream.bufferblocks must be at least 1")
		}
	case DeviceSoundcard:
		if d.Soundcard.BufferBlocks < 1 {
			errs = append(errs, "device.soundcard.bufferblocks must be at least 1")
		}
		if channels > 2 {
			errs = append(errs, fmt.Sprintf("soundcard devices capture at most 2 channels, acquisition.channels is %d", channels))
		}
	default:
		errs = append(errs, fmt.Sprintf("device.type %q is not one of %s, %s, %s, %s",
			d.Type, DeviceSimulated, DeviceFile, DeviceStream, DeviceSoundcard))
	}

	return joinMessages(errs)
}

func validateProcessingSettings(p *ProcessingSettings, channels int) error {
	var errs []string

	if p.Counter.Enabled && p.Counter.Interval < 1 {
		errs = append(errs, "processing.counter.interval must be at least 1")
	}

	for _, ch := range p.View.Channels {
		if ch < 0 || ch >= channels {
			errs = append(errs, fmt.Sprintf("processing.view.channels index %d out of range [0,%d)", ch, channels))
		}
	}

	if p.Recorder.Enabled {
		if !slices.Contains([]int{16, 32}, p.Recorder.BitDepth) {
			errs = append(errs, fmt.Sprintf("processing.recorder.bitdepth must be 16 or 32, got %d", p.Recorder.BitDepth))
		}
		if p.Recorder.Scale <= 0 {
			errs = append(errs, "processing.recorder.scale must be positive")
		}
		if p.Recorder.MinFreeMB < 0 {
			errs = append(errs, "processing.recorder.minfreemb must not be negative")
		}
	}

	if p.MQTT.Enabled {
		if p.MQTT.Topic == "" {
			errs = append(errs, "processing.mqtt.topic is required")
		}
		if u, err := url.Parse(p.MQTT.Broker); err != nil || u.Host == "" {
			errs = append(errs, fmt.Sprintf("processing.mqtt.broker %q is not a valid URL", p.MQTT.Broker))
		}
	}

	return joinMessages(errs)
}

func validateOutputSettings(o *OutputSettings) error {
	if !o.SQLite.Enabled {
		return nil
	}
	if o.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path is required when the session store is enabled")
	}
	if o.SQLite.MinFreeMB < 0 {
		return fmt.Errorf("output.sqlite.minfreemb must not be negative")
	}
	return nil
}

func validateWebServerSettings(w *WebServerSettings) error {
	if !w.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(w.Listen); err != nil {
		return fmt.Errorf("webserver.listen is invalid: %w", err)
	}
	return nil
}

func validateNotificationSettings(n *NotificationSettings) error {
	if !n.Enabled {
		return nil
	}
	if len(n.URLs) == 0 {
		return fmt.Errorf("notification.urls must contain at least one URL when notifications are enabled")
	}
	for _, raw := range n.URLs {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" {
			return fmt.Errorf("notification URL is not a valid service URL")
		}
	}
	return nil
}

func validateSentrySettings(s *SentrySettings) error {
	if s.Enabled && s.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}

func joinMessages(msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
