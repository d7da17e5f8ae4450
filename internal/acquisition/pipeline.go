// Package acquisition assembles the device, buffer, processors and
// supporting services from the settings and runs an acquisition session.
package acquisition

import (
	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/acqcore/devices"
	"github.com/eegstream/eegstream-go/internal/acqcore/processors"
	"github.com/eegstream/eegstream-go/internal/conf"
	"github.com/eegstream/eegstream-go/internal/datastore"
	"github.com/eegstream/eegstream-go/internal/diskspace"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
	"github.com/eegstream/eegstream-go/internal/mqtt"
	"github.com/eegstream/eegstream-go/internal/notification"
	"github.com/eegstream/eegstream-go/internal/observability"
)

// Pipeline is every long-lived component of one eegstream process
type Pipeline struct {
	Settings   *conf.Settings
	Device     acqcore.Device
	Controller *acqcore.Controller
	Metrics    *observability.Metrics
	Stats      *processors.Stats
	View       *processors.View
	Store      datastore.Interface
	MQTT       mqtt.Client

	recorder *processors.WAVRecorder
	notifier *notification.Notifier
	logger   logger.Logger
}

// NewPipeline builds the pipeline described by settings. Nothing is started;
// on error every component created so far is released.
func NewPipeline(settings *conf.Settings, log logger.Logger) (_ *Pipeline, err error) {
	if log == nil {
		log = logger.Global().Module("acquisition")
	}
	p := &Pipeline{Settings: settings, logger: log}
	defer func() {
		if err != nil {
			if closeErr := p.Close(); closeErr != nil {
				log.Warn("cleanup after failed setup", logger.Error(closeErr))
			}
		}
	}()

	p.Metrics, err = observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component("acquisition").
			Category(errors.CategorySystem).
			Context("operation", "init_metrics").
			Build()
	}

	cfg := settings.ControllerConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p.Device, err = devices.New(&settings.Device, cfg.Shape(), devices.WithLogger(log.Module("device")))
	if err != nil {
		return nil, err
	}

	chain, listeners, err := p.buildProcessors(cfg)
	if err != nil {
		return nil, err
	}

	if settings.Output.SQLite.Enabled {
		store := datastore.NewSQLiteStore(settings.Output.SQLite.Path,
			datastore.WithLogger(log.Module("datastore")),
			datastore.WithMetrics(p.Metrics.Datastore),
			datastore.WithMinFreeSpace(uint64(settings.Output.SQLite.MinFreeMB)*diskspace.MiB))
		if err := store.Open(); err != nil {
			return nil, err
		}
		p.Store = store
		listeners = append(listeners, datastore.NewSessionRecorder(store, log.Module("datastore")))
	}

	if settings.Notification.Enabled {
		sender, err := notification.NewShoutrrrSender(settings.Notification.URLs, settings.Notification.Timeout)
		if err != nil {
			return nil, err
		}
		p.notifier = notification.NewNotifier(notification.Config{
			Instance:      settings.Main.Name,
			NotifyOnStart: settings.Notification.NotifyOnStart,
		}, sender, log.Module("notification"), p.Metrics.Notification)
		listeners = append(listeners, p.notifier)
	}

	opts := []acqcore.ControllerOption{
		acqcore.WithControllerLogger(log.Module("acqcore")),
		acqcore.WithControllerMetrics(p.Metrics.Acquisition),
	}
	for _, l := range listeners {
		opts = append(opts, acqcore.WithSessionListener(l))
	}

	p.Controller, err = acqcore.NewController(cfg, p.Device, chain, opts...)
	if err != nil {
		return nil, err
	}

	log.Info("pipeline ready",
		logger.String("device_type", settings.Device.Type),
		logger.String("shape", cfg.Shape().String()),
		logger.Int("capacity", cfg.Capacity),
		logger.Int("processors", chain.Len()),
		logger.Bool("sqlite", p.Store != nil),
		logger.Bool("notifications", p.notifier != nil))
	return p, nil
}

// buildProcessors creates the enabled processors. Processors that need to
// see session boundaries are returned as listeners too.
func (p *Pipeline) buildProcessors(cfg acqcore.ControllerConfig) (*processors.Chain, []acqcore.SessionListener, error) {
	settings := p.Settings.Processing
	chain := processors.NewChain()
	var listeners []acqcore.SessionListener

	if settings.Counter.Enabled {
		chain.Add(processors.NewCounter(settings.Counter.Interval, p.logger.Module("counter")))
	}

	if settings.Stats.Enabled {
		p.Stats = processors.NewStats()
		chain.Add(p.Stats)
	}

	if settings.View.Enabled {
		p.View = processors.NewView(cfg.Channels, p.Device.SampleRate())
		if err := p.View.SetVisibleChannels(settings.View.Channels); err != nil {
			return nil, nil, err
		}
		chain.Add(p.View)
	}

	if settings.Recorder.Enabled {
		recorder, err := processors.NewWAVRecorder(processors.RecorderConfig{
			Dir:        settings.Recorder.Path,
			BitDepth:   settings.Recorder.BitDepth,
			Scale:      settings.Recorder.Scale,
			SampleRate: p.Device.SampleRate(),
			Channels:   cfg.Channels,

			MinFreeBytes: uint64(settings.Recorder.MinFreeMB) * diskspace.MiB,
		}, p.logger.Module("recorder"))
		if err != nil {
			return nil, nil, err
		}
		p.recorder = recorder
		chain.Add(recorder)
		listeners = append(listeners, recorder)
	}

	if settings.MQTT.Enabled {
		client, err := mqtt.NewClient(mqtt.ConfigFromSettings(p.Settings), p.logger.Module("mqtt"), p.Metrics.MQTT)
		if err != nil {
			return nil, nil, err
		}
		p.MQTT = client
		publisher, err := processors.NewMQTTPublisher(client, settings.MQTT.Topic, p.Device.ID(),
			settings.MQTT.Interval, p.logger.Module("mqtt"))
		if err != nil {
			return nil, nil, err
		}
		chain.Add(publisher)
	}

	return chain, listeners, nil
}

// Close releases every component. The controller must be stopped first.
func (p *Pipeline) Close() error {
	var errs []error
	if p.recorder != nil {
		if err := p.recorder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.notifier != nil {
		p.notifier.Close()
	}
	if p.MQTT != nil {
		p.MQTT.Disconnect()
	}
	if p.Store != nil {
		if err := p.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
