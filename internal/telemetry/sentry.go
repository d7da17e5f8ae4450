// Package telemetry provides opt-in error tracking through Sentry
package telemetry

import (
	"fmt"
	"regexp"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/eegstream/eegstream-go/internal/conf"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// flushTimeout bounds how long Close waits for queued events
const flushTimeout = 2 * time.Second

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	ipPattern    = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	pathPattern  = regexp.MustCompile(`(?:/home|/Users|/root)/[^\s:"']+`)
)

// ScrubMessage removes e-mail addresses, IP addresses and home paths
func ScrubMessage(msg string) string {
	msg = emailPattern.ReplaceAllString(msg, "[email]")
	msg = ipPattern.ReplaceAllString(msg, "[ip]")
	return pathPattern.ReplaceAllString(msg, "[path]")
}

// InitSentry initializes the Sentry SDK and registers it as the error
// reporter. It does nothing unless Sentry is enabled in the settings.
func InitSentry(settings *conf.Settings, systemID string, version string) error {
	log := logger.Global().Module("telemetry")
	if !settings.Sentry.Enabled {
		log.Debug("sentry telemetry is disabled")
		return nil
	}
	if settings.Sentry.DSN == "" {
		return errors.Newf("sentry is enabled but no DSN is configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	environment := settings.Sentry.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "", // keep the hostname out of events
		Release:          fmt.Sprintf("eegstream@%s", version),
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: systemID})
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("device_type", settings.Device.Type)
	})

	scrubber := errors.PrivacyScrubber(ScrubMessage)
	errors.SetPrivacyScrubber(scrubber)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("sentry telemetry initialized",
		logger.String("environment", environment),
		logger.String("system_id", systemID))
	return nil
}

// beforeSend scrubs messages and exception values before they leave the host
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.ServerName = ""
	event.Message = ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = ScrubMessage(event.Exception[i].Value)
	}
	return event
}

// Close flushes pending events and unregisters the reporter
func Close() {
	if errors.GetTelemetryReporter() == nil {
		return
	}
	sentry.Flush(flushTimeout)
	errors.SetTelemetryReporter(nil)
}
