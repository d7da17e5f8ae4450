// env.go - environment variable bindings for eegstream
package conf

import (
	"github.com/spf13/viper"

	"github.com/eegstream/eegstream-go/internal/logger"
)

// envBinding maps a config key to an environment variable
type envBinding struct {
	ConfigKey string
	EnvVar    string
}

// getEnvBindings lists the variables used by container deployments.
// Nested keys are not picked up by AutomaticEnv on Unmarshal, so they are bound explicitly.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"device.type", "EEGSTREAM_DEVICE_TYPE"},
		{"device.samplerate", "EEGSTREAM_DEVICE_SAMPLERATE"},
		{"device.file.path", "EEGSTREAM_DEVICE_FILE_PATH"},
		{"device.stream.address", "EEGSTREAM_DEVICE_STREAM_ADDRESS"},
		{"acquisition.channels", "EEGSTREAM_CHANNELS"},
		{"acquisition.samplesperblock", "EEGSTREAM_SAMPLES_PER_BLOCK"},
		{"acquisition.capacity", "EEGSTREAM_CAPACITY"},
		{"webserver.listen", "EEGSTREAM_LISTEN"},
		{"processing.mqtt.broker", "EEGSTREAM_MQTT_BROKER"},
		{"processing.mqtt.username", "EEGSTREAM_MQTT_USERNAME"},
		{"processing.mqtt.password", "EEGSTREAM_MQTT_PASSWORD"},
		{"sentry.dsn", "EEGSTREAM_SENTRY_DSN"},
	}
}

// bindEnvVars binds environment variables; failures are logged, not fatal
func bindEnvVars(v *viper.Viper) {
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			logger.Global().Module("conf").Warn("failed to bind environment variable",
				logger.String("env", binding.EnvVar),
				logger.Error(err))
		}
	}
}
