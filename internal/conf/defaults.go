// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "eegstream")
	v.SetDefault("main.log.defaultlevel", "info")
	v.SetDefault("main.log.timezone", "Local")
	v.SetDefault("main.log.console.enabled", true)
	v.SetDefault("main.log.console.level", "info")
	v.SetDefault("main.log.fileoutput.enabled", false)
	v.SetDefault("main.log.fileoutput.path", "logs/eegstream.log")
	v.SetDefault("main.log.fileoutput.level", "info")
	v.SetDefault("main.log.fileoutput.maxsize", 100)
	v.SetDefault("main.log.fileoutput.maxage", 30)
	v.SetDefault("main.log.fileoutput.maxrotatedfiles", 10)
	v.SetDefault("main.log.fileoutput.compress", false)

	v.SetDefault("acquisition.channels", 8)
	v.SetDefault("acquisition.samplesperblock", 256)
	v.SetDefault("acquisition.capacity", 64)
	v.SetDefault("acquisition.draintimeout", 2*time.Second)

	v.SetDefault("device.type", DeviceSimulated)
	v.SetDefault("device.samplerate", 512.0)
	v.SetDefault("device.simulated.amplitude", 50.0)
	v.SetDefault("device.simulated.frequencies", []float64{10})
	v.SetDefault("device.simulated.noiselevel", 5.0)
	v.SetDefault("device.simulated.seed", 0)
	v.SetDefault("device.simulated.maxblocks", 0)
	v.SetDefault("device.simulated.realtime", true)
	v.SetDefault("device.file.path", "")
	v.SetDefault("device.file.scale", 1.0)
	v.SetDefault("device.file.realtime", false)
	v.SetDefault("device.stream.address", "localhost:4242")
	v.SetDefault("device.stream.dialtimeout", 5*time.Second)
	v.SetDefault("device.stream.bufferblocks", 16)
	v.SetDefault("device.soundcard.device", "")
	v.SetDefault("device.soundcard.bufferblocks", 16)

	v.SetDefault("processing.counter.enabled", true)
	v.SetDefault("processing.counter.interval", 100)
	v.SetDefault("processing.stats.enabled", true)
	v.SetDefault("processing.view.enabled", true)
	v.SetDefault("processing.view.channels", []int{})
	v.SetDefault("processing.recorder.enabled", false)
	v.SetDefault("processing.recorder.path", "recordings")
	v.SetDefault("processing.recorder.bitdepth", 16)
	v.SetDefault("processing.recorder.scale", 1000.0)
	v.SetDefault("processing.recorder.minfreemb", 100)
	v.SetDefault("processing.mqtt.enabled", false)
	v.SetDefault("processing.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("processing.mqtt.topic", "eegstream/stats")
	v.SetDefault("processing.mqtt.clientid", "")
	v.SetDefault("processing.mqtt.username", "")
	v.SetDefault("processing.mqtt.password", "")
	v.SetDefault("processing.mqtt.interval", time.Second)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", ":8080")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("output.sqlite.enabled", false)
	v.SetDefault("output.sqlite.path", "eegstream.db")
	v.SetDefault("output.sqlite.minfreemb", 10)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.timeout", 10*time.Second)
	v.SetDefault("notification.notifyonstart", false)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}
