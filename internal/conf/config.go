// config.go: this file contains the configuration for the eegstream application.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Device types understood by the device factory
const (
	DeviceSimulated = "simulated"
	DeviceFile      = "file"
	DeviceStream    = "stream"
	DeviceSoundcard = "soundcard"
)

// MainSettings holds application wide settings
type MainSettings struct {
	Name string               // instance name, reported in notifications
	Log  logger.LoggingConfig // central logger configuration
}

// AcquisitionSettings sizes the sample buffer and controls shutdown
type AcquisitionSettings struct {
	Channels        int           // channels per block
	SamplesPerBlock int           // samples per channel in one block
	Capacity        int           // number of blocks the buffer holds
	DrainTimeout    time.Duration // how long Stop waits for the consumer to empty the buffer
}

// SimulatedDeviceSettings configures the signal generator device
type SimulatedDeviceSettings struct {
	Amplitude   float64   // peak amplitude in device units
	Frequencies []float64 // sine frequency per channel in Hz, cycled when shorter than channel count
	NoiseLevel  float64   // standard deviation of additive gaussian noise
	Seed        int64     // random seed, 0 picks a time based seed
	MaxBlocks   int       // stop after this many blocks, 0 for unlimited
	Realtime    bool      // pace blocks to the sample rate
}

// FileDeviceSettings configures playback from a WAV or FLAC recording
type FileDeviceSettings struct {
	Path     string  // path to .wav or .flac file
	Scale    float64 // multiplier applied to normalised samples
	Realtime bool    // pace blocks to the file sample rate
}

// StreamDeviceSettings configures the TCP float32 stream client
type StreamDeviceSettings struct {
	Address      string        // host:port of the sample server
	DialTimeout  time.Duration // connection timeout
	BufferBlocks int           // blocks worth of bytes staged between network and reader
}

// SoundcardDeviceSettings configures capture through the system audio API
type SoundcardDeviceSettings struct {
	Device       string // device name or id substring, empty for system default
	BufferBlocks int    // blocks worth of bytes staged between callback and reader
}

// DeviceSettings selects and configures the acquisition device
type DeviceSettings struct {
	Type       string  // simulated, file, stream or soundcard
	SampleRate float64 // samples per second per channel
	Simulated  SimulatedDeviceSettings
	File       FileDeviceSettings
	Stream     StreamDeviceSettings
	Soundcard  SoundcardDeviceSettings
}

// CounterSettings configures the block counter processor
type CounterSettings struct {
	Enabled  bool
	Interval int // log every Nth block
}

// StatsSettings configures per-channel statistics
type StatsSettings struct {
	Enabled bool
}

// ViewSettings configures the display snapshot processor
type ViewSettings struct {
	Enabled  bool
	Channels []int // visible channel indices, empty for all
}

// RecorderSettings configures WAV recording of the acquired stream
type RecorderSettings struct {
	Enabled  bool
	Path     string  // output directory
	BitDepth int     // 16 or 32
	Scale    float64 // samples are divided by this before quantisation
	// MinFreeMB refuses to start a new file below this much free space, 0 disables
	MinFreeMB int
}

// MQTTSettings configures the statistics publisher
type MQTTSettings struct {
	Enabled  bool
	Broker   string        // tcp://host:1883
	Topic    string        // publish topic
	ClientID string        // empty generates one
	Username string        // optional
	Password string        // optional
	Interval time.Duration // minimum time between messages
}

// ProcessingSettings selects which processors the consumer runs
type ProcessingSettings struct {
	Counter  CounterSettings
	Stats    StatsSettings
	View     ViewSettings
	Recorder RecorderSettings
	MQTT     MQTTSettings
}

// WebServerSettings configures the HTTP status API
type WebServerSettings struct {
	Enabled bool
	Listen  string // listen address, e.g. ":8080"
}

// MetricsSettings configures the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool
}

// SQLiteSettings configures the session store
type SQLiteSettings struct {
	Enabled   bool
	Path      string
	MinFreeMB int // free space required to open the database, 0 disables
}

// OutputSettings groups persistence targets
type OutputSettings struct {
	SQLite SQLiteSettings
}

// NotificationSettings configures shoutrrr notifications
type NotificationSettings struct {
	Enabled       bool
	URLs          []string      // shoutrrr service URLs
	Timeout       time.Duration // per send timeout
	NotifyOnStart bool          // also notify on session start and stop
}

// SentrySettings configures error telemetry
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// Settings contains all configuration options for eegstream
type Settings struct {
	Debug bool // true to enable debug mode

	Main         MainSettings
	Acquisition  AcquisitionSettings
	Device       DeviceSettings
	Processing   ProcessingSettings
	WebServer    WebServerSettings
	Metrics      MetricsSettings
	Output       OutputSettings
	Notification NotificationSettings
	Sentry       SentrySettings
}

// ControllerConfig returns the buffer geometry for the acquisition controller
func (s *Settings) ControllerConfig() acqcore.ControllerConfig {
	return acqcore.ControllerConfig{
		Channels:        s.Acquisition.Channels,
		SamplesPerBlock: s.Acquisition.SamplesPerBlock,
		Capacity:        s.Acquisition.Capacity,
		DrainTimeout:    s.Acquisition.DrainTimeout,
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the
// global settings instance. An explicit configFile skips path discovery.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(viper.GetViper(), configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalSettings(viper.GetViper())
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFile reads a single config file with its own viper instance.
// It does not touch the global settings.
func LoadFile(path string) (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}
	return unmarshalSettings(v)
}

func unmarshalSettings(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(v *viper.Viper, configFile string) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EEGSTREAM")
	v.AutomaticEnv()
	bindEnvVars(v)

	setDefaultConfig(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		return nil
	}

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	err = v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to dir and reads it back
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	logger.Global().Module("conf").Info("created default config file",
		logger.String("path", configPath))

	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// the file is compiled in, so this only fails on a broken build
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Dump renders settings as YAML. Secrets are masked.
func Dump(settings *Settings) ([]byte, error) {
	masked := *settings
	masked.Processing.MQTT.Password = maskSecret(masked.Processing.MQTT.Password)
	masked.Sentry.DSN = maskSecret(masked.Sentry.DSN)
	if len(masked.Notification.URLs) > 0 {
		urls := make([]string, len(masked.Notification.URLs))
		for i := range urls {
			urls[i] = maskSecret(masked.Notification.URLs[i])
		}
		masked.Notification.URLs = urls
	}

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
