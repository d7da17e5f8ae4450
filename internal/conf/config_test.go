package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	t.Parallel()

	settings, err := LoadFile(writeConfig(t, "debug: true\n"))
	require.NoError(t, err)

	assert.True(t, settings.Debug)
	assert.Equal(t, "eegstream", settings.Main.Name)
	assert.Equal(t, 8, settings.Acquisition.Channels)
	assert.Equal(t, 256, settings.Acquisition.SamplesPerBlock)
	assert.Equal(t, 64, settings.Acquisition.Capacity)
	assert.Equal(t, 2*time.Second, settings.Acquisition.DrainTimeout)
	assert.Equal(t, DeviceSimulated, settings.Device.Type)
	assert.InDelta(t, 512.0, settings.Device.SampleRate, 0)
	assert.Equal(t, 100, settings.Processing.Counter.Interval)
	assert.Equal(t, time.Second, settings.Processing.MQTT.Interval)
	assert.Equal(t, ":8080", settings.WebServer.Listen)
	require.NotNil(t, settings.Main.Log.Console)
	assert.True(t, settings.Main.Log.Console.Enabled)
}

func TestEmbeddedConfigIsValid(t *testing.T) {
	t.Parallel()

	settings, err := LoadFile(writeConfig(t, getDefaultConfig()))
	require.NoError(t, err)
	assert.Equal(t, 16, settings.Device.Stream.BufferBlocks)
	assert.Equal(t, []float64{10}, settings.Device.Simulated.Frequencies)
}

func TestLoadFileOverrides(t *testing.T) {
	t.Parallel()

	settings, err := LoadFile(writeConfig(t, `
acquisition:
  channels: 2
  samplesperblock: 32
  capacity: 4
  draintimeout: 500ms
device:
  type: stream
  samplerate: 250
  stream:
    address: 10.0.0.5:9000
processing:
  view:
    channels: [1]
`))
	require.NoError(t, err)

	assert.Equal(t, 2, settings.Acquisition.Channels)
	assert.Equal(t, 500*time.Millisecond, settings.Acquisition.DrainTimeout)
	assert.Equal(t, DeviceStream, settings.Device.Type)
	assert.Equal(t, "10.0.0.5:9000", settings.Device.Stream.Address)
	assert.Equal(t, []int{1}, settings.Processing.View.Channels)
}

func TestControllerConfig(t *testing.T) {
	t.Parallel()

	settings, err := LoadFile(writeConfig(t, "acquisition:\n  channels: 3\n  samplesperblock: 10\n  capacity: 5\n"))
	require.NoError(t, err)

	cfg := settings.ControllerConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Channels)
	assert.Equal(t, 10, cfg.SamplesPerBlock)
	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, "3x10", cfg.Shape().String())
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(writeConfig(t, "acquisition:\n  capacity: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquisition.capacity")
}

func TestLoadBindsEnvironment(t *testing.T) {
	// Load uses the global viper instance and the process environment
	path := writeConfig(t, "acquisition:\n  channels: 4\n")
	t.Setenv("EEGSTREAM_CAPACITY", "12")
	t.Setenv("EEGSTREAM_DEVICE_SAMPLERATE", "1000")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, settings.Acquisition.Channels)
	assert.Equal(t, 12, settings.Acquisition.Capacity)
	assert.InDelta(t, 1000.0, settings.Device.SampleRate, 0)
	assert.Same(t, settings, GetSettings())
}

func TestDumpMasksSecrets(t *testing.T) {
	t.Parallel()

	settings, err := LoadFile(writeConfig(t, `
processing:
  mqtt:
    password: hunter2
notification:
  urls: ["telegram://token@telegram?chats=1"]
sentry:
  dsn: https://key@sentry.example/1
`))
	require.NoError(t, err)

	data, err := Dump(settings)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "token@telegram")
	assert.NotContains(t, out, "key@sentry")

	// Dump works on a copy
	assert.Equal(t, "hunter2", settings.Processing.MQTT.Password)

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))
}

func TestGetDefaultConfigPaths(t *testing.T) {
	t.Parallel()

	paths, err := GetDefaultConfigPaths()
	require.NoError(t, err)
	assert.NotEmpty(t, paths)
}
