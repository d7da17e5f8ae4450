package acquisition

import (
	"context"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/conf"
	"github.com/eegstream/eegstream-go/internal/datastore"
	"github.com/eegstream/eegstream-go/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// testSettings returns a fast, finite simulated setup with every optional
// output disabled.
func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Main.Name = "test"
	s.Acquisition = conf.AcquisitionSettings{Channels: 2, SamplesPerBlock: 16, Capacity: 4, DrainTimeout: time.Second}
	s.Device.Type = conf.DeviceSimulated
	s.Device.SampleRate = 256
	s.Device.Simulated = conf.SimulatedDeviceSettings{
		Amplitude:   10,
		Frequencies: []float64{4, 8},
		NoiseLevel:  1,
		Seed:        42,
		MaxBlocks:   20,
	}
	s.Processing.Counter = conf.CounterSettings{Enabled: true, Interval: 5}
	s.Processing.Stats.Enabled = true
	s.Processing.View.Enabled = true
	return s
}

func TestNewPipelineRejectsBadSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(s *conf.Settings)
	}{
		{"unknown device", func(s *conf.Settings) { s.Device.Type = "tape" }},
		{"zero capacity", func(s *conf.Settings) { s.Acquisition.Capacity = 0 }},
		{"view channel out of range", func(s *conf.Settings) { s.Processing.View.Channels = []int{5} }},
		{"recorder bit depth", func(s *conf.Settings) {
			s.Processing.Recorder = conf.RecorderSettings{Enabled: true, Path: t.TempDir(), BitDepth: 8, Scale: 1}
		}},
		{"mqtt broker", func(s *conf.Settings) {
			s.Processing.MQTT = conf.MQTTSettings{Enabled: true, Broker: "not a url", Topic: "t"}
		}},
		{"notification url", func(s *conf.Settings) {
			s.Notification = conf.NotificationSettings{Enabled: true, URLs: []string{"notaservice://"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := testSettings(t)
			tt.mutate(s)
			p, err := NewPipeline(s, testLogger())
			require.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestNewPipelineWiresOptionalComponents(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Processing.Recorder = conf.RecorderSettings{Enabled: true, Path: t.TempDir(), BitDepth: 16, Scale: 100}
	s.Processing.MQTT = conf.MQTTSettings{Enabled: true, Broker: "tcp://127.0.0.1:1", Topic: "eeg/stats", Interval: time.Second}
	s.Output.SQLite = conf.SQLiteSettings{Enabled: true, Path: filepath.Join(t.TempDir(), "sessions.db")}
	s.Notification = conf.NotificationSettings{Enabled: true, URLs: []string{"generic://localhost:1/hook"}, Timeout: time.Second}

	p, err := NewPipeline(s, testLogger())
	require.NoError(t, err)

	assert.NotNil(t, p.Controller)
	assert.NotNil(t, p.Stats)
	assert.NotNil(t, p.View)
	assert.NotNil(t, p.Store)
	assert.NotNil(t, p.MQTT)
	assert.False(t, p.MQTT.IsConnected())
	assert.Equal(t, acqcore.StateIdle, p.Controller.Status().State)

	require.NoError(t, p.Close())
}

func TestRunUntilDeviceExhausted(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	recordings := t.TempDir()
	s.Output.SQLite = conf.SQLiteSettings{Enabled: true, Path: dbPath}
	s.Processing.Recorder = conf.RecorderSettings{Enabled: true, Path: recordings, BitDepth: 16, Scale: 100}

	var rotations atomic.Int32
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	require.NoError(t, Run(ctx, s, func() error {
		rotations.Add(1)
		return nil
	}))
	require.NoError(t, ctx.Err(), "run should end on exhaustion, not on timeout")

	store := datastore.NewSQLiteStore(dbPath, datastore.WithLogger(testLogger()))
	require.NoError(t, store.Open())
	defer func() { assert.NoError(t, store.Close()) }()

	sessions, err := store.List(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	session := sessions[0]
	assert.Equal(t, acqcore.StateIdle, session.State)
	assert.Equal(t, uint64(20), session.Produced)
	assert.Equal(t, uint64(20), session.Consumed, "blocks queued at exhaustion must be drained")
	assert.Zero(t, session.Dropped)
	assert.NotNil(t, session.StoppedAt)

	files, err := filepath.Glob(filepath.Join(recordings, "*.wav"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRunWithWebServerStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Device.Simulated.MaxBlocks = 0
	s.Device.Simulated.Realtime = true
	s.WebServer = conf.WebServerSettings{Enabled: true, Listen: "127.0.0.1:0"}
	s.Metrics.Enabled = true

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, s, nil) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
