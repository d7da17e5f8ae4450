package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/buildinfo"
	"github.com/eegstream/eegstream-go/internal/datastore"
)

// These tests share the global viper instance and logger, so they do not
// run in parallel.

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := RootCommand(buildinfo.NewContext("1.0.0-test", "2026-10-19", ""))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0-test")
}

func TestConfigDump(t *testing.T) {
	path := writeConfig(t, `
main:
  name: lab-rig-2
processing:
  mqtt:
    password: hunter2
`)
	out, err := execute(t, "--config", path, "config", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "lab-rig-2")
	assert.NotContains(t, out, "hunter2")
}

func TestInvalidConfigFails(t *testing.T) {
	path := writeConfig(t, "acquisition:\n  capacity: -3\n")
	_, err := execute(t, "--config", path, "config", "dump")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquisition.capacity")
}

func TestSessionsCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	store := datastore.NewSQLiteStore(dbPath)
	require.NoError(t, store.Open())
	started := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	stopped := started.Add(90 * time.Second)
	require.NoError(t, store.Save(t.Context(), &datastore.Session{
		SessionID:       "0b5e6c1a-1111-4222-8333-944455556666",
		DeviceID:        "sim",
		State:           acqcore.StateIdle,
		Channels:        8,
		SamplesPerBlock: 256,
		Produced:        42,
		Consumed:        42,
		StartedAt:       &started,
		StoppedAt:       &stopped,
	}))
	require.NoError(t, store.Close())

	path := writeConfig(t, fmt.Sprintf("output:\n  sqlite:\n    path: %q\n", dbPath))

	out, err := execute(t, "--config", path, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "0b5e6c1a-1111-4222-8333-944455556666")
	assert.Contains(t, out, "8x256")
	assert.Contains(t, out, "1m30s")

	out, err = execute(t, "--config", path, "sessions", "show", "0b5e6c1a-1111-4222-8333-944455556666")
	require.NoError(t, err)
	assert.Contains(t, out, "produced: 42")

	_, err = execute(t, "--config", path, "sessions", "show", "missing")
	require.ErrorIs(t, err, datastore.ErrSessionNotFound)

	out, err = execute(t, "--config", path, "sessions", "delete", "0b5e6c1a-1111-4222-8333-944455556666")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted session")

	out, err = execute(t, "--config", path, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions recorded")
}

func TestAcquireUntilDeviceExhausted(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sessions.db")
	path := writeConfig(t, fmt.Sprintf(`
acquisition:
  channels: 2
  samplesperblock: 32
  capacity: 4
device:
  type: simulated
  samplerate: 256
  simulated:
    maxblocks: 10
    realtime: false
webserver:
  enabled: false
output:
  sqlite:
    enabled: true
    path: %q
`, dbPath))

	_, err := execute(t, "--config", path, "acquire")
	require.NoError(t, err)

	out, err := execute(t, "--config", path, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2x32")
}
