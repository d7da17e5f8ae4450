package processors

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegstream/eegstream-go/internal/errors"
)

func TestMQTTPublisher_ThrottlesByInterval(t *testing.T) {
	t.Parallel()

	client := &fakePublisher{connected: true}
	p, err := NewMQTTPublisher(client, "eeg/stats", "sim", time.Second, testLogger())
	require.NoError(t, err)

	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	block := blockFromRows(t, 5, []float64{1, 3}, []float64{2, 2})
	require.NoError(t, p.Process(t.Context(), block))
	now = now.Add(500 * time.Millisecond)
	require.NoError(t, p.Process(t.Context(), block))
	now = now.Add(600 * time.Millisecond)
	require.NoError(t, p.Process(t.Context(), block))

	payloads := client.sent()
	require.Len(t, payloads, 2)
	assert.Equal(t, "eeg/stats", client.topics[0])

	var summary BlockSummary
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &summary))
	assert.Equal(t, "sim", summary.DeviceID)
	assert.Equal(t, uint64(5), summary.Sequence)
	assert.Equal(t, 2, summary.Shape.Channels)
	require.Len(t, summary.Channels, 2)
	assert.InDelta(t, 2.0, summary.Channels[0].Mean, 1e-12)

	sent, skipped := p.Published()
	assert.Equal(t, uint64(2), sent)
	assert.Zero(t, skipped)
}

func TestMQTTPublisher_SkipsWhileDisconnected(t *testing.T) {
	t.Parallel()

	client := &fakePublisher{}
	p, err := NewMQTTPublisher(client, "eeg/stats", "", 0, testLogger())
	require.NoError(t, err)

	require.NoError(t, p.Process(t.Context(), blockFromRows(t, 1, []float64{1})))
	assert.Empty(t, client.sent())

	_, skipped := p.Published()
	assert.Equal(t, uint64(1), skipped)
}

func TestMQTTPublisher_PublishesDespiteNonFiniteSamples(t *testing.T) {
	t.Parallel()

	client := &fakePublisher{connected: true}
	p, err := NewMQTTPublisher(client, "eeg/stats", "stream", 0, testLogger())
	require.NoError(t, err)

	block := blockFromRows(t, 9,
		[]float64{math.NaN(), 1, 3},
		[]float64{math.Inf(1), math.Inf(-1), 0.5},
	)
	require.NoError(t, p.Process(t.Context(), block))
	require.NoError(t, p.Process(t.Context(), block), "a bad sample must not poison later publishes")

	payloads := client.sent()
	require.Len(t, payloads, 2)

	var summary BlockSummary
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &summary))
	require.Len(t, summary.Channels, 2)
	assert.InDelta(t, 2.0, summary.Channels[0].Mean, 1e-12)
	assert.Equal(t, 1, summary.Channels[0].NonFinite)
	assert.InDelta(t, 0.5, summary.Channels[1].Mean, 1e-12)
	assert.Equal(t, 2, summary.Channels[1].NonFinite)
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	t.Parallel()

	client := &fakePublisher{connected: true, err: errors.NewStd("broker gone")}
	p, err := NewMQTTPublisher(client, "eeg/stats", "", 0, testLogger())
	require.NoError(t, err)

	err = p.Process(t.Context(), blockFromRows(t, 1, []float64{1}))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
}

func TestNewMQTTPublisher_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewMQTTPublisher(nil, "t", "", 0, testLogger())
	require.Error(t, err)
	_, err = NewMQTTPublisher(&fakePublisher{}, "", "", 0, testLogger())
	require.Error(t, err)
}
