package notification

import (
	"io"
	"sync"
	"testing"
	"time"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

type sentMessage struct {
	title   string
	message string
}

// fakeSender records messages and fails while err is set
type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (f *fakeSender) Send(message string, params *stypes.Params) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return []error{nil, f.err}
	}
	title, _ := params.Title()
	f.sent = append(f.sent, sentMessage{title: title, message: message})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeMetrics struct {
	mu       sync.Mutex
	success  int
	failures int
}

func (f *fakeMetrics) RecordDelivery(_ string, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.failures++
		return
	}
	f.success++
}

func runningStatus() acqcore.Status {
	return acqcore.Status{
		SessionID: "s-1",
		DeviceID:  "simulated",
		Shape:     acqcore.Shape{Channels: 8, Samples: 256},
		Capacity:  16,
		Produced:  100,
		Consumed:  98,
	}
}

func TestNotifier_FailureAlwaysNotified(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	metrics := &fakeMetrics{}
	n := NewNotifier(Config{Instance: "lab-1"}, sender, testLogger(), metrics)

	n.SessionStarted(runningStatus())
	n.SessionStopped(runningStatus())
	n.SessionFailed(runningStatus(), errors.NewStd("device busy"))
	n.Close()

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "lab-1: acquisition failed", msgs[0].title)
	assert.Contains(t, msgs[0].message, "device busy")
	assert.Equal(t, 1, metrics.success)
}

func TestNotifier_StopWithDroppedBlocks(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	n := NewNotifier(Config{}, sender, testLogger(), nil)

	status := runningStatus()
	status.Dropped = 2
	n.SessionStopped(status)
	n.Close()

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "eegstream: acquisition stopped", msgs[0].title)
	assert.Contains(t, msgs[0].message, "2 dropped")
}

func TestNotifier_NotifyOnStart(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	n := NewNotifier(Config{NotifyOnStart: true}, sender, testLogger(), nil)

	n.SessionStarted(runningStatus())
	n.SessionStopped(runningStatus())
	n.Close()

	msgs := sender.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].message, "8x256")
	assert.Contains(t, msgs[1].message, "100 produced, 98 consumed")
}

func TestNotifier_ClosedRejects(t *testing.T) {
	t.Parallel()

	n := NewNotifier(Config{}, &fakeSender{}, testLogger(), nil)
	n.Close()
	n.Close()
	assert.False(t, n.Notify(Notification{Title: "late"}))
}

func TestNotifier_DeliveryFailureOpensBreaker(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{err: errors.NewStd("service unavailable")}
	metrics := &fakeMetrics{}
	n := NewNotifier(Config{Breaker: CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Hour}},
		sender, testLogger(), metrics)

	for range 4 {
		n.Notify(Notification{Title: "t", Message: "m"})
	}
	n.Close()

	assert.Equal(t, StateOpen, n.breaker.State())
	assert.Equal(t, 2, metrics.failures, "deliveries stop once the breaker opens")
}
