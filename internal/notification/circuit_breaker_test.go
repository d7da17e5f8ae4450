package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_Transitions(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute})
	cb.now = func() time.Time { return now }

	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	require.ErrorIs(t, cb.Allow(), ErrCircuitBreakerOpen)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Allow(), "trial call after timeout")
	assert.Equal(t, StateHalfOpen, cb.State())
	require.ErrorIs(t, cb.Allow(), ErrCircuitBreakerOpen, "only one trial call in flight")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State(), "failed trial call reopens")

	now = now.Add(time.Minute)
	require.NoError(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Allow())
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	assert.Equal(t, DefaultCircuitBreakerConfig(), cb.config)
	assert.Equal(t, "closed", cb.State().String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

func TestNewShoutrrrSender(t *testing.T) {
	t.Parallel()

	_, err := NewShoutrrrSender(nil, time.Second)
	require.Error(t, err)

	_, err = NewShoutrrrSender([]string{"notaservice://token@host"}, time.Second)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token@host")

	sender, err := NewShoutrrrSender([]string{"generic://localhost:1/hook"}, time.Second)
	require.NoError(t, err)
	assert.NotNil(t, sender)
}

func TestScrubURLs(t *testing.T) {
	t.Parallel()

	msg := scrubURLs("failed for ntfy://secret@ntfy.sh/topic", []string{"ntfy://secret@ntfy.sh/topic", ""})
	assert.Equal(t, "failed for [redacted-url]", msg)
}
