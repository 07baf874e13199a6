package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, config Config) (*CircuitBreaker, *time.Time) {
	t.Helper()

	cb := New("test", config)
	now := time.Now()
	cb.SetNowFunc(func() time.Time { return now })
	return cb, &now
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 3, ResetTimeout: time.Minute})

	assert.Equal(t, StateClosed, cb.State())

	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.State(), "below threshold stays closed")
	assert.True(t, cb.Allow())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow(), "open circuit rejects locally")
	assert.Equal(t, 3, cb.Failures())
}

func TestBreaker_CooldownAllowsSingleProbe(t *testing.T) {
	cb, now := newTestBreaker(t, Config{FailureThreshold: 2, ResetTimeout: time.Minute})

	cb.Failure()
	cb.Failure()
	require.Equal(t, StateOpen, cb.State())

	*now = now.Add(30 * time.Second)
	assert.False(t, cb.Allow(), "still cooling down")

	*now = now.Add(31 * time.Second)
	assert.True(t, cb.Allow(), "cooldown elapsed, probe allowed")
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one probe at a time")
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	t.Run("reset to zero", func(t *testing.T) {
		cb, now := newTestBreaker(t, Config{FailureThreshold: 2, ResetTimeout: time.Minute, Policy: ResetToZero})

		cb.Failure()
		cb.Failure()
		*now = now.Add(2 * time.Minute)
		require.True(t, cb.Allow())

		cb.Success()
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 0, cb.Failures())
	})

	t.Run("decrement policy keeps the circuit trigger-happy", func(t *testing.T) {
		cb, now := newTestBreaker(t, Config{FailureThreshold: 2, ResetTimeout: time.Minute, Policy: ResetDecrement})

		cb.Failure()
		cb.Failure()
		*now = now.Add(2 * time.Minute)
		require.True(t, cb.Allow())

		cb.Success()
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 1, cb.Failures(), "counter is lowered by one, not zeroed")

		// A single further failure re-opens the circuit.
		cb.Failure()
		assert.Equal(t, StateOpen, cb.State())
	})
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(t, Config{FailureThreshold: 2, ResetTimeout: time.Minute})

	cb.Failure()
	cb.Failure()
	*now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow(), "cooldown restarted from the probe failure")

	*now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
}

func TestBreaker_SuccessResetsFailuresWhileClosed(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 3, ResetTimeout: time.Minute})

	cb.Failure()
	cb.Failure()
	cb.Success()
	assert.Equal(t, 0, cb.Failures())

	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.State(), "counter restarted after the success")
}

func TestBreaker_Execute(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 1, ResetTimeout: time.Minute})

	t.Run("passes through results", func(t *testing.T) {
		err := cb.Execute(func() error { return nil })
		assert.NoError(t, err)
	})

	t.Run("records failures and rejects once open", func(t *testing.T) {
		boom := errors.New("boom")
		err := cb.Execute(func() error { return boom })
		assert.Equal(t, boom, err)

		called := false
		err = cb.Execute(func() error { called = true; return nil })
		assert.Equal(t, ErrOpen, err)
		assert.False(t, called, "rejected call never runs")
	})
}

func TestBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 1, ResetTimeout: time.Hour})

	cb.Failure()
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
	assert.True(t, cb.Allow())
}

func TestBreaker_Snapshot(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 2, ResetTimeout: time.Minute})

	snap := cb.Snapshot()
	assert.Equal(t, "test", snap.Name)
	assert.Equal(t, "closed", snap.State)
	assert.Nil(t, snap.LastFailure)

	cb.Failure()
	snap = cb.Snapshot()
	assert.Equal(t, 1, snap.Failures)
	require.NotNil(t, snap.LastFailure)
}
