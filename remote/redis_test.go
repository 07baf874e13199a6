package remote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiercache/circuitbreaker"
	"tiercache/logging"
)

func testConfig(addr string) Config {
	return Config{
		Address:             addr,
		PoolSize:            5,
		OpTimeout:           time.Second,
		HealthProbeInterval: time.Hour, // keep the probe out of the test's way
		MaxConnectAttempts:  1,
		BreakerEnabled:      true,
		Breaker: circuitbreaker.Config{
			FailureThreshold: 3,
			ResetTimeout:     time.Minute,
		},
	}
}

func setupClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := NewClient(testConfig(mr.Addr()), logging.NewNopLogger())
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestClient_KeyValue(t *testing.T) {
	client, mr := setupClient(t)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		assert.True(t, client.SetWithExpiry(ctx, "k", "v", time.Hour))

		value, found := client.Get(ctx, "k")
		assert.True(t, found)
		assert.Equal(t, "v", value)
	})

	t.Run("missing key reads as absent, not as an error", func(t *testing.T) {
		value, found := client.Get(ctx, "nope")
		assert.False(t, found)
		assert.Empty(t, value)

		status := client.Status()
		assert.Zero(t, status.FailureCount, "a miss is not a failure")
	})

	t.Run("exists", func(t *testing.T) {
		assert.True(t, client.Exists(ctx, "k"))
		assert.False(t, client.Exists(ctx, "nope"))
	})

	t.Run("ttl", func(t *testing.T) {
		ttl := client.TTL(ctx, "k")
		assert.Greater(t, ttl, time.Duration(0))
		assert.Equal(t, time.Duration(-1), client.TTL(ctx, "nope"))
	})

	t.Run("keys by pattern", func(t *testing.T) {
		require.True(t, client.SetWithExpiry(ctx, "user:1", "a", time.Hour))
		require.True(t, client.SetWithExpiry(ctx, "user:2", "b", time.Hour))

		keys := client.Keys(ctx, "user:*")
		assert.Len(t, keys, 2)
	})

	t.Run("delete", func(t *testing.T) {
		assert.True(t, client.Delete(ctx, "k"))
		_, found := client.Get(ctx, "k")
		assert.False(t, found)
	})

	t.Run("expiry", func(t *testing.T) {
		require.True(t, client.SetWithExpiry(ctx, "short", "v", time.Second))

		mr.FastForward(2 * time.Second)

		_, found := client.Get(ctx, "short")
		assert.False(t, found)
	})
}

func TestClient_Status(t *testing.T) {
	client, _ := setupClient(t)

	status := client.Status()
	assert.True(t, status.Available)
	assert.True(t, status.Connected)
	assert.False(t, status.CircuitOpen)
	assert.Equal(t, ModeConnected, status.Mode)
	assert.Equal(t, 1, status.ConnectionAttempts)
}

func TestClient_Metrics(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()

	client.SetWithExpiry(ctx, "k", "v", time.Hour)
	client.Get(ctx, "k")

	m := client.Metrics()
	assert.Equal(t, int64(2), m.TotalOperations)
	assert.Equal(t, int64(2), m.SuccessfulOperations)
	assert.InDelta(t, 100.0, m.SuccessRatePercent, 0.01)
	assert.GreaterOrEqual(t, m.AvgResponseTimeMs, 0.0)
}

func TestClient_BreakerOpensOnFailures(t *testing.T) {
	client, mr := setupClient(t)
	ctx := context.Background()

	// Kill the server: every operation now fails.
	mr.Close()

	for i := 0; i < 3; i++ {
		_, found := client.Get(ctx, "k")
		assert.False(t, found)
	}

	status := client.Status()
	assert.True(t, status.CircuitOpen)
	assert.Equal(t, ModeCircuitOpen, status.Mode)
	assert.Equal(t, 3, status.FailureCount)
	require.NotNil(t, status.LastFailureAt)

	// The open circuit rejects locally: no further operation is attempted,
	// so the operation counters stop moving.
	before := client.Metrics().TotalOperations
	_, found := client.Get(ctx, "k")
	assert.False(t, found)
	assert.False(t, client.SetWithExpiry(ctx, "k", "v", time.Hour))
	assert.Equal(t, before, client.Metrics().TotalOperations)
}

func TestClient_FailuresReturnSafeEmpties(t *testing.T) {
	client, mr := setupClient(t)
	ctx := context.Background()

	mr.Close()

	value, found := client.Get(ctx, "k")
	assert.False(t, found)
	assert.Empty(t, value)
	assert.False(t, client.SetWithExpiry(ctx, "k", "v", time.Hour))
	assert.False(t, client.Delete(ctx, "k"))
	assert.False(t, client.Exists(ctx, "k"))
	assert.Equal(t, time.Duration(-1), client.TTL(ctx, "k"))
	assert.Nil(t, client.Keys(ctx, "*"))

	m := client.Metrics()
	assert.Equal(t, m.TotalOperations, m.FailedOperations)
}

func TestClient_UnavailableMode(t *testing.T) {
	client := NewClient(testConfig(""), logging.NewNopLogger())
	defer client.Close()

	ctx := context.Background()

	status := client.Status()
	assert.False(t, status.Available)
	assert.Equal(t, ModeUnavailable, status.Mode)

	// No operation attempts the network; everything is a safe empty.
	_, found := client.Get(ctx, "k")
	assert.False(t, found)
	assert.False(t, client.SetWithExpiry(ctx, "k", "v", time.Hour))
	assert.Error(t, client.Ping(ctx))
	assert.Zero(t, client.Metrics().TotalOperations)
}

func TestClient_DisconnectedMode(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := NewClient(testConfig(mr.Addr()), logging.NewNopLogger())
	defer client.Close()

	mr.Close()
	_, _ = client.Get(context.Background(), "k")

	status := client.Status()
	assert.True(t, status.Available)
	assert.False(t, status.Connected)
	assert.Equal(t, ModeDisconnected, status.Mode)
}

func TestNullStore(t *testing.T) {
	s := NewNullStore()
	ctx := context.Background()

	_, found := s.Get(ctx, "k")
	assert.False(t, found)
	assert.False(t, s.SetWithExpiry(ctx, "k", "v", time.Hour))
	assert.False(t, s.Delete(ctx, "k"))
	assert.False(t, s.Exists(ctx, "k"))
	assert.Equal(t, time.Duration(-1), s.TTL(ctx, "k"))
	assert.Nil(t, s.Keys(ctx, "*"))
	assert.Error(t, s.Ping(ctx))
	assert.Equal(t, ModeUnavailable, s.Status().Mode)
	assert.Equal(t, Metrics{}, s.Metrics())
	assert.NoError(t, s.Close())
}
