package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGet(t *testing.T) {
	s := New(DefaultConfig())

	t.Run("roundtrip", func(t *testing.T) {
		ok := s.Set("user:1", map[string]string{"name": "alice"}, time.Minute)
		require.True(t, ok)

		value, found := s.Get("user:1")
		require.True(t, found)
		assert.Equal(t, map[string]string{"name": "alice"}, value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, found := s.Get("nope")
		assert.False(t, found)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.True(t, s.Set("k", 1, time.Minute))
		require.True(t, s.Set("k", 2, time.Minute))

		value, found := s.Get("k")
		require.True(t, found)
		assert.Equal(t, 2, value)
	})

	t.Run("hit bookkeeping", func(t *testing.T) {
		require.True(t, s.Set("hits", "v", time.Minute))
		for i := 0; i < 3; i++ {
			_, found := s.Get("hits")
			require.True(t, found)
		}

		stats := s.Stats()
		assert.Greater(t, stats.AvgHitCount, 0.0)
	})
}

func TestStore_RejectsOversizedValues(t *testing.T) {
	s := New(Config{MaxEntries: 10, MaxValueBytes: 16})

	ok := s.Set("big", "this string is definitely longer than sixteen bytes", time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	// A small value still fits.
	assert.True(t, s.Set("small", "x", time.Minute))
}

func TestStore_Expiry(t *testing.T) {
	s := New(DefaultConfig())

	now := time.Now()
	s.SetNowFunc(func() time.Time { return now })

	require.True(t, s.Set("k", 42, time.Second))

	_, found := s.Get("k")
	require.True(t, found)

	// 1.1 seconds later the entry is logically absent and lazily deleted.
	now = now.Add(1100 * time.Millisecond)
	_, found = s.Get("k")
	assert.False(t, found)
	assert.Equal(t, 0, s.Len())

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.ExpiredCount)
}

func TestStore_TTLCappedAtCeiling(t *testing.T) {
	s := New(Config{MaxEntries: 10, MaxValueBytes: 1024, MaxTTL: time.Second})

	now := time.Now()
	s.SetNowFunc(func() time.Time { return now })

	require.True(t, s.Set("k", "v", time.Hour))

	now = now.Add(2 * time.Second)
	_, found := s.Get("k")
	assert.False(t, found)
}

func TestStore_EvictionAtCapacity(t *testing.T) {
	t.Run("capacity is never exceeded", func(t *testing.T) {
		s := New(Config{MaxEntries: 3})

		for i := 0; i < 10; i++ {
			require.True(t, s.Set(fmt.Sprintf("key-%d", i), i, time.Minute))
		}
		assert.Equal(t, 3, s.Len())
	})

	t.Run("lowest score is evicted first", func(t *testing.T) {
		s := New(Config{MaxEntries: 3})

		now := time.Now()
		s.SetNowFunc(func() time.Time { return now })

		require.True(t, s.Set("a", "a", time.Minute))
		require.True(t, s.Set("b", "b", time.Minute))
		require.True(t, s.Set("c", "c", time.Minute))

		// Hits protect a and c; b stays cold and idle.
		_, _ = s.Get("a")
		_, _ = s.Get("c")
		now = now.Add(10 * time.Second)

		require.True(t, s.Set("d", "d", time.Minute))
		assert.Equal(t, 3, s.Len())

		_, found := s.Get("b")
		assert.False(t, found, "the cold entry should have been the victim")
		_, found = s.Get("a")
		assert.True(t, found)
		_, found = s.Get("c")
		assert.True(t, found)
		_, found = s.Get("d")
		assert.True(t, found)
	})

	t.Run("overwrite at capacity does not evict", func(t *testing.T) {
		s := New(Config{MaxEntries: 2})

		require.True(t, s.Set("a", 1, time.Minute))
		require.True(t, s.Set("b", 2, time.Minute))
		require.True(t, s.Set("a", 3, time.Minute))

		assert.Equal(t, 2, s.Len())
		_, found := s.Get("b")
		assert.True(t, found)
	})
}

func TestStore_SweepThrottle(t *testing.T) {
	s := New(Config{MaxEntries: 100, SweepInterval: 10 * time.Second})

	now := time.Now()
	s.SetNowFunc(func() time.Time { return now })

	require.True(t, s.Set("short", "v", time.Second))

	// Entry expires, but writes inside the throttle window do not sweep it.
	now = now.Add(2 * time.Second)
	require.True(t, s.Set("other", "v", time.Minute))
	assert.Equal(t, 2, s.Len(), "expired entry still physically present")

	// Past the throttle interval the next write sweeps it out.
	now = now.Add(10 * time.Second)
	require.True(t, s.Set("another", "v", time.Minute))
	assert.Equal(t, 2, s.Len())
	_, found := s.Get("short")
	assert.False(t, found)
}

func TestStore_ExplicitSweep(t *testing.T) {
	s := New(DefaultConfig())

	now := time.Now()
	s.SetNowFunc(func() time.Time { return now })

	require.True(t, s.Set("a", 1, time.Second))
	require.True(t, s.Set("b", 2, time.Second))
	require.True(t, s.Set("c", 3, time.Hour))

	now = now.Add(2 * time.Second)
	removed := s.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())
}

func TestStore_DeleteAndClear(t *testing.T) {
	s := New(DefaultConfig())

	require.True(t, s.Set("k", "v", time.Minute))
	assert.True(t, s.Delete("k"))
	assert.False(t, s.Delete("k"), "second delete reports absence without failing")

	require.True(t, s.Set("a", 1, time.Minute))
	require.True(t, s.Set("b", 2, time.Minute))
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.Stats().TotalBytes)
}

func TestStore_Stats(t *testing.T) {
	s := New(Config{MaxEntries: 4})

	now := time.Now()
	s.SetNowFunc(func() time.Time { return now })

	require.True(t, s.Set("a", "aa", time.Minute))
	now = now.Add(30 * time.Second)
	require.True(t, s.Set("b", "bb", time.Minute))

	stats := s.Stats()
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 4, stats.Capacity)
	assert.InDelta(t, 50.0, stats.UtilizationPercent, 0.01)
	assert.Greater(t, stats.TotalBytes, int64(0))
	assert.InDelta(t, 30.0, stats.OldestEntryAgeSecs, 0.01)
}

func TestEstimateSize(t *testing.T) {
	t.Run("doubles encoded length", func(t *testing.T) {
		// "abc" encodes to `"abc"` = 5 bytes.
		assert.Equal(t, 10, estimateSize("abc"))
	})

	t.Run("unencodable values fall back to the default", func(t *testing.T) {
		assert.Equal(t, defaultSizeBytes, estimateSize(make(chan int)))
	})
}
