package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	c := New(true)

	c.RecordHit(TierMemory)
	c.RecordHit(TierMemory)
	c.RecordHit(TierRemote)
	c.RecordMiss()
	c.RecordError()
	c.RecordProducerCall()

	stats := c.Snapshot()
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(2), stats.MemoryHits)
	assert.Equal(t, int64(1), stats.RemoteHits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(1), stats.ProducerCalls)
	assert.InDelta(t, 75.0, stats.HitRatePercent, 0.01)
}

func TestCollector_ResponseTimes(t *testing.T) {
	c := New(true)

	c.Observe(10 * time.Millisecond)
	c.Observe(20 * time.Millisecond)

	stats := c.Snapshot()
	assert.InDelta(t, 15.0, stats.AvgResponseTimeMs, 0.1)
	assert.InDelta(t, 20.0, stats.LastResponseTimeMs, 0.1)
}

func TestCollector_RollingWindow(t *testing.T) {
	c := New(true)

	// Fill the window with slow samples, then overwrite it with fast ones.
	for i := 0; i < sampleWindow; i++ {
		c.Observe(100 * time.Millisecond)
	}
	for i := 0; i < sampleWindow; i++ {
		c.Observe(time.Millisecond)
	}

	stats := c.Snapshot()
	assert.InDelta(t, 1.0, stats.AvgResponseTimeMs, 0.1, "old samples rolled out")
}

func TestCollector_Disabled(t *testing.T) {
	c := New(false)

	c.RecordHit(TierMemory)
	c.RecordMiss()
	c.RecordError()
	c.Observe(time.Second)

	stats := c.Snapshot()
	assert.Equal(t, Stats{}, stats)
}

func TestCollector_Reset(t *testing.T) {
	c := New(true)

	c.RecordHit(TierRemote)
	c.RecordMiss()
	c.Observe(time.Millisecond)

	c.Reset()
	assert.Equal(t, Stats{}, c.Snapshot())
}

func TestCollector_EmptySnapshot(t *testing.T) {
	c := New(true)

	stats := c.Snapshot()
	assert.Zero(t, stats.HitRatePercent)
	assert.Zero(t, stats.AvgResponseTimeMs)
}
