// Package metrics collects hit/miss/error counters and rolling
// response-time statistics for the cache orchestrator. The collector is a
// pure observer: nothing in the fetch path branches on it.
package metrics

import (
	"sync"
	"time"
)

// sampleWindow bounds the rolling response-time buffer.
const sampleWindow = 128

// Tier names the cache tier a hit came from.
type Tier string

const (
	// TierMemory is the in-process bounded store
	TierMemory Tier = "memory"
	// TierRemote is the Redis-backed backstop
	TierRemote Tier = "remote"
)

// Stats is a snapshot of the collector.
type Stats struct {
	Hits               int64   `json:"hits"`
	MemoryHits         int64   `json:"memory_hits"`
	RemoteHits         int64   `json:"remote_hits"`
	Misses             int64   `json:"misses"`
	Errors             int64   `json:"errors"`
	ProducerCalls      int64   `json:"producer_calls"`
	HitRatePercent     float64 `json:"hit_rate_percent"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
	LastResponseTimeMs float64 `json:"last_response_time_ms"`
}

// Collector accumulates counters and a rolling window of response times.
type Collector struct {
	mu            sync.Mutex
	enabled       bool
	memoryHits    int64
	remoteHits    int64
	misses        int64
	errors        int64
	producerCalls int64

	samples [sampleWindow]time.Duration
	next    int
	filled  int
	last    time.Duration
}

// New creates a collector. A disabled collector accepts recordings and
// discards them.
func New(enabled bool) *Collector {
	return &Collector{enabled: enabled}
}

// RecordHit records a cache hit on the given tier.
func (c *Collector) RecordHit(tier Tier) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if tier == TierRemote {
		c.remoteHits++
	} else {
		c.memoryHits++
	}
}

// RecordMiss records a cache miss.
func (c *Collector) RecordMiss() {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
}

// RecordError records a failure inside the cache tiers or the producer.
func (c *Collector) RecordError() {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors++
}

// RecordProducerCall records one producer invocation.
func (c *Collector) RecordProducerCall() {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.producerCalls++
}

// Observe records the response time of one fetch.
func (c *Collector) Observe(d time.Duration) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples[c.next] = d
	c.next = (c.next + 1) % sampleWindow
	if c.filled < sampleWindow {
		c.filled++
	}
	c.last = d
}

// Snapshot returns the current statistics.
func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		MemoryHits:    c.memoryHits,
		RemoteHits:    c.remoteHits,
		Misses:        c.misses,
		Errors:        c.errors,
		ProducerCalls: c.producerCalls,
	}
	stats.Hits = c.memoryHits + c.remoteHits

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRatePercent = float64(stats.Hits) / float64(total) * 100
	}

	if c.filled > 0 {
		var sum time.Duration
		for i := 0; i < c.filled; i++ {
			sum += c.samples[i]
		}
		stats.AvgResponseTimeMs = float64(sum.Microseconds()) / float64(c.filled) / 1000
		stats.LastResponseTimeMs = float64(c.last.Microseconds()) / 1000
	}

	return stats
}

// Reset zeroes all counters and samples.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.memoryHits = 0
	c.remoteHits = 0
	c.misses = 0
	c.errors = 0
	c.producerCalls = 0
	c.next = 0
	c.filled = 0
	c.last = 0
}
