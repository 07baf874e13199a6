// Package traffic implements sliding-window request counting used for
// cache admission control: a key is only worth caching once it has been
// requested often enough within the window.
package traffic

import (
	"sync"
	"time"
)

// Config holds traffic classifier configuration.
type Config struct {
	// Window is the sliding window duration requests are counted over.
	Window time.Duration
	// Threshold is the default request count at which a key counts as
	// high traffic.
	Threshold int
	// CleanupInterval throttles per-key pruning between requests.
	CleanupInterval time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Window:          60 * time.Second,
		Threshold:       5,
		CleanupInterval: 5 * time.Minute,
	}
}

// KeyStats describes one tracked key.
type KeyStats struct {
	CurrentCount   int       `json:"current_count"`
	TotalCount     int64     `json:"total_count"`
	IsHighTraffic  bool      `json:"is_high_traffic"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Stats describes all tracked keys.
type Stats struct {
	Endpoints   map[string]KeyStats `json:"endpoints"`
	TrackedKeys int                 `json:"tracked_keys"`
	Threshold   int                 `json:"threshold"`
}

// window is the per-key record. The total counter is monotonic and never
// shrinks; timestamps are pruned to the window on every Track.
type window struct {
	timestamps  []time.Time
	lastCleanup time.Time
	total       int64
}

// Classifier tracks request timestamps per key in a sliding window.
type Classifier struct {
	mu      sync.Mutex
	windows map[string]*window
	config  Config

	// now is swappable for tests
	now func() time.Time
}

// New creates a classifier with the given configuration.
func New(config Config) *Classifier {
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	if config.Threshold < 1 {
		config.Threshold = DefaultConfig().Threshold
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	return &Classifier{
		windows: make(map[string]*window),
		config:  config,
		now:     time.Now,
	}
}

// Track records a request for key now, prunes timestamps that fell out of
// the window, and returns the in-window count including this request.
func (c *Classifier) Track(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok {
		w = &window{lastCleanup: now}
		c.windows[key] = w
	}

	w.prune(now, c.config.Window)
	w.timestamps = append(w.timestamps, now)
	w.total++
	w.lastCleanup = now

	return len(w.timestamps)
}

// IsHighTraffic records a request for key and reports whether the
// in-window count has reached the threshold. A threshold override of zero
// or below falls back to the configured default.
func (c *Classifier) IsHighTraffic(key string, threshold int) bool {
	if threshold <= 0 {
		threshold = c.config.Threshold
	}
	return c.Track(key) >= threshold
}

// CurrentCount returns the in-window count for key without recording a
// new request.
func (c *Classifier) CurrentCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if !ok {
		return 0
	}
	return w.countSince(c.now().Add(-c.config.Window))
}

// Stats returns a snapshot of every tracked key.
func (c *Classifier) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-c.config.Window)

	stats := Stats{
		Endpoints:   make(map[string]KeyStats, len(c.windows)),
		TrackedKeys: len(c.windows),
		Threshold:   c.config.Threshold,
	}

	for key, w := range c.windows {
		count := w.countSince(cutoff)
		ks := KeyStats{
			CurrentCount:  count,
			TotalCount:    w.total,
			IsHighTraffic: count >= c.config.Threshold,
		}
		if n := len(w.timestamps); n > 0 {
			ks.LastActivityAt = w.timestamps[n-1]
		}
		stats.Endpoints[key] = ks
	}

	return stats
}

// Clear forgets every tracked key.
func (c *Classifier) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows = make(map[string]*window)
}

// Sweep prunes every window and drops the ones left empty, bounding
// memory growth from a churn of distinct keys. It returns the number of
// windows removed. The periodic janitor calls this at roughly twice the
// per-key cleanup interval.
func (c *Classifier) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, w := range c.windows {
		w.prune(now, c.config.Window)
		if len(w.timestamps) == 0 {
			delete(c.windows, key)
			removed++
		}
	}
	return removed
}

// TrackedKeys returns the number of keys currently tracked.
func (c *Classifier) TrackedKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// SetNowFunc replaces the classifier's clock. Test helper.
func (c *Classifier) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// prune drops timestamps older than the window. Timestamps are appended
// in order, so a single scan for the first in-window index suffices.
func (w *window) prune(now time.Time, windowDur time.Duration) {
	cutoff := now.Add(-windowDur)
	idx := 0
	for idx < len(w.timestamps) && !w.timestamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[idx:]...)
	}
}

func (w *window) countSince(cutoff time.Time) int {
	count := 0
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}
