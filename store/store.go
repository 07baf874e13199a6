// Package store implements the in-process bounded cache tier.
//
// The store holds opaque values under string keys with per-entry TTLs,
// rejects values above a configured size, and evicts on capacity using a
// scored heuristic that combines recency, age, size and hit frequency.
// Expired entries are logically absent the moment their deadline passes
// and are physically removed either lazily on read or by a throttled
// full-scan sweep.
package store

import (
	"encoding/json"
	"sync"
	"time"
)

// defaultSizeBytes is charged to a value whose size cannot be estimated.
const defaultSizeBytes = 1024

// Entry is a single cached value with its bookkeeping.
type Entry struct {
	Value        interface{}
	ExpiresAt    time.Time
	LastAccessAt time.Time
	CreatedAt    time.Time
	HitCount     int64
	SizeBytes    int
}

// Config holds bounded store configuration.
type Config struct {
	// MaxEntries is the capacity of the store.
	MaxEntries int
	// MaxValueBytes rejects values whose estimated size exceeds it.
	MaxValueBytes int
	// MaxTTL caps any ttl passed to Set.
	MaxTTL time.Duration
	// SweepInterval throttles the expiry sweep: consecutive sweeps are at
	// least this far apart regardless of write rate.
	SweepInterval time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:    1000,
		MaxValueBytes: 1 << 20,
		MaxTTL:        24 * time.Hour,
		SweepInterval: 10 * time.Second,
	}
}

// Stats describes the current state of the store.
type Stats struct {
	Count              int     `json:"count"`
	Capacity           int     `json:"capacity"`
	TotalBytes         int64   `json:"total_bytes"`
	UtilizationPercent float64 `json:"utilization_percent"`
	ExpiredCount       int64   `json:"expired_count"`
	AvgHitCount        float64 `json:"avg_hit_count"`
	OldestEntryAgeSecs float64 `json:"oldest_entry_age_seconds"`
}

// Store is a mutex-protected bounded key-value cache.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	config     Config
	totalBytes int64
	expired    int64
	lastSweep  time.Time

	// now is swappable for tests
	now func() time.Time
}

// New creates a bounded store with the given configuration.
func New(config Config) *Store {
	if config.MaxEntries < 1 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	if config.MaxValueBytes < 1 {
		config.MaxValueBytes = DefaultConfig().MaxValueBytes
	}
	if config.MaxTTL <= 0 {
		config.MaxTTL = DefaultConfig().MaxTTL
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultConfig().SweepInterval
	}

	return &Store{
		entries: make(map[string]*Entry),
		config:  config,
		now:     time.Now,
	}
}

// Set inserts or overwrites the value under key. It returns false, without
// mutating anything, when the estimated value size exceeds the configured
// maximum. The ttl is capped at the configured ceiling.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) bool {
	size := estimateSize(value)
	if size > s.config.MaxValueBytes {
		return false
	}

	if ttl <= 0 || ttl > s.config.MaxTTL {
		ttl = s.config.MaxTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.maybeSweep(now)

	if existing, ok := s.entries[key]; ok {
		s.totalBytes -= int64(existing.SizeBytes)
	} else if len(s.entries) >= s.config.MaxEntries {
		s.evictLowest(now)
	}

	s.entries[key] = &Entry{
		Value:        value,
		ExpiresAt:    now.Add(ttl),
		LastAccessAt: now,
		CreatedAt:    now,
		SizeBytes:    size,
	}
	s.totalBytes += int64(size)

	return true
}

// Get returns the value under key, or false when the key is missing or
// expired. An expired entry is deleted as a side effect. A hit updates the
// access time and hit count.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	now := s.now()
	if !entry.ExpiresAt.After(now) {
		s.removeLocked(key, entry)
		s.expired++
		return nil, false
	}

	entry.LastAccessAt = now
	entry.HitCount++
	return entry.Value, true
}

// Delete removes the entry under key, reporting whether it was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return false
	}
	s.removeLocked(key, entry)
	return true
}

// Clear removes everything.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry)
	s.totalBytes = 0
}

// Len returns the number of physically present entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes all expired entries immediately, bypassing the throttle,
// and returns how many were removed. The periodic janitor calls this.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.sweepLocked(s.now())
	s.lastSweep = s.now()
	return removed
}

// Stats returns a snapshot of the store's state.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := Stats{
		Count:        len(s.entries),
		Capacity:     s.config.MaxEntries,
		TotalBytes:   s.totalBytes,
		ExpiredCount: s.expired,
	}
	stats.UtilizationPercent = float64(stats.Count) / float64(stats.Capacity) * 100

	var hits int64
	var oldest time.Time
	for _, entry := range s.entries {
		hits += entry.HitCount
		if oldest.IsZero() || entry.CreatedAt.Before(oldest) {
			oldest = entry.CreatedAt
		}
	}
	if stats.Count > 0 {
		stats.AvgHitCount = float64(hits) / float64(stats.Count)
		stats.OldestEntryAgeSecs = now.Sub(oldest).Seconds()
	}

	return stats
}

// SetNowFunc replaces the store's clock. Test helper.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) removeLocked(key string, entry *Entry) {
	delete(s.entries, key)
	s.totalBytes -= int64(entry.SizeBytes)
}

// maybeSweep runs the expiry sweep when enough time has passed since the
// last one. Called with the lock held on every Set so sweep cost stays
// bounded under high write rates.
func (s *Store) maybeSweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.config.SweepInterval {
		return
	}
	s.sweepLocked(now)
	s.lastSweep = now
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for key, entry := range s.entries {
		if !entry.ExpiresAt.After(now) {
			s.removeLocked(key, entry)
			s.expired++
			removed++
		}
	}
	return removed
}

// evictLowest scans all entries and removes the one with the lowest
// eviction score. Ties fall to map iteration order, which is unspecified.
func (s *Store) evictLowest(now time.Time) {
	var victim string
	var victimEntry *Entry
	lowest := 0.0
	first := true

	for key, entry := range s.entries {
		score := evictionScore(entry, now)
		if first || score < lowest {
			lowest = score
			victim = key
			victimEntry = entry
			first = false
		}
	}

	if victimEntry != nil {
		s.removeLocked(victim, victimEntry)
	}
}

// evictionScore ranks an entry for eviction: stale, old, large entries
// score low and go first; frequently hit entries are protected by a large
// positive hit contribution. Lower score = evicted first.
func evictionScore(entry *Entry, now time.Time) float64 {
	idle := now.Sub(entry.LastAccessAt).Seconds()
	age := now.Sub(entry.CreatedAt).Seconds()
	sizeKB := float64(entry.SizeBytes) / 1024
	return float64(entry.HitCount)*100 - idle - age/10000 - sizeKB
}

// estimateSize approximates the byte footprint of a value from the length
// of its JSON encoding, doubled for wide-character overhead. Values that
// cannot be encoded are charged a fixed default rather than rejected.
func estimateSize(value interface{}) int {
	data, err := json.Marshal(value)
	if err != nil {
		return defaultSizeBytes
	}
	return len(data) * 2
}
