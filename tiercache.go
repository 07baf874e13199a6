// Package tiercache is a fetch-through cache orchestrator: given a key
// and a data-producing operation, it returns a previously computed value
// when safe to do so, and otherwise runs the producer and remembers the
// result across an in-process bounded store and a Redis-backed remote
// tier, with the remote TTL set to a multiple of the local one.
//
// The central contract is that a cache-layer failure never prevents a
// caller from getting data, only from getting it quickly: the only error
// Fetch ever returns is the producer's own.
//
// Usage:
//
//	cfg := config.Load()
//	cache, err := tiercache.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cache.Close()
//
//	user, err := cache.Fetch(ctx, "user:42", func(ctx context.Context) (interface{}, error) {
//		return loadUserFromDB(ctx, 42)
//	}, tiercache.TTL(5*time.Minute))
package tiercache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"tiercache/circuitbreaker"
	"tiercache/config"
	"tiercache/logging"
	"tiercache/metrics"
	"tiercache/remote"
	"tiercache/store"
	"tiercache/traffic"
)

// Producer computes the value for a key on a cache miss. Its error is the
// only error a Fetch caller is expected to handle.
type Producer func(ctx context.Context) (interface{}, error)

// Cache is the orchestrator composing the bounded store, the traffic
// classifier, the remote tier and the metrics collector into a single
// fetch/store protocol.
type Cache struct {
	config  *config.Config
	store   *store.Store
	traffic *traffic.Classifier
	remote  remote.Store
	metrics *metrics.Collector
	log     logging.Logger

	// flight de-duplicates concurrent misses per key: the first caller
	// runs the producer, the rest share its result.
	flight singleflight.Group

	janitor   *cron.Cron
	closeOnce sync.Once
}

// Option customizes a Cache at construction.
type Option func(*Cache)

// WithLogger replaces the global logger for this instance.
func WithLogger(log logging.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithRemoteStore injects the remote tier, overriding the one derived
// from configuration. Hosts use this to select a capability explicitly,
// or tests to install a double.
func WithRemoteStore(s remote.Store) Option {
	return func(c *Cache) { c.remote = s }
}

// New constructs a Cache from validated configuration. The configuration
// is resolved by the host before construction and immutable afterwards.
func New(cfg *config.Config, opts ...Option) (*Cache, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		if cfg.LoggingEnabled {
			c.log = logging.GetGlobalLogger()
		} else {
			c.log = logging.NewNopLogger()
		}
	}
	c.log = c.log.WithFields(logging.String("component", "tiercache"))

	c.store = store.New(store.Config{
		MaxEntries:    cfg.MaxEntries,
		MaxValueBytes: cfg.MaxValueBytes,
		MaxTTL:        cfg.MaxTTL,
		SweepInterval: cfg.SweepInterval,
	})

	c.traffic = traffic.New(traffic.Config{
		Window:          cfg.TrafficWindow,
		Threshold:       cfg.DefaultTrafficThreshold,
		CleanupInterval: cfg.TrafficCleanupInterval,
	})

	c.metrics = metrics.New(cfg.MetricsEnabled)

	if c.remote == nil {
		c.remote = newRemoteFromConfig(cfg, c.log)
	}

	c.startJanitor()

	c.log.Info("cache orchestrator initialized",
		logging.String("strategy", string(cfg.Strategy)),
		logging.Bool("memory", cfg.MemoryEnabled),
		logging.Bool("remote", cfg.RemoteEnabled),
		logging.Bool("traffic_detection", cfg.TrafficDetectionEnabled),
	)

	return c, nil
}

// newRemoteFromConfig selects the remote capability: the live Redis
// client when the tier is enabled and an address is configured, the null
// store otherwise.
func newRemoteFromConfig(cfg *config.Config, log logging.Logger) remote.Store {
	if !cfg.RemoteEnabled || cfg.RedisAddress == "" {
		return remote.NewNullStore()
	}

	policy := circuitbreaker.ResetToZero
	if cfg.BreakerResetPolicy == config.ResetDecrement {
		policy = circuitbreaker.ResetDecrement
	}

	return remote.NewClient(remote.Config{
		Address:             cfg.RedisAddress,
		Password:            cfg.RedisPassword,
		DB:                  cfg.RedisDB,
		PoolSize:            cfg.RedisPoolSize,
		OpTimeout:           cfg.RemoteOpTimeout,
		HealthProbeInterval: cfg.HealthProbeInterval,
		MaxConnectAttempts:  cfg.MaxConnectAttempts,
		BreakerEnabled:      cfg.CircuitBreakerEnabled,
		Breaker: circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			ResetTimeout:     cfg.BreakerResetTimeout,
			Policy:           policy,
		},
	}, log)
}

// Fetch returns the cached value for key, or runs producer and writes the
// result back to every enabled tier. Only the producer's error propagates;
// tier failures are logged, reflected in metrics and treated as misses.
func (c *Cache) Fetch(ctx context.Context, key string, producer Producer, opts *FetchOptions) (interface{}, error) {
	start := time.Now()
	defer func() { c.metrics.Observe(time.Since(start)) }()

	// Caching globally disabled: pass straight through.
	if !c.config.MemoryEnabled && !c.config.RemoteEnabled {
		return c.produce(ctx, producer)
	}

	ttl, threshold, force := c.resolveOptions(opts)

	// Admission control: every request is recorded, but a cold key is
	// produced directly, bypassing both tiers.
	if c.config.TrafficDetectionEnabled && !c.isHot(key, threshold) && !force {
		c.metrics.RecordMiss()
		return c.produce(ctx, producer)
	}

	value, err, _ := c.flight.Do(key, func() (interface{}, error) {
		if v, ok := c.lookupMemory(key); ok {
			c.metrics.RecordHit(metrics.TierMemory)
			return v, nil
		}

		if v, ok := c.lookupRemote(ctx, key, ttl); ok {
			c.metrics.RecordHit(metrics.TierRemote)
			return v, nil
		}

		c.metrics.RecordMiss()
		v, err := c.produce(ctx, producer)
		if err != nil {
			return nil, err
		}

		c.writeBack(ctx, key, v, ttl)
		return v, nil
	})

	return value, err
}

// Clear deletes key from both tiers. It never fails visibly.
func (c *Cache) Clear(ctx context.Context, key string) {
	defer c.recovered("clear")

	if c.config.MemoryEnabled {
		c.store.Delete(key)
	}
	if c.config.RemoteEnabled {
		c.remote.Delete(ctx, key)
	}
}

// ClearAll clears the bounded store and the traffic classifier. Remote
// entries are left to expire naturally.
func (c *Cache) ClearAll(ctx context.Context) {
	defer c.recovered("clear_all")

	c.store.Clear()
	c.traffic.Clear()
	c.log.Info("cache cleared")
}

// ForceRefresh clears key and fetches it again.
func (c *Cache) ForceRefresh(ctx context.Context, key string, producer Producer, opts *FetchOptions) (interface{}, error) {
	c.Clear(ctx, key)
	return c.Fetch(ctx, key, producer, opts)
}

// Stats composes the sub-components' statistics.
func (c *Cache) Stats() SystemStats {
	return SystemStats{
		Strategy:     c.config.Strategy,
		Memory:       c.store.Stats(),
		Traffic:      c.traffic.Stats(),
		Requests:     c.metrics.Snapshot(),
		Remote:       c.remote.Metrics(),
		RemoteStatus: c.remote.Status(),
	}
}

// Status returns a condensed health snapshot.
func (c *Cache) Status() Status {
	memStats := c.store.Stats()
	remoteStatus := c.remote.Status()
	requests := c.metrics.Snapshot()

	healthy := true
	if c.config.RemoteEnabled && remoteStatus.Available && !remoteStatus.Connected {
		healthy = false
	}

	return Status{
		Healthy:                  healthy,
		MemoryUtilizationPercent: memStats.UtilizationPercent,
		RemoteConnected:          remoteStatus.Connected,
		TrackedKeys:              c.traffic.TrackedKeys(),
		EfficiencyScore:          requests.HitRatePercent,
	}
}

// Test performs a live round-trip write/read/delete against each enabled
// tier and the traffic tracker.
func (c *Cache) Test(ctx context.Context) TestReport {
	report := TestReport{Memory: true, Remote: true, Traffic: true}
	key := fmt.Sprintf("tiercache:selftest:%d", time.Now().UnixNano())

	if c.config.MemoryEnabled {
		report.Memory = false
		if c.store.Set(key, "ok", time.Minute) {
			if v, ok := c.store.Get(key); ok && v == "ok" {
				report.Memory = c.store.Delete(key)
			}
		}
	}

	if c.config.RemoteEnabled && c.remote.Status().Available {
		report.Remote = false
		if c.remote.SetWithExpiry(ctx, key, `"ok"`, time.Minute) {
			if v, ok := c.remote.Get(ctx, key); ok && v == `"ok"` {
				report.Remote = c.remote.Delete(ctx, key)
			}
		}
	}

	if c.config.TrafficDetectionEnabled {
		c.traffic.Track(key)
		report.Traffic = c.traffic.CurrentCount(key) >= 1
	}

	report.Overall = report.Memory && report.Remote && report.Traffic
	return report
}

// Close stops the janitor and the remote client. The instance must not be
// used afterwards.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.janitor != nil {
			c.janitor.Stop()
		}
		err = c.remote.Close()
	})
	return err
}

// produce invokes the producer. Its error is returned unchanged.
func (c *Cache) produce(ctx context.Context, producer Producer) (interface{}, error) {
	c.metrics.RecordProducerCall()
	value, err := producer(ctx)
	if err != nil {
		c.metrics.RecordError()
		return nil, err
	}
	return value, nil
}

// isHot records the request with the classifier and applies the
// admission threshold. A classifier failure reads as cold, which
// degrades to the producer fast path.
func (c *Cache) isHot(key string, threshold int) (hot bool) {
	defer c.recovered("traffic")
	return c.traffic.Track(key) >= threshold
}

// lookupMemory probes the bounded store, absorbing any internal failure.
func (c *Cache) lookupMemory(key string) (value interface{}, ok bool) {
	if !c.config.MemoryEnabled {
		return nil, false
	}
	defer c.recovered("memory_lookup")
	return c.store.Get(key)
}

// lookupRemote probes the remote tier and promotes a hit into the bounded
// store with the local TTL.
func (c *Cache) lookupRemote(ctx context.Context, key string, ttl time.Duration) (value interface{}, ok bool) {
	if !c.config.RemoteEnabled {
		return nil, false
	}
	defer c.recovered("remote_lookup")

	raw, found := c.remote.Get(ctx, key)
	if !found {
		return nil, false
	}

	decoded, err := decodeValue(raw)
	if err != nil {
		c.log.Warn("discarding undecodable remote value",
			logging.String("key", key), logging.Err(err))
		return nil, false
	}

	if c.config.MemoryEnabled {
		c.store.Set(key, decoded, ttl)
	}
	return decoded, true
}

// writeBack stores a produced value into every enabled tier. The remote
// tier gets a longer TTL, reflecting its role as backstop.
func (c *Cache) writeBack(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	defer c.recovered("write_back")

	if c.config.MemoryEnabled {
		if !c.store.Set(key, value, ttl) {
			c.log.Debug("value rejected by bounded store", logging.String("key", key))
		}
	}

	if c.config.RemoteEnabled {
		encoded, err := encodeValue(value)
		if err != nil {
			c.log.Warn("value not encodable for remote tier",
				logging.String("key", key), logging.Err(err))
			return
		}
		remoteTTL := ttl * time.Duration(c.config.RemoteTTLFactor)
		c.remote.SetWithExpiry(ctx, key, encoded, remoteTTL)
	}
}

// recovered absorbs a panic from tier bookkeeping at the orchestrator
// boundary so it reads as a miss, per the contract that the cache is
// never the reason a caller fails to get data.
func (c *Cache) recovered(op string) {
	if r := recover(); r != nil {
		c.metrics.RecordError()
		c.log.Error("cache tier failure", fmt.Errorf("%v", r), logging.String("op", op))
	}
}

// startJanitor schedules the periodic maintenance: the store expiry sweep
// and the traffic window sweep, the latter at roughly twice the per-key
// cleanup interval.
func (c *Cache) startJanitor() {
	c.janitor = cron.New()

	if c.config.MemoryEnabled {
		_, _ = c.janitor.AddFunc(fmt.Sprintf("@every %s", c.config.SweepInterval), func() {
			if removed := c.store.Sweep(); removed > 0 {
				c.log.Debug("expiry sweep", logging.Int("removed", removed))
			}
		})
	}

	if c.config.TrafficDetectionEnabled {
		_, _ = c.janitor.AddFunc(fmt.Sprintf("@every %s", 2*c.config.TrafficCleanupInterval), func() {
			if removed := c.traffic.Sweep(); removed > 0 {
				c.log.Debug("traffic sweep", logging.Int("removed", removed))
			}
		})
	}

	c.janitor.Start()
}

// encodeValue serializes a value for the remote tier.
func encodeValue(value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeValue deserializes a remote payload. The concrete Go type of a
// promoted value follows encoding/json, not the producer's original type.
func decodeValue(raw string) (interface{}, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, err
	}
	return value, nil
}
