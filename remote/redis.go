package remote

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"tiercache/circuitbreaker"
	cacheerrors "tiercache/errors"
	"tiercache/logging"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// Config holds the resilient Redis client configuration.
type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`

	// OpTimeout bounds every remote operation.
	OpTimeout time.Duration
	// HealthProbeInterval is how often the client pings the server
	// independently of foreground traffic.
	HealthProbeInterval time.Duration
	// MaxConnectAttempts bounds the initial connection loop.
	MaxConnectAttempts int

	// BreakerEnabled wires a circuit breaker around every operation.
	BreakerEnabled bool
	Breaker        circuitbreaker.Config
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Address:             "localhost:6379",
		PoolSize:            10,
		OpTimeout:           2 * time.Second,
		HealthProbeInterval: 30 * time.Second,
		MaxConnectAttempts:  5,
		BreakerEnabled:      true,
		Breaker:             circuitbreaker.DefaultConfig(),
	}
}

// Client is the Redis-backed remote tier. It never returns a transport
// error past its boundary: reads degrade to empty results, writes to a
// false success flag, and every failure feeds the breaker.
type Client struct {
	rdb     *redis.Client
	config  Config
	breaker *circuitbreaker.CircuitBreaker
	log     logging.Logger

	mu                 sync.Mutex
	available          bool
	connected          bool
	connectionAttempts int

	// operation metrics
	totalOps   int64
	successOps int64
	failedOps  int64
	totalTime  time.Duration
	lastOpTime time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewClient creates a resilient client for the configured Redis server.
// An empty address puts the client permanently into unavailable mode: no
// network call is ever attempted and all operations return empty results.
func NewClient(config Config, log logging.Logger) *Client {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	log = log.WithFields(logging.String("component", "remote"))

	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = DefaultConfig().OpTimeout
	}
	if config.HealthProbeInterval <= 0 {
		config.HealthProbeInterval = DefaultConfig().HealthProbeInterval
	}
	if config.MaxConnectAttempts < 1 {
		config.MaxConnectAttempts = DefaultConfig().MaxConnectAttempts
	}

	c := &Client{
		config: config,
		log:    log,
		stopCh: make(chan struct{}),
	}

	if config.Address == "" {
		c.log.Info("remote store not configured, operating memory-only")
		return c
	}

	c.available = true
	if config.BreakerEnabled {
		c.breaker = circuitbreaker.New("remote", config.Breaker)
		c.breaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
			c.log.Warn("circuit breaker state change",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		})
	}

	c.rdb = redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	if err := c.tryConnect(); err != nil {
		c.log.Warn("initial connection failed, reconnecting in background",
			logging.String("address", config.Address), logging.Err(err))
		go c.reconnectLoop()
	}

	go c.healthLoop()

	return c
}

// Get returns the value under key. A miss, a failure, an open circuit and
// unavailable mode all return ("", false).
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	var value string
	found := false
	err := c.execute(ctx, "get", func(ctx context.Context) error {
		v, err := c.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		value = v
		found = true
		return nil
	})
	if err != nil {
		return "", false
	}
	return value, found
}

// SetWithExpiry stores value under key with the given ttl, reporting success.
func (c *Client) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) bool {
	err := c.execute(ctx, "setex", func(ctx context.Context) error {
		return c.rdb.Set(ctx, key, value, ttl).Err()
	})
	return err == nil
}

// Delete removes key, reporting success.
func (c *Client) Delete(ctx context.Context, key string) bool {
	err := c.execute(ctx, "del", func(ctx context.Context) error {
		return c.rdb.Del(ctx, key).Err()
	})
	return err == nil
}

// Exists reports whether key is present. Failures read as absent.
func (c *Client) Exists(ctx context.Context, key string) bool {
	exists := false
	err := c.execute(ctx, "exists", func(ctx context.Context) error {
		n, err := c.rdb.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		exists = n > 0
		return nil
	})
	return err == nil && exists
}

// TTL returns the remaining time to live of key, or -1 when the key is
// absent, has no expiry, or the operation failed.
func (c *Client) TTL(ctx context.Context, key string) time.Duration {
	ttl := time.Duration(-1)
	err := c.execute(ctx, "ttl", func(ctx context.Context) error {
		d, err := c.rdb.TTL(ctx, key).Result()
		if err != nil {
			return err
		}
		if d > 0 {
			ttl = d
		}
		return nil
	})
	if err != nil {
		return -1
	}
	return ttl
}

// Keys returns the keys matching pattern, empty on failure.
func (c *Client) Keys(ctx context.Context, pattern string) []string {
	var keys []string
	err := c.execute(ctx, "keys", func(ctx context.Context) error {
		result, err := c.rdb.Keys(ctx, pattern).Result()
		if err != nil {
			return err
		}
		keys = result
		return nil
	})
	if err != nil {
		return nil
	}
	return keys
}

// Ping checks connectivity to the server. Unlike the data operations it
// returns its error, for use by health surfaces.
func (c *Client) Ping(ctx context.Context) error {
	if !c.available {
		return cacheerrors.UnavailableError("remote store")
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.OpTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Status returns a connection-status snapshot.
func (c *Client) Status() Status {
	c.mu.Lock()
	connected := c.connected
	attempts := c.connectionAttempts
	c.mu.Unlock()

	status := Status{
		Available:          c.available,
		Connected:          connected,
		ConnectionAttempts: attempts,
	}

	if c.breaker != nil {
		snap := c.breaker.Snapshot()
		status.CircuitOpen = snap.State == circuitbreaker.StateOpen.String()
		status.FailureCount = snap.Failures
		status.LastFailureAt = snap.LastFailure
	}

	switch {
	case !c.available:
		status.Mode = ModeUnavailable
	case status.CircuitOpen:
		status.Mode = ModeCircuitOpen
	case connected:
		status.Mode = ModeConnected
	default:
		status.Mode = ModeDisconnected
	}

	return status
}

// Metrics returns an operation-metrics snapshot.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		TotalOperations:      c.totalOps,
		SuccessfulOperations: c.successOps,
		FailedOperations:     c.failedOps,
	}
	if c.totalOps > 0 {
		m.SuccessRatePercent = float64(c.successOps) / float64(c.totalOps) * 100
		m.AvgResponseTimeMs = float64(c.totalTime.Microseconds()) / float64(c.totalOps) / 1000
	}
	m.LastOperationTimeMs = float64(c.lastOpTime.Microseconds()) / 1000
	return m
}

// Close stops the background probes and closes the connection.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// execute wraps a remote operation with the breaker gate, the operation
// timeout, and metrics accounting. Context cancellation is propagated
// into go-redis, so a timed-out operation is genuinely aborted.
func (c *Client) execute(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if !c.available {
		return cacheerrors.UnavailableError("remote store")
	}
	if c.breaker != nil && !c.breaker.Allow() {
		return cacheerrors.CircuitOpenError("remote")
	}

	opCtx, cancel := context.WithTimeout(ctx, c.config.OpTimeout)
	defer cancel()

	start := time.Now()
	err := fn(opCtx)
	elapsed := time.Since(start)

	c.recordOp(err == nil, elapsed)

	if err != nil {
		if c.breaker != nil {
			c.breaker.Failure()
		}
		c.setConnected(false)
		c.log.Debug("remote operation failed",
			logging.String("op", op),
			logging.Duration("elapsed", elapsed),
			logging.Err(err),
		)
		return err
	}

	if c.breaker != nil {
		c.breaker.Success()
	}
	c.setConnected(true)
	return nil
}

func (c *Client) recordOp(success bool, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalOps++
	if success {
		c.successOps++
	} else {
		c.failedOps++
	}
	c.totalTime += elapsed
	c.lastOpTime = elapsed
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

func (c *Client) tryConnect() error {
	c.mu.Lock()
	c.connectionAttempts++
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.OpTimeout)
	defer cancel()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.setConnected(false)
		return err
	}

	c.setConnected(true)
	c.log.Info("remote store connected", logging.String("address", c.config.Address))
	return nil
}

// reconnectLoop retries the initial connection a bounded number of times
// with exponential backoff, doubling the delay up to a cap.
func (c *Client) reconnectLoop() {
	delay := initialBackoff

	for attempt := 2; attempt <= c.config.MaxConnectAttempts; attempt++ {
		select {
		case <-c.stopCh:
			return
		case <-time.After(delay):
		}

		if err := c.tryConnect(); err == nil {
			if c.breaker != nil {
				c.breaker.Reset()
			}
			return
		}

		c.log.Warn("reconnect attempt failed",
			logging.Int("attempt", attempt),
			logging.Duration("next_delay", delay),
		)

		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}

	c.log.Warn("giving up on initial connection, health probe will keep trying",
		logging.Int("attempts", c.config.MaxConnectAttempts))
}

// healthLoop pings the server periodically, independent of foreground
// traffic. A successful probe restores the connected state and fully
// resets the breaker; a failed probe marks the client disconnected and
// counts as a breaker failure.
func (c *Client) healthLoop() {
	ticker := time.NewTicker(c.config.HealthProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
		}

		if err := c.Ping(context.Background()); err != nil {
			c.setConnected(false)
			if c.breaker != nil {
				c.breaker.Failure()
			}
			c.log.Warn("health probe failed", logging.Err(err))
			continue
		}

		c.setConnected(true)
		if c.breaker != nil {
			c.breaker.Reset()
		}
	}
}

var _ Store = (*Client)(nil)
