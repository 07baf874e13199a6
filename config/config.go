// Package config provides configuration for the cache orchestrator.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so a Cache can be constructed
// safely.
//
// Configuration is resolved once, before construction, and passed explicitly
// to the orchestrator. There is no ambient global configuration.
//
// Environment Variables:
//
// Strategy:
//   - CACHE_STRATEGY: Preset bundle of defaults - "aggressive", "balanced",
//     "conservative" or "memory-only" (default: balanced)
//
// Feature Toggles:
//   - CACHE_MEMORY_ENABLED: Enable the local in-process tier (default: true)
//   - CACHE_REMOTE_ENABLED: Enable the Redis remote tier (default: true)
//   - CACHE_TRAFFIC_DETECTION: Enable traffic-based admission control (default: true)
//   - CACHE_CIRCUIT_BREAKER_ENABLED: Enable the remote circuit breaker (default: true)
//   - CACHE_LOGGING_ENABLED: Enable diagnostic logging (default: true)
//   - CACHE_METRICS_ENABLED: Enable hit/miss/latency metrics (default: true)
//
// Capacity and TTL:
//   - CACHE_MAX_ENTRIES: Local tier capacity (default: strategy dependent)
//   - CACHE_MAX_VALUE_BYTES: Largest value accepted by the local tier (default: 1048576)
//   - CACHE_MAX_TTL: Ceiling applied to per-call TTLs (default: 24h)
//   - CACHE_DEFAULT_TTL: TTL used when a call supplies none (default: strategy dependent)
//
// Traffic Detection:
//   - CACHE_TRAFFIC_THRESHOLD: Requests per window before caching kicks in (default: strategy dependent)
//   - CACHE_TRAFFIC_WINDOW: Sliding window duration (default: 60s)
//   - CACHE_TRAFFIC_CLEANUP_INTERVAL: Idle-window cleanup interval (default: 5m)
//
// Circuit Breaker:
//   - CACHE_BREAKER_FAILURE_THRESHOLD: Failures before the circuit opens (default: 5)
//   - CACHE_BREAKER_RESET_TIMEOUT: Cooldown before a probe call is allowed (default: 60s)
//   - CACHE_BREAKER_RESET_POLICY: "zero" or "decrement" recovery policy (default: zero)
//
// Remote Tier:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379, empty disables the remote tier)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - CACHE_REMOTE_TIMEOUT: Per-operation timeout (default: 2s)
//   - CACHE_HEALTH_PROBE_INTERVAL: Remote health probe interval (default: 30s)
//   - CACHE_MAX_CONNECT_ATTEMPTS: Initial connection attempts (default: 5)
//   - CACHE_REMOTE_TTL_FACTOR: Remote TTL as a multiple of the local TTL (default: 10)
//
// Maintenance:
//   - CACHE_SWEEP_INTERVAL: Minimum interval between expiry sweeps (default: 10s)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid cache configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Strategy names a bundle of threshold/TTL/capacity defaults.
type Strategy string

const (
	// StrategyAggressive caches early and holds values long
	StrategyAggressive Strategy = "aggressive"
	// StrategyBalanced is the default middle ground
	StrategyBalanced Strategy = "balanced"
	// StrategyConservative caches late and expires fast
	StrategyConservative Strategy = "conservative"
	// StrategyMemoryOnly disables the remote tier entirely
	StrategyMemoryOnly Strategy = "memory-only"
)

// ResetPolicy selects how the circuit breaker recovers its failure count
// when a probe call succeeds after cooldown.
type ResetPolicy string

const (
	// ResetToZero clears the failure count on a successful probe
	ResetToZero ResetPolicy = "zero"
	// ResetDecrement lowers the failure count by one on a successful
	// probe, so a flapping dependency re-opens the circuit quickly.
	ResetDecrement ResetPolicy = "decrement"
)

// Config holds all configuration for a cache orchestrator instance.
// It is read once at construction and treated as immutable afterwards.
type Config struct {
	Strategy Strategy

	// Feature toggles
	MemoryEnabled           bool
	RemoteEnabled           bool
	TrafficDetectionEnabled bool
	CircuitBreakerEnabled   bool
	LoggingEnabled          bool
	MetricsEnabled          bool

	// Capacity limits and TTLs
	MaxEntries    int
	MaxValueBytes int
	MaxTTL        time.Duration
	DefaultTTL    time.Duration

	// Traffic detection
	DefaultTrafficThreshold int
	TrafficWindow           time.Duration
	TrafficCleanupInterval  time.Duration

	// Circuit breaker
	BreakerFailureThreshold int
	BreakerResetTimeout     time.Duration
	BreakerResetPolicy      ResetPolicy

	// Remote tier
	RedisAddress        string
	RedisPassword       string
	RedisDB             int
	RedisPoolSize       int
	RemoteOpTimeout     time.Duration
	HealthProbeInterval time.Duration
	MaxConnectAttempts  int
	RemoteTTLFactor     int

	// Maintenance
	SweepInterval time.Duration
}

// Default returns the balanced-strategy configuration.
func Default() *Config {
	cfg := &Config{
		Strategy:                StrategyBalanced,
		MemoryEnabled:           true,
		RemoteEnabled:           true,
		TrafficDetectionEnabled: true,
		CircuitBreakerEnabled:   true,
		LoggingEnabled:          true,
		MetricsEnabled:          true,
		MaxValueBytes:           1 << 20,
		MaxTTL:                  24 * time.Hour,
		TrafficWindow:           60 * time.Second,
		TrafficCleanupInterval:  5 * time.Minute,
		BreakerFailureThreshold: 5,
		BreakerResetTimeout:     60 * time.Second,
		BreakerResetPolicy:      ResetToZero,
		RedisAddress:            "localhost:6379",
		RedisDB:                 0,
		RedisPoolSize:           10,
		RemoteOpTimeout:         2 * time.Second,
		HealthProbeInterval:     30 * time.Second,
		MaxConnectAttempts:      5,
		RemoteTTLFactor:         10,
		SweepInterval:           10 * time.Second,
	}
	cfg.applyStrategy(StrategyBalanced)
	return cfg
}

// applyStrategy overwrites the threshold/TTL/capacity defaults with the
// bundle the named strategy describes.
func (c *Config) applyStrategy(s Strategy) {
	c.Strategy = s
	switch s {
	case StrategyAggressive:
		c.DefaultTrafficThreshold = 2
		c.DefaultTTL = 10 * time.Minute
		c.MaxEntries = 5000
	case StrategyConservative:
		c.DefaultTrafficThreshold = 10
		c.DefaultTTL = time.Minute
		c.MaxEntries = 500
	case StrategyMemoryOnly:
		c.DefaultTrafficThreshold = 5
		c.DefaultTTL = 5 * time.Minute
		c.MaxEntries = 1000
		c.RemoteEnabled = false
	default:
		c.Strategy = StrategyBalanced
		c.DefaultTrafficThreshold = 5
		c.DefaultTTL = 5 * time.Minute
		c.MaxEntries = 1000
	}
}

// LoadDotenv loads a .env file if one is present. Host applications that
// resolve configuration from the environment call this before Load.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Load creates a Config with values loaded from environment variables.
// The CACHE_STRATEGY preset is applied first, then individual variables
// override it. Call Validate on the result before use.
func Load() *Config {
	cfg := Default()
	cfg.applyStrategy(Strategy(getEnv("CACHE_STRATEGY", string(StrategyBalanced))))

	cfg.MemoryEnabled = getBoolEnv("CACHE_MEMORY_ENABLED", cfg.MemoryEnabled)
	cfg.RemoteEnabled = getBoolEnv("CACHE_REMOTE_ENABLED", cfg.RemoteEnabled)
	cfg.TrafficDetectionEnabled = getBoolEnv("CACHE_TRAFFIC_DETECTION", cfg.TrafficDetectionEnabled)
	cfg.CircuitBreakerEnabled = getBoolEnv("CACHE_CIRCUIT_BREAKER_ENABLED", cfg.CircuitBreakerEnabled)
	cfg.LoggingEnabled = getBoolEnv("CACHE_LOGGING_ENABLED", cfg.LoggingEnabled)
	cfg.MetricsEnabled = getBoolEnv("CACHE_METRICS_ENABLED", cfg.MetricsEnabled)

	cfg.MaxEntries = getIntEnv("CACHE_MAX_ENTRIES", cfg.MaxEntries)
	cfg.MaxValueBytes = getIntEnv("CACHE_MAX_VALUE_BYTES", cfg.MaxValueBytes)
	cfg.MaxTTL = getDurationEnv("CACHE_MAX_TTL", cfg.MaxTTL)
	cfg.DefaultTTL = getDurationEnv("CACHE_DEFAULT_TTL", cfg.DefaultTTL)

	cfg.DefaultTrafficThreshold = getIntEnv("CACHE_TRAFFIC_THRESHOLD", cfg.DefaultTrafficThreshold)
	cfg.TrafficWindow = getDurationEnv("CACHE_TRAFFIC_WINDOW", cfg.TrafficWindow)
	cfg.TrafficCleanupInterval = getDurationEnv("CACHE_TRAFFIC_CLEANUP_INTERVAL", cfg.TrafficCleanupInterval)

	cfg.BreakerFailureThreshold = getIntEnv("CACHE_BREAKER_FAILURE_THRESHOLD", cfg.BreakerFailureThreshold)
	cfg.BreakerResetTimeout = getDurationEnv("CACHE_BREAKER_RESET_TIMEOUT", cfg.BreakerResetTimeout)
	cfg.BreakerResetPolicy = ResetPolicy(getEnv("CACHE_BREAKER_RESET_POLICY", string(cfg.BreakerResetPolicy)))

	cfg.RedisAddress = getEnv("REDIS_ADDRESS", cfg.RedisAddress)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getIntEnv("REDIS_DB", cfg.RedisDB)
	cfg.RedisPoolSize = getIntEnv("REDIS_POOL_SIZE", cfg.RedisPoolSize)
	cfg.RemoteOpTimeout = getDurationEnv("CACHE_REMOTE_TIMEOUT", cfg.RemoteOpTimeout)
	cfg.HealthProbeInterval = getDurationEnv("CACHE_HEALTH_PROBE_INTERVAL", cfg.HealthProbeInterval)
	cfg.MaxConnectAttempts = getIntEnv("CACHE_MAX_CONNECT_ATTEMPTS", cfg.MaxConnectAttempts)
	cfg.RemoteTTLFactor = getIntEnv("CACHE_REMOTE_TTL_FACTOR", cfg.RemoteTTLFactor)

	cfg.SweepInterval = getDurationEnv("CACHE_SWEEP_INTERVAL", cfg.SweepInterval)

	return cfg
}

// Validate checks that all values are present and in range. The orchestrator
// calls this at construction and refuses to start on error.
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyAggressive, StrategyBalanced, StrategyConservative, StrategyMemoryOnly:
	default:
		return fmt.Errorf("CACHE_STRATEGY must be one of aggressive, balanced, conservative, memory-only")
	}

	if !c.MemoryEnabled && !c.RemoteEnabled {
		// Legal: the orchestrator degrades to a pass-through around the
		// producer. Nothing further to validate for the tiers.
		return nil
	}

	if c.MemoryEnabled {
		if c.MaxEntries < 1 {
			return fmt.Errorf("CACHE_MAX_ENTRIES must be a positive number")
		}
		if c.MaxValueBytes < 1 {
			return fmt.Errorf("CACHE_MAX_VALUE_BYTES must be a positive number")
		}
		if c.SweepInterval <= 0 {
			return fmt.Errorf("CACHE_SWEEP_INTERVAL must be a positive duration")
		}
	}

	if c.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be a positive duration")
	}
	if c.MaxTTL < c.DefaultTTL {
		return fmt.Errorf("CACHE_MAX_TTL must not be below CACHE_DEFAULT_TTL")
	}

	if c.TrafficDetectionEnabled {
		if c.DefaultTrafficThreshold < 1 {
			return fmt.Errorf("CACHE_TRAFFIC_THRESHOLD must be a positive number")
		}
		if c.TrafficWindow <= 0 {
			return fmt.Errorf("CACHE_TRAFFIC_WINDOW must be a positive duration")
		}
		if c.TrafficCleanupInterval <= 0 {
			return fmt.Errorf("CACHE_TRAFFIC_CLEANUP_INTERVAL must be a positive duration")
		}
	}

	if c.RemoteEnabled && c.RedisAddress != "" {
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
		if c.RemoteOpTimeout <= 0 {
			return fmt.Errorf("CACHE_REMOTE_TIMEOUT must be a positive duration")
		}
		if c.HealthProbeInterval <= 0 {
			return fmt.Errorf("CACHE_HEALTH_PROBE_INTERVAL must be a positive duration")
		}
		if c.MaxConnectAttempts < 1 {
			return fmt.Errorf("CACHE_MAX_CONNECT_ATTEMPTS must be a positive number")
		}
		if c.RemoteTTLFactor < 1 {
			return fmt.Errorf("CACHE_REMOTE_TTL_FACTOR must be a positive number")
		}
	}

	if c.CircuitBreakerEnabled {
		if c.BreakerFailureThreshold < 1 {
			return fmt.Errorf("CACHE_BREAKER_FAILURE_THRESHOLD must be a positive number")
		}
		if c.BreakerResetTimeout <= 0 {
			return fmt.Errorf("CACHE_BREAKER_RESET_TIMEOUT must be a positive duration")
		}
		switch c.BreakerResetPolicy {
		case ResetToZero, ResetDecrement:
		default:
			return fmt.Errorf("CACHE_BREAKER_RESET_POLICY must be 'zero' or 'decrement'")
		}
	}

	return nil
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a default value.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns a default value.
// Bare numbers are treated as seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
