// Package remote provides the remote cache tier: a key-value backstop
// with expiry support, reached through a resilient client that adds
// timeouts, circuit breaking, backoff reconnection and health probing.
//
// The tier is a capability chosen at construction time. Hosts without a
// remote dependency use NewNullStore, which satisfies every operation
// with safe empty results; hosts with Redis use NewClient. No operation
// on either implementation ever returns a transport error to the caller:
// failures are absorbed into the breaker and the metrics.
package remote

import (
	"context"
	"time"

	"tiercache/errors"
)

// Mode describes the connection state of a remote store.
type Mode string

const (
	// ModeUnavailable means the dependency or credentials are missing;
	// the store never attempts network calls.
	ModeUnavailable Mode = "unavailable"
	// ModeConnected means the last contact with the dependency succeeded.
	ModeConnected Mode = "connected"
	// ModeDisconnected means the dependency is configured but unreachable.
	ModeDisconnected Mode = "disconnected"
	// ModeCircuitOpen means calls are being rejected locally by the breaker.
	ModeCircuitOpen Mode = "circuit-open"
)

// Status is a connection-status snapshot.
type Status struct {
	Available          bool       `json:"available"`
	Connected          bool       `json:"connected"`
	CircuitOpen        bool       `json:"circuit_open"`
	FailureCount       int        `json:"failure_count"`
	ConnectionAttempts int        `json:"connection_attempts"`
	LastFailureAt      *time.Time `json:"last_failure_at,omitempty"`
	Mode               Mode       `json:"mode"`
}

// Metrics is an operation-metrics snapshot.
type Metrics struct {
	TotalOperations      int64   `json:"total_operations"`
	SuccessfulOperations int64   `json:"successful_operations"`
	FailedOperations     int64   `json:"failed_operations"`
	SuccessRatePercent   float64 `json:"success_rate_percent"`
	AvgResponseTimeMs    float64 `json:"avg_response_time_ms"`
	LastOperationTimeMs  float64 `json:"last_operation_time_ms"`
}

// Store is the remote tier capability. Reads return safe empty values on
// failure; writes report success with a boolean.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	Exists(ctx context.Context, key string) bool
	TTL(ctx context.Context, key string) time.Duration
	Keys(ctx context.Context, pattern string) []string
	Ping(ctx context.Context) error
	Status() Status
	Metrics() Metrics
	Close() error
}

// NullStore is the remote tier for hosts without a remote dependency.
// Every operation returns an empty result without error.
type NullStore struct{}

// NewNullStore creates a remote store that never attempts network calls.
func NewNullStore() *NullStore {
	return &NullStore{}
}

func (n *NullStore) Get(ctx context.Context, key string) (string, bool) { return "", false }

func (n *NullStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) bool {
	return false
}

func (n *NullStore) Delete(ctx context.Context, key string) bool { return false }

func (n *NullStore) Exists(ctx context.Context, key string) bool { return false }

func (n *NullStore) TTL(ctx context.Context, key string) time.Duration { return -1 }

func (n *NullStore) Keys(ctx context.Context, pattern string) []string { return nil }

func (n *NullStore) Ping(ctx context.Context) error {
	return errors.UnavailableError("remote store")
}

func (n *NullStore) Status() Status {
	return Status{Mode: ModeUnavailable}
}

func (n *NullStore) Metrics() Metrics { return Metrics{} }

func (n *NullStore) Close() error { return nil }

var _ Store = (*NullStore)(nil)
