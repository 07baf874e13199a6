package tiercache

import (
	"tiercache/config"
	"tiercache/metrics"
	"tiercache/remote"
	"tiercache/store"
	"tiercache/traffic"
)

// SystemStats composes the stats of every sub-component.
type SystemStats struct {
	Strategy     config.Strategy `json:"strategy"`
	Memory       store.Stats     `json:"memory"`
	Traffic      traffic.Stats   `json:"traffic"`
	Requests     metrics.Stats   `json:"requests"`
	Remote       remote.Metrics  `json:"remote"`
	RemoteStatus remote.Status   `json:"remote_status"`
}

// Status is a condensed health snapshot.
type Status struct {
	Healthy                  bool    `json:"healthy"`
	MemoryUtilizationPercent float64 `json:"memory_utilization_percent"`
	RemoteConnected          bool    `json:"remote_connected"`
	TrackedKeys              int     `json:"tracked_keys"`
	EfficiencyScore          float64 `json:"efficiency_score"`
}

// TestReport holds the result of a live round-trip against every enabled
// tier. Disabled tiers pass vacuously.
type TestReport struct {
	Memory  bool `json:"memory"`
	Remote  bool `json:"remote"`
	Traffic bool `json:"traffic"`
	Overall bool `json:"overall"`
}
