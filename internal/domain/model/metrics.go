package model

import "time"

// LatencyMeasurement is one delivery sample. Created once per delivered
// event, appended to the tracker ring, never mutated.
type LatencyMeasurement struct {
	Kind        EventKind
	Priority    Priority
	EnqueuedAt  time.Time
	PublishedAt time.Time
	Latency     time.Duration
	TargetMet   bool
	BatchSize   int
	Connections int
}

// Trend classifies the direction of recent latency against the window
// before it.
type Trend string

const (
	TrendImproving    Trend = "improving"
	TrendDegrading    Trend = "degrading"
	TrendStable       Trend = "stable"
	TrendInsufficient Trend = "insufficient_data"
)

// LatencyStats are the aggregate figures over the tracker's ring.
type LatencyStats struct {
	Samples   int           `json:"samples"`
	Mean      time.Duration `json:"mean"`
	P95       time.Duration `json:"p95"`
	P99       time.Duration `json:"p99"`
	Max       time.Duration `json:"max"`
	Trend     Trend         `json:"trend"`
	TargetMet float64       `json:"target_met_pct"`
}

// LaneStats is the per-lane view exposed on the admin surface.
type LaneStats struct {
	Depth   int    `json:"depth"`
	Dropped uint64 `json:"dropped"`
}

// PerformanceSnapshot is the transient, recomputable aggregate served by
// the metrics endpoint and logged by the reporter. Never persisted.
type PerformanceSnapshot struct {
	Timestamp       time.Time             `json:"timestamp"`
	LastEventAt     time.Time             `json:"last_event_at"`
	EventsPublished uint64                `json:"events_published"`
	EventsDelivered uint64                `json:"events_delivered"`
	EventsByKind    map[EventKind]uint64  `json:"events_by_kind"`
	FailedPublishes uint64                `json:"failed_publishes"`
	Latency         LatencyStats          `json:"latency"`
	Throughput      float64               `json:"throughput_per_sec"`
	PeakThroughput  float64               `json:"peak_throughput_per_sec"`
	Lanes           map[string]LaneStats  `json:"lanes"`
	Connections     int                   `json:"connections"`
}
