package metrics

import (
	"context"
	"log/slog"
	"time"
)

// Reporter logs a periodic performance summary so latency regressions are
// visible without hitting the admin endpoint.
type Reporter struct {
	tracker  *Tracker
	interval time.Duration
	logger   *slog.Logger
}

func NewReporter(tracker *Tracker, interval time.Duration, logger *slog.Logger) *Reporter {
	return &Reporter{tracker: tracker, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := r.tracker.Snapshot()
			r.logger.Info("delivery performance",
				"delivered", snap.EventsDelivered,
				"mean_latency", snap.Latency.Mean,
				"p95", snap.Latency.P95,
				"p99", snap.Latency.P99,
				"target_met_pct", snap.Latency.TargetMet,
				"trend", snap.Latency.Trend,
				"throughput_per_sec", snap.Throughput,
			)
		}
	}
}
