// Package metrics tracks delivery latency in a fixed-size ring and serves
// the transient performance snapshot for the admin surface.
package metrics

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

const (
	// ringSize is how many recent measurements the percentiles cover.
	ringSize = 1000
	// minSamples gates percentile and trend computation; below it the
	// snapshot reports zeros and an insufficient-data trend explicitly.
	minSamples = 100
	// trendWindow compares the mean of the most recent N samples against
	// the N before them.
	trendWindow = 50
	// throughputWindow is the sliding window for events/sec.
	throughputWindow = 60 * time.Second
)

// Tracker is the fixed-capacity ring of delivery measurements plus the
// rolling throughput window.
type Tracker struct {
	mu    sync.Mutex
	ring  [ringSize]model.LatencyMeasurement
	next  int
	count int

	publishTimes []time.Time
	peakRate     float64

	byKind    map[model.EventKind]uint64
	delivered uint64
	lastEvent time.Time

	logger *slog.Logger
	now    func() time.Time
}

func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		byKind: make(map[model.EventKind]uint64),
		logger: logger,
		now:    time.Now,
	}
}

// Record appends one measurement, evicting the oldest by ring overwrite.
// Budget misses log a warning; anything over the absolute ceiling logs an
// error regardless of lane.
func (t *Tracker) Record(m model.LatencyMeasurement) {
	t.mu.Lock()
	t.ring[t.next] = m
	t.next = (t.next + 1) % ringSize
	if t.count < ringSize {
		t.count++
	}
	t.byKind[m.Kind]++
	t.delivered++
	if m.PublishedAt.After(t.lastEvent) {
		t.lastEvent = m.PublishedAt
	}
	t.publishTimes = append(t.publishTimes, m.PublishedAt)
	t.trimThroughputLocked(m.PublishedAt)
	rate := t.rateLocked(m.PublishedAt)
	if rate > t.peakRate {
		t.peakRate = rate
	}
	t.mu.Unlock()

	if m.Latency > model.AbsoluteLatencyCeiling {
		t.logger.Error("delivery latency above absolute ceiling",
			"kind", m.Kind,
			"priority", m.Priority.String(),
			"latency", m.Latency,
			"ceiling", model.AbsoluteLatencyCeiling,
			"batch_size", m.BatchSize,
		)
	} else if !m.TargetMet {
		t.logger.Warn("delivery latency target missed",
			"kind", m.Kind,
			"priority", m.Priority.String(),
			"latency", m.Latency,
			"target", m.Priority.LatencyTarget(),
			"batch_size", m.BatchSize,
		)
	}
}

// Stats computes the aggregate figures over the ring.
func (t *Tracker) Stats() model.LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := model.LatencyStats{Samples: t.count, Trend: model.TrendInsufficient}
	if t.count < minSamples {
		return stats
	}

	recent := t.recentLocked(t.count)
	latencies := make([]time.Duration, len(recent))
	var sum time.Duration
	met := 0
	for i, m := range recent {
		latencies[i] = m.Latency
		sum += m.Latency
		if m.TargetMet {
			met++
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	stats.Mean = sum / time.Duration(len(latencies))
	stats.P95 = latencies[percentileIndex(len(latencies), 95)]
	stats.P99 = latencies[percentileIndex(len(latencies), 99)]
	stats.Max = latencies[len(latencies)-1]
	stats.TargetMet = float64(met) / float64(len(latencies)) * 100
	stats.Trend = t.trendLocked()
	return stats
}

// Snapshot assembles the latency figures with throughput and per-kind
// counts. Lane and connection fields are filled in by the caller, which
// owns those sources.
func (t *Tracker) Snapshot() model.PerformanceSnapshot {
	stats := t.Stats()

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.trimThroughputLocked(now)
	byKind := make(map[model.EventKind]uint64, len(t.byKind))
	for k, v := range t.byKind {
		byKind[k] = v
	}
	return model.PerformanceSnapshot{
		Timestamp:       now,
		LastEventAt:     t.lastEvent,
		EventsDelivered: t.delivered,
		EventsByKind:    byKind,
		Latency:         stats,
		Throughput:      t.rateLocked(now),
		PeakThroughput:  t.peakRate,
	}
}

// trendLocked classifies the most recent trendWindow samples against the
// window before them: >10% faster is improving, >10% slower is degrading.
func (t *Tracker) trendLocked() model.Trend {
	if t.count < 2*trendWindow {
		return model.TrendInsufficient
	}
	window := t.recentLocked(2 * trendWindow)
	prior := mean(window[:trendWindow])
	recent := mean(window[trendWindow:])
	if prior == 0 {
		return model.TrendStable
	}
	change := (float64(recent) - float64(prior)) / float64(prior)
	switch {
	case change < -0.10:
		return model.TrendImproving
	case change > 0.10:
		return model.TrendDegrading
	default:
		return model.TrendStable
	}
}

// recentLocked returns the last n measurements in chronological order.
func (t *Tracker) recentLocked(n int) []model.LatencyMeasurement {
	if n > t.count {
		n = t.count
	}
	out := make([]model.LatencyMeasurement, 0, n)
	start := t.next - n
	for i := range n {
		idx := (start + i + ringSize) % ringSize
		out = append(out, t.ring[idx])
	}
	return out
}

func (t *Tracker) trimThroughputLocked(now time.Time) {
	cutoff := now.Add(-throughputWindow)
	i := 0
	for i < len(t.publishTimes) && t.publishTimes[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		t.publishTimes = append(t.publishTimes[:0], t.publishTimes[i:]...)
	}
}

func (t *Tracker) rateLocked(now time.Time) float64 {
	if len(t.publishTimes) == 0 {
		return 0
	}
	span := now.Sub(t.publishTimes[0])
	if span < time.Second {
		span = time.Second
	}
	return float64(len(t.publishTimes)) / span.Seconds()
}

func mean(ms []model.LatencyMeasurement) time.Duration {
	if len(ms) == 0 {
		return 0
	}
	var sum time.Duration
	for _, m := range ms {
		sum += m.Latency
	}
	return sum / time.Duration(len(ms))
}

func percentileIndex(n, pct int) int {
	idx := n*pct/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}
