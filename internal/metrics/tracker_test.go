package metrics

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

func newTrackerForTest(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sample(latency time.Duration, at time.Time) model.LatencyMeasurement {
	return model.LatencyMeasurement{
		Kind:        model.KindLeadUpdate,
		Priority:    model.PriorityNormal,
		EnqueuedAt:  at.Add(-latency),
		PublishedAt: at,
		Latency:     latency,
		TargetMet:   latency <= model.TargetNormal,
		BatchSize:   1,
		Connections: 1,
	}
}

func TestStatsInsufficientData(t *testing.T) {
	tr := newTrackerForTest(t)
	now := time.Now()
	for range minSamples - 1 {
		tr.Record(sample(2*time.Millisecond, now))
	}

	stats := tr.Stats()
	if stats.Samples != minSamples-1 {
		t.Fatalf("samples = %d", stats.Samples)
	}
	if stats.Trend != model.TrendInsufficient {
		t.Fatalf("trend = %s, want insufficient", stats.Trend)
	}
	if stats.Mean != 0 || stats.P95 != 0 || stats.P99 != 0 {
		t.Fatalf("percentiles computed below the sample floor: %+v", stats)
	}
}

func TestStatsPercentiles(t *testing.T) {
	tr := newTrackerForTest(t)
	now := time.Now()
	// 1ms..100ms, one sample each.
	for i := 1; i <= 100; i++ {
		tr.Record(sample(time.Duration(i)*time.Millisecond, now))
	}

	stats := tr.Stats()
	if stats.Samples != 100 {
		t.Fatalf("samples = %d", stats.Samples)
	}
	if stats.P95 != 95*time.Millisecond {
		t.Fatalf("p95 = %v, want 95ms", stats.P95)
	}
	if stats.P99 != 99*time.Millisecond {
		t.Fatalf("p99 = %v, want 99ms", stats.P99)
	}
	if stats.Max != 100*time.Millisecond {
		t.Fatalf("max = %v, want 100ms", stats.Max)
	}
	if want := 50*time.Millisecond + 500*time.Microsecond; stats.Mean != want {
		t.Fatalf("mean = %v, want %v", stats.Mean, want)
	}
	// 1..10ms meet the normal 10ms budget.
	if stats.TargetMet != 10 {
		t.Fatalf("target met = %.1f%%, want 10%%", stats.TargetMet)
	}
}

func TestStatsTrend(t *testing.T) {
	cases := []struct {
		name          string
		prior, recent time.Duration
		want          model.Trend
	}{
		{"improving", 10 * time.Millisecond, 5 * time.Millisecond, model.TrendImproving},
		{"degrading", 5 * time.Millisecond, 10 * time.Millisecond, model.TrendDegrading},
		{"stable", 10 * time.Millisecond, 10 * time.Millisecond, model.TrendStable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr := newTrackerForTest(t)
			now := time.Now()
			for range trendWindow {
				tr.Record(sample(c.prior, now))
			}
			for range trendWindow {
				tr.Record(sample(c.recent, now))
			}
			if got := tr.Stats().Trend; got != c.want {
				t.Fatalf("trend = %s, want %s", got, c.want)
			}
		})
	}
}

func TestRingEviction(t *testing.T) {
	tr := newTrackerForTest(t)
	now := time.Now()
	for range ringSize {
		tr.Record(sample(100*time.Millisecond, now))
	}
	// Overwrite the whole ring with fast samples.
	for range ringSize {
		tr.Record(sample(time.Millisecond, now))
	}

	stats := tr.Stats()
	if stats.Samples != ringSize {
		t.Fatalf("samples = %d, want %d", stats.Samples, ringSize)
	}
	if stats.Max != time.Millisecond {
		t.Fatalf("max = %v, old samples not evicted", stats.Max)
	}
}

func TestSnapshotThroughput(t *testing.T) {
	tr := newTrackerForTest(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base.Add(10 * time.Second) }

	// 30 deliveries over the last 10 seconds.
	for i := range 30 {
		tr.Record(sample(time.Millisecond, base.Add(time.Duration(i)*300*time.Millisecond)))
	}

	snap := tr.Snapshot()
	if snap.EventsDelivered != 30 {
		t.Fatalf("delivered = %d", snap.EventsDelivered)
	}
	if snap.EventsByKind[model.KindLeadUpdate] != 30 {
		t.Fatalf("by-kind count = %d", snap.EventsByKind[model.KindLeadUpdate])
	}
	if snap.Throughput <= 0 {
		t.Fatalf("throughput = %v", snap.Throughput)
	}
	if snap.PeakThroughput < snap.Throughput {
		t.Fatalf("peak %v below current %v", snap.PeakThroughput, snap.Throughput)
	}
	if want := base.Add(29 * 300 * time.Millisecond); !snap.LastEventAt.Equal(want) {
		t.Fatalf("last event at %v, want %v", snap.LastEventAt, want)
	}
}

func TestThroughputWindowExpires(t *testing.T) {
	tr := newTrackerForTest(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := range 10 {
		tr.Record(sample(time.Millisecond, base.Add(time.Duration(i)*time.Millisecond)))
	}

	// Two minutes later every publish time has left the window.
	tr.now = func() time.Time { return base.Add(2 * time.Minute) }
	snap := tr.Snapshot()
	if snap.Throughput != 0 {
		t.Fatalf("throughput = %v after window expiry, want 0", snap.Throughput)
	}
}
