package metrics

import "github.com/ghl-platform/realtime-delivery-service/internal/domain/model"

// LaneSource exposes the router's queue figures.
type LaneSource interface {
	LaneStats() map[string]model.LaneStats
	Published() uint64
}

// DeliverySource exposes the dispatcher's outcome counters.
type DeliverySource interface {
	Delivered() uint64
	Failed() uint64
}

// ConnSource exposes the registry's population count.
type ConnSource interface {
	Count() int
}

// Collector assembles the full performance snapshot from the tracker and
// the sources it does not own.
type Collector struct {
	tracker  *Tracker
	lanes    LaneSource
	delivery DeliverySource
	conns    ConnSource
}

func NewCollector(tracker *Tracker, lanes LaneSource, delivery DeliverySource, conns ConnSource) *Collector {
	return &Collector{tracker: tracker, lanes: lanes, delivery: delivery, conns: conns}
}

// Snapshot recomputes the transient aggregate. Cheap enough to build per
// request; nothing is cached or persisted.
func (c *Collector) Snapshot() model.PerformanceSnapshot {
	snap := c.tracker.Snapshot()
	snap.Lanes = c.lanes.LaneStats()
	snap.EventsPublished = c.lanes.Published()
	snap.FailedPublishes = c.delivery.Failed()
	for _, lane := range snap.Lanes {
		snap.FailedPublishes += lane.Dropped
	}
	snap.Connections = c.conns.Count()
	return snap
}
