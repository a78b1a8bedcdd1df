package lanes

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// Dispatcher hands a drained event to the broadcast fan-out. batchSize is
// the size of the flush the event travelled in, recorded alongside its
// latency sample.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *model.Event, batchSize int) int
}

// Aggregator merges same-key events collected within one drain window.
type Aggregator interface {
	Aggregate(events []*model.Event, aggressive bool) []*model.Event
}

// Router owns the four bounded lane queues. Publish never blocks: when a
// lane is at capacity the event is dropped and counted, which keeps
// producers isolated from delivery backpressure.
type Router struct {
	queues     [laneCount]chan *model.Event
	drops      [laneCount]atomic.Uint64
	published  atomic.Uint64
	dispatcher Dispatcher
	aggregator Aggregator
	logger     *slog.Logger
}

// NewRouter builds a router with the given per-lane queue capacity.
func NewRouter(dispatcher Dispatcher, aggregator Aggregator, capacity int, logger *slog.Logger) *Router {
	r := &Router{
		dispatcher: dispatcher,
		aggregator: aggregator,
		logger:     logger,
	}
	for i := range r.queues {
		r.queues[i] = make(chan *model.Event, capacity)
	}
	return r
}

// Publish classifies and enqueues an event. Fire-and-forget: a full lane
// drops the event rather than blocking the producer.
func (r *Router) Publish(ev *model.Event) {
	ev.EnqueuedAt = time.Now()
	lane := Classify(ev)
	select {
	case r.queues[lane] <- ev:
		r.published.Add(1)
	default:
		r.drops[lane].Add(1)
		r.logger.Warn("lane queue full, event dropped",
			"lane", lane.String(),
			"kind", ev.Kind,
			"event_id", ev.ID,
		)
	}
}

// Depth returns the current queue depth of a lane.
func (r *Router) Depth(lane Lane) int { return len(r.queues[lane]) }

// Dropped returns the overflow counter of a lane.
func (r *Router) Dropped(lane Lane) uint64 { return r.drops[lane].Load() }

// Published returns the total number of accepted events.
func (r *Router) Published() uint64 { return r.published.Load() }

// LaneStats snapshots depth and drop counters for the admin surface.
func (r *Router) LaneStats() map[string]model.LaneStats {
	out := make(map[string]model.LaneStats, laneCount)
	for lane := LaneCritical; lane <= LaneLow; lane++ {
		out[lane.String()] = model.LaneStats{
			Depth:   r.Depth(lane),
			Dropped: r.Dropped(lane),
		}
	}
	return out
}

// Run starts the four drain loops and blocks until all have exited. Each
// lane drains independently; cancellation lets in-flight dispatches finish
// before the loop returns.
func (r *Router) Run(ctx context.Context) {
	done := make(chan struct{}, laneCount)
	for lane := LaneCritical; lane <= LaneLow; lane++ {
		go func(l Lane) {
			r.drainLane(ctx, l)
			done <- struct{}{}
		}(lane)
	}
	for range laneCount {
		<-done
	}
}
