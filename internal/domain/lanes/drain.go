package lanes

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// maxConcurrentDispatch bounds the number of in-flight event dispatches
// within one batch flush.
const maxConcurrentDispatch = 16

func (r *Router) drainLane(ctx context.Context, lane Lane) {
	if lane == LaneCritical {
		r.drainCritical(ctx)
		return
	}
	r.drainBatched(ctx, lane)
}

// drainCritical bypasses batching entirely: every event is dispatched the
// moment it is dequeued.
func (r *Router) drainCritical(ctx context.Context) {
	q := r.queues[LaneCritical]
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q:
			r.dispatcher.Dispatch(ctx, ev, 1)
		}
	}
}

// drainBatched collects events for up to the lane's window or until the
// batch cap is hit, whichever first. The window only opens once a first
// event arrives: an empty lane parks the goroutine on the channel instead
// of polling.
func (r *Router) drainBatched(ctx context.Context, lane Lane) {
	spec := laneSpecs[lane]
	q := r.queues[lane]
	for {
		var first *model.Event
		select {
		case <-ctx.Done():
			return
		case first = <-q:
		}

		batch := r.collect(ctx, q, first, spec)
		if spec.aggregate && r.aggregator != nil {
			batch = r.aggregator.Aggregate(batch, spec.aggressive)
		}

		if spec.chunkSize > 0 {
			for len(batch) > 0 {
				n := min(spec.chunkSize, len(batch))
				r.flush(ctx, batch[:n])
				batch = batch[n:]
			}
		} else {
			r.flush(ctx, batch)
		}
	}
}

// collect gathers events into a batch bounded by the window timer and the
// lane's batch cap.
func (r *Router) collect(ctx context.Context, q <-chan *model.Event, first *model.Event, spec laneSpec) []*model.Event {
	batch := append(make([]*model.Event, 0, spec.maxBatch), first)
	timer := time.NewTimer(spec.window)
	defer timer.Stop()
	for len(batch) < spec.maxBatch {
		select {
		case <-ctx.Done():
			return batch
		case <-timer.C:
			return batch
		case ev := <-q:
			batch = append(batch, ev)
		}
	}
	return batch
}

// flush dispatches a batch concurrently to minimize tail latency inside
// the window. Per-event failures stay local to their connections.
func (r *Router) flush(ctx context.Context, batch []*model.Event) {
	if len(batch) == 0 {
		return
	}
	if len(batch) == 1 {
		r.dispatcher.Dispatch(ctx, batch[0], 1)
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDispatch)
	size := len(batch)
	for _, ev := range batch {
		g.Go(func() error {
			r.dispatcher.Dispatch(gctx, ev, size)
			return nil
		})
	}
	_ = g.Wait()
}
