// Package dispatch resolves the recipient set for one event and fans the
// send out concurrently across matching connections.
package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
	"github.com/ghl-platform/realtime-delivery-service/internal/domain/registry"
	"github.com/ghl-platform/realtime-delivery-service/internal/handler/marshaller"
)

// maxConcurrentSends bounds the fan-out goroutines for a single event.
const maxConcurrentSends = 32

// Recorder receives one latency sample per delivered event.
type Recorder interface {
	Record(m model.LatencyMeasurement)
}

// Dispatcher fans events out to the registry's connections.
type Dispatcher struct {
	registry   *registry.Registry
	marshaller marshaller.Marshaller
	recorder   Recorder
	logger     *slog.Logger

	delivered atomic.Uint64
	failed    atomic.Uint64
}

func NewDispatcher(reg *registry.Registry, m marshaller.Marshaller, rec Recorder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:   reg,
		marshaller: m,
		recorder:   rec,
		logger:     logger,
	}
}

// Delivered returns the count of events delivered to at least one
// connection.
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// Failed returns the count of events that could not be encoded or reached
// nobody due to send failures.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

// Dispatch resolves recipients, filters by subscription and role
// permission, and sends concurrently. Returns the number of connections
// that accepted the frame. Individual send failures only affect their own
// connection: the health stream disconnects it, the batch continues.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *model.Event, batchSize int) int {
	candidates := d.resolve(ev)
	recipients := candidates[:0]
	for _, conn := range candidates {
		if ev.ExcludePrincipal != uuid.Nil && conn.PrincipalID() == ev.ExcludePrincipal {
			continue
		}
		// Role permission is re-checked here even though the subscribe
		// path already clamps the set.
		if !conn.Subscribed(ev.Kind) || !conn.Role().Permits(ev.Kind) {
			continue
		}
		recipients = append(recipients, conn)
	}
	if len(recipients) == 0 {
		return 0
	}

	frame, err := d.marshaller.MarshalEvent(ev)
	if err != nil {
		d.failed.Add(1)
		d.logger.Error("event encode failed", "kind", ev.Kind, "event_id", ev.ID, "error", err)
		return 0
	}

	var sent atomic.Int64
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSends)
	for _, conn := range recipients {
		g.Go(func() error {
			if err := conn.Send(frame); err == nil {
				sent.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	delivered := int(sent.Load())
	if delivered > 0 {
		d.delivered.Add(1)
	} else {
		d.failed.Add(1)
	}
	d.record(ev, batchSize, delivered)
	return delivered
}

// resolve applies the target precedence: explicit principals, then
// explicit roles, then everyone.
func (d *Dispatcher) resolve(ev *model.Event) []*registry.Conn {
	switch {
	case len(ev.TargetPrincipals) > 0:
		var out []*registry.Conn
		for _, id := range ev.TargetPrincipals {
			out = append(out, d.registry.ListByPrincipal(id)...)
		}
		return out
	case len(ev.TargetRoles) > 0:
		var out []*registry.Conn
		for _, role := range ev.TargetRoles {
			out = append(out, d.registry.ListByRole(role)...)
		}
		return out
	default:
		return d.registry.All()
	}
}

// record emits the delivery sample. Latency is publish time minus the
// enqueue time carried in the event's metadata, never recomputed.
func (d *Dispatcher) record(ev *model.Event, batchSize, delivered int) {
	if d.recorder == nil || ev.EnqueuedAt.IsZero() {
		return
	}
	publishedAt := time.Now()
	latency := publishedAt.Sub(ev.EnqueuedAt)
	d.recorder.Record(model.LatencyMeasurement{
		Kind:        ev.Kind,
		Priority:    ev.Priority,
		EnqueuedAt:  ev.EnqueuedAt,
		PublishedAt: publishedAt,
		Latency:     latency,
		TargetMet:   latency <= ev.Priority.LatencyTarget(),
		BatchSize:   batchSize,
		Connections: delivered,
	})
}
