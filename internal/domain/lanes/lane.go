// Package lanes classifies events by urgency and drains four independent
// priority queues into the dispatcher under lane-specific time budgets.
package lanes

import (
	"time"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// Lane is one of the four priority classes, each with its own queue and
// batching window.
type Lane int

const (
	LaneCritical Lane = iota
	LaneHigh
	LaneNormal
	LaneLow

	laneCount = 4
)

func (l Lane) String() string {
	switch l {
	case LaneCritical:
		return "critical"
	case LaneHigh:
		return "high"
	case LaneNormal:
		return "normal"
	default:
		return "low"
	}
}

// laneSpec fixes the drain behavior per lane. Critical has no batching:
// each event is dispatched the moment it is dequeued.
type laneSpec struct {
	window    time.Duration
	maxBatch  int
	chunkSize int // 0 = no chunking
	aggregate bool
	// aggressive widens the aggregable set to insight kinds (low lane).
	aggressive bool
}

var laneSpecs = [laneCount]laneSpec{
	LaneCritical: {},
	LaneHigh:     {window: 5 * time.Millisecond, maxBatch: 20},
	LaneNormal:   {window: 10 * time.Millisecond, maxBatch: 50, aggregate: true},
	LaneLow:      {window: 50 * time.Millisecond, maxBatch: 100, chunkSize: 25, aggregate: true, aggressive: true},
}

// Classify places an event into a lane. Fixed precedence, evaluated
// top-down: explicit critical or an always-critical kind wins; then
// explicit high or an insight/coordination kind; then the standard
// business kinds; everything else rides the low lane.
func Classify(ev *model.Event) Lane {
	switch {
	case ev.Priority >= model.PriorityCritical || ev.Kind.DefaultPriority() >= model.PriorityCritical:
		return LaneCritical
	case ev.Priority >= model.PriorityHigh || ev.Kind.DefaultPriority() >= model.PriorityHigh:
		return LaneHigh
	case ev.Kind.DefaultPriority() >= model.PriorityNormal:
		return LaneNormal
	default:
		return LaneLow
	}
}
