package model

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single unit of distribution. Immutable once created: the
// router stamps EnqueuedAt exactly once, everything else is set by the
// producer through NewEvent.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Kind      EventKind      `json:"kind"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Priority  Priority       `json:"priority"`

	// Target scope. Empty principals and roles means broadcast to all.
	TargetPrincipals []uuid.UUID `json:"target_principals,omitempty"`
	TargetRoles      []Role      `json:"target_roles,omitempty"`
	// TargetLocation is the tenant/location key; it participates in the
	// aggregation key but not in recipient resolution.
	TargetLocation string `json:"target_location,omitempty"`
	// ExcludePrincipal is skipped during fan-out (e.g. the actor that
	// triggered the event). uuid.Nil means nobody is excluded.
	ExcludePrincipal uuid.UUID `json:"-"`

	// EnqueuedAt is delivery metadata: set by the router on enqueue and
	// carried through so the tracker never recomputes the origin time.
	EnqueuedAt time.Time `json:"-"`
}

// EventOption configures optional fields of a new event.
type EventOption func(*Event)

// WithPriority overrides the kind's default priority.
func WithPriority(p Priority) EventOption {
	return func(e *Event) { e.Priority = p }
}

// WithTargetPrincipals restricts delivery to the given principals.
func WithTargetPrincipals(ids ...uuid.UUID) EventOption {
	return func(e *Event) { e.TargetPrincipals = ids }
}

// WithTargetRoles restricts delivery to connections holding one of the roles.
func WithTargetRoles(roles ...Role) EventOption {
	return func(e *Event) { e.TargetRoles = roles }
}

// WithTargetLocation tags the event with a tenant/location key.
func WithTargetLocation(loc string) EventOption {
	return func(e *Event) { e.TargetLocation = loc }
}

// WithExcludePrincipal skips one principal during fan-out.
func WithExcludePrincipal(id uuid.UUID) EventOption {
	return func(e *Event) { e.ExcludePrincipal = id }
}

// WithTimestamp overrides the creation timestamp. Used by ingestion paths
// that carry the producer's own occurrence time.
func WithTimestamp(ts time.Time) EventOption {
	return func(e *Event) { e.Timestamp = ts }
}

// NewEvent builds an event with the kind's default priority applied.
func NewEvent(kind EventKind, data map[string]any, opts ...EventOption) *Event {
	e := &Event{
		ID:        uuid.New(),
		Kind:      kind,
		Data:      data,
		Timestamp: time.Now(),
		Priority:  kind.DefaultPriority(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Aggregated payload keys used by the aggregator when merging a group of
// same-key events into one envelope.
const (
	AggCountKey         = "aggregated_events"
	AggTimeSpanKey      = "time_span_ms"
	AggCombinedKey      = "combined_data"
	AggMaxConfidenceKey = "max_confidence"
	AggPrioritiesKey    = "priorities_observed"
)

// AggregatedCount returns the merge count carried by an aggregated
// envelope, or 1 for a plain event.
func (e *Event) AggregatedCount() int {
	if n, ok := e.Data[AggCountKey].(int); ok {
		return n
	}
	return 1
}
