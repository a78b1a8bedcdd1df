// Package aggregate merges same-kind, same-target events collected within
// one drain window into a single envelope, cutting message volume for
// low-value kinds without reordering: the merged envelope carries the max
// timestamp of its inputs, so causal order against non-aggregated events
// in the same batch is preserved.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// Aggregator implements the lanes.Aggregator contract.
type Aggregator struct{}

func New() *Aggregator { return &Aggregator{} }

type groupKey struct {
	kind      model.EventKind
	principal string
	location  string
}

func keyOf(ev *model.Event) groupKey {
	principal := ""
	if len(ev.TargetPrincipals) == 1 {
		principal = ev.TargetPrincipals[0].String()
	} else if len(ev.TargetPrincipals) > 1 {
		parts := make([]string, len(ev.TargetPrincipals))
		for i, id := range ev.TargetPrincipals {
			parts[i] = id.String()
		}
		principal = strings.Join(parts, ",")
	}
	return groupKey{kind: ev.Kind, principal: principal, location: ev.TargetLocation}
}

func eligible(ev *model.Event, aggressive bool) bool {
	if ev.Priority >= model.PriorityCritical {
		return false
	}
	switch ev.Kind.Aggregation() {
	case model.AggregateAlways:
		return true
	case model.AggregateAggressive:
		return aggressive
	default:
		return false
	}
}

// Aggregate groups eligible events by (kind, target principal, target
// location) and merges each group of two or more into one envelope.
// Ineligible events and groups of one pass through unchanged. Output order
// keeps pass-through events first in their original order, then merged
// envelopes.
func (a *Aggregator) Aggregate(events []*model.Event, aggressive bool) []*model.Event {
	if len(events) <= 1 {
		return events
	}

	groups := make(map[groupKey][]*model.Event)
	var order []groupKey
	out := make([]*model.Event, 0, len(events))
	for _, ev := range events {
		if !eligible(ev, aggressive) {
			out = append(out, ev)
			continue
		}
		key := keyOf(ev)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ev)
	}

	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		out = append(out, merge(group))
	}
	return out
}

// merge builds the aggregated envelope: latest timestamp, count, combined
// payloads and kind-specific summary fields.
func merge(group []*model.Event) *model.Event {
	base := group[0]
	maxTS := base.Timestamp
	minTS := base.Timestamp
	earliestEnqueue := base.EnqueuedAt
	combined := make([]map[string]any, 0, len(group))
	priorities := make(map[string]struct{})
	maxConfidence := 0.0
	hasConfidence := false

	for _, ev := range group {
		if ev.Timestamp.After(maxTS) {
			maxTS = ev.Timestamp
		}
		if ev.Timestamp.Before(minTS) {
			minTS = ev.Timestamp
		}
		if ev.EnqueuedAt.Before(earliestEnqueue) {
			earliestEnqueue = ev.EnqueuedAt
		}
		combined = append(combined, ev.Data)
		priorities[ev.Priority.String()] = struct{}{}
		if c, ok := confidenceOf(ev); ok {
			hasConfidence = true
			if c > maxConfidence {
				maxConfidence = c
			}
		}
	}

	data := map[string]any{
		model.AggCountKey:    len(group),
		model.AggTimeSpanKey: maxTS.Sub(minTS).Milliseconds(),
		model.AggCombinedKey: combined,
	}
	if hasConfidence {
		data[model.AggMaxConfidenceKey] = maxConfidence
		names := make([]string, 0, len(priorities))
		for p := range priorities {
			names = append(names, p)
		}
		data[model.AggPrioritiesKey] = names
	}

	merged := model.NewEvent(base.Kind, data,
		model.WithPriority(base.Priority),
		model.WithTimestamp(maxTS),
		model.WithTargetLocation(base.TargetLocation),
	)
	merged.TargetPrincipals = base.TargetPrincipals
	merged.TargetRoles = base.TargetRoles
	merged.ExcludePrincipal = base.ExcludePrincipal
	// Latency accounting charges the merged envelope from the oldest
	// input's enqueue time.
	merged.EnqueuedAt = earliestEnqueue
	return merged
}

func confidenceOf(ev *model.Event) (float64, bool) {
	switch v := ev.Data["confidence_score"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
