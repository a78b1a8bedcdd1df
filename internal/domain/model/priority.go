package model

import (
	"fmt"
	"time"
)

// Priority is the delivery urgency of a single event, independent of its
// kind. The kind table supplies a default; producers may override it.
type Priority int32

const (
	PriorityLow      Priority = 10
	PriorityNormal   Priority = 20
	PriorityHigh     Priority = 30
	PriorityCritical Priority = 40
)

// latency budgets per priority, end to end from enqueue to socket write.
const (
	TargetCritical = 1 * time.Millisecond
	TargetHigh     = 5 * time.Millisecond
	TargetNormal   = 10 * time.Millisecond
	TargetLow      = 50 * time.Millisecond

	// AbsoluteLatencyCeiling triggers a high-severity alert regardless of
	// the lane an event travelled through.
	AbsoluteLatencyCeiling = 50 * time.Millisecond
)

// LatencyTarget returns the delivery budget for the priority.
func (p Priority) LatencyTarget() time.Duration {
	switch {
	case p >= PriorityCritical:
		return TargetCritical
	case p >= PriorityHigh:
		return TargetHigh
	case p >= PriorityNormal:
		return TargetNormal
	default:
		return TargetLow
	}
}

func (p Priority) String() string {
	switch {
	case p >= PriorityCritical:
		return "critical"
	case p >= PriorityHigh:
		return "high"
	case p >= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// ParsePriority maps a wire name back to a Priority. Returns an error for
// unknown names so malformed broadcast requests surface as client errors.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// MarshalJSON writes the wire name ("critical", "high", ...).
func (p Priority) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON accepts the wire name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("priority must be a JSON string, got %s", data)
	}
	parsed, err := ParsePriority(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
