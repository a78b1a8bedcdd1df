package model

// EventKind identifies one business event kind on the wire.
// The set is closed per deployment: adding a kind is a single row in
// kindTable below, which is the only source of truth for default priority,
// aggregability and role permissions.
type EventKind string

const (
	KindSystemAlert            EventKind = "system_alert"
	KindSMSCompliance          EventKind = "sms_compliance"
	KindSMSOptOut              EventKind = "sms_opt_out"
	KindProactiveInsight       EventKind = "proactive_insight"
	KindStrategyRecommendation EventKind = "strategy_recommendation"
	KindCoachingOpportunity    EventKind = "coaching_opportunity"
	KindBotHandoffRequest      EventKind = "bot_handoff_request"
	KindIntentAnalysisComplete EventKind = "intent_analysis_complete"
	KindLeadUpdate             EventKind = "lead_update"
	KindConversationUpdate     EventKind = "conversation_update"
	KindCommissionUpdate       EventKind = "commission_update"
	KindPropertyAlert          EventKind = "property_alert"
	KindPropertyMatchUpdate    EventKind = "property_match_update"
	KindBotStatusUpdate        EventKind = "bot_status_update"
	KindDashboardRefresh       EventKind = "dashboard_refresh"
	KindPerformanceUpdate      EventKind = "performance_update"
	KindAIConciergeStatus      EventKind = "ai_concierge_status"
	KindUserActivity           EventKind = "user_activity"
	KindSystemHealthUpdate     EventKind = "system_health_update"
)

// AggregationMode controls whether same-key events of a kind may be merged
// within one drain window.
type AggregationMode int8

const (
	// AggregateNever excludes the kind from merging entirely.
	AggregateNever AggregationMode = iota
	// AggregateAlways merges the kind in every batching lane.
	AggregateAlways
	// AggregateAggressive merges the kind only when the aggregator runs in
	// aggressive mode (the low lane).
	AggregateAggressive
)

type kindSpec struct {
	defaultPriority Priority
	aggregation     AggregationMode
	roles           []Role
}

var allRoles = []Role{RoleAdmin, RoleAgent, RoleViewer}

var kindTable = map[EventKind]kindSpec{
	KindSystemAlert:            {PriorityCritical, AggregateNever, allRoles},
	KindSMSCompliance:          {PriorityCritical, AggregateNever, []Role{RoleAdmin, RoleAgent}},
	KindSMSOptOut:              {PriorityCritical, AggregateNever, []Role{RoleAdmin, RoleAgent}},
	KindProactiveInsight:       {PriorityHigh, AggregateAggressive, []Role{RoleAdmin, RoleAgent}},
	KindStrategyRecommendation: {PriorityHigh, AggregateAggressive, []Role{RoleAdmin, RoleAgent}},
	KindCoachingOpportunity:    {PriorityHigh, AggregateAggressive, []Role{RoleAdmin, RoleAgent}},
	KindBotHandoffRequest:      {PriorityHigh, AggregateNever, []Role{RoleAdmin, RoleAgent}},
	KindIntentAnalysisComplete: {PriorityHigh, AggregateAggressive, []Role{RoleAdmin, RoleAgent}},
	KindLeadUpdate:             {PriorityNormal, AggregateNever, []Role{RoleAdmin, RoleAgent}},
	KindConversationUpdate:     {PriorityNormal, AggregateNever, []Role{RoleAdmin, RoleAgent}},
	KindCommissionUpdate:       {PriorityNormal, AggregateNever, []Role{RoleAdmin}},
	KindPropertyAlert:          {PriorityNormal, AggregateNever, []Role{RoleAdmin, RoleAgent}},
	KindPropertyMatchUpdate:    {PriorityNormal, AggregateNever, []Role{RoleAdmin, RoleAgent}},
	KindBotStatusUpdate:        {PriorityNormal, AggregateNever, []Role{RoleAdmin, RoleAgent}},
	KindDashboardRefresh:       {PriorityNormal, AggregateAlways, allRoles},
	KindPerformanceUpdate:      {PriorityLow, AggregateAlways, allRoles},
	KindAIConciergeStatus:      {PriorityLow, AggregateAlways, []Role{RoleAdmin, RoleAgent}},
	KindUserActivity:           {PriorityLow, AggregateNever, []Role{RoleAdmin}},
	KindSystemHealthUpdate:     {PriorityLow, AggregateAlways, allRoles},
}

// Kinds returns every known event kind. The order is unspecified.
func Kinds() []EventKind {
	out := make([]EventKind, 0, len(kindTable))
	for k := range kindTable {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k is part of the closed kind set.
func (k EventKind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// DefaultPriority returns the table priority for k. Unknown kinds map to
// PriorityLow so that a stray producer cannot jump the critical lane.
func (k EventKind) DefaultPriority() Priority {
	if spec, ok := kindTable[k]; ok {
		return spec.defaultPriority
	}
	return PriorityLow
}

// Aggregation returns the merge policy for k.
func (k EventKind) Aggregation() AggregationMode {
	if spec, ok := kindTable[k]; ok {
		return spec.aggregation
	}
	return AggregateNever
}

// PermittedFor reports whether role may receive events of kind k.
func (k EventKind) PermittedFor(role Role) bool {
	spec, ok := kindTable[k]
	if !ok {
		return false
	}
	for _, r := range spec.roles {
		if r == role {
			return true
		}
	}
	return false
}
