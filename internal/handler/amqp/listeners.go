package amqp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// occurredAt converts the platform's millisecond timestamp, falling back
// to now when the producer omitted it.
func occurredAt(ms int64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}

// LeadUpdatedV1 is the platform's lead change payload.
type LeadUpdatedV1 struct {
	LeadID     string         `json:"lead_id"`
	Action     string         `json:"action"`
	LeadData   map[string]any `json:"lead_data"`
	AgentID    uuid.UUID      `json:"agent_id"`
	LocationID string         `json:"location_id"`
	OccurredAt int64          `json:"occurred_at"`
}

func (h *EventIngestor) OnLeadUpdatedV1(_ context.Context, raw *LeadUpdatedV1) (*model.Event, error) {
	opts := []model.EventOption{
		model.WithTargetLocation(raw.LocationID),
		model.WithTimestamp(occurredAt(raw.OccurredAt)),
	}
	if raw.AgentID != uuid.Nil {
		opts = append(opts, model.WithTargetPrincipals(raw.AgentID))
	}
	// Hot leads jump the normal lane.
	switch raw.Action {
	case "created", "qualified", "hot":
		opts = append(opts, model.WithPriority(model.PriorityHigh))
	}
	return model.NewEvent(model.KindLeadUpdate, map[string]any{
		"lead_id":   raw.LeadID,
		"action":    raw.Action,
		"lead_data": raw.LeadData,
	}, opts...), nil
}

// ConversationUpdatedV1 carries a new or changed conversation message.
type ConversationUpdatedV1 struct {
	ConversationID string    `json:"conversation_id"`
	LeadID         string    `json:"lead_id"`
	Stage          string    `json:"stage"`
	AgentID        uuid.UUID `json:"agent_id"`
	LocationID     string    `json:"location_id"`
	OccurredAt     int64     `json:"occurred_at"`
}

func (h *EventIngestor) OnConversationUpdatedV1(_ context.Context, raw *ConversationUpdatedV1) (*model.Event, error) {
	opts := []model.EventOption{
		model.WithTargetLocation(raw.LocationID),
		model.WithTimestamp(occurredAt(raw.OccurredAt)),
	}
	if raw.AgentID != uuid.Nil {
		opts = append(opts, model.WithTargetPrincipals(raw.AgentID))
	}
	return model.NewEvent(model.KindConversationUpdate, map[string]any{
		"conversation_id": raw.ConversationID,
		"lead_id":         raw.LeadID,
		"stage":           raw.Stage,
	}, opts...), nil
}

// CommissionUpdatedV1 is admin-only revenue data.
type CommissionUpdatedV1 struct {
	DealID     string  `json:"deal_id"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
	LocationID string  `json:"location_id"`
	OccurredAt int64   `json:"occurred_at"`
}

func (h *EventIngestor) OnCommissionUpdatedV1(_ context.Context, raw *CommissionUpdatedV1) (*model.Event, error) {
	return model.NewEvent(model.KindCommissionUpdate, map[string]any{
		"deal_id": raw.DealID,
		"amount":  raw.Amount,
		"status":  raw.Status,
	},
		model.WithTargetLocation(raw.LocationID),
		model.WithTimestamp(occurredAt(raw.OccurredAt)),
		model.WithTargetRoles(model.RoleAdmin),
	), nil
}

// InsightCreatedV1 is an AI-generated coaching or strategy insight.
type InsightCreatedV1 struct {
	InsightID       string    `json:"insight_id"`
	Category        string    `json:"category"`
	Summary         string    `json:"summary"`
	ConfidenceScore float64   `json:"confidence_score"`
	AgentID         uuid.UUID `json:"agent_id"`
	LocationID      string    `json:"location_id"`
	OccurredAt      int64     `json:"occurred_at"`
}

func (h *EventIngestor) OnInsightCreatedV1(_ context.Context, raw *InsightCreatedV1) (*model.Event, error) {
	kind := model.KindProactiveInsight
	switch raw.Category {
	case "strategy":
		kind = model.KindStrategyRecommendation
	case "coaching":
		kind = model.KindCoachingOpportunity
	}
	opts := []model.EventOption{
		model.WithTargetLocation(raw.LocationID),
		model.WithTimestamp(occurredAt(raw.OccurredAt)),
	}
	if raw.AgentID != uuid.Nil {
		opts = append(opts, model.WithTargetPrincipals(raw.AgentID))
	}
	return model.NewEvent(kind, map[string]any{
		"insight_id":       raw.InsightID,
		"category":         raw.Category,
		"summary":          raw.Summary,
		"confidence_score": raw.ConfidenceScore,
	}, opts...), nil
}

// SystemAlertV1 rides the critical lane to every permitted connection.
type SystemAlertV1 struct {
	AlertID    string `json:"alert_id"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	OccurredAt int64  `json:"occurred_at"`
}

func (h *EventIngestor) OnSystemAlertV1(_ context.Context, raw *SystemAlertV1) (*model.Event, error) {
	return model.NewEvent(model.KindSystemAlert, map[string]any{
		"alert_id": raw.AlertID,
		"severity": raw.Severity,
		"message":  raw.Message,
	}, model.WithTimestamp(occurredAt(raw.OccurredAt))), nil
}

// SMSOptOutV1 is a compliance opt-out; must reach operators immediately.
type SMSOptOutV1 struct {
	ContactID  string    `json:"contact_id"`
	Phone      string    `json:"phone"`
	AgentID    uuid.UUID `json:"agent_id"`
	LocationID string    `json:"location_id"`
	OccurredAt int64     `json:"occurred_at"`
}

func (h *EventIngestor) OnSMSOptOutV1(_ context.Context, raw *SMSOptOutV1) (*model.Event, error) {
	return model.NewEvent(model.KindSMSOptOut, map[string]any{
		"contact_id": raw.ContactID,
		"phone":      raw.Phone,
	},
		model.WithTargetLocation(raw.LocationID),
		model.WithTimestamp(occurredAt(raw.OccurredAt)),
	), nil
}
