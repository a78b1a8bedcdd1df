// Package wsmarshaller renders server frames as the JSON envelope the
// dashboard clients consume.
package wsmarshaller

import (
	"encoding/json"
	"time"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// Frame is the generic server->client wrapper. Every outbound message
// shares this shape so clients can switch on type alone.
type Frame struct {
	Type    string `json:"type"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload,omitempty"`
}

// EventPayload is the real_time_event body.
type EventPayload struct {
	ID              string          `json:"id"`
	Kind            model.EventKind `json:"kind"`
	Data            map[string]any  `json:"data"`
	Timestamp       time.Time       `json:"timestamp"`
	Priority        model.Priority  `json:"priority"`
	TargetPrincipal string          `json:"target_principal,omitempty"`
	TargetLocation  string          `json:"target_location,omitempty"`
}

// Marshaller is the JSON implementation of marshaller.Marshaller.
type Marshaller struct{}

func New() *Marshaller { return &Marshaller{} }

// MarshalEvent wraps one event as a real_time_event frame.
func (m *Marshaller) MarshalEvent(ev *model.Event) ([]byte, error) {
	payload := EventPayload{
		ID:             ev.ID.String(),
		Kind:           ev.Kind,
		Data:           ev.Data,
		Timestamp:      ev.Timestamp,
		Priority:       ev.Priority,
		TargetLocation: ev.TargetLocation,
	}
	if len(ev.TargetPrincipals) == 1 {
		payload.TargetPrincipal = ev.TargetPrincipals[0].String()
	}
	return json.Marshal(Frame{
		Type:    model.FrameRealTimeEvent,
		SentAt:  time.Now().UnixMilli(),
		Payload: payload,
	})
}

// MarshalFrame wraps any server payload (acks, status, errors).
func (m *Marshaller) MarshalFrame(frameType string, payload any) ([]byte, error) {
	return json.Marshal(Frame{
		Type:    frameType,
		SentAt:  time.Now().UnixMilli(),
		Payload: payload,
	})
}
