package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/lanes"
	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
	"github.com/ghl-platform/realtime-delivery-service/internal/domain/registry"
)

// Deliverer is the primary interface for transport handlers: connection
// lifecycle plus the fire-and-forget producer entrypoint.
type Deliverer interface {
	Subscribe(ctx context.Context, principal model.Principal, welcome registry.WelcomeFunc) (*registry.Conn, []model.EventKind, error)
	Unsubscribe(connID uuid.UUID)
	Publish(ev *model.Event)
}

// DeliveryService binds the registry and the lane router behind the
// Deliverer contract.
type DeliveryService struct {
	registry *registry.Registry
	router   *lanes.Router
}

func NewDeliveryService(reg *registry.Registry, router *lanes.Router) *DeliveryService {
	return &DeliveryService{registry: reg, router: router}
}

// Subscribe registers a connection for an authenticated principal and
// returns it with the role's default subscriptions. The welcome frame is
// queued by the registry before the connection can receive broadcasts.
func (s *DeliveryService) Subscribe(_ context.Context, principal model.Principal, welcome registry.WelcomeFunc) (*registry.Conn, []model.EventKind, error) {
	conn, defaults := s.registry.Register(principal.ID, principal.Role, welcome)
	return conn, defaults, nil
}

// Unsubscribe tears the connection down. Idempotent.
func (s *DeliveryService) Unsubscribe(connID uuid.UUID) {
	s.registry.Unregister(connID)
}

// Publish enqueues an event into the priority lanes. Callers never block
// on delivery.
func (s *DeliveryService) Publish(ev *model.Event) {
	s.router.Publish(ev)
}
