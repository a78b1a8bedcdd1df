// Package registry owns the set of live connections. It keeps a primary
// table plus per-principal and per-role indices; all three are mutated
// together under one lock so no index can ever reference a connection the
// primary table does not hold.
//
// Disconnects converge on Unregister regardless of cause: client close,
// transport failure (reported on the health stream) and heartbeat timeout
// (the supervisor) all take the same cleanup path.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// Registry is the single owner of connection state.
type Registry struct {
	mu          sync.RWMutex
	conns       map[uuid.UUID]*Conn
	byPrincipal map[uuid.UUID]map[uuid.UUID]*Conn
	byRole      map[model.Role]map[uuid.UUID]*Conn

	health chan HealthEvent
	config config
	logger *slog.Logger
}

// NewRegistry builds an empty registry. The health janitor must be started
// separately via RunJanitor (wired through the fx lifecycle).
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		conns:       make(map[uuid.UUID]*Conn),
		byPrincipal: make(map[uuid.UUID]map[uuid.UUID]*Conn),
		byRole:      make(map[model.Role]map[uuid.UUID]*Conn),
		config:      defaultConfig(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.health = make(chan HealthEvent, r.config.healthBuffer)
	return r
}

// WelcomeFunc builds the greeting frame for a freshly created connection.
// It runs before the connection is inserted into the lookup tables, so the
// greeting is always first in the outbound queue, ahead of any broadcast.
type WelcomeFunc func(conn *Conn, defaults []model.EventKind) ([]byte, error)

// Register creates a connection for an authenticated principal, queues the
// greeting if one is given, then inserts the connection into the primary
// table and both indices. Returns the connection together with the role's
// default subscription set.
func (r *Registry) Register(principalID uuid.UUID, role model.Role, welcome WelcomeFunc) (*Conn, []model.EventKind) {
	conn := newConn(principalID, role, r.config.sendBuffer, r.health)
	defaults := conn.Subscriptions()
	if welcome != nil {
		frame, err := welcome(conn, defaults)
		if err != nil {
			r.logger.Error("welcome frame encode failed", "conn_id", conn.id, "error", err)
		} else {
			_ = conn.Send(frame)
		}
	}

	r.mu.Lock()
	r.conns[conn.id] = conn
	if r.byPrincipal[principalID] == nil {
		r.byPrincipal[principalID] = make(map[uuid.UUID]*Conn)
	}
	r.byPrincipal[principalID][conn.id] = conn
	if r.byRole[role] == nil {
		r.byRole[role] = make(map[uuid.UUID]*Conn)
	}
	r.byRole[role][conn.id] = conn
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.Info("connection registered",
		"conn_id", conn.id,
		"principal_id", principalID,
		"role", role,
		"total", total,
	)
	return conn, defaults
}

// Unregister removes the connection from the primary table and both
// indices and closes its outbound channel. Idempotent: unknown ids are a
// no-op.
func (r *Registry) Unregister(connID uuid.UUID) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	if set := r.byPrincipal[conn.principalID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byPrincipal, conn.principalID)
		}
	}
	if set := r.byRole[conn.role]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byRole, conn.role)
		}
	}
	total := len(r.conns)
	r.mu.Unlock()

	conn.close()
	r.logger.Info("connection unregistered", "conn_id", connID, "total", total)
}

// Send pushes a marshalled frame to one connection.
func (r *Registry) Send(connID uuid.UUID, msg []byte) error {
	r.mu.RLock()
	conn, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send to %s: %w", connID, ErrConnectionClosed)
	}
	return conn.Send(msg)
}

// Get returns the live connection for the id, if any.
func (r *Registry) Get(connID uuid.UUID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// ListByPrincipal returns every connection owned by the principal.
func (r *Registry) ListByPrincipal(principalID uuid.UUID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.byPrincipal[principalID])
}

// ListByRole returns every connection holding the role.
func (r *Registry) ListByRole(role model.Role) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.byRole[role])
}

// All returns every live connection.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Infos renders the admin listing.
func (r *Registry) Infos() []model.ConnectionInfo {
	conns := r.All()
	out := make([]model.ConnectionInfo, 0, len(conns))
	for _, conn := range conns {
		out = append(out, conn.Info())
	}
	return out
}

// UpdateHeartbeat refreshes the liveness timestamp for the connection.
func (r *Registry) UpdateHeartbeat(connID uuid.UUID) error {
	conn, ok := r.Get(connID)
	if !ok {
		return fmt.Errorf("heartbeat for %s: %w", connID, ErrConnectionClosed)
	}
	conn.touchHeartbeat()
	return nil
}

// UpdateSubscriptions applies a subscribe/unsubscribe request and returns
// the effective set. Adds outside the role's permitted kinds are dropped
// silently.
func (r *Registry) UpdateSubscriptions(connID uuid.UUID, add, remove []model.EventKind) ([]model.EventKind, error) {
	conn, ok := r.Get(connID)
	if !ok {
		return nil, fmt.Errorf("subscriptions for %s: %w", connID, ErrConnectionClosed)
	}
	return conn.updateSubscriptions(add, remove), nil
}

// RunJanitor consumes the health stream and unregisters degraded
// connections. One goroutine, started at app start, stopped by ctx.
func (r *Registry) RunJanitor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.health:
			r.logger.Warn("connection unhealthy",
				"conn_id", ev.ConnID,
				"reason", ev.Reason,
				"error", ev.Err,
			)
			r.Unregister(ev.ConnID)
		}
	}
}

// Shutdown closes every connection. Called after all producer tasks have
// stopped.
func (r *Registry) Shutdown() {
	for _, conn := range r.All() {
		r.Unregister(conn.id)
	}
}

func collect(set map[uuid.UUID]*Conn) []*Conn {
	out := make([]*Conn, 0, len(set))
	for _, conn := range set {
		out = append(out, conn)
	}
	return out
}
