package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// HealthEvent flows from a connection to the registry janitor whenever the
// transport degrades. Disconnect handling lives in one place instead of
// inline at every send call site.
type HealthEvent struct {
	ConnID uuid.UUID
	Reason model.DisconnectReason
	Err    error
}

// Conn is one live client connection. Owned exclusively by the Registry;
// other components reference it only through the Registry's operation set.
type Conn struct {
	id          uuid.UUID
	principalID uuid.UUID
	role        model.Role
	connectedAt time.Time

	// lastHeartbeat is unix nanos, updated on every heartbeat frame.
	lastHeartbeat atomic.Int64
	state         atomic.Int32

	mu   sync.RWMutex
	subs map[model.EventKind]struct{}

	// lifeMu orders Send against close so the outbound channel is never
	// written after it is closed.
	lifeMu    sync.RWMutex
	out       chan []byte
	health    chan<- HealthEvent
	closeOnce sync.Once
}

func newConn(principalID uuid.UUID, role model.Role, bufferSize int, health chan<- HealthEvent) *Conn {
	c := &Conn{
		id:          uuid.New(),
		principalID: principalID,
		role:        role,
		connectedAt: time.Now(),
		subs:        make(map[model.EventKind]struct{}),
		out:         make(chan []byte, bufferSize),
		health:      health,
	}
	for _, kind := range role.DefaultSubscriptions() {
		c.subs[kind] = struct{}{}
	}
	c.lastHeartbeat.Store(time.Now().UnixNano())
	c.state.Store(int32(model.StateActive))
	return c
}

func (c *Conn) ID() uuid.UUID          { return c.id }
func (c *Conn) PrincipalID() uuid.UUID { return c.principalID }
func (c *Conn) Role() model.Role       { return c.role }
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Outbound is consumed by the transport write pump. The channel closes when
// the connection is unregistered.
func (c *Conn) Outbound() <-chan []byte { return c.out }

// Send enqueues a marshalled frame without blocking. A full buffer is a
// slow consumer; it is reported on the health stream and the send fails.
func (c *Conn) Send(msg []byte) error {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if model.ConnState(c.state.Load()) == model.StateDisconnected {
		return ErrConnectionClosed
	}
	select {
	case c.out <- msg:
		return nil
	default:
		c.ReportFailure(model.DisconnectSendFailure, ErrSendBufferFull)
		return ErrSendBufferFull
	}
}

// ReportFailure notifies the registry janitor. Non-blocking: if the health
// stream is saturated the janitor will catch the connection on the next
// heartbeat sweep anyway.
func (c *Conn) ReportFailure(reason model.DisconnectReason, err error) {
	select {
	case c.health <- HealthEvent{ConnID: c.id, Reason: reason, Err: err}:
	default:
	}
}

// Subscribed reports whether the connection currently wants the kind.
func (c *Conn) Subscribed(kind model.EventKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[kind]
	return ok
}

// Subscriptions returns a sorted-free copy of the current set.
func (c *Conn) Subscriptions() []model.EventKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.EventKind, 0, len(c.subs))
	for kind := range c.subs {
		out = append(out, kind)
	}
	return out
}

// updateSubscriptions applies add/remove under the role-permission
// invariant: adds outside the permitted set are silently skipped, so the
// effective set is always a subset of what the role allows.
func (c *Conn) updateSubscriptions(add, remove []model.EventKind) []model.EventKind {
	c.mu.Lock()
	for _, kind := range add {
		if kind.Valid() && c.role.Permits(kind) {
			c.subs[kind] = struct{}{}
		}
	}
	for _, kind := range remove {
		delete(c.subs, kind)
	}
	c.mu.Unlock()
	return c.Subscriptions()
}

func (c *Conn) touchHeartbeat() {
	c.lastHeartbeat.Store(time.Now().UnixNano())
}

// HeartbeatAge is the time since the client last proved liveness.
func (c *Conn) HeartbeatAge() time.Duration {
	return time.Since(time.Unix(0, c.lastHeartbeat.Load()))
}

// Info renders the admin-facing view.
func (c *Conn) Info() model.ConnectionInfo {
	return model.ConnectionInfo{
		ID:            c.id,
		PrincipalID:   c.principalID,
		Role:          c.role,
		ConnectedAt:   c.connectedAt,
		LastHeartbeat: time.Unix(0, c.lastHeartbeat.Load()),
		Subscriptions: c.Subscriptions(),
		State:         model.ConnState(c.state.Load()).String(),
	}
}

// close is invoked by the Registry during Unregister. Idempotent.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.lifeMu.Lock()
		c.state.Store(int32(model.StateDisconnected))
		close(c.out)
		c.lifeMu.Unlock()
	})
}
