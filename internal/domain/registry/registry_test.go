package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

func newRegistryForTest(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRegistry(logger, opts...)
	t.Cleanup(r.Shutdown)
	return r
}

func TestRegisterIndexes(t *testing.T) {
	r := newRegistryForTest(t)
	principal := uuid.New()

	conn, defaults := r.Register(principal, model.RoleAgent, nil)
	if conn == nil {
		t.Fatalf("nil connection from Register")
	}
	if len(defaults) == 0 {
		t.Fatalf("no default subscriptions returned")
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}
	if got := r.ListByPrincipal(principal); len(got) != 1 || got[0].ID() != conn.ID() {
		t.Fatalf("ListByPrincipal = %v", got)
	}
	if got := r.ListByRole(model.RoleAgent); len(got) != 1 {
		t.Fatalf("ListByRole = %v", got)
	}
	if got := r.ListByRole(model.RoleViewer); len(got) != 0 {
		t.Fatalf("viewer index not empty: %v", got)
	}
}

func TestRegisterQueuesGreetingFirst(t *testing.T) {
	r := newRegistryForTest(t)
	greeting := []byte(`{"type":"connection_established"}`)

	conn, _ := r.Register(uuid.New(), model.RoleAgent, func(c *Conn, defaults []model.EventKind) ([]byte, error) {
		if r.Count() != 0 {
			t.Errorf("connection visible before greeting was queued")
		}
		if len(defaults) == 0 {
			t.Errorf("no default subscriptions passed to welcome")
		}
		return greeting, nil
	})

	// A broadcast that lands right after registration must trail the
	// greeting on the outbound queue.
	if err := r.Send(conn.ID(), []byte(`{"type":"real_time_event"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := <-conn.Outbound(); string(got) != string(greeting) {
		t.Fatalf("first outbound frame = %s, want greeting", got)
	}
	if got := <-conn.Outbound(); string(got) == string(greeting) {
		t.Fatalf("greeting queued twice")
	}
}

func TestMultipleConnectionsPerPrincipal(t *testing.T) {
	r := newRegistryForTest(t)
	principal := uuid.New()

	c1, _ := r.Register(principal, model.RoleAgent, nil)
	c2, _ := r.Register(principal, model.RoleAgent, nil)
	if len(r.ListByPrincipal(principal)) != 2 {
		t.Fatalf("expected two connections for one principal")
	}

	r.Unregister(c1.ID())
	remaining := r.ListByPrincipal(principal)
	if len(remaining) != 1 || remaining[0].ID() != c2.ID() {
		t.Fatalf("after unregister: %v", remaining)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	r := newRegistryForTest(t)
	conn, _ := r.Register(uuid.New(), model.RoleViewer, nil)

	r.Unregister(conn.ID())
	r.Unregister(conn.ID())
	r.Unregister(uuid.New())

	if r.Count() != 0 {
		t.Fatalf("count = %d after unregister", r.Count())
	}
	if _, ok := r.Get(conn.ID()); ok {
		t.Fatalf("unregistered connection still resolvable")
	}
	if len(r.ListByPrincipal(conn.PrincipalID())) != 0 {
		t.Fatalf("principal index not cleaned")
	}
}

func TestUnregisterClosesOutbound(t *testing.T) {
	r := newRegistryForTest(t)
	conn, _ := r.Register(uuid.New(), model.RoleAgent, nil)

	r.Unregister(conn.ID())

	select {
	case _, open := <-conn.Outbound():
		if open {
			t.Fatalf("outbound still open after unregister")
		}
	case <-time.After(time.Second):
		t.Fatalf("outbound not closed")
	}
	if err := conn.Send([]byte("x")); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("send after close = %v, want ErrConnectionClosed", err)
	}
}

func TestConnStateLifecycle(t *testing.T) {
	r := newRegistryForTest(t)
	conn, _ := r.Register(uuid.New(), model.RoleAgent, nil)

	if got := conn.Info().State; got != "active" {
		t.Fatalf("state after register = %s, want active", got)
	}
	r.Unregister(conn.ID())
	if got := conn.Info().State; got != "disconnected" {
		t.Fatalf("state after unregister = %s, want disconnected", got)
	}
}

func TestSendDeliversToOutbound(t *testing.T) {
	r := newRegistryForTest(t)
	conn, _ := r.Register(uuid.New(), model.RoleAgent, nil)

	if err := r.Send(conn.ID(), []byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case msg := <-conn.Outbound():
		if string(msg) != "hello" {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("nothing on outbound")
	}

	if err := r.Send(uuid.New(), []byte("x")); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("send to unknown = %v", err)
	}
}

func TestSendBufferOverflowReportsHealth(t *testing.T) {
	r := newRegistryForTest(t, WithSendBuffer(1))
	conn, _ := r.Register(uuid.New(), model.RoleAgent, nil)

	if err := conn.Send([]byte("a")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := conn.Send([]byte("b")); !errors.Is(err, ErrSendBufferFull) {
		t.Fatalf("overflow send = %v, want ErrSendBufferFull", err)
	}

	// The janitor consumes the health event and evicts the connection.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.RunJanitor(ctx)

	deadline := time.After(2 * time.Second)
	for r.Count() != 0 {
		select {
		case <-deadline:
			t.Fatalf("janitor never evicted the slow consumer")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSubscriptionsClampedToRole(t *testing.T) {
	r := newRegistryForTest(t)
	conn, _ := r.Register(uuid.New(), model.RoleViewer, nil)

	// A viewer may not widen into business kinds; invalid kinds are skipped.
	effective, err := r.UpdateSubscriptions(conn.ID(),
		[]model.EventKind{model.KindLeadUpdate, model.EventKind("bogus")},
		[]model.EventKind{model.KindDashboardRefresh},
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, kind := range effective {
		if kind == model.KindLeadUpdate {
			t.Fatalf("viewer gained non-permitted kind %s", kind)
		}
		if kind == model.KindDashboardRefresh {
			t.Fatalf("removed kind still present")
		}
	}
	if conn.Subscribed(model.KindDashboardRefresh) {
		t.Fatalf("unsubscribe not applied")
	}
	if !conn.Subscribed(model.KindSystemAlert) {
		t.Fatalf("untouched default dropped")
	}
}

func TestUpdateHeartbeat(t *testing.T) {
	r := newRegistryForTest(t)
	conn, _ := r.Register(uuid.New(), model.RoleAgent, nil)

	time.Sleep(10 * time.Millisecond)
	before := conn.HeartbeatAge()
	if err := r.UpdateHeartbeat(conn.ID()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if after := conn.HeartbeatAge(); after >= before {
		t.Fatalf("heartbeat age not reset: before=%v after=%v", before, after)
	}
	if err := r.UpdateHeartbeat(uuid.New()); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("heartbeat for unknown = %v", err)
	}
}

func TestSupervisorSweep(t *testing.T) {
	r := newRegistryForTest(t, WithHeartbeatTimeout(20*time.Millisecond))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSupervisor(r, logger)

	stale, _ := r.Register(uuid.New(), model.RoleAgent, nil)
	fresh, _ := r.Register(uuid.New(), model.RoleAgent, nil)

	time.Sleep(30 * time.Millisecond)
	if err := r.UpdateHeartbeat(fresh.ID()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	if evicted := s.Sweep(); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if _, ok := r.Get(stale.ID()); ok {
		t.Fatalf("stale connection survived sweep")
	}
	if _, ok := r.Get(fresh.ID()); !ok {
		t.Fatalf("fresh connection evicted")
	}
}
