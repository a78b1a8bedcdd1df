package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
	"github.com/ghl-platform/realtime-delivery-service/internal/domain/registry"
	"github.com/ghl-platform/realtime-delivery-service/internal/metrics"
	"github.com/ghl-platform/realtime-delivery-service/internal/service"
)

type stubAuther struct {
	principals map[string]model.Principal
}

func (a *stubAuther) VerifyToken(_ context.Context, token string) (model.Principal, error) {
	if p, ok := a.principals[token]; ok {
		return p, nil
	}
	return model.Principal{}, service.ErrAuthRejected
}

type stubDeliverer struct {
	published []*model.Event
}

func (d *stubDeliverer) Subscribe(_ context.Context, p model.Principal, _ registry.WelcomeFunc) (*registry.Conn, []model.EventKind, error) {
	return nil, nil, nil
}
func (d *stubDeliverer) Unsubscribe(uuid.UUID)   {}
func (d *stubDeliverer) Publish(ev *model.Event) { d.published = append(d.published, ev) }

type staticLanes struct{}

func (staticLanes) LaneStats() map[string]model.LaneStats {
	return map[string]model.LaneStats{"normal": {Depth: 3, Dropped: 1}}
}
func (staticLanes) Published() uint64 { return 42 }

type staticDelivery struct{}

func (staticDelivery) Delivered() uint64 { return 40 }
func (staticDelivery) Failed() uint64    { return 2 }

func newHandlerForTest(t *testing.T) (*Handler, *registry.Registry, *stubDeliverer) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.NewRegistry(logger)
	t.Cleanup(reg.Shutdown)

	auther := &stubAuther{principals: map[string]model.Principal{
		"admin-token": {ID: uuid.New(), Role: model.RoleAdmin},
		"agent-token": {ID: uuid.New(), Role: model.RoleAgent},
	}}
	deliverer := &stubDeliverer{}
	collector := metrics.NewCollector(metrics.NewTracker(logger), staticLanes{}, staticDelivery{}, reg)
	return NewHandler(logger, auther, deliverer, reg, collector), reg, deliverer
}

func doRequest(t *testing.T, h *Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestGetMetrics(t *testing.T) {
	h, _, _ := newHandlerForTest(t)

	rec := doRequest(t, h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var snap model.PerformanceSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.EventsPublished != 42 {
		t.Fatalf("published = %d, want 42", snap.EventsPublished)
	}
	if snap.Lanes["normal"].Depth != 3 {
		t.Fatalf("lanes = %+v", snap.Lanes)
	}
	// Lane drops count toward failures alongside dispatch failures.
	if snap.FailedPublishes != 3 {
		t.Fatalf("failed = %d, want 3", snap.FailedPublishes)
	}
}

func TestGetConnections(t *testing.T) {
	h, reg, _ := newHandlerForTest(t)
	reg.Register(uuid.New(), model.RoleAgent, nil)

	rec := doRequest(t, h, http.MethodGet, "/connections", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Connections []model.ConnectionInfo `json:"connections"`
		Total       int                    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || len(body.Connections) != 1 {
		t.Fatalf("body = %+v", body)
	}
	if body.Connections[0].Role != model.RoleAgent {
		t.Fatalf("role = %s", body.Connections[0].Role)
	}
}

func TestBroadcastRequiresElevatedRole(t *testing.T) {
	h, _, deliverer := newHandlerForTest(t)
	body := `{"kind":"system_alert","data":{"message":"maintenance"}}`

	if rec := doRequest(t, h, http.MethodPost, "/broadcast", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodPost, "/broadcast", "agent-token", body); rec.Code != http.StatusForbidden {
		t.Fatalf("agent token: status = %d", rec.Code)
	}
	if len(deliverer.published) != 0 {
		t.Fatalf("unauthorized request published an event")
	}
}

func TestBroadcastPublishes(t *testing.T) {
	h, _, deliverer := newHandlerForTest(t)
	target := uuid.New()
	body := `{
		"kind": "lead_update",
		"data": {"lead_id": "9"},
		"priority": "high",
		"target_principals": ["` + target.String() + `"],
		"target_location": "loc-3"
	}`

	rec := doRequest(t, h, http.MethodPost, "/broadcast", "admin-token", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(deliverer.published) != 1 {
		t.Fatalf("published %d events", len(deliverer.published))
	}

	ev := deliverer.published[0]
	if ev.Kind != model.KindLeadUpdate {
		t.Fatalf("kind = %s", ev.Kind)
	}
	if ev.Priority != model.PriorityHigh {
		t.Fatalf("priority = %v", ev.Priority)
	}
	if len(ev.TargetPrincipals) != 1 || ev.TargetPrincipals[0] != target {
		t.Fatalf("targets = %v", ev.TargetPrincipals)
	}
	if ev.TargetLocation != "loc-3" {
		t.Fatalf("location = %q", ev.TargetLocation)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["event_id"] != ev.ID.String() {
		t.Fatalf("response event_id = %q", resp["event_id"])
	}
}

func TestBroadcastRejectsBadInput(t *testing.T) {
	h, _, _ := newHandlerForTest(t)
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"unknown kind", `{"kind":"nope"}`},
		{"unknown priority", `{"kind":"lead_update","priority":"urgent"}`},
		{"unknown role", `{"kind":"lead_update","target_roles":["superuser"]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/broadcast", "admin-token", c.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}
