// Package admin is the operator-facing HTTP surface: performance
// snapshot, connection listing, and manual event injection.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
	"github.com/ghl-platform/realtime-delivery-service/internal/domain/registry"
	"github.com/ghl-platform/realtime-delivery-service/internal/metrics"
	"github.com/ghl-platform/realtime-delivery-service/internal/service"
)

type Handler struct {
	logger    *slog.Logger
	auther    service.Auther
	deliverer service.Deliverer
	registry  *registry.Registry
	collector *metrics.Collector
}

func NewHandler(
	logger *slog.Logger,
	auther service.Auther,
	deliverer service.Deliverer,
	reg *registry.Registry,
	collector *metrics.Collector,
) *Handler {
	return &Handler{
		logger:    logger,
		auther:    auther,
		deliverer: deliverer,
		registry:  reg,
		collector: collector,
	}
}

// Routes mounts the admin endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/metrics", h.getMetrics)
	r.Get("/connections", h.getConnections)
	r.Post("/broadcast", h.postBroadcast)
	return r
}

func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.Snapshot())
}

func (h *Handler) getConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connections": h.registry.Infos(),
		"total":       h.registry.Count(),
	})
}

// BroadcastRequest injects a synthetic event for testing or announcements.
type BroadcastRequest struct {
	Kind             string         `json:"kind"`
	Data             map[string]any `json:"data"`
	Priority         string         `json:"priority,omitempty"`
	TargetPrincipals []uuid.UUID    `json:"target_principals,omitempty"`
	TargetRoles      []string       `json:"target_roles,omitempty"`
	TargetLocation   string         `json:"target_location,omitempty"`
}

// postBroadcast requires an elevated-role token; the event takes the
// kind's default priority unless the request overrides it.
func (h *Handler) postBroadcast(w http.ResponseWriter, r *http.Request) {
	principal, err := h.authorize(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !principal.Role.Elevated() {
		writeError(w, http.StatusForbidden, "broadcast requires an elevated role")
		return
	}

	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind := model.EventKind(req.Kind)
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown event kind: "+req.Kind)
		return
	}

	opts := []model.EventOption{}
	if req.Priority != "" {
		priority, err := model.ParsePriority(req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts = append(opts, model.WithPriority(priority))
	}
	if len(req.TargetPrincipals) > 0 {
		opts = append(opts, model.WithTargetPrincipals(req.TargetPrincipals...))
	}
	if len(req.TargetRoles) > 0 {
		roles := make([]model.Role, 0, len(req.TargetRoles))
		for _, name := range req.TargetRoles {
			role := model.Role(name)
			if !role.Valid() {
				writeError(w, http.StatusBadRequest, "unknown role: "+name)
				return
			}
			roles = append(roles, role)
		}
		opts = append(opts, model.WithTargetRoles(roles...))
	}
	if req.TargetLocation != "" {
		opts = append(opts, model.WithTargetLocation(req.TargetLocation))
	}

	ev := model.NewEvent(kind, req.Data, opts...)
	h.deliverer.Publish(ev)
	h.logger.Info("manual broadcast accepted",
		"kind", kind,
		"event_id", ev.ID,
		"principal_id", principal.ID,
	)
	writeJSON(w, http.StatusAccepted, map[string]any{"event_id": ev.ID})
}

func (h *Handler) authorize(r *http.Request) (model.Principal, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return model.Principal{}, errors.New("missing bearer token")
	}
	return h.auther.VerifyToken(r.Context(), token)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
