package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// Supervisor periodically evicts connections whose last heartbeat exceeds
// the timeout. Eviction goes through the same Unregister path as every
// other disconnect.
type Supervisor struct {
	registry *Registry
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSupervisor builds a supervisor over the registry using the registry's
// configured timeout and sweep interval.
func NewSupervisor(r *Registry, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		registry: r,
		timeout:  r.config.heartbeatTimeout,
		interval: r.config.sweepInterval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, sweeping at the configured interval.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep evicts every connection that has gone silent past the timeout.
// Exposed for tests; Run calls it on each tick.
func (s *Supervisor) Sweep() int {
	evicted := 0
	for _, conn := range s.registry.All() {
		if age := conn.HeartbeatAge(); age > s.timeout {
			s.logger.Warn("heartbeat timeout",
				"conn_id", conn.ID(),
				"principal_id", conn.PrincipalID(),
				"silent_for", age,
				"reason", model.DisconnectHeartbeatTimeout,
			)
			s.registry.Unregister(conn.ID())
			evicted++
		}
	}
	return evicted
}
