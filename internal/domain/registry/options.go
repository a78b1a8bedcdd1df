package registry

import "time"

type config struct {
	sendBuffer       int
	healthBuffer     int
	heartbeatTimeout time.Duration
	sweepInterval    time.Duration
}

func defaultConfig() config {
	return config{
		sendBuffer:       256,
		healthBuffer:     1024,
		heartbeatTimeout: 60 * time.Second,
		sweepInterval:    10 * time.Second,
	}
}

// Option configures the Registry.
type Option func(*Registry)

// WithSendBuffer sets the per-connection outbound channel capacity. A full
// buffer marks the consumer as slow and disconnects it.
func WithSendBuffer(n int) Option {
	return func(r *Registry) { r.config.sendBuffer = n }
}

// WithHealthBuffer sets the capacity of the shared health stream.
func WithHealthBuffer(n int) Option {
	return func(r *Registry) { r.config.healthBuffer = n }
}

// WithHeartbeatTimeout sets how long a connection may stay silent before
// the supervisor evicts it.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(r *Registry) { r.config.heartbeatTimeout = d }
}

// WithSweepInterval sets how often the heartbeat supervisor scans for
// stale connections.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.config.sweepInterval = d }
}
