package roomcast

import (
	"time"

	"go.uber.org/zap"

	"github.com/roomcast/roomcast/transport"
)

// Config holds server configuration. Use the Option helpers with NewServer
// rather than constructing it directly.
type Config struct {
	// Directory resolves claimed user identities. Required.
	Directory Directory

	// ThrottleWindow is the quiescence window of ThrottledBroadcast. The
	// window is fixed from the first un-fired schedule; replacements do not
	// extend it.
	ThrottleWindow time.Duration

	// Transport configures the WebSocket layer.
	Transport transport.Config

	// Logger receives operational logs. Defaults to zap.NewNop().
	Logger *zap.Logger

	// Metrics receives monitoring observations. Defaults to NoopMetrics.
	Metrics Metrics
}

// DefaultConfig returns the configuration NewServer starts from.
func DefaultConfig() *Config {
	return &Config{
		ThrottleWindow: 100 * time.Millisecond,
		Transport:      transport.DefaultConfig(),
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Directory == nil {
		return ErrNoDirectory
	}
	return nil
}

// Option mutates a Config.
type Option func(*Config)

// WithThrottleWindow sets the coalescing window of ThrottledBroadcast.
func WithThrottleWindow(d time.Duration) Option {
	return func(c *Config) { c.ThrottleWindow = d }
}

// WithTransport sets the WebSocket transport configuration.
func WithTransport(tc transport.Config) Option {
	return func(c *Config) { c.Transport = tc }
}

// WithLogger sets the operational logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}
