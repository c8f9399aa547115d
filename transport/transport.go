// Package transport provides the WebSocket transport layer for roomcast.
//
// A Session is a single accepted connection with buffered outbound delivery,
// ping/pong liveness and slow-client protection. The Server upgrades HTTP
// requests and hands sessions to the core via OnConnect. Per-session frame
// delivery is FIFO in both directions.
package transport

import (
	"errors"
	"time"
)

var (
	// ErrSessionClosed is returned by Send after the session closed.
	ErrSessionClosed = errors.New("transport: session closed")

	// ErrSlowClient is returned by Send when the outbound queue is full.
	// The frame is dropped; delivery is best effort.
	ErrSlowClient = errors.New("transport: slow client, frame dropped")
)

// Config holds transport configuration.
type Config struct {
	// PingInterval is how often the server pings an idle connection.
	PingInterval time.Duration

	// PongTimeout is how long after a ping the server waits for any read
	// before considering the connection dead.
	PongTimeout time.Duration

	// MaxPayload caps the size of a single inbound frame in bytes.
	MaxPayload int64

	// SendQueueSize is the outbound buffer size per session.
	SendQueueSize int

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin overrides the upgrade origin check. When nil all origins
	// are accepted.
	CheckOrigin func(origin string) bool
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:    25 * time.Second,
		PongTimeout:     20 * time.Second,
		MaxPayload:      1 << 20, // 1MB
		SendQueueSize:   256,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}
