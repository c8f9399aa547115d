package roomcast

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Transport is the write side of a single bidirectional message stream. The
// built-in implementation is *transport.Session; tests and alternative
// transports can attach anything that satisfies it.
type Transport interface {
	// Send queues one outbound text frame. It must not block on a slow
	// peer; implementations return an error when the frame is dropped.
	Send(data []byte) error

	// Close tears down the stream.
	Close(reason string)
}

// Conn is a single client connection. A Conn starts unauthenticated and is
// promoted at most once by a successful "auth" frame; there is no
// de-authentication short of disconnect.
type Conn struct {
	id        uuid.UUID
	transport Transport
	srv       *Server

	// ctx is cancelled when the connection closes. Pending authorization
	// checks receive it so they can give up early.
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	authenticated bool
	user          User

	closed atomic.Bool
}

func newConn(t Transport, srv *Server) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		id:        uuid.New(),
		transport: t,
		srv:       srv,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ID returns the connection's opaque unique identifier.
func (c *Conn) ID() string {
	return c.id.String()
}

// Authenticated reports whether the connection has completed auth.
func (c *Conn) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// User returns the identity the connection authenticated as, or nil.
func (c *Conn) User() User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Send pushes a frame to this connection. Delivery is best effort.
func (c *Conn) Send(verb string, args any) error {
	return c.srv.SendToConn(c, verb, args)
}

// Alive reports whether the connection is still open. Deferred work such as
// a pending join authorization checks this before mutating shared state.
func (c *Conn) Alive() bool {
	return !c.closed.Load()
}

func (c *Conn) promote(user User) {
	c.mu.Lock()
	c.authenticated = true
	c.user = user
	c.mu.Unlock()
}

func (c *Conn) markClosed() {
	c.closed.Store(true)
	c.cancel()
}
