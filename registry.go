package roomcast

import (
	"sync"

	"github.com/google/uuid"
)

// registry tracks every live connection, authenticated or not, keyed by
// connection id.
type registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[uuid.UUID]*Conn)}
}

func (r *registry) add(conn *Conn) {
	r.mu.Lock()
	r.conns[conn.id] = conn
	r.mu.Unlock()
}

func (r *registry) remove(conn *Conn) {
	r.mu.Lock()
	delete(r.conns, conn.id)
	r.mu.Unlock()
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// all returns a snapshot of every live connection.
func (r *registry) all() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}
