package roomcast

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
)

// SendToConn serializes {type, args} and pushes it to one connection. There
// is no delivery confirmation; a full queue or closed transport drops the
// frame.
func (s *Server) SendToConn(conn *Conn, verb string, args any) error {
	return s.sendFrame(conn, verb, args)
}

// SendToUser pushes a frame to every connection currently authenticated as
// userID, e.g. multiple browser tabs.
func (s *Server) SendToUser(userID string, verb string, args any) {
	for _, conn := range s.members.userConnections(userID) {
		s.sendFrame(conn, verb, args)
	}
}

// Broadcast pushes a frame to every connection currently in the room except
// the optionally excluded one. The member set is snapshotted up front;
// connections joining or leaving mid-broadcast are not retroactively
// included or excluded.
func (s *Server) Broadcast(roomID string, verb string, args any, exclude *Conn) {
	s.metrics.IncrementBroadcasts()

	data, err := EncodeFrame(verb, args)
	if err != nil {
		s.log.Error("broadcast encode failed",
			zap.String("roomID", roomID),
			zap.String("verb", verb),
			zap.Error(err))
		return
	}

	for _, conn := range s.members.connsInRoom(roomID, exclude) {
		s.sendBytes(conn, data)
	}
}

// ThrottledBroadcast coalesces rapid repeated broadcasts of the same
// (room, verb) pair per destination connection: a new payload scheduled
// before the prior one fires replaces it, and delivery happens once per
// window measured from the first un-fired schedule. Large rooms generating
// frequent state flicker deliver only the latest state to each client.
func (s *Server) ThrottledBroadcast(roomID string, verb string, args any, exclude *Conn) {
	for _, conn := range s.members.connsInRoom(roomID, exclude) {
		s.throttle.schedule(conn, roomID, verb, args)
	}
}

func (s *Server) sendFrame(conn *Conn, verb string, args any) error {
	data, err := EncodeFrame(verb, args)
	if err != nil {
		return err
	}
	return s.sendBytes(conn, data)
}

func (s *Server) sendBytes(conn *Conn, data []byte) error {
	if err := conn.transport.Send(data); err != nil {
		s.metrics.IncrementDroppedSends()
		s.log.Debug("frame dropped",
			zap.String("connID", conn.ID()),
			zap.Error(err))
		return err
	}
	return nil
}

// throttleKey identifies one coalescing slot: room + verb + destination.
type throttleKey struct {
	roomID string
	verb   string
	connID uuid.UUID
}

// throttler owns the pending-delivery table of ThrottledBroadcast. The
// table is private to this component; timers fire on a fixed delay that
// replacements do not extend.
type throttler struct {
	srv    *Server
	window time.Duration

	mu      sync.Mutex
	pending map[throttleKey]*pendingSend
	stopped bool
}

type pendingSend struct {
	conn *Conn
	args any
}

func newThrottler(srv *Server, window time.Duration) *throttler {
	return &throttler{
		srv:     srv,
		window:  window,
		pending: make(map[throttleKey]*pendingSend),
	}
}

// schedule queues args for delivery to conn. If a delivery for the same
// key is already pending, only the payload is replaced; the fire deadline
// stays put.
func (t *throttler) schedule(conn *Conn, roomID, verb string, args any) {
	key := throttleKey{roomID: roomID, verb: verb, connID: conn.id}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if p, ok := t.pending[key]; ok {
		p.args = args
		return
	}

	t.pending[key] = &pendingSend{conn: conn, args: args}
	time.AfterFunc(t.window, func() { t.fire(key) })
}

func (t *throttler) fire(key throttleKey) {
	t.mu.Lock()
	p, ok := t.pending[key]
	delete(t.pending, key)
	t.mu.Unlock()

	if !ok || !p.conn.Alive() {
		return
	}
	t.srv.sendFrame(p.conn, key.verb, p.args)
}

// stop discards all pending deliveries and rejects new ones.
func (t *throttler) stop() {
	t.mu.Lock()
	t.stopped = true
	t.pending = make(map[throttleKey]*pendingSend)
	t.mu.Unlock()
}
