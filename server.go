package roomcast

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roomcast/roomcast/transport"
)

// Server is the platform core: it registers connections, authenticates
// identities, maintains room membership, routes frames and pushes
// broadcasts. Multiple independent servers can coexist in one process; no
// state is package level.
type Server struct {
	config  *Config
	log     *zap.Logger
	metrics Metrics
	dir     Directory

	ts       *transport.Server
	registry *registry
	members  *membership
	channels *channelRegistry
	events   *emitter
	throttle *throttler
}

// NewServer creates a server resolving identities through dir.
func NewServer(dir Directory, opts ...Option) (*Server, error) {
	config := DefaultConfig()
	config.Directory = dir
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Metrics == nil {
		config.Metrics = NoopMetrics{}
	}

	s := &Server{
		config:   config,
		log:      config.Logger,
		metrics:  config.Metrics,
		dir:      config.Directory,
		ts:       transport.NewServer(config.Transport),
		registry: newRegistry(),
		members:  newMembership(),
		channels: newChannelRegistry(),
		events:   newEmitter(),
	}
	s.throttle = newThrottler(s, config.ThrottleWindow)

	s.ts.OnConnect(func(session *transport.Session) {
		conn := s.Attach(session)
		session.OnMessage(func(data []byte) {
			s.handleData(conn, data)
		})
		session.OnClose(func(reason string) {
			s.handleDisconnect(conn, reason)
		})
	})

	return s, nil
}

// ServeHTTP implements http.Handler by upgrading requests to WebSocket
// sessions.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.ts.ServeHTTP(w, r)
}

// Attach registers a transport with the connection registry and returns the
// new connection. The WebSocket path calls this internally; alternative
// transports (and tests) attach here and feed frames to the router
// themselves.
func (s *Server) Attach(t Transport) *Conn {
	conn := newConn(t, s)
	s.registry.add(conn)
	s.metrics.IncrementConnections()
	s.log.Debug("connection attached", zap.String("connID", conn.ID()))
	return conn
}

// handleDisconnect runs the transport-close cleanup: leave every room the
// connection occupies, drop the user binding, then emit disconnect.
func (s *Server) handleDisconnect(conn *Conn, reason string) {
	conn.markClosed()
	s.registry.remove(conn)
	s.metrics.DecrementConnections()

	if !conn.Authenticated() {
		s.log.Debug("connection closed",
			zap.String("connID", conn.ID()),
			zap.String("reason", reason))
		s.events.emitDisconnect(DisconnectEvent{Conn: conn})
		return
	}

	// Snapshot the room set first; leave mutates it.
	for _, roomID := range s.members.rooms(conn) {
		res := s.members.leave(conn, roomID)
		if res.removed {
			s.events.emitLeave(LeaveEvent{
				Conn:     conn,
				RoomID:   roomID,
				UserLast: res.userLast,
				RoomLast: res.roomLast,
			})
		}
	}
	s.metrics.SetRoomCount(s.members.roomCount())

	last := s.members.removeUserConn(conn)
	s.log.Debug("connection closed",
		zap.String("connID", conn.ID()),
		zap.String("userID", conn.User().ID()),
		zap.String("reason", reason),
		zap.Bool("lastForUser", last))

	s.events.emitDisconnect(DisconnectEvent{
		Conn:             conn,
		WasAuthenticated: true,
		WasLastForUser:   last,
	})
}

// AuthorizeChannel registers the authorization function gating joins to
// rooms in the named channel. Registering again overwrites.
func (s *Server) AuthorizeChannel(channel string, fn ChannelAuthFunc) {
	s.channels.register(channel, fn)
}

// OnAuth registers an observer for successful authentications.
func (s *Server) OnAuth(fn func(AuthEvent)) { s.events.onAuth(fn) }

// OnJoin registers an observer for room joins.
func (s *Server) OnJoin(fn func(JoinEvent)) { s.events.onJoin(fn) }

// OnLeave registers an observer for room leaves, explicit or by disconnect.
func (s *Server) OnLeave(fn func(LeaveEvent)) { s.events.onLeave(fn) }

// OnDisconnect registers an observer for connection teardown.
func (s *Server) OnDisconnect(fn func(DisconnectEvent)) { s.events.onDisconnect(fn) }

// OnVerb registers an observer for one pass-through business verb.
func (s *Server) OnVerb(verb string, fn func(VerbEvent)) { s.events.onVerb(verb, fn) }

// OnAnyVerb registers an observer for every pass-through verb.
func (s *Server) OnAnyVerb(fn func(VerbEvent)) { s.events.onAnyVerb(fn) }

// UsersInRoom returns the distinct users currently in the room.
func (s *Server) UsersInRoom(roomID string) []User {
	return s.members.usersInRoom(roomID)
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	return s.registry.count()
}

// RoomCount returns the number of live rooms.
func (s *Server) RoomCount() int {
	return s.members.roomCount()
}

// Close shuts the server down, closing every live connection concurrently.
func (s *Server) Close() error {
	s.throttle.stop()

	var g errgroup.Group
	for _, conn := range s.registry.all() {
		conn := conn
		g.Go(func() error {
			conn.transport.Close("server shutdown")
			return nil
		})
	}
	err := g.Wait()
	s.ts.Close()
	return err
}
