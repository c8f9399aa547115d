package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to WebSocket sessions.
type Server struct {
	config    Config
	upgrader  websocket.Upgrader
	sessions  sync.Map // *Session -> struct{}
	onConnect func(*Session)
}

// NewServer creates a transport server.
func NewServer(config Config) *Server {
	s := &Server{config: config}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			if config.CheckOrigin == nil {
				return true
			}
			return config.CheckOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// OnConnect sets the handler invoked with each accepted session, before its
// loops start.
func (s *Server) OnConnect(fn func(*Session)) {
	s.onConnect = fn
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}

	session := newSession(conn, s.config)
	s.sessions.Store(session, struct{}{})
	session.OnClose(func(string) {
		s.sessions.Delete(session)
	})

	if s.onConnect != nil {
		s.onConnect(session)
	}

	session.Start()
}

// Close closes every live session.
func (s *Server) Close() {
	s.sessions.Range(func(key, _ any) bool {
		key.(*Session).Close("server shutdown")
		return true
	})
}
