package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Session is a single accepted WebSocket connection. Outbound frames are
// queued on a bounded channel drained by a dedicated write loop, so sending
// never blocks on a slow peer.
type Session struct {
	conn     *websocket.Conn
	config   Config
	outgoing chan []byte

	closeOnce sync.Once
	closed    chan struct{}

	mu        sync.RWMutex
	onMessage func([]byte)
	onClose   []func(reason string)
}

func newSession(conn *websocket.Conn, config Config) *Session {
	return &Session{
		conn:     conn,
		config:   config,
		outgoing: make(chan []byte, config.SendQueueSize),
		closed:   make(chan struct{}),
	}
}

// Start runs the session's read and write loops.
func (s *Session) Start() {
	go s.writeLoop()
	go s.readLoop()
}

// Send queues one outbound text frame. It returns ErrSlowClient when the
// queue is full and ErrSessionClosed after the session closed; in both
// cases the frame is dropped.
func (s *Session) Send(data []byte) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	select {
	case s.outgoing <- data:
		return nil
	case <-s.closed:
		return ErrSessionClosed
	default:
		return ErrSlowClient
	}
}

// Close tears down the session. It is safe to call more than once; only the
// first call runs the close handler.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		close(s.closed)

		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(time.Second))
		s.conn.Close()

		s.mu.RLock()
		handlers := s.onClose
		s.mu.RUnlock()
		for _, fn := range handlers {
			fn(reason)
		}
	})
}

// OnMessage sets the inbound frame handler. Frames are delivered from the
// read loop in arrival order.
func (s *Session) OnMessage(fn func([]byte)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// OnClose registers a close handler. Handlers run in registration order on
// the first Close.
func (s *Session) OnClose(fn func(reason string)) {
	s.mu.Lock()
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}

func (s *Session) readLoop() {
	defer s.Close("read error")

	s.conn.SetReadLimit(s.config.MaxPayload)
	s.conn.SetReadDeadline(time.Now().Add(s.config.PingInterval + s.config.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.config.PingInterval + s.config.PongTimeout))
		return nil
	})

	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}

		s.mu.RLock()
		handler := s.onMessage
		s.mu.RUnlock()
		if handler != nil {
			handler(data)
		}
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.outgoing:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close("write error")
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close("ping failed")
				return
			}
		case <-s.closed:
			return
		}
	}
}
