package roomcast

import (
	"encoding/json"
	"sync"
)

// AuthEvent is emitted when a connection authenticates.
type AuthEvent struct {
	Conn *Conn

	// FirstForUser is true when this is the user's only live connection.
	FirstForUser bool
}

// JoinEvent is emitted when a connection enters a room.
type JoinEvent struct {
	Conn   *Conn
	RoomID string

	// UserFirstInRoom is true when no other connection of the same user
	// was already in the room.
	UserFirstInRoom bool

	// RoomFirst is true when the room had no connections before this join.
	RoomFirst bool
}

// LeaveEvent is emitted when a connection exits a room, explicitly or on
// disconnect.
type LeaveEvent struct {
	Conn   *Conn
	RoomID string

	// UserLast is true when no remaining connection in the room belongs to
	// the same user.
	UserLast bool

	// RoomLast is true when the room is empty after the removal.
	RoomLast bool
}

// DisconnectEvent is emitted after a closed connection has been fully
// cleaned up.
type DisconnectEvent struct {
	Conn *Conn

	// WasAuthenticated reports whether the connection ever authenticated.
	WasAuthenticated bool

	// WasLastForUser is true when the user has no remaining connections.
	// It is meaningful only when WasAuthenticated is true.
	WasLastForUser bool
}

// VerbEvent carries a business verb the router has no opinion on: any frame
// from an authenticated connection whose type is not a built-in verb.
type VerbEvent struct {
	Conn *Conn
	Verb string
	Args json.RawMessage
}

// emitter fans events out to registered observers. Handlers run
// synchronously on the goroutine that produced the event, so per-connection
// ordering follows frame ordering.
type emitter struct {
	mu           sync.RWMutex
	auth         []func(AuthEvent)
	join         []func(JoinEvent)
	leave        []func(LeaveEvent)
	disconnect   []func(DisconnectEvent)
	verbs        map[string][]func(VerbEvent)
	verbFallback []func(VerbEvent)
}

func newEmitter() *emitter {
	return &emitter{verbs: make(map[string][]func(VerbEvent))}
}

func (e *emitter) onAuth(fn func(AuthEvent)) {
	e.mu.Lock()
	e.auth = append(e.auth, fn)
	e.mu.Unlock()
}

func (e *emitter) onJoin(fn func(JoinEvent)) {
	e.mu.Lock()
	e.join = append(e.join, fn)
	e.mu.Unlock()
}

func (e *emitter) onLeave(fn func(LeaveEvent)) {
	e.mu.Lock()
	e.leave = append(e.leave, fn)
	e.mu.Unlock()
}

func (e *emitter) onDisconnect(fn func(DisconnectEvent)) {
	e.mu.Lock()
	e.disconnect = append(e.disconnect, fn)
	e.mu.Unlock()
}

func (e *emitter) onVerb(verb string, fn func(VerbEvent)) {
	e.mu.Lock()
	e.verbs[verb] = append(e.verbs[verb], fn)
	e.mu.Unlock()
}

func (e *emitter) onAnyVerb(fn func(VerbEvent)) {
	e.mu.Lock()
	e.verbFallback = append(e.verbFallback, fn)
	e.mu.Unlock()
}

func (e *emitter) emitAuth(ev AuthEvent) {
	e.mu.RLock()
	handlers := e.auth
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (e *emitter) emitJoin(ev JoinEvent) {
	e.mu.RLock()
	handlers := e.join
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (e *emitter) emitLeave(ev LeaveEvent) {
	e.mu.RLock()
	handlers := e.leave
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (e *emitter) emitDisconnect(ev DisconnectEvent) {
	e.mu.RLock()
	handlers := e.disconnect
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (e *emitter) emitVerb(ev VerbEvent) {
	e.mu.RLock()
	handlers := e.verbs[ev.Verb]
	fallback := e.verbFallback
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(ev)
	}
	for _, fn := range fallback {
		fn(ev)
	}
}
