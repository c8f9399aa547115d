package roomcast

import (
	"sync"

	"github.com/google/uuid"
)

// membership is the room membership index: four mutually consistent
// mappings between rooms, connections and users. It is the only shared
// mutable state in the core, and it is guarded by a single mutex so that a
// first/last computation and the mutation it describes happen in one
// critical section. All other components go through these operations rather
// than touching the maps directly.
//
// A room exists iff it has a non-empty connection set: entries are lazily
// inserted on first join and eagerly removed when the last connection
// leaves.
type membership struct {
	mu        sync.RWMutex
	roomConns map[string]map[uuid.UUID]*Conn
	connRooms map[uuid.UUID]map[string]struct{}
	roomUsers map[string]map[string]User
	userConns map[string]map[uuid.UUID]*Conn
}

func newMembership() *membership {
	return &membership{
		roomConns: make(map[string]map[uuid.UUID]*Conn),
		connRooms: make(map[uuid.UUID]map[string]struct{}),
		roomUsers: make(map[string]map[string]User),
		userConns: make(map[string]map[uuid.UUID]*Conn),
	}
}

// joinResult carries the transition facts of a join.
type joinResult struct {
	userFirstInRoom bool
	roomFirst       bool
}

// leaveResult carries the transition facts of a leave. removed is false
// when the connection was not in the room to begin with.
type leaveResult struct {
	userLast bool
	roomLast bool
	removed  bool
}

// join adds conn to roomID and reports whether it was inserted or already a
// member; it reports false when the connection has closed. Joining a room
// the connection is already in is a no-op with both flags false.
//
// Liveness is checked under the same mutex as the insert, and disconnect
// cleanup marks the connection closed before snapshotting its rooms. A join
// racing a disconnect therefore either lands before the snapshot and is
// cleaned up with the rest, or observes the closed flag and refuses.
func (m *membership) join(conn *Conn, roomID string) (joinResult, bool) {
	user := conn.User()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !conn.Alive() {
		return joinResult{}, false
	}

	conns := m.roomConns[roomID]
	if _, already := conns[conn.id]; already {
		return joinResult{}, true
	}

	res := joinResult{
		roomFirst:       len(conns) == 0,
		userFirstInRoom: true,
	}
	for _, other := range conns {
		if u := other.User(); u != nil && u.ID() == user.ID() {
			res.userFirstInRoom = false
			break
		}
	}

	if conns == nil {
		conns = make(map[uuid.UUID]*Conn)
		m.roomConns[roomID] = conns
	}
	conns[conn.id] = conn

	if m.connRooms[conn.id] == nil {
		m.connRooms[conn.id] = make(map[string]struct{})
	}
	m.connRooms[conn.id][roomID] = struct{}{}

	if m.roomUsers[roomID] == nil {
		m.roomUsers[roomID] = make(map[string]User)
	}
	m.roomUsers[roomID][user.ID()] = user

	return res, true
}

// leave removes conn from roomID. Leaving a room the connection is not in
// is a no-op.
func (m *membership) leave(conn *Conn, roomID string) leaveResult {
	user := conn.User()

	m.mu.Lock()
	defer m.mu.Unlock()

	conns := m.roomConns[roomID]
	if _, present := conns[conn.id]; !present {
		return leaveResult{}
	}

	delete(conns, conn.id)
	delete(m.connRooms[conn.id], roomID)
	if len(m.connRooms[conn.id]) == 0 {
		delete(m.connRooms, conn.id)
	}

	res := leaveResult{removed: true, userLast: true}
	for _, other := range conns {
		if u := other.User(); u != nil && u.ID() == user.ID() {
			res.userLast = false
			break
		}
	}
	if res.userLast {
		delete(m.roomUsers[roomID], user.ID())
	}

	if len(conns) == 0 {
		res.roomLast = true
		delete(m.roomConns, roomID)
		delete(m.roomUsers, roomID)
	}

	return res
}

// rooms returns a snapshot of the rooms conn is in. leaveAll iterates this
// snapshot because leave mutates the underlying set.
func (m *membership) rooms(conn *Conn) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]string, 0, len(m.connRooms[conn.id]))
	for roomID := range m.connRooms[conn.id] {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// addUserConn binds an authenticated connection to its user, deduplicated
// by connection id. It reports whether this is the user's first live
// connection.
func (m *membership) addUserConn(user User, conn *Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns := m.userConns[user.ID()]
	first := len(conns) == 0
	if conns == nil {
		conns = make(map[uuid.UUID]*Conn)
		m.userConns[user.ID()] = conns
	}
	conns[conn.id] = conn
	return first
}

// removeUserConn drops the user↔connection binding and reports whether it
// was the user's last remaining connection.
func (m *membership) removeUserConn(conn *Conn) bool {
	user := conn.User()

	m.mu.Lock()
	defer m.mu.Unlock()

	conns := m.userConns[user.ID()]
	delete(conns, conn.id)
	if len(conns) == 0 {
		delete(m.userConns, user.ID())
		return true
	}
	return false
}

// usersInRoom returns the distinct users with at least one connection in
// the room.
func (m *membership) usersInRoom(roomID string) []User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]User, 0, len(m.roomUsers[roomID]))
	for _, user := range m.roomUsers[roomID] {
		users = append(users, user)
	}
	return users
}

// connsInRoom returns a snapshot of the room's connections, minus exclude.
// Connections that join or leave after the snapshot are not retroactively
// included or excluded.
func (m *membership) connsInRoom(roomID string, exclude *Conn) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*Conn, 0, len(m.roomConns[roomID]))
	for _, conn := range m.roomConns[roomID] {
		if exclude != nil && conn.id == exclude.id {
			continue
		}
		conns = append(conns, conn)
	}
	return conns
}

// userConnections returns a snapshot of every connection currently
// authenticated as userID.
func (m *membership) userConnections(userID string) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*Conn, 0, len(m.userConns[userID]))
	for _, conn := range m.userConns[userID] {
		conns = append(conns, conn)
	}
	return conns
}

// roomCount returns the number of live rooms.
func (m *membership) roomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.roomConns)
}
