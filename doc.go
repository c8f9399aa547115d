// Package roomcast provides a real-time event platform for coordinating
// many concurrent socket connections into shared rooms.
//
// The core multiplexes long-lived bidirectional message streams, maps them
// to authenticated identities, organizes them into dynamically created and
// destroyed rooms, and provides join/leave/broadcast semantics with correct
// first/last bookkeeping under concurrent connect, disconnect and error
// events. It is designed for presence-heavy applications such as chat and
// collaborative workspaces.
//
// # Features
//
//   - WebSocket transport with ping/pong liveness and slow-client protection
//   - Pre-shared derived-key authentication (HMAC of user id + server salt)
//   - Implicit room lifecycle: rooms appear on first join, vanish when empty
//   - First/last transition facts on every join, leave and disconnect
//   - Per-channel pluggable join authorization
//   - Best-effort broadcast, per-user fanout and coalesced throttled updates
//   - Typed event subscription for business logic built on top
//   - Structured logging (zap) and pluggable metrics
//
// # Quick Start
//
//	dir := directory.NewStatic("server-salt")
//	dir.Add("alice", "Alice")
//
//	server, err := roomcast.NewServer(dir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	server.OnJoin(func(e roomcast.JoinEvent) {
//	    if e.UserFirstInRoom {
//	        server.Broadcast(e.RoomID, "user_joined", map[string]string{
//	            "id": e.Conn.User().ID(),
//	        }, e.Conn)
//	    }
//	})
//
//	http.Handle("/socket", server)
//	http.ListenAndServe(":3000", nil)
//
// # Wire Protocol
//
// Clients exchange JSON text frames of the form
//
//	{"type": "<verb>", "args": {...}}
//
// The built-in verbs are "auth" (args: id, key), "join" (args: id) and
// "leave" (args: id). Every verb is acknowledged with "<verb>-ack" on
// success or "<verb>-err" with a message argument on failure. Any other
// verb sent by an authenticated connection is re-emitted unchanged as a
// pass-through event for the application to observe:
//
//	server.OnVerb("chat", func(e roomcast.VerbEvent) {
//	    var msg ChatMessage
//	    json.Unmarshal(e.Args, &msg)
//	    server.Broadcast(msg.Room, "chat", msg, nil)
//	})
//
// Protocol errors are never fatal: the connection stays open and usable
// after any bad frame.
//
// # Channels
//
// The room id segment before the first '/' names the room's channel
// ("admins/ops" is in channel "admins"; "lobby" is in the default empty
// channel). Join requests are gated by the channel's authorization
// function. The default channel always authorizes; joining a room in an
// unregistered channel fails.
//
//	server.AuthorizeChannel("admins", func(ctx context.Context, u roomcast.User, roomID string) (bool, error) {
//	    return isAdmin(u), nil
//	})
//
// Authorization functions may block on external stores; each join runs its
// check independently without holding up other connections.
//
// # Broadcasting
//
//	// Everyone in the room, minus the sender.
//	server.Broadcast("lobby", "chat", args, sender)
//
//	// Every connection of one user (all tabs).
//	server.SendToUser("alice", "nudge", nil)
//
//	// High-frequency updates, coalesced per destination: only the latest
//	// payload within the window is delivered.
//	server.ThrottledBroadcast("lobby", "presence", roster, nil)
//
// Delivery is best effort. There is no acknowledgement-based retry, and a
// connection joining mid-broadcast is not retroactively included.
//
// # Thread Safety
//
// All exported operations are safe for concurrent use. Membership state is
// owned by a single index guarded by one mutex, so two near-simultaneous
// joins to the same room can never both observe roomFirst=true.
package roomcast
