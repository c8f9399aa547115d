package roomcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthVerb(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		var events []AuthEvent
		s.OnAuth(func(e AuthEvent) { events = append(events, e) })

		sendVerb(t, s, conn, "auth", map[string]string{"id": "alice", "key": "key-alice"})
		waitFrame(t, ft, "auth-ack")

		assert.True(t, conn.Authenticated())
		assert.Equal(t, "alice", conn.User().ID())
		require.Len(t, events, 1)
		assert.True(t, events[0].FirstForUser)
	})

	t.Run("second connection is not first for user", func(t *testing.T) {
		s := newTestServer(t)
		c1, ft1 := connect(t, s)
		c2, ft2 := connect(t, s)

		var firsts []bool
		s.OnAuth(func(e AuthEvent) { firsts = append(firsts, e.FirstForUser) })

		authenticate(t, s, c1, ft1, "alice")
		authenticate(t, s, c2, ft2, "alice")

		assert.Equal(t, []bool{true, false}, firsts)
	})

	t.Run("unknown user", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		sendVerb(t, s, conn, "auth", map[string]string{"id": "mallory", "key": "x"})
		frame := waitFrame(t, ft, "auth-err")

		args := decodeArgs[errorArgs](t, frame)
		assert.Equal(t, "unknown user", args.Message)
		assert.False(t, conn.Authenticated())
	})

	t.Run("invalid key", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		sendVerb(t, s, conn, "auth", map[string]string{"id": "alice", "key": "wrong"})
		frame := waitFrame(t, ft, "auth-err")

		args := decodeArgs[errorArgs](t, frame)
		assert.Equal(t, wireMessage(ErrInvalidKey), args.Message)
		assert.False(t, conn.Authenticated())
	})

	t.Run("missing args", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		sendVerb(t, s, conn, "auth", map[string]string{"id": "alice"})
		waitFrame(t, ft, "auth-err")

		sendVerb(t, s, conn, "auth", nil)
		assert.Len(t, ft.ofType("auth-err"), 2)
	})

	t.Run("re-auth as same user acks again", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		authenticate(t, s, conn, ft, "alice")
		sendVerb(t, s, conn, "auth", map[string]string{"id": "alice", "key": "key-alice"})
		assert.Len(t, ft.ofType("auth-ack"), 2)
	})

	t.Run("re-auth as different user fails", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		authenticate(t, s, conn, ft, "alice")
		sendVerb(t, s, conn, "auth", map[string]string{"id": "bob", "key": "key-bob"})
		waitFrame(t, ft, "auth-err")
		assert.Equal(t, "alice", conn.User().ID())
	})
}

func TestJoinVerb(t *testing.T) {
	t.Run("requires auth", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		sendVerb(t, s, conn, "join", map[string]string{"id": "r1"})
		frame := waitFrame(t, ft, "join-err")

		args := decodeArgs[errorArgs](t, frame)
		assert.Equal(t, "not authenticated", args.Message)
		assert.Equal(t, 0, s.RoomCount())
	})

	t.Run("ack carries transition flags", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		ack := joinRoom(t, s, conn, ft, "r1")
		args := decodeArgs[joinAckArgs](t, ack)
		assert.True(t, args.RoomFirst)
		assert.True(t, args.UserFirst)

		// Second join of the same room still acks, with both flags false.
		ack = joinRoom(t, s, conn, ft, "r1")
		args = decodeArgs[joinAckArgs](t, ack)
		assert.False(t, args.RoomFirst)
		assert.False(t, args.UserFirst)
	})

	t.Run("missing room id", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		sendVerb(t, s, conn, "join", nil)
		waitFrame(t, ft, "join-err")
	})

	t.Run("unknown channel", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		sendVerb(t, s, conn, "join", map[string]string{"id": "ops/deploys"})
		frame := waitFrame(t, ft, "join-err")

		args := decodeArgs[errorArgs](t, frame)
		assert.Equal(t, "unknown channel", args.Message)
		assert.Equal(t, 0, s.RoomCount())
	})

	t.Run("channel denial leaves no membership", func(t *testing.T) {
		s := newTestServer(t)
		s.AuthorizeChannel("admins", func(ctx context.Context, u User, roomID string) (bool, error) {
			return false, nil
		})
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		sendVerb(t, s, conn, "join", map[string]string{"id": "admins/x"})
		frame := waitFrame(t, ft, "join-err")

		args := decodeArgs[errorArgs](t, frame)
		assert.Equal(t, "permission denied", args.Message)
		assert.Equal(t, 0, s.RoomCount())
	})

	t.Run("channel error propagates", func(t *testing.T) {
		s := newTestServer(t)
		s.AuthorizeChannel("flaky", func(ctx context.Context, u User, roomID string) (bool, error) {
			return false, errors.New("store down")
		})
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		sendVerb(t, s, conn, "join", map[string]string{"id": "flaky/r"})
		frame := waitFrame(t, ft, "join-err")

		args := decodeArgs[errorArgs](t, frame)
		assert.Equal(t, "channel authorization failed", args.Message)
	})

	t.Run("channel grant admits", func(t *testing.T) {
		s := newTestServer(t)
		s.AuthorizeChannel("admins", func(ctx context.Context, u User, roomID string) (bool, error) {
			return u.ID() == "alice", nil
		})
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		joinRoom(t, s, conn, ft, "admins/x")
		assert.Len(t, s.UsersInRoom("admins/x"), 1)
	})

	t.Run("pending authorization on closed connection is a no-op", func(t *testing.T) {
		s := newTestServer(t)

		release := make(chan struct{})
		s.AuthorizeChannel("slow", func(ctx context.Context, u User, roomID string) (bool, error) {
			<-release
			return true, nil
		})

		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		sendVerb(t, s, conn, "join", map[string]string{"id": "slow/r"})

		// The connection dies while the check is pending.
		s.handleDisconnect(conn, "test close")
		close(release)

		// The eventual completion must not resurrect membership.
		require.Never(t, func() bool {
			return s.RoomCount() != 0
		}, 100*time.Millisecond, 10*time.Millisecond)
	})

	t.Run("authorization losing the race to cleanup cannot restore membership", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		// Replay the worst interleaving: the pending goroutine observes the
		// connection alive, is preempted, and the full disconnect cleanup
		// runs before its membership insert.
		require.True(t, conn.Alive())
		s.handleDisconnect(conn, "peer gone")

		_, ok := s.members.join(conn, "r1")
		assert.False(t, ok)
		assert.Equal(t, 0, s.RoomCount())
	})
}

func TestLeaveVerb(t *testing.T) {
	t.Run("leave and flags", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")
		joinRoom(t, s, conn, ft, "r1")

		sendVerb(t, s, conn, "leave", map[string]string{"id": "r1"})
		frame := waitFrame(t, ft, "leave-ack")

		args := decodeArgs[leaveAckArgs](t, frame)
		assert.True(t, args.UserLast)
		assert.True(t, args.RoomLast)
		assert.Equal(t, 0, s.RoomCount())
	})

	t.Run("leaving a room not joined still acks", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		var leaves int
		s.OnLeave(func(LeaveEvent) { leaves++ })

		sendVerb(t, s, conn, "leave", map[string]string{"id": "nowhere"})
		frame := waitFrame(t, ft, "leave-ack")

		args := decodeArgs[leaveAckArgs](t, frame)
		assert.False(t, args.UserLast)
		assert.False(t, args.RoomLast)
		assert.Zero(t, leaves)
	})

	t.Run("requires auth", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		sendVerb(t, s, conn, "leave", map[string]string{"id": "r1"})
		waitFrame(t, ft, "leave-err")
	})
}

func TestPassthroughVerbs(t *testing.T) {
	t.Run("requires auth", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		sendVerb(t, s, conn, "chat", map[string]string{"text": "hi"})
		frame := waitFrame(t, ft, "chat-err")

		args := decodeArgs[errorArgs](t, frame)
		assert.Equal(t, "not authenticated", args.Message)
	})

	t.Run("round trips args to listeners", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")
		joinRoom(t, s, conn, ft, "r1")

		var got []VerbEvent
		s.OnVerb("chat", func(e VerbEvent) { got = append(got, e) })

		sendVerb(t, s, conn, "chat", map[string]string{"text": "hi"})

		require.Len(t, got, 1)
		assert.Equal(t, "chat", got[0].Verb)
		assert.Same(t, conn, got[0].Conn)

		var args map[string]string
		require.NoError(t, json.Unmarshal(got[0].Args, &args))
		assert.Equal(t, map[string]string{"text": "hi"}, args)
	})

	t.Run("fallback listener sees every verb", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")

		var verbs []string
		s.OnAnyVerb(func(e VerbEvent) { verbs = append(verbs, e.Verb) })

		sendVerb(t, s, conn, "embed", nil)
		sendVerb(t, s, conn, "open-sessions", nil)
		assert.Equal(t, []string{"embed", "open-sessions"}, verbs)
	})
}

func TestMalformedFrames(t *testing.T) {
	t.Run("invalid json is dropped silently", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		s.handleData(conn, []byte(`{"type":`))
		s.handleData(conn, []byte(`[1,2,3]`))

		assert.Empty(t, ft.all())
	})

	t.Run("missing type gets a generic error", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		s.handleData(conn, []byte(`{"args":{"id":"r1"}}`))
		frame := waitFrame(t, ft, "-err")

		args := decodeArgs[errorArgs](t, frame)
		assert.Equal(t, "missing frame type", args.Message)
	})

	t.Run("connection survives bad frames", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)

		s.handleData(conn, []byte(`garbage`))
		authenticate(t, s, conn, ft, "alice")
		assert.True(t, conn.Authenticated())
	})
}

func TestDisconnectCleanup(t *testing.T) {
	t.Run("authenticated connection leaves all rooms", func(t *testing.T) {
		s := newTestServer(t)
		conn, ft := connect(t, s)
		authenticate(t, s, conn, ft, "alice")
		joinRoom(t, s, conn, ft, "a")
		joinRoom(t, s, conn, ft, "b")

		var (
			mu          sync.Mutex
			leaves      = map[string]LeaveEvent{}
			disconnects []DisconnectEvent
		)
		s.OnLeave(func(e LeaveEvent) {
			mu.Lock()
			leaves[e.RoomID] = e
			mu.Unlock()
		})
		s.OnDisconnect(func(e DisconnectEvent) {
			mu.Lock()
			disconnects = append(disconnects, e)
			mu.Unlock()
		})

		s.handleDisconnect(conn, "peer gone")

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, leaves, 2)
		for _, roomID := range []string{"a", "b"} {
			assert.True(t, leaves[roomID].UserLast)
			assert.True(t, leaves[roomID].RoomLast)
		}
		require.Len(t, disconnects, 1)
		assert.True(t, disconnects[0].WasAuthenticated)
		assert.True(t, disconnects[0].WasLastForUser)
		assert.Equal(t, 0, s.RoomCount())
		assert.Equal(t, 0, s.ConnectionCount())
	})

	t.Run("multi-tab user keeps presence until last close", func(t *testing.T) {
		s := newTestServer(t)
		c1, ft1 := connect(t, s)
		c2, ft2 := connect(t, s)
		authenticate(t, s, c1, ft1, "alice")
		authenticate(t, s, c2, ft2, "alice")
		joinRoom(t, s, c1, ft1, "r1")
		joinRoom(t, s, c2, ft2, "r1")

		var disconnects []DisconnectEvent
		s.OnDisconnect(func(e DisconnectEvent) { disconnects = append(disconnects, e) })

		s.handleDisconnect(c1, "tab closed")
		require.Len(t, disconnects, 1)
		assert.False(t, disconnects[0].WasLastForUser)
		assert.Len(t, s.UsersInRoom("r1"), 1)

		s.handleDisconnect(c2, "tab closed")
		require.Len(t, disconnects, 2)
		assert.True(t, disconnects[1].WasLastForUser)
		assert.Equal(t, 0, s.RoomCount())
	})

	t.Run("unauthenticated close", func(t *testing.T) {
		s := newTestServer(t)
		conn, _ := connect(t, s)

		var disconnects []DisconnectEvent
		s.OnDisconnect(func(e DisconnectEvent) { disconnects = append(disconnects, e) })

		s.handleDisconnect(conn, "gone")
		require.Len(t, disconnects, 1)
		assert.False(t, disconnects[0].WasAuthenticated)
		assert.False(t, disconnects[0].WasLastForUser)
	})
}

func TestJoinEmitsEvents(t *testing.T) {
	s := newTestServer(t)
	c1, ft1 := connect(t, s)
	c2, ft2 := connect(t, s)
	authenticate(t, s, c1, ft1, "alice")
	authenticate(t, s, c2, ft2, "bob")

	var (
		mu     sync.Mutex
		events []JoinEvent
	)
	s.OnJoin(func(e JoinEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	joinRoom(t, s, c1, ft1, "r1")
	joinRoom(t, s, c2, ft2, "r1")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.True(t, events[0].RoomFirst)
	assert.True(t, events[0].UserFirstInRoom)
	assert.False(t, events[1].RoomFirst)
	assert.True(t, events[1].UserFirstInRoom)
}
