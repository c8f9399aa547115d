package roomcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport records outbound frames instead of writing to a socket.
type fakeTransport struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (f *fakeTransport) Send(data []byte) error {
	frame, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.frames = append(f.frames, *frame)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close(reason string) {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeTransport) all() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Frame(nil), f.frames...)
}

func (f *fakeTransport) ofType(typ string) []Frame {
	var out []Frame
	for _, frame := range f.all() {
		if frame.Type == typ {
			out = append(out, frame)
		}
	}
	return out
}

// waitFrame blocks until the transport has received a frame of the given
// type. Join acknowledgements arrive asynchronously, so most router tests
// go through here.
func waitFrame(t *testing.T, f *fakeTransport, typ string) Frame {
	t.Helper()
	var got Frame
	require.Eventually(t, func() bool {
		frames := f.ofType(typ)
		if len(frames) == 0 {
			return false
		}
		got = frames[len(frames)-1]
		return true
	}, time.Second, 2*time.Millisecond, "no %q frame arrived", typ)
	return got
}

// testUser is a minimal User for tests.
type testUser struct {
	id  string
	key string
}

func (u *testUser) ID() string { return u.id }

func (u *testUser) ValidateAuthKey(key string) bool { return key == u.key }

// testDirectory is an in-package Directory so core tests need not import
// the directory package.
type testDirectory struct {
	users map[string]*testUser
}

func newTestDirectory(ids ...string) *testDirectory {
	d := &testDirectory{users: make(map[string]*testUser)}
	for _, id := range ids {
		d.users[id] = &testUser{id: id, key: "key-" + id}
	}
	return d
}

func (d *testDirectory) Lookup(ctx context.Context, id string) (User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, ErrUnknownUser
	}
	return user, nil
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(newTestDirectory("alice", "bob", "carol"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// connect attaches a fake transport and returns the pair.
func connect(t *testing.T, s *Server) (*Conn, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	return s.Attach(ft), ft
}

// authenticate runs the auth verb for a known test user and waits for the
// ack.
func authenticate(t *testing.T, s *Server, conn *Conn, ft *fakeTransport, id string) {
	t.Helper()
	sendVerb(t, s, conn, "auth", map[string]string{"id": id, "key": "key-" + id})
	waitFrame(t, ft, "auth-ack")
}

// joinRoom runs the join verb and waits for the ack.
func joinRoom(t *testing.T, s *Server, conn *Conn, ft *fakeTransport, roomID string) Frame {
	t.Helper()
	before := len(ft.ofType("join-ack"))
	sendVerb(t, s, conn, "join", map[string]string{"id": roomID})
	var got Frame
	require.Eventually(t, func() bool {
		acks := ft.ofType("join-ack")
		if len(acks) <= before {
			return false
		}
		got = acks[len(acks)-1]
		return true
	}, time.Second, 2*time.Millisecond, "no join-ack arrived")
	return got
}

// sendVerb feeds one frame into the router as if it arrived on the wire.
func sendVerb(t *testing.T, s *Server, conn *Conn, verb string, args any) {
	t.Helper()
	data, err := EncodeFrame(verb, args)
	require.NoError(t, err)
	s.handleData(conn, data)
}

func decodeArgs[T any](t *testing.T, frame Frame) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(frame.Args, &out))
	return out
}
