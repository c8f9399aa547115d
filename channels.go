package roomcast

import (
	"context"
	"strings"
	"sync"
)

// ChannelAuthFunc decides whether a user may join a room in the channel it
// guards. It may block on external permission stores; every join runs its
// check independently, so one slow check never holds up other connections.
type ChannelAuthFunc func(ctx context.Context, user User, roomID string) (bool, error)

// ChannelOf returns the channel a room belongs to: the room id segment
// before the first '/', or the empty string when there is none.
func ChannelOf(roomID string) string {
	if i := strings.IndexByte(roomID, '/'); i >= 0 {
		return roomID[:i]
	}
	return ""
}

// channelRegistry maps channel names to authorization functions.
// Registration is additive and overwriting; there is no removal.
type channelRegistry struct {
	mu    sync.RWMutex
	funcs map[string]ChannelAuthFunc
}

func newChannelRegistry() *channelRegistry {
	r := &channelRegistry{funcs: make(map[string]ChannelAuthFunc)}

	// The default channel unconditionally authorizes.
	r.register("", func(ctx context.Context, user User, roomID string) (bool, error) {
		return true, nil
	})
	return r
}

func (r *channelRegistry) register(channel string, fn ChannelAuthFunc) {
	r.mu.Lock()
	r.funcs[channel] = fn
	r.mu.Unlock()
}

// lookup returns the channel's authorization function. An unregistered
// channel is a join error, not a default deny.
func (r *channelRegistry) lookup(channel string) (ChannelAuthFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[channel]
	return fn, ok
}
