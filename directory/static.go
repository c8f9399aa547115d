// Package directory provides implementations of the roomcast user-lookup
// collaborator: a static in-memory directory for development and tests, and
// a Redis-backed one for deployments whose identity records live in Redis.
//
// Both validate presented auth keys against the derived key
// roomcast.DeriveAuthKey(secret, userID), so a key embedded once at page
// load stays valid for the whole session.
package directory

import (
	"context"
	"sync"

	"github.com/roomcast/roomcast"
)

// Static is an in-memory user directory.
type Static struct {
	secret string

	mu    sync.RWMutex
	users map[string]*staticUser
}

// NewStatic creates a directory deriving auth keys from secret.
func NewStatic(secret string) *Static {
	return &Static{
		secret: secret,
		users:  make(map[string]*staticUser),
	}
}

var _ roomcast.Directory = (*Static)(nil)

// Add registers a user. Adding an existing id overwrites it.
func (d *Static) Add(id, name string) {
	d.mu.Lock()
	d.users[id] = &staticUser{id: id, name: name, secret: d.secret}
	d.mu.Unlock()
}

// Remove deletes a user.
func (d *Static) Remove(id string) {
	d.mu.Lock()
	delete(d.users, id)
	d.mu.Unlock()
}

// Lookup implements roomcast.Directory.
func (d *Static) Lookup(ctx context.Context, id string) (roomcast.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[id]
	if !ok {
		return nil, roomcast.ErrUnknownUser
	}
	return user, nil
}

// AuthKey returns the key a client must present to authenticate as id.
func (d *Static) AuthKey(id string) string {
	return roomcast.DeriveAuthKey(d.secret, id)
}

type staticUser struct {
	id     string
	name   string
	secret string
}

func (u *staticUser) ID() string { return u.id }

// Name returns the user's display name.
func (u *staticUser) Name() string { return u.name }

func (u *staticUser) ValidateAuthKey(key string) bool {
	return roomcast.ValidAuthKey(u.secret, u.id, key)
}
