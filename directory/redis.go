package directory

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/roomcast/roomcast"
)

// Redis looks users up in Redis hashes keyed "<prefix><id>". A user exists
// when its hash does; the hash's "name" field is the display name.
type Redis struct {
	rdb    *redis.Client
	secret string
	prefix string
}

// NewRedis creates a directory over an existing Redis client, verifying
// connectivity.
func NewRedis(ctx context.Context, rdb *redis.Client, secret string) (*Redis, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("directory: redis ping: %w", err)
	}
	return &Redis{rdb: rdb, secret: secret, prefix: "user:"}, nil
}

var _ roomcast.Directory = (*Redis)(nil)

// Lookup implements roomcast.Directory.
func (d *Redis) Lookup(ctx context.Context, id string) (roomcast.User, error) {
	fields, err := d.rdb.HGetAll(ctx, d.prefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("directory: redis lookup: %w", err)
	}
	if len(fields) == 0 {
		return nil, roomcast.ErrUnknownUser
	}
	return &redisUser{id: id, name: fields["name"], secret: d.secret}, nil
}

// Add writes a user record. Mostly useful for provisioning and tests; the
// identity service owning the records normally writes them.
func (d *Redis) Add(ctx context.Context, id, name string) error {
	return d.rdb.HSet(ctx, d.prefix+id, "name", name).Err()
}

// AuthKey returns the key a client must present to authenticate as id.
func (d *Redis) AuthKey(id string) string {
	return roomcast.DeriveAuthKey(d.secret, id)
}

type redisUser struct {
	id     string
	name   string
	secret string
}

func (u *redisUser) ID() string { return u.id }

// Name returns the user's display name.
func (u *redisUser) Name() string { return u.name }

func (u *redisUser) ValidateAuthKey(key string) bool {
	return roomcast.ValidAuthKey(u.secret, u.id, key)
}
