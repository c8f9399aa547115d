package roomcast

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// User is an external identity resolved by id. The core only needs a stable
// identifier and a validator for the pre-shared auth key; the full record's
// lifecycle belongs to the identity service behind the Directory.
type User interface {
	// ID returns the user's stable identifier.
	ID() string

	// ValidateAuthKey reports whether the presented key matches the user's
	// derived auth key.
	ValidateAuthKey(key string) bool
}

// Directory looks up users by id. Implementations may consult any backing
// store; Lookup must return ErrUnknownUser when no such user exists.
type Directory interface {
	Lookup(ctx context.Context, id string) (User, error)
}

// DeriveAuthKey computes a user's auth key from the server-wide secret salt.
// The derivation is deterministic, so the key can be embedded once in a page
// load and reused for the socket handshake for the rest of the session.
func DeriveAuthKey(secret, userID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidAuthKey reports whether key is the derived auth key for userID under
// secret, comparing in constant time.
func ValidAuthKey(secret, userID, key string) bool {
	return hmac.Equal([]byte(DeriveAuthKey(secret, userID)), []byte(key))
}
