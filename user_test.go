package roomcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveAuthKey(t *testing.T) {
	k1 := DeriveAuthKey("secret", "alice")
	k2 := DeriveAuthKey("secret", "alice")

	// Deterministic, hex encoded, 32 bytes of HMAC-SHA256.
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)

	assert.NotEqual(t, k1, DeriveAuthKey("secret", "bob"))
	assert.NotEqual(t, k1, DeriveAuthKey("other", "alice"))
}

func TestValidAuthKey(t *testing.T) {
	key := DeriveAuthKey("secret", "alice")

	assert.True(t, ValidAuthKey("secret", "alice", key))
	assert.False(t, ValidAuthKey("secret", "bob", key))
	assert.False(t, ValidAuthKey("other", "alice", key))
	assert.False(t, ValidAuthKey("secret", "alice", ""))
}
