package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasherRoundTrip(t *testing.T) {
	h := newPasswordHasher(testHashParams)
	encoded, err := h.Hash("password1")
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$v=19$m=1024,t=1,p=1$")

	ok, err := h.Verify(encoded, "password1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(encoded, "password2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, h.NeedsRehash(encoded))
}

func TestPasswordHasherRejectsForeignFormats(t *testing.T) {
	h := newPasswordHasher(testHashParams)
	for _, encoded := range []string{
		"",
		"plain",
		"$2a$10$abcdefghijklmnopqrstuv",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
	} {
		_, err := h.Verify(encoded, "password1")
		assert.Error(t, err, encoded)
	}
}

func TestPasswordHasherDefaults(t *testing.T) {
	h := newPasswordHasher(Argon2idParams{})
	assert.Equal(t, defaultArgon2idParams(), h.params)
}
