package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$v=19$m=8192,t=1,p=1$")

	ok, err := h.Verify("correct horse battery", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := testHasher(t)
	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	h := testHasher(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Verify("legacy-pass", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("nope", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestVerifyRejectsUnknownFormats(t *testing.T) {
	h := testHasher(t)
	for _, encoded := range []string{"", "plaintext", "$argon2id$v=19$bad$x$y", "$md5$abc"} {
		ok, err := h.Verify("anything", encoded)
		assert.False(t, ok, encoded)
		assert.ErrorIs(t, err, ErrInvalidHash, encoded)
	}
}

func TestNeedsRehashOnWeakerParams(t *testing.T) {
	weak := testHasher(t)
	encoded, err := weak.Hash("pw-0123456789")
	require.NoError(t, err)

	strong, err := NewHasher(Config{Memory: 16 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	assert.True(t, strong.NeedsRehash(encoded))
	assert.False(t, weak.NeedsRehash(encoded))
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	_, err := NewHasher(Config{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
