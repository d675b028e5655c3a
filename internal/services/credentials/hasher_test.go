package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/ari-accounts/internal/dependencies/random"
	"github.com/mcoot/ari-accounts/internal/model"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(TestHasherConfig(), random.New())
	require.NoError(t, err)
	return h
}

func TestHashHasFixedLength(t *testing.T) {
	h := newTestHasher(t)

	for _, secret := range []string{"x", "123456", strings.Repeat("long", 256)} {
		encoded, err := h.Hash(secret)
		require.NoError(t, err)
		assert.Len(t, encoded, model.EncodedHashLen)
		assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))
	}
}

func TestWidestEncodingFitsPaddedLength(t *testing.T) {
	// 32-byte salt and 512-byte key in base64, with large cost parameters
	encoded := "$argon2id$v=19$m=4194304,t=100,p=255$" + strings.Repeat("A", 44) + "$" + strings.Repeat("A", 684)

	padded, err := pad(encoded)
	require.NoError(t, err)
	assert.Len(t, padded, model.EncodedHashLen)
	assert.Equal(t, encoded, unpad(padded))
}

func TestVerifyRoundTrip(t *testing.T) {
	h := newTestHasher(t)
	encoded, err := h.Hash("correct horse")
	require.NoError(t, err)

	ok, err := h.Verify("correct horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong horse", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaltsDiffer(t *testing.T) {
	h := newTestHasher(t)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	h := newTestHasher(t)

	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=18$m=1024,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA",
		"$argon2id$v=19$m=1024,t=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$AAAA",
	} {
		ok, err := h.Verify("secret", encoded)
		assert.Error(t, err, encoded)
		assert.False(t, ok)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := newTestHasher(t)
	encoded, err := weak.Hash("secret")
	require.NoError(t, err)

	stale, err := weak.NeedsUpgrade(encoded)
	require.NoError(t, err)
	assert.False(t, stale)

	cfg := TestHasherConfig()
	cfg.Time = 2
	strong, err := NewHasher(cfg, random.New())
	require.NoError(t, err)

	stale, err = strong.NeedsUpgrade(encoded)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestBcryptHashesVerifyAndNeedUpgrade(t *testing.T) {
	h := newTestHasher(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("old secret"), bcrypt.MinCost)
	require.NoError(t, err)
	encoded, err := pad(string(legacy))
	require.NoError(t, err)

	ok, err := h.Verify("old secret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("other", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	stale, err := h.NeedsUpgrade(encoded)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cfg := TestHasherConfig()
	cfg.Memory = 8
	_, err := NewHasher(cfg, random.New())
	assert.ErrorIs(t, err, ErrInvalidHashParam)

	cfg = TestHasherConfig()
	cfg.SaltLength = 4
	_, err = NewHasher(cfg, random.New())
	assert.ErrorIs(t, err, ErrInvalidHashParam)
}
