package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := newHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestHasher_HashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("Secr3t!2")
	require.NoError(t, err)
	assert.NotEqual(t, "Secr3t!2", hash)
	assert.False(t, strings.Contains(hash, "Secr3t!2"))

	assert.True(t, h.Verify("Secr3t!2", hash))
	assert.False(t, h.Verify("secr3t!2", hash))
	assert.False(t, h.Verify("", hash))
	assert.False(t, h.Verify("Secr3t!2", "not-a-hash"))
}

func TestHasher_SaltsEveryHash(t *testing.T) {
	h := newTestHasher(t)

	first, err := h.Hash("password123")
	require.NoError(t, err)
	second, err := h.Hash("password123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("password123", first))
	assert.True(t, h.Verify("password123", second))
}

func TestHasher_VerifyDummy(t *testing.T) {
	h := newTestHasher(t)
	assert.False(t, h.VerifyDummy("dummy-password-0"))
	assert.False(t, h.VerifyDummy("anything"))
}

func TestHasher_NeedsRehash(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("password123")
	require.NoError(t, err)
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, h.NeedsRehash("garbage"))

	other, err := newHasher(bcrypt.MinCost + 1)
	require.NoError(t, err)
	assert.True(t, other.NeedsRehash(hash))
}

func TestNewHasher_UsesFixedCost(t *testing.T) {
	h, err := NewHasher()
	require.NoError(t, err)
	assert.Equal(t, Cost, h.cost)

	cost, err := bcrypt.Cost(h.dummy)
	require.NoError(t, err)
	assert.Equal(t, Cost, cost)
}
