package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := hasher.Hash("Passw0rd")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$2a$"))
	assert.True(t, hasher.Verify("Passw0rd", hash))
	assert.False(t, hasher.Verify("passw0rd", hash))
	assert.False(t, hasher.Verify("", hash))
}

func TestPasswordHasherSaltsEachHash(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	first, err := hasher.Hash("Passw0rd")
	require.NoError(t, err)
	second, err := hasher.Hash("Passw0rd")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("Passw0rd", first))
	assert.True(t, hasher.Verify("Passw0rd", second))
}

func TestPasswordHasherMalformedDigest(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		assert.False(t, hasher.Verify("Passw0rd", "$2b$12$notarealhash"))
		assert.False(t, hasher.Verify("Passw0rd", ""))
	})
}

func TestNewPasswordHasherRejectsCost(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	_, err = NewPasswordHasher(1)
	assert.Error(t, err)

	hasher, err := NewPasswordHasher(DefaultBcryptCost)
	require.NoError(t, err)
	assert.Equal(t, DefaultBcryptCost, hasher.cost)
}
