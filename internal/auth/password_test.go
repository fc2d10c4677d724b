package auth

import (
	"strings"
	"testing"

	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.Hash("Passw0rd")
	require.NoError(t, err)
	second, err := h.Hash("Passw0rd")
	require.NoError(t, err)

	assert.NotEqual(t, "Passw0rd", first)
	assert.NotEqual(t, first, second, "each hash is salted")
	assert.True(t, h.Verify("Passw0rd", first))
	assert.True(t, h.Verify("Passw0rd", second))
	assert.False(t, h.Verify("passw0rd", first))
	assert.False(t, h.Verify("Passw0rd", ""))
	assert.False(t, h.Verify("Passw0rd", "not-a-hash"))

	_, err = h.Hash("")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = h.Hash("Aa1" + strings.Repeat("x", 80))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = h.Hash("Aa1" + strings.Repeat("x", 69))
	assert.NoError(t, err, "72 bytes is the limit")
}

func TestPasswordHasherCost(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("Passw0rd")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
}
