package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("admin123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, PasswordCost, cost)

	ok, err := VerifyPassword("admin123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("admin124", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	for _, stored := range []string{"", "admin123", "$2a$10$short"} {
		ok, err := VerifyPassword("admin123", stored)
		assert.False(t, ok, "stored=%q", stored)
		assert.ErrorIs(t, err, ErrMalformedHash, "stored=%q", stored)
	}
}
