package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor used for new hashes.
const PasswordCost = 10

// HashPassword returns a bcrypt hash of password suitable for VerifyPassword.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares password against a stored bcrypt hash.
// A mismatch is (false, nil). A stored value that is not a bcrypt hash,
// including a plaintext password saved by mistake, is (false, ErrMalformedHash).
func VerifyPassword(password, storedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
}

// dummyHash is compared against when the username is unknown so that both
// failure paths spend the same bcrypt time.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("dunes-timing-equaliser"), PasswordCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}
	return hash
})

func burnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
}
