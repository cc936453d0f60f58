package utils

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// NewConfirmationCode returns a fresh random confirmation code.  Every
// issuance yields a different value, so re-registering invalidates the
// code that was sent before.
func NewConfirmationCode() string {
	return uuid.NewString()
}

// HashConfirmationCode returns the bcrypt hash of code using the given cost.
// Only the hash is persisted.
func HashConfirmationCode(code string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyConfirmationCode safely compares a stored hash and a submitted code.
// An empty hash never matches.
func VerifyConfirmationCode(hash, code string) bool {
	if hash == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
