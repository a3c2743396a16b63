package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// VerifyLegacyPassword checks a plaintext against a bcrypt digest carried
// over from the old coffeestats installation (cryptsum column, "$2y$" ident).
// A verification error other than a plain mismatch is reported so callers can
// distinguish corrupt digests from wrong passwords.
func VerifyLegacyPassword(cryptsum, plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(cryptsum), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
