package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// NewAPIToken returns a 32-hex-char opaque credential for on-the-run and
// v1 API submissions. The original derived this from username+password
// material; a random value keeps the uniqueness contract without leaking
// anything derivable.
func NewAPIToken() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// NewActionCode returns an unguessable single-use action code.
func NewActionCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read action code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewClientCredentials returns an OAuth2 client_id / client_secret pair.
func NewClientCredentials() (string, string, error) {
	var id [20]byte
	if _, err := rand.Read(id[:]); err != nil {
		return "", "", fmt.Errorf("read client id: %w", err)
	}
	secret := make([]byte, 40)
	if _, err := rand.Read(secret); err != nil {
		return "", "", fmt.Errorf("read client secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(id[:]), base64.RawURLEncoding.EncodeToString(secret), nil
}
