package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Passwords are stored as argon2id PHC strings. Legacy accounts imported
// from the old site carry a bcrypt digest instead; see legacy.go for the
// migration path.

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLen     uint32
	keyLen      uint32
}

var currentParams = argon2Params{
	memory:      64 * 1024,
	iterations:  3,
	parallelism: 2,
	saltLen:     16,
	keyLen:      32,
}

// HashPassword hashes plaintext with the current argon2id parameters and
// returns the PHC-formatted string for the password_hash column.
func HashPassword(plaintext string) (string, error) {
	salt := make([]byte, currentParams.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt,
		currentParams.iterations, currentParams.memory, currentParams.parallelism, currentParams.keyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		currentParams.memory,
		currentParams.iterations,
		currentParams.parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// VerifyPassword checks plaintext against a stored argon2id hash. The hash
// carries its own parameters, so hashes written with older cost settings
// keep verifying after currentParams changes.
func VerifyPassword(hash, plaintext string) (bool, error) {
	params, salt, key, err := parseArgon2idHash(hash)
	if err != nil {
		return false, err
	}

	otherKey := argon2.IDKey([]byte(plaintext), salt, params.iterations, params.memory, params.parallelism, params.keyLen)
	return subtle.ConstantTimeCompare(key, otherKey) == 1, nil
}

func parseArgon2idHash(hash string) (argon2Params, []byte, []byte, error) {
	fail := func(msg string) (argon2Params, []byte, []byte, error) {
		return argon2Params{}, nil, nil, errors.New(msg)
	}

	var version int
	var p argon2Params
	var saltB64, keyB64 string
	n, err := fmt.Sscanf(hash, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		&version, &p.memory, &p.iterations, &p.parallelism, &saltB64)
	if err != nil || n != 5 {
		return fail("invalid argon2id hash format")
	}
	if version != argon2.Version {
		return fail("unsupported argon2 version")
	}

	// Sscanf's %s is greedy; the final field still holds "salt$key".
	var ok bool
	saltB64, keyB64, ok = cutLast(saltB64)
	if !ok {
		return fail("invalid argon2id hash format")
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return fail("invalid argon2 salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(keyB64)
	if err != nil {
		return fail("invalid argon2 key")
	}
	p.saltLen = uint32(len(salt))
	p.keyLen = uint32(len(key))
	if p.saltLen == 0 || p.keyLen == 0 {
		return fail("invalid argon2 salt/key")
	}

	return p, salt, key, nil
}

func cutLast(s string) (before, after string, found bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '$' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
