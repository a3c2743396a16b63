package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestVerifyLegacyPassword(t *testing.T) {
	digest, err := bcrypt.GenerateFromPassword([]byte("test"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := VerifyLegacyPassword(string(digest), "test")
	if err != nil {
		t.Fatalf("VerifyLegacyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected legacy password to verify")
	}

	ok, err = VerifyLegacyPassword(string(digest), "wrong")
	if err != nil {
		t.Fatalf("VerifyLegacyPassword: %v", err)
	}
	if ok {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestVerifyLegacyPasswordBadDigest(t *testing.T) {
	if _, err := VerifyLegacyPassword("not-a-bcrypt-hash", "test"); err == nil {
		t.Fatalf("expected error for malformed digest")
	}
}

func TestNewAPIToken(t *testing.T) {
	t1, err := NewAPIToken()
	if err != nil {
		t.Fatalf("NewAPIToken: %v", err)
	}
	if len(t1) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(t1))
	}
	t2, err := NewAPIToken()
	if err != nil {
		t.Fatalf("NewAPIToken: %v", err)
	}
	if t1 == t2 {
		t.Fatalf("expected distinct tokens")
	}
}
