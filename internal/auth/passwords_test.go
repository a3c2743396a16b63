package auth

import (
	"strings"
	"testing"
)

func TestHashPasswordNonDeterministic(t *testing.T) {
	p := "flat white, no sugar"
	h1, err := HashPassword(p)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword(p)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected different hashes for same password")
	}
	if !strings.HasPrefix(h1, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format %q", h1)
	}
}

func TestVerifyPassword(t *testing.T) {
	p := "flat white, no sugar"
	h, err := HashPassword(p)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword(h, p)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to verify")
	}

	ok, err = VerifyPassword(h, "wrong password")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestVerifyPasswordOldCostSettings(t *testing.T) {
	// A hash written before the parameters were raised must keep verifying.
	saved := currentParams
	currentParams = argon2Params{memory: 16 * 1024, iterations: 1, parallelism: 1, saltLen: 16, keyLen: 32}
	h, err := HashPassword("morning mate")
	currentParams = saved
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword(h, "morning mate")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected hash with old parameters to verify")
	}
}

func TestVerifyPasswordRejectsMalformed(t *testing.T) {
	for _, h := range []string{
		"",
		"not a hash",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$a2V5",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=3,p=2$c2FsdA",
	} {
		if _, err := VerifyPassword(h, "anything"); err == nil {
			t.Errorf("expected error for %q", h)
		}
	}
}
