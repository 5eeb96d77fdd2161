package security

import (
	"errors"
	"testing"
	"time"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("tr4ffic-s3cret")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "tr4ffic-s3cret" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !VerifyPassword(hash, "tr4ffic-s3cret") {
		t.Fatalf("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestVerifyPasswordEmptyHash(t *testing.T) {
	if VerifyPassword("", "anything") {
		t.Fatalf("empty hash must never verify")
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := CreateSessionToken("unit-secret", "ops@city.example", time.Hour)
	if err != nil {
		t.Fatalf("CreateSessionToken returned error: %v", err)
	}

	claims, errParse := ParseSessionToken("unit-secret", token)
	if errParse != nil {
		t.Fatalf("ParseSessionToken returned error: %v", errParse)
	}
	if claims.Email() != "ops@city.example" {
		t.Fatalf("unexpected subject %q", claims.Email())
	}
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := CreateSessionToken("secret-a", "ops@city.example", time.Hour)
	if err != nil {
		t.Fatalf("CreateSessionToken returned error: %v", err)
	}
	if _, errParse := ParseSessionToken("secret-b", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestSessionTokenExpired(t *testing.T) {
	token, err := CreateSessionToken("unit-secret", "ops@city.example", time.Nanosecond)
	if err != nil {
		t.Fatalf("CreateSessionToken returned error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, errParse := ParseSessionToken("unit-secret", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected expired token error, got %v", errParse)
	}
}

func TestCreateSessionTokenRejectsBadInput(t *testing.T) {
	if _, err := CreateSessionToken("", "ops@city.example", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := CreateSessionToken("unit-secret", "ops@city.example", 0); err == nil {
		t.Fatalf("expected error for non-positive expiry")
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(16)
	if err != nil {
		t.Fatalf("GenerateRandomString returned error: %v", err)
	}
	b, err := GenerateRandomString(16)
	if err != nil {
		t.Fatalf("GenerateRandomString returned error: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("expected 32 hex chars, got %d and %d", len(a), len(b))
	}
	if a == b {
		t.Fatalf("expected distinct random strings")
	}
}
