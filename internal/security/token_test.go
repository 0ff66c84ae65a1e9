package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := IssueSessionToken(secret, 42, "user@example.com", 3, time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	claims, err := ParseSessionToken(secret, signed)
	if err != nil {
		t.Fatalf("ParseSessionToken: %v", err)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if id != 42 {
		t.Fatalf("user id = %d, want 42", id)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
	if claims.TokenVersion != 3 {
		t.Fatalf("token version = %d, want 3", claims.TokenVersion)
	}
	if claims.ID == "" {
		t.Fatal("missing jti")
	}
}

func TestParseSessionTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	past := time.Now().Add(-2 * time.Hour)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
		Email: "a@b.co",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, errParse := ParseSessionToken(secret, signed); !errors.Is(errParse, ErrTokenExpired) {
		t.Fatalf("expired token error = %v, want ErrTokenExpired", errParse)
	}
}

func TestParseSessionTokenRejectsTampering(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := IssueSessionToken(secret, 7, "a@b.co", 0, time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	tampered := signed[:len(signed)-2] + "xx"
	if _, errParse := ParseSessionToken(secret, tampered); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("tampered token error = %v, want ErrInvalidToken", errParse)
	}

	if _, errParse := ParseSessionToken([]byte("other-secret"), signed); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("wrong-secret error = %v, want ErrInvalidToken", errParse)
	}

	if _, errParse := ParseSessionToken(secret, "not.a.jwt"); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("garbage token error = %v, want ErrInvalidToken", errParse)
	}
}

func TestOpaqueToken(t *testing.T) {
	raw, digest, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if raw == "" || digest == "" {
		t.Fatal("empty token or digest")
	}
	if strings.Contains(raw, "+") || strings.Contains(raw, "/") {
		t.Fatalf("raw token %q is not URL-safe", raw)
	}
	if HashOpaqueToken(raw) != digest {
		t.Fatal("digest does not match recomputed hash")
	}

	raw2, digest2, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if raw == raw2 || digest == digest2 {
		t.Fatal("two tokens collided")
	}
}

func TestConstantTimeEquals(t *testing.T) {
	if !ConstantTimeEquals("abc", "abc") {
		t.Fatal("equal strings reported unequal")
	}
	if ConstantTimeEquals("abc", "abd") {
		t.Fatal("different strings reported equal")
	}
	if ConstantTimeEquals("abc", "abcd") {
		t.Fatal("different lengths reported equal")
	}
}
