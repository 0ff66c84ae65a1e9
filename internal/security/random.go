package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// opaqueTokenBytes is the entropy of verification and reset tokens.
const opaqueTokenBytes = 32

// NewOpaqueToken generates a random token and the hex SHA-256 digest that
// is stored server-side. The raw value is handed out once and cannot be
// reconstructed from the stored hash.
func NewOpaqueToken() (raw, digest string, err error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("security: random token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashOpaqueToken(raw), nil
}

// HashOpaqueToken returns the hex SHA-256 digest of a raw opaque token.
func HashOpaqueToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEquals compares two strings without leaking the mismatch
// position through timing.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
