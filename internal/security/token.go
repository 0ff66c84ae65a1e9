package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenLifetime is the default session token validity.
const DefaultTokenLifetime = 7 * 24 * time.Hour

// ErrInvalidToken indicates a token that failed signature or shape checks.
var ErrInvalidToken = errors.New("security: invalid token")

// ErrTokenExpired indicates a token past its expiry.
var ErrTokenExpired = errors.New("security: token expired")

// SessionClaims are the claims carried by a session token. TokenVersion is
// compared against the user's stored version on every protected request, so
// a password change invalidates all earlier tokens.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email        string `json:"email"`
	TokenVersion uint64 `json:"tv"`
}

// IssueSessionToken signs a session token for the given user.
func IssueSessionToken(secret []byte, userID uint64, email string, tokenVersion uint64, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
		Email:        email,
		TokenVersion: tokenVersion,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken verifies the signature and expiry of a session token
// and returns its claims.
func ParseSessionToken(secret []byte, tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("security: unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserID parses the numeric subject of the claims.
func (c *SessionClaims) UserID() (uint64, error) {
	var id uint64
	if _, err := fmt.Sscanf(c.Subject, "%d", &id); err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
