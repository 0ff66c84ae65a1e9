// Package shortcode generates the compact identifiers behind short URLs.
package shortcode

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

// alphabet is the 64-symbol URL-safe character set for generated codes.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// DefaultCodeLength gives roughly 2^42 possible codes, far beyond any
// realistic mapping-table size.
const DefaultCodeLength = 7

// Alias length bounds for user-chosen codes.
const (
	MinAliasLength = 3
	MaxAliasLength = 50
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Generator produces random short codes. It makes no persistence guarantee;
// callers must rely on the store's unique index and retry on collision.
type Generator struct {
	length int
}

// NewGenerator creates a Generator with the given code length.
func NewGenerator(length int) *Generator {
	if length < 1 {
		length = DefaultCodeLength
	}
	return &Generator{length: length}
}

// NewDefaultGenerator creates a Generator with the default code length.
func NewDefaultGenerator() *Generator {
	return NewGenerator(DefaultCodeLength)
}

// Generate returns a new random code using crypto/rand.
func (g *Generator) Generate() (string, error) {
	out := make([]byte, g.length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// Length returns the configured code length.
func (g *Generator) Length() int {
	return g.length
}

// ValidAlias reports whether a user-chosen alias satisfies the length and
// character constraints. Uniqueness is checked separately by the store.
func ValidAlias(alias string) bool {
	if len(alias) < MinAliasLength || len(alias) > MaxAliasLength {
		return false
	}
	return aliasPattern.MatchString(alias)
}
