package security

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor used for password hashing.
const BcryptCost = 12

// CredentialHasher hashes and verifies user credentials. All password
// handling goes through this interface so the algorithm lives in one place.
type CredentialHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// BcryptHasher implements CredentialHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher constructs a BcryptHasher with the default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: BcryptCost}
}

// Hash returns the bcrypt digest of plain.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("security: hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest.
func (h *BcryptHasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// dummyDigest is a valid bcrypt digest of an unguessable value. Failed
// lookups compare against it so response latency does not reveal whether
// an email is registered.
const dummyDigest = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// VerifyDummy burns a bcrypt comparison against a fixed digest.
func (h *BcryptHasher) VerifyDummy(plain string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyDigest), []byte(plain))
}

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidPassword reports whether the password meets the strength policy:
// at least MinPasswordLength characters with upper case, lower case,
// a digit, and a symbol.
func ValidPassword(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
