package models

import (
	"time"

	"gorm.io/datatypes"
)

// LoginAttemptThreshold is the number of consecutive failed logins
// before an account is locked.
const LoginAttemptThreshold = 5

// LockoutWindow is how long a locked account stays locked.
const LockoutWindow = 2 * time.Hour

// PasswordHistoryLimit caps how many previous password hashes are retained.
const PasswordHistoryLimit = 5

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Email address, stored lowercase.
	FullName string `gorm:"type:text"`                      // Display name.

	PasswordHash string  `gorm:"type:text"`         // Bcrypt hash; empty for Google-only accounts.
	GoogleID     *string `gorm:"type:text;unique"`  // Google subject ID when linked.
	PictureURL   string  `gorm:"type:text"`         // Profile picture URL.
	Verified     bool    `gorm:"not null;default:false"` // Whether the email is verified.

	LoginAttempts int        `gorm:"not null;default:0"` // Consecutive failed login count.
	LockUntil     *time.Time // Lockout expiry; nil when unlocked.

	// PasswordHistory holds the most recent previous password hashes,
	// newest last, as [{"hash": "...", "changed_at": "..."}].
	PasswordHistory datatypes.JSON `gorm:"type:jsonb"`

	// TokenVersion invalidates previously issued session tokens when bumped.
	TokenVersion uint64 `gorm:"not null;default:0"`

	TOTPSecret string `gorm:"type:text"` // TOTP secret when a second factor is enabled.

	VerifyTokenHash   string     `gorm:"type:text"` // SHA-256 of the pending email verification token.
	VerifyTokenExpiry *time.Time // Verification token expiry.
	ResetTokenHash    string     `gorm:"type:text"` // SHA-256 of the pending password reset token.
	ResetTokenExpiry  *time.Time // Reset token expiry.

	LastLoginAt *time.Time // Last successful login time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// PasswordHistoryEntry is one retained previous password hash.
type PasswordHistoryEntry struct {
	Hash      string    `json:"hash"`
	ChangedAt time.Time `json:"changed_at"`
}

// Locked reports whether the account is locked at the given time.
func (u *User) Locked(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}
