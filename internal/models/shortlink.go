package models

import "time"

// ShortLink maps a short code to a destination URL.
type ShortLink struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code    string `gorm:"type:text;not null;uniqueIndex"` // Globally unique short code or alias.
	LongURL string `gorm:"type:text;not null"`             // Destination URL.

	UserID uint64 `gorm:"not null;index"`       // Owning user.
	User   *User  `gorm:"foreignKey:UserID"`    // Owning user record.

	// Clicks equals the number of ClickEvent rows for this link; both are
	// written in the same transaction by the resolver.
	Clicks uint64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ClickEvent records a single successful resolution of a short link.
type ClickEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ShortLinkID uint64 `gorm:"not null;index"` // Resolved link.
	UserID      uint64 `gorm:"not null;index"` // Link owner, denormalized for analytics scans.

	OccurredAt time.Time `gorm:"not null;index"` // Resolution timestamp.
}
