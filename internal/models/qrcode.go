package models

import "time"

// QRCode is a rendered QR image for a source URL.
type QRCode struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user.
	User   *User  `gorm:"foreignKey:UserID"` // Owning user record.

	SourceURL string `gorm:"type:text;not null"` // Encoded URL.
	ImageData string `gorm:"type:text;not null"` // PNG data URL payload.

	Scans uint64 `gorm:"not null;default:0"` // Scan counter, fed by the scan collector.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ScanEvent records a single reported scan of a QR code.
type ScanEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	QRCodeID uint64 `gorm:"not null;index"` // Scanned code.
	UserID   uint64 `gorm:"not null;index"` // Code owner, denormalized for analytics scans.

	OccurredAt time.Time `gorm:"not null;index"` // Scan timestamp.
}
