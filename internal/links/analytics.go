package links

import (
	"context"
	"fmt"
	"time"

	dbutil "github.com/linkhubapp/linkhub/internal/db"
	"github.com/linkhubapp/linkhub/internal/models"
	"gorm.io/gorm"
)

// Bucket is one day of event counts.
type Bucket struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DefaultSeriesDays is the analytics window when none is requested.
const DefaultSeriesDays = 30

// maxSeriesDays caps the analytics window.
const maxSeriesDays = 365

// ClampSeriesDays normalizes a requested analytics window.
func ClampSeriesDays(days int) int {
	if days <= 0 {
		return DefaultSeriesDays
	}
	if days > maxSeriesDays {
		return maxSeriesDays
	}
	return days
}

// ClickSeries returns per-day click counts for the owner's links.
func (s *Store) ClickSeries(ctx context.Context, userID uint64, days int) ([]Bucket, error) {
	return series(ctx, s.db, &models.ClickEvent{}, userID, days)
}

// ScanSeries returns per-day scan counts for the owner's QR codes.
func (s *Store) ScanSeries(ctx context.Context, userID uint64, days int) ([]Bucket, error) {
	return series(ctx, s.db, &models.ScanEvent{}, userID, days)
}

func series(ctx context.Context, conn *gorm.DB, model any, userID uint64, days int) ([]Bucket, error) {
	days = ClampSeriesDays(days)
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	bucket := dbutil.DateBucketExpr(conn, "occurred_at")
	var out []Bucket
	errFind := conn.WithContext(ctx).Model(model).
		Select(bucket+" AS date, COUNT(*) AS count").
		Where("user_id = ? AND occurred_at >= ?", userID, cutoff).
		Group(bucket).
		Order("date ASC").
		Scan(&out).Error
	if errFind != nil {
		return nil, fmt.Errorf("links: series: %w", errFind)
	}
	return out, nil
}

// RecordScan bumps a QR code's scan counter and appends a scan event in one
// transaction. It is called by the scan collector, not by any public route.
func RecordScan(ctx context.Context, conn *gorm.DB, qrCodeID uint64) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.QRCode{}).
			Where("id = ?", qrCodeID).
			UpdateColumn("scans", gorm.Expr("scans + 1"))
		if res.Error != nil {
			return fmt.Errorf("links: record scan update: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var code models.QRCode
		if errFind := tx.First(&code, qrCodeID).Error; errFind != nil {
			return fmt.Errorf("links: record scan fetch: %w", errFind)
		}
		event := models.ScanEvent{
			QRCodeID:   code.ID,
			UserID:     code.UserID,
			OccurredAt: time.Now().UTC(),
		}
		if errEvent := tx.Create(&event).Error; errEvent != nil {
			return fmt.Errorf("links: record scan event: %w", errEvent)
		}
		return nil
	})
}
