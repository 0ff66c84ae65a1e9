// Package links persists short link mappings and resolves them under load.
package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	dbutil "github.com/linkhubapp/linkhub/internal/db"
	"github.com/linkhubapp/linkhub/internal/models"
	"github.com/linkhubapp/linkhub/internal/shortcode"
	"gorm.io/gorm"
)

// Errors returned by the link store.
var (
	// ErrInvalidURL indicates a destination that is not an absolute
	// http/https URL within the length limit.
	ErrInvalidURL = errors.New("links: invalid destination url")
	// ErrInvalidAlias indicates an alias outside the allowed shape.
	ErrInvalidAlias = errors.New("links: invalid alias")
	// ErrAliasTaken indicates the requested code already exists,
	// regardless of owner.
	ErrAliasTaken = errors.New("links: alias already taken")
	// ErrNotFound covers both unknown codes and ownership mismatches so
	// callers cannot probe for existence.
	ErrNotFound = errors.New("links: not found")
)

// MaxURLLength is the longest accepted destination URL.
const MaxURLLength = 2048

// generateAttempts bounds collision retries for generated codes. The code
// space is large enough that more than one retry is already unusual.
const generateAttempts = 5

// Store persists short links and their click accounting.
type Store struct {
	db  *gorm.DB
	gen *shortcode.Generator
}

// NewStore constructs a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, gen: shortcode.NewDefaultGenerator()}
}

// ValidDestination reports whether raw is an acceptable destination URL.
func ValidDestination(raw string) bool {
	if raw == "" || len(raw) > MaxURLLength {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// Create persists a new mapping and returns it. A supplied alias must pass
// the shape check and be globally unique; otherwise a code is generated,
// retrying on the store's unique index until one sticks.
func (s *Store) Create(ctx context.Context, longURL string, userID uint64, alias string) (*models.ShortLink, error) {
	longURL = strings.TrimSpace(longURL)
	if !ValidDestination(longURL) {
		return nil, ErrInvalidURL
	}

	alias = strings.TrimSpace(alias)
	if alias != "" {
		if !shortcode.ValidAlias(alias) {
			return nil, ErrInvalidAlias
		}
		link := models.ShortLink{Code: alias, LongURL: longURL, UserID: userID}
		if errCreate := s.db.WithContext(ctx).Create(&link).Error; errCreate != nil {
			if dbutil.IsUniqueViolation(errCreate) {
				return nil, ErrAliasTaken
			}
			return nil, fmt.Errorf("links: create: %w", errCreate)
		}
		return &link, nil
	}

	for attempt := 0; attempt < generateAttempts; attempt++ {
		code, errGen := s.gen.Generate()
		if errGen != nil {
			return nil, fmt.Errorf("links: generate code: %w", errGen)
		}
		link := models.ShortLink{Code: code, LongURL: longURL, UserID: userID}
		errCreate := s.db.WithContext(ctx).Create(&link).Error
		if errCreate == nil {
			return &link, nil
		}
		if !dbutil.IsUniqueViolation(errCreate) {
			return nil, fmt.Errorf("links: create: %w", errCreate)
		}
	}
	return nil, fmt.Errorf("links: exhausted %d code generation attempts", generateAttempts)
}

// Resolve looks up a code, bumps its click counter, appends a click event,
// and returns the destination. The counter update is a relative SQL
// increment inside one transaction, so concurrent resolutions of the same
// code never lose counts.
func (s *Store) Resolve(ctx context.Context, code string) (string, error) {
	var longURL string
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ShortLink{}).
			Where("code = ?", code).
			UpdateColumn("clicks", gorm.Expr("clicks + 1"))
		if res.Error != nil {
			return fmt.Errorf("links: resolve update: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var link models.ShortLink
		if errFind := tx.Where("code = ?", code).First(&link).Error; errFind != nil {
			return fmt.Errorf("links: resolve fetch: %w", errFind)
		}

		event := models.ClickEvent{
			ShortLinkID: link.ID,
			UserID:      link.UserID,
			OccurredAt:  time.Now().UTC(),
		}
		if errEvent := tx.Create(&event).Error; errEvent != nil {
			return fmt.Errorf("links: record click: %w", errEvent)
		}

		longURL = link.LongURL
		return nil
	})
	if errTx != nil {
		return "", errTx
	}
	return longURL, nil
}

// Sort fields accepted by List.
const (
	SortByCreatedAt = "created_at"
	SortByClicks    = "clicks"
)

// ListOptions filters and orders an owner's links.
type ListOptions struct {
	Limit     int
	SortField string
	SortOrder string
	Search    string
}

// listLimitCap bounds a single page of results.
const listLimitCap = 200

// List returns the owner's links, optionally substring-filtered on the
// destination URL.
func (s *Store) List(ctx context.Context, userID uint64, opts ListOptions) ([]models.ShortLink, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > listLimitCap {
		limit = listLimitCap
	}

	sortField := opts.SortField
	if sortField != SortByClicks {
		sortField = SortByCreatedAt
	}
	sortOrder := strings.ToUpper(opts.SortOrder)
	if sortOrder != "ASC" {
		sortOrder = "DESC"
	}

	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := dbutil.NormalizeLikePattern(s.db, "%"+search+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(s.db, "long_url"), pattern)
	}

	var out []models.ShortLink
	if errFind := q.Order(sortField + " " + sortOrder).Limit(limit).Find(&out).Error; errFind != nil {
		return nil, fmt.Errorf("links: list: %w", errFind)
	}
	return out, nil
}

// Get returns one of the owner's links by ID. Missing rows and foreign
// rows are both ErrNotFound.
func (s *Store) Get(ctx context.Context, id, userID uint64) (*models.ShortLink, error) {
	var link models.ShortLink
	errFind := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&link).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("links: get: %w", errFind)
	}
	return &link, nil
}

// Delete removes one of the owner's links and returns the deleted record.
// Ownership mismatch and non-existence are indistinguishable.
func (s *Store) Delete(ctx context.Context, id, userID uint64) (*models.ShortLink, error) {
	var link models.ShortLink
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("id = ? AND user_id = ?", id, userID).First(&link).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("links: delete lookup: %w", errFind)
		}
		if errDelete := tx.Delete(&models.ShortLink{}, link.ID).Error; errDelete != nil {
			return fmt.Errorf("links: delete: %w", errDelete)
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &link, nil
}
