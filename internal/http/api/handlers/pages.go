package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/linkhubapp/linkhub/internal/db"
	"github.com/linkhubapp/linkhub/internal/links"
	"github.com/linkhubapp/linkhub/internal/models"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{3,30}$`)

// PageHandler serves the link-in-bio page editor and the public page view.
type PageHandler struct {
	db *gorm.DB
}

// NewPageHandler constructs a PageHandler.
func NewPageHandler(conn *gorm.DB) *PageHandler {
	return &PageHandler{db: conn}
}

func pageRecord(page *models.Page) gin.H {
	var entries []models.PageLink
	if len(page.Links) > 0 {
		// Rows written by this handler always decode; tolerate junk anyway.
		_ = json.Unmarshal(page.Links, &entries)
	}
	if entries == nil {
		entries = []models.PageLink{}
	}
	return gin.H{
		"username":     page.Username,
		"display_name": page.DisplayName,
		"bio":          page.Bio,
		"theme":        page.Theme,
		"links":        entries,
		"published":    page.Published,
		"views":        page.Views,
		"updated_at":   page.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// upsertPageRequest defines the body for creating or replacing the
// caller's page.
type upsertPageRequest struct {
	Username    string            `json:"username"`
	DisplayName string            `json:"displayName"`
	Bio         string            `json:"bio"`
	Theme       string            `json:"theme"`
	Links       []models.PageLink `json:"links"`
	Published   *bool             `json:"published"`
}

// Upsert creates the caller's page or replaces its content. Usernames are
// globally unique across all pages.
func (h *PageHandler) Upsert(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	var body upsertPageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid json", nil)
		return
	}

	username := strings.ToLower(strings.TrimSpace(body.Username))
	if !usernamePattern.MatchString(username) {
		badRequest(c, "invalid username", gin.H{"username": "3-30 chars, lowercase letters, digits, '-' and '_'"})
		return
	}
	theme := body.Theme
	if theme == "" {
		theme = models.ThemeDefault
	}
	if !models.ValidTheme(theme) {
		badRequest(c, "unknown theme", gin.H{"theme": strings.Join(models.PageThemes, ", ")})
		return
	}
	for _, entry := range body.Links {
		if !links.ValidDestination(entry.URL) {
			badRequest(c, "invalid link url", gin.H{"links": "every entry needs an absolute http(s) url"})
			return
		}
	}

	encoded, errMarshal := json.Marshal(body.Links)
	if errMarshal != nil {
		internalError(c, errMarshal)
		return
	}

	page := models.Page{
		UserID:      user.ID,
		Username:    username,
		DisplayName: strings.TrimSpace(body.DisplayName),
		Bio:         body.Bio,
		Theme:       theme,
		Links:       datatypes.JSON(encoded),
	}
	if body.Published != nil {
		page.Published = *body.Published
	}

	errSave := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var existing models.Page
		errFind := tx.Where("user_id = ?", user.ID).First(&existing).Error
		if errFind != nil {
			if !errors.Is(errFind, gorm.ErrRecordNotFound) {
				return errFind
			}
			return tx.Create(&page).Error
		}
		page.ID = existing.ID
		page.Views = existing.Views
		if body.Published == nil {
			page.Published = existing.Published
		}
		return tx.Model(&existing).Select(
			"username", "display_name", "bio", "theme", "links", "published",
		).Updates(&page).Error
	})
	if errSave != nil {
		if db.IsUniqueViolation(errSave) {
			conflict(c, "username already in use")
			return
		}
		internalError(c, errSave)
		return
	}

	c.JSON(http.StatusOK, gin.H{"page": pageRecord(&page)})
}

// MyPage returns the caller's page, if any.
func (h *PageHandler) MyPage(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	var page models.Page
	errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", user.ID).First(&page).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			notFound(c, "no page yet")
			return
		}
		internalError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": pageRecord(&page)})
}

// CheckUsername reports whether a handle is free. Malformed handles are
// reported as unavailable rather than rejected.
func (h *PageHandler) CheckUsername(c *gin.Context) {
	username := strings.ToLower(strings.TrimSpace(c.Param("username")))
	if !usernamePattern.MatchString(username) {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}

	var count int64
	errCount := h.db.WithContext(c.Request.Context()).
		Model(&models.Page{}).
		Where("username = ?", username).
		Count(&count).Error
	if errCount != nil {
		internalError(c, errCount)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": count == 0})
}

// PublicPage returns a published page by handle and records the view.
// Unpublished pages are indistinguishable from missing ones.
func (h *PageHandler) PublicPage(c *gin.Context) {
	username := strings.ToLower(strings.TrimSpace(c.Param("username")))

	var page models.Page
	errView := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Page{}).
			Where("username = ? AND published = ?", username, true).
			UpdateColumn("views", gorm.Expr("views + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if errFind := tx.Where("username = ?", username).First(&page).Error; errFind != nil {
			return errFind
		}
		event := models.ViewEvent{PageID: page.ID, UserID: page.UserID, OccurredAt: time.Now().UTC()}
		return tx.Create(&event).Error
	})
	if errView != nil {
		if errors.Is(errView, gorm.ErrRecordNotFound) {
			notFound(c, "page not found")
			return
		}
		internalError(c, errView)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": pageRecord(&page)})
}
