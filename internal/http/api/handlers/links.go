package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkhubapp/linkhub/internal/links"
	"github.com/linkhubapp/linkhub/internal/models"
)

// LinkHandler serves short link creation, listing, deletion, and the
// public redirect.
type LinkHandler struct {
	store   *links.Store
	baseURL string
}

// NewLinkHandler constructs a LinkHandler. baseURL has no trailing slash.
func NewLinkHandler(store *links.Store, baseURL string) *LinkHandler {
	return &LinkHandler{store: store, baseURL: baseURL}
}

// linkRecord is the JSON projection of a short link.
func (h *LinkHandler) linkRecord(link *models.ShortLink) gin.H {
	return gin.H{
		"id":         link.ID,
		"short_code": link.Code,
		"short_url":  h.baseURL + "/" + link.Code,
		"long_url":   link.LongURL,
		"clicks":     link.Clicks,
		"created_at": link.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// shortenRequest defines the body for creating a short link.
type shortenRequest struct {
	LongURL     string `json:"longUrl"`
	CustomAlias string `json:"customAlias"`
}

// Shorten creates a short link, optionally under a caller-chosen alias.
func (h *LinkHandler) Shorten(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	var body shortenRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid json", nil)
		return
	}

	link, errCreate := h.store.Create(c.Request.Context(), body.LongURL, user.ID, body.CustomAlias)
	if errCreate != nil {
		switch {
		case errors.Is(errCreate, links.ErrInvalidURL):
			badRequest(c, "invalid destination url", gin.H{"longUrl": "must be an absolute http(s) url of at most 2048 chars"})
		case errors.Is(errCreate, links.ErrInvalidAlias):
			badRequest(c, "invalid alias", gin.H{"customAlias": "3-50 chars, letters, digits, '-' and '_'"})
		case errors.Is(errCreate, links.ErrAliasTaken):
			conflict(c, "alias already in use")
		default:
			internalError(c, errCreate)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"shortUrl":  h.baseURL + "/" + link.Code,
		"shortCode": link.Code,
	})
}

// MyURLs lists the caller's links with optional search and ordering.
func (h *LinkHandler) MyURLs(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	opts := links.ListOptions{
		Limit:     limit,
		SortField: c.Query("sort"),
		SortOrder: c.Query("order"),
		Search:    c.Query("search"),
	}

	out, errList := h.store.List(c.Request.Context(), user.ID, opts)
	if errList != nil {
		internalError(c, errList)
		return
	}

	records := make([]gin.H, 0, len(out))
	for i := range out {
		records = append(records, h.linkRecord(&out[i]))
	}
	c.JSON(http.StatusOK, gin.H{"urls": records})
}

// Delete removes one of the caller's links. Links owned by someone else
// look the same as links that never existed.
func (h *LinkHandler) Delete(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		notFound(c, "link not found")
		return
	}

	link, errDelete := h.store.Delete(c.Request.Context(), id, user.ID)
	if errDelete != nil {
		if errors.Is(errDelete, links.ErrNotFound) {
			notFound(c, "link not found")
			return
		}
		internalError(c, errDelete)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "link deleted",
		"url":     h.linkRecord(link),
	})
}

// Redirect resolves a short code and 302s to the destination. The click
// counter and click log advance atomically before the redirect is sent.
func (h *LinkHandler) Redirect(c *gin.Context) {
	longURL, errResolve := h.store.Resolve(c.Request.Context(), c.Param("shortCode"))
	if errResolve != nil {
		if errors.Is(errResolve, links.ErrNotFound) {
			notFound(c, "short link not found")
			return
		}
		internalError(c, errResolve)
		return
	}
	c.Redirect(http.StatusFound, longURL)
}
