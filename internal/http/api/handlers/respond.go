package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkhubapp/linkhub/internal/models"
	log "github.com/sirupsen/logrus"
)

// Error codes surfaced to clients. Clients key retry behavior off these,
// not off message text.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeAuth          = "AUTH_ERROR"
	CodeAccountLocked = "ACCOUNT_LOCKED"
	CodeConflict      = "CONFLICT"
	CodeNotFound      = "NOT_FOUND"
	CodeRateLimited   = "RATE_LIMITED"
	CodeInternal      = "INTERNAL_ERROR"
)

// ContextUserKey is the gin context key under which the authenticated user
// is threaded to handlers.
const ContextUserKey = "currentUser"

// CurrentUser returns the authenticated user set by the auth middleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

// badRequest writes a validation failure with optional field detail.
func badRequest(c *gin.Context, message string, details gin.H) {
	body := gin.H{"error": message, "code": CodeValidation}
	if len(details) > 0 {
		body["details"] = details
	}
	c.JSON(http.StatusBadRequest, body)
}

// unauthorized writes a generic authentication failure. The message stays
// the same for unknown emails and wrong passwords alike.
func unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authentication failed"
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": message, "code": CodeAuth})
}

// lockedOut reports an account lockout with precise wait-time guidance.
func lockedOut(c *gin.Context, until time.Time) {
	retryAfter := int(time.Until(until).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}
	c.Header("Retry-After", until.UTC().Format(http.TimeFormat))
	c.JSON(http.StatusForbidden, gin.H{
		"error":        "account temporarily locked",
		"code":         CodeAccountLocked,
		"locked_until": until.UTC(),
		"retry_after":  retryAfter,
	})
}

// conflict writes a duplicate-resource failure.
func conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, gin.H{"error": message, "code": CodeConflict})
}

// notFound covers both missing resources and ownership mismatches; callers
// must not be able to tell the two apart.
func notFound(c *gin.Context, message string) {
	if message == "" {
		message = "not found"
	}
	c.JSON(http.StatusNotFound, gin.H{"error": message, "code": CodeNotFound})
}

// internalError logs the cause and writes a generic failure.
func internalError(c *gin.Context, err error) {
	log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": CodeInternal})
}
