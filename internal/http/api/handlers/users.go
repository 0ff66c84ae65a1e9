package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/linkhubapp/linkhub/internal/auth"
)

// UserHandler serves the authenticated user's profile endpoints.
type UserHandler struct {
	svc *auth.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc *auth.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// Me returns the current user's public projection.
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": publicUser(user)})
}

// updateMeRequest defines the request body for profile edits. Pointer
// fields distinguish "absent" from "clear".
type updateMeRequest struct {
	FullName   *string `json:"fullName"`
	PictureURL *string `json:"pictureUrl"`
}

// UpdateMe applies profile field edits.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	var body updateMeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid json", nil)
		return
	}

	updated, errUpdate := h.svc.UpdateProfile(c.Request.Context(), user.ID, body.FullName, body.PictureURL)
	if errUpdate != nil {
		internalError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": publicUser(updated)})
}

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword rotates the password and returns a token signed under the
// new token version; all earlier tokens are now invalid.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid json", nil)
		return
	}

	updated, errChange := h.svc.ChangePassword(c.Request.Context(), user.ID, body.CurrentPassword, body.NewPassword)
	if errChange != nil {
		switch {
		case errors.Is(errChange, auth.ErrSamePassword):
			badRequest(c, "new password must differ from current password", nil)
		case errors.Is(errChange, auth.ErrWeakPassword):
			badRequest(c, "password too weak", gin.H{"newPassword": "needs 8+ chars with upper, lower, digit, and symbol"})
		case errors.Is(errChange, auth.ErrPasswordReused):
			badRequest(c, "password was used recently", nil)
		case errors.Is(errChange, auth.ErrInvalidCredentials):
			unauthorized(c, "invalid credentials")
		default:
			internalError(c, errChange)
		}
		return
	}

	token, errToken := h.svc.TokenFor(updated)
	if errToken != nil {
		internalError(c, errToken)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "password changed",
		"token":   token,
	})
}

// totpConfirmRequest defines the body for confirming a pending TOTP secret.
type totpConfirmRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// PrepareTOTP generates a pending second-factor secret.
func (h *UserHandler) PrepareTOTP(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}
	secret, url, errPrepare := h.svc.PrepareTOTP(c.Request.Context(), user.ID)
	if errPrepare != nil {
		internalError(c, errPrepare)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "otpauth_url": url})
}

// ConfirmTOTP enables the second factor once the user proves possession.
func (h *UserHandler) ConfirmTOTP(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}
	var body totpConfirmRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Secret) == "" {
		badRequest(c, "missing secret or code", nil)
		return
	}
	if errConfirm := h.svc.ConfirmTOTP(c.Request.Context(), user.ID, body.Secret, body.Code); errConfirm != nil {
		if errors.Is(errConfirm, auth.ErrAuthFailed) {
			badRequest(c, "invalid totp code", nil)
			return
		}
		internalError(c, errConfirm)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "totp enabled"})
}

// totpDisableRequest defines the body for disabling the second factor.
type totpDisableRequest struct {
	Code string `json:"code"`
}

// DisableTOTP removes the second factor after a current-code check.
func (h *UserHandler) DisableTOTP(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}
	var body totpDisableRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid json", nil)
		return
	}
	if errDisable := h.svc.DisableTOTP(c.Request.Context(), user.ID, body.Code); errDisable != nil {
		if errors.Is(errDisable, auth.ErrAuthFailed) {
			badRequest(c, "invalid totp code", nil)
			return
		}
		internalError(c, errDisable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "totp disabled"})
}
