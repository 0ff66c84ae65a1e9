package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/linkhubapp/linkhub/internal/auth"
	"github.com/linkhubapp/linkhub/internal/models"
)

// AuthHandler serves registration, login, and token lifecycle endpoints.
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// publicUser projects a user record without hashes, history, or internal
// version counters.
func publicUser(user *models.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"email":         user.Email,
		"full_name":     user.FullName,
		"picture_url":   user.PictureURL,
		"verified":      user.Verified,
		"totp_enabled":  user.TOTPSecret != "",
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
	}
}

// registerRequest defines the request body for registration.
type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a password account.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid json", nil)
		return
	}

	result, errRegister := h.svc.Register(c.Request.Context(), body.FullName, body.Email, body.Password)
	if errRegister != nil {
		switch {
		case errors.Is(errRegister, auth.ErrInvalidEmail):
			badRequest(c, "invalid email", gin.H{"email": "must be a valid email address"})
		case errors.Is(errRegister, auth.ErrWeakPassword):
			badRequest(c, "password too weak", gin.H{"password": "needs 8+ chars with upper, lower, digit, and symbol"})
		case errors.Is(errRegister, auth.ErrEmailInUse):
			conflict(c, "email already in use")
		default:
			internalError(c, errRegister)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":  publicUser(result.User),
		"token": result.Token,
	})
}

// loginRequest defines the request body for password login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totpCode"`
}

// Login authenticates a password account.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid json", nil)
		return
	}

	result, errAuth := h.svc.Authenticate(c.Request.Context(), body.Email, body.Password, body.TOTPCode)
	if errAuth != nil {
		var locked *auth.LockedError
		switch {
		case errors.As(errAuth, &locked):
			lockedOut(c, locked.Until)
		case errors.Is(errAuth, auth.ErrTOTPRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "totp code required", "code": "TOTP_REQUIRED"})
		case errors.Is(errAuth, auth.ErrAuthFailed):
			unauthorized(c, "invalid email or password")
		default:
			internalError(c, errAuth)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  publicUser(result.User),
		"token": result.Token,
	})
}

// googleRequest defines the request body for federated login.
type googleRequest struct {
	IDToken string `json:"idToken"`
}

// Google authenticates a Google ID token, provisioning or linking the
// account as needed.
func (h *AuthHandler) Google(c *gin.Context) {
	var body googleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.IDToken) == "" {
		badRequest(c, "missing idToken", nil)
		return
	}

	result, errAuth := h.svc.AuthenticateGoogle(c.Request.Context(), body.IDToken)
	if errAuth != nil {
		switch {
		case errors.Is(errAuth, auth.ErrIncompleteProfile):
			badRequest(c, "google profile incomplete", nil)
		case errors.Is(errAuth, auth.ErrGoogleIDConflict):
			conflict(c, "google account already linked elsewhere")
		case errors.Is(errAuth, auth.ErrAuthFailed):
			unauthorized(c, "google token verification failed")
		default:
			internalError(c, errAuth)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        publicUser(result.User),
		"token":       result.Token,
		"is_new_user": result.IsNewUser,
	})
}

// Refresh exchanges a valid bearer token for a fresh one.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		unauthorized(c, "missing bearer token")
		return
	}

	result, errRefresh := h.svc.Refresh(c.Request.Context(), token)
	if errRefresh != nil {
		unauthorized(c, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  publicUser(result.User),
		"token": result.Token,
	})
}

// forgotRequest defines the request body for reset token issuance.
type forgotRequest struct {
	Email string `json:"email"`
}

// Forgot issues a password reset token. The response is identical whether
// or not the account exists.
func (h *AuthHandler) Forgot(c *gin.Context) {
	var body forgotRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Email) == "" {
		badRequest(c, "missing email", nil)
		return
	}

	if errForgot := h.svc.ForgotPassword(c.Request.Context(), body.Email); errForgot != nil {
		internalError(c, errForgot)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists, reset instructions have been issued"})
}

// resetRequest defines the request body for consuming a reset token.
type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Reset consumes a reset token and sets a new password.
func (h *AuthHandler) Reset(c *gin.Context) {
	var body resetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Token) == "" {
		badRequest(c, "missing token", nil)
		return
	}

	errReset := h.svc.ResetPassword(c.Request.Context(), body.Token, body.NewPassword)
	if errReset != nil {
		switch {
		case errors.Is(errReset, auth.ErrInvalidToken):
			badRequest(c, "invalid or expired token", nil)
		case errors.Is(errReset, auth.ErrWeakPassword):
			badRequest(c, "password too weak", gin.H{"newPassword": "needs 8+ chars with upper, lower, digit, and symbol"})
		case errors.Is(errReset, auth.ErrPasswordReused):
			badRequest(c, "password was used recently", nil)
		default:
			internalError(c, errReset)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset successful"})
}

// verifyRequest defines the request body for email verification.
type verifyRequest struct {
	Token string `json:"token"`
}

// VerifyEmail consumes a verification token.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var body verifyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Token) == "" {
		badRequest(c, "missing token", nil)
		return
	}

	if errVerify := h.svc.VerifyEmail(c.Request.Context(), body.Token); errVerify != nil {
		if errors.Is(errVerify, auth.ErrInvalidToken) {
			badRequest(c, "invalid or expired token", nil)
			return
		}
		internalError(c, errVerify)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

// bearerToken extracts the bearer credential from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return ""
	}
	return strings.TrimSpace(token)
}
