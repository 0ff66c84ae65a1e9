// Package csrf implements the double-submit cookie anti-forgery protocol.
package csrf

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkhubapp/linkhub/internal/security"
)

// CookieName carries the session-bound anti-forgery token. The cookie is
// http-only; clients obtain the value via the token endpoint and echo it
// back in the header.
const CookieName = "linkhub_csrf"

// HeaderName is the header checked on state-changing requests.
const HeaderName = "X-CSRF-Token"

// formField is the body fallback for clients that cannot set headers.
const formField = "_csrf"

// cookieMaxAge keeps the token for a browser session's practical lifetime.
const cookieMaxAge = 12 * 60 * 60

// tokenBytes is the entropy of a minted token.
const tokenBytes = 32

// ErrorCode distinguishes anti-forgery failures from generic auth errors
// so clients can silently re-fetch the token and retry once.
const ErrorCode = "CSRF_VALIDATION_FAILED"

// mint generates a fresh token value.
func mint() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("csrf: mint token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// setCookie binds the token to the browser session.
func setCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// EnsureToken returns the session's token, minting and setting the cookie
// when absent. Handlers for the token endpoint call this.
func EnsureToken(c *gin.Context) (string, error) {
	if cookie, errCookie := c.Request.Cookie(CookieName); errCookie == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	token, errMint := mint()
	if errMint != nil {
		return "", errMint
	}
	setCookie(c, token)
	return token, nil
}

// safeMethod reports whether the request is read-only and bypasses the check.
func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Middleware validates the double-submit token on state-changing requests.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if safeMethod(c.Request.Method) {
			c.Next()
			return
		}

		cookie, errCookie := c.Request.Cookie(CookieName)
		if errCookie != nil || cookie.Value == "" {
			reject(c)
			return
		}

		submitted := c.GetHeader(HeaderName)
		if submitted == "" {
			submitted = c.PostForm(formField)
		}
		if submitted == "" || !security.ConstantTimeEquals(submitted, cookie.Value) {
			reject(c)
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": "csrf validation failed",
		"code":  ErrorCode,
	})
}
