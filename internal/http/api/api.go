// Package api wires the REST surface: routes, auth, CORS, CSRF, and
// rate limiting.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/linkhubapp/linkhub/internal/auth"
	"github.com/linkhubapp/linkhub/internal/config"
	"github.com/linkhubapp/linkhub/internal/csrf"
	"github.com/linkhubapp/linkhub/internal/http/api/handlers"
	"github.com/linkhubapp/linkhub/internal/links"
	"github.com/linkhubapp/linkhub/internal/ratelimit"
	"github.com/linkhubapp/linkhub/internal/security"
)

// Deps carries everything route registration needs.
type Deps struct {
	DB      *gorm.DB
	Auth    *auth.Service
	Links   *links.Store
	Limiter *ratelimit.Manager
	Server  config.ServerConfig
	Secret  []byte
	Version string
}

// RegisterRoutes attaches all routes and middleware to the engine.
func RegisterRoutes(engine *gin.Engine, deps Deps) {
	engine.Use(corsMiddleware(deps.Server.CORSOrigins))
	engine.Use(csrf.Middleware())

	requireAuth := authMiddleware(deps.Secret, deps.Auth)
	limitByIP := rateLimitMiddleware(deps.Limiter, deps.Server.AdminBypassKey, false)
	limitByUser := rateLimitMiddleware(deps.Limiter, deps.Server.AdminBypassKey, true)

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Version)
	authHandler := handlers.NewAuthHandler(deps.Auth)
	userHandler := handlers.NewUserHandler(deps.Auth)
	linkHandler := handlers.NewLinkHandler(deps.Links, deps.Server.BaseURL)
	qrHandler := handlers.NewQRHandler(deps.DB)
	pageHandler := handlers.NewPageHandler(deps.DB)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.Links)

	engine.GET("/healthz", healthHandler.Healthz)
	engine.GET("/version", healthHandler.Version)

	apiGroup := engine.Group("/api")
	apiGroup.GET("/csrf-token", csrfTokenHandler)

	authGroup := apiGroup.Group("/auth", limitByIP)
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/google", authHandler.Google)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/forgot-password", authHandler.Forgot)
	authGroup.POST("/reset-password", authHandler.Reset)
	authGroup.POST("/verify-email", authHandler.VerifyEmail)

	usersGroup := apiGroup.Group("/users", requireAuth, limitByUser)
	usersGroup.GET("/me", userHandler.Me)
	usersGroup.PATCH("/me", userHandler.UpdateMe)
	usersGroup.PATCH("/me/password", userHandler.ChangePassword)
	usersGroup.POST("/me/totp", userHandler.PrepareTOTP)
	usersGroup.POST("/me/totp/confirm", userHandler.ConfirmTOTP)
	usersGroup.POST("/me/totp/disable", userHandler.DisableTOTP)

	pagesGroup := apiGroup.Group("/pages")
	pagesGroup.POST("", requireAuth, limitByUser, pageHandler.Upsert)
	pagesGroup.GET("/my-page", requireAuth, limitByUser, pageHandler.MyPage)
	pagesGroup.GET("/check-username/:username", limitByIP, pageHandler.CheckUsername)
	pagesGroup.GET("/:username", limitByIP, pageHandler.PublicPage)

	apiGroup.GET("/analytics", requireAuth, limitByUser, analyticsHandler.Series)

	engine.POST("/shorten", requireAuth, limitByUser, linkHandler.Shorten)
	engine.GET("/my-urls", requireAuth, limitByUser, linkHandler.MyURLs)
	engine.DELETE("/:id", requireAuth, limitByUser, linkHandler.Delete)

	engine.POST("/qr", requireAuth, limitByUser, qrHandler.Generate)
	engine.GET("/my-qrcodes", requireAuth, limitByUser, qrHandler.MyQRCodes)
	engine.DELETE("/qr/:id", requireAuth, limitByUser, qrHandler.Delete)

	engine.GET("/:shortCode", limitByIP, linkHandler.Redirect)
}

// csrfTokenHandler mints (or echoes) the double-submit token.
func csrfTokenHandler(c *gin.Context) {
	token, errToken := csrf.EnsureToken(c)
	if errToken != nil {
		log.WithError(errToken).Error("csrf token mint failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}

// authMiddleware authenticates the bearer token and loads the user. Tokens
// signed under an older token version are rejected even when unexpired.
func authMiddleware(secret []byte, svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, errParse := security.ParseSessionToken(secret, bearerToken(c))
		if errParse != nil {
			abortUnauthorized(c)
			return
		}
		userID, errID := claims.UserID()
		if errID != nil {
			abortUnauthorized(c)
			return
		}
		user, errUser := svc.GetUser(c.Request.Context(), userID)
		if errUser != nil {
			abortUnauthorized(c)
			return
		}
		if claims.TokenVersion != user.TokenVersion {
			abortUnauthorized(c)
			return
		}
		c.Set(handlers.ContextUserKey, user)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	return header[len(prefix):]
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "authentication failed",
		"code":  handlers.CodeAuth,
	})
}

// corsMiddleware reflects configured origins and answers preflights.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-CSRF-Token, X-Admin-Key")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware throttles per user when byUser is set and the caller
// is authenticated, per remote IP otherwise. The X-Admin-Key header
// matching the configured bypass key skips the check.
func rateLimitMiddleware(mgr *ratelimit.Manager, bypassKey string, byUser bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := mgr.Limit()
		if limit <= 0 {
			c.Next()
			return
		}
		if bypassKey != "" && c.GetHeader("X-Admin-Key") == bypassKey {
			c.Next()
			return
		}

		key := ratelimit.KeyForIP(c.ClientIP())
		if byUser {
			if user, ok := handlers.CurrentUser(c); ok {
				key = ratelimit.KeyForUser(user.ID)
			}
		}

		result, errAllow := mgr.Allow(c.Request.Context(), key, limit)
		if errAllow != nil {
			log.WithError(errAllow).Warn("rate limit check failed")
			c.Next()
			return
		}
		if !result.Allowed {
			retryAfter := int(time.Until(result.Reset).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"code":        handlers.CodeRateLimited,
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}
