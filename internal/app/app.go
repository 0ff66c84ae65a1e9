// Package app boots the LinkHub server: config, database, background
// settings refresh, and the HTTP engine with graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/linkhubapp/linkhub/internal/auth"
	"github.com/linkhubapp/linkhub/internal/config"
	"github.com/linkhubapp/linkhub/internal/db"
	"github.com/linkhubapp/linkhub/internal/http/api"
	"github.com/linkhubapp/linkhub/internal/links"
	"github.com/linkhubapp/linkhub/internal/ratelimit"
	"github.com/linkhubapp/linkhub/internal/settings"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// shutdownGrace bounds how long in-flight requests may run after a
// termination signal.
const shutdownGrace = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server and blocks until ctx is canceled or the
// listener fails.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtCfg, err := config.LoadJWTConfig(configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(jwtCfg.Secret) == "" {
		return fmt.Errorf("app: missing jwt secret (set %s)", config.EnvJWTSecret)
	}
	serverCfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}

	settings.StartPoller(ctx, conn)

	secret := []byte(jwtCfg.Secret)
	authSvc := auth.NewService(conn, secret, jwtCfg.Expiry, serverCfg.GoogleClientID, auth.LogMailer{})
	linkStore := links.NewStore(conn)
	limiter := ratelimit.NewManager(ratelimit.LoadConfig, time.Now, nil)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api.RegisterRoutes(engine, api.Deps{
		DB:      conn,
		Auth:    authSvc,
		Links:   linkStore,
		Limiter: limiter,
		Server:  serverCfg,
		Secret:  secret,
		Version: Version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if errServe := srv.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return <-errCh
	case errServe := <-errCh:
		return errServe
	}
}
