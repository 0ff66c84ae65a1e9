// Package settings caches runtime configuration rows from the database so
// hot paths can read them without a query per request.
package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/linkhubapp/linkhub/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// defaultPollInterval controls how often the snapshot is refreshed.
const defaultPollInterval = 30 * time.Second

// defaultQueryTimeout bounds the refresh query duration.
const defaultQueryTimeout = 10 * time.Second

var (
	mu     sync.RWMutex
	values map[string]json.RawMessage
)

// DBConfigValue returns the cached raw JSON value for key, if present.
func DBConfigValue(key string) (json.RawMessage, bool) {
	mu.RLock()
	defer mu.RUnlock()
	raw, ok := values[key]
	return raw, ok
}

// Refresh reloads the settings snapshot from the database.
func Refresh(ctx context.Context, conn *gorm.DB) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var rows []models.Setting
	if errFind := conn.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return errFind
	}

	next := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		if len(row.Value) == 0 {
			continue
		}
		next[row.Key] = json.RawMessage(row.Value)
	}

	mu.Lock()
	values = next
	mu.Unlock()
	return nil
}

// StartPoller refreshes the snapshot periodically until ctx is cancelled.
func StartPoller(ctx context.Context, conn *gorm.DB) {
	if errRefresh := Refresh(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings: initial refresh failed")
	}
	go func() {
		ticker := time.NewTicker(defaultPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if errRefresh := Refresh(ctx, conn); errRefresh != nil {
					log.WithError(errRefresh).Warn("settings: refresh failed")
				}
			}
		}
	}()
}
