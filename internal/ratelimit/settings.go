package ratelimit

import (
	"encoding/json"
	"strings"

	"github.com/linkhubapp/linkhub/internal/settings"
)

// Config is the throttling configuration read from the settings rows.
// Migrate seeds RATE_LIMIT to 0, which disables throttling until an
// operator raises it.
type Config struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LoadConfig reads the current throttling snapshot. Settings rows hold
// typed JSON written by Migrate and the admin surface; a value that fails
// to unmarshal keeps its default.
func LoadConfig() Config {
	cfg := Config{
		Limit:       settings.DefaultRateLimit,
		RedisPrefix: settings.DefaultRateLimitRedisPrefix,
	}
	readSetting(settings.RateLimitKey, &cfg.Limit)
	readSetting(settings.RateLimitRedisEnabledKey, &cfg.RedisEnabled)
	readSetting(settings.RateLimitRedisAddrKey, &cfg.RedisAddr)
	readSetting(settings.RateLimitRedisPasswordKey, &cfg.RedisPassword)
	readSetting(settings.RateLimitRedisDBKey, &cfg.RedisDB)
	readSetting(settings.RateLimitRedisPrefixKey, &cfg.RedisPrefix)

	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.RedisPrefix = strings.TrimSpace(cfg.RedisPrefix)
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = settings.DefaultRateLimitRedisPrefix
	}
	if cfg.RedisDB < 0 {
		cfg.RedisDB = 0
	}
	if cfg.Limit < 0 {
		cfg.Limit = 0
	}
	return cfg
}

func readSetting[T any](key string, dst *T) {
	raw, ok := settings.DBConfigValue(key)
	if !ok {
		return
	}
	var value T
	if errUnmarshal := json.Unmarshal(raw, &value); errUnmarshal != nil {
		return
	}
	*dst = value
}
