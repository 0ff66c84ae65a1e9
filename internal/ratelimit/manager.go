package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// When Redis misbehaves the manager stops trying it for this long and
// serves checks from process memory.
const redisRetryBackoff = 30 * time.Second

// ConfigProvider supplies the latest throttling snapshot. It is consulted
// on every check so settings edits take effect without a restart.
type ConfigProvider func() Config

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(*redis.Options) *redis.Client

// redisTarget identifies the Redis instance the manager is connected to.
// A settings edit that changes any field forces a reconnect.
type redisTarget struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager enforces per-user and per-IP request limits. It prefers the
// shared Redis window when one is configured, so limits hold across
// replicas, and falls back to the in-process window otherwise.
type Manager struct {
	config    ConfigProvider
	now       func() time.Time
	memory    *MemoryLimiter
	newClient RedisClientFactory

	mu      sync.Mutex
	shared  *RedisLimiter
	target  redisTarget
	retryAt time.Time
}

// NewManager constructs a Manager. Nil arguments get the production
// defaults; tests inject their own.
func NewManager(config ConfigProvider, now func() time.Time, newClient RedisClientFactory) *Manager {
	if config == nil {
		config = LoadConfig
	}
	if now == nil {
		now = time.Now
	}
	if newClient == nil {
		newClient = redis.NewClient
	}
	return &Manager{
		config:    config,
		now:       now,
		memory:    NewMemoryLimiter(),
		newClient: newClient,
	}
}

// Limit reports the configured requests-per-second ceiling. Zero disables
// throttling.
func (m *Manager) Limit() int {
	if m == nil {
		return 0
	}
	limit := m.config().Limit
	if limit < 0 {
		return 0
	}
	return limit
}

// Allow spends one slot from key's current window.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	now := m.now()
	cfg := m.config()
	if cfg.RedisEnabled {
		if result, ok := m.allowShared(ctx, key, limit, now, cfg); ok {
			return result, nil
		}
	}
	return m.memory.Allow(ctx, key, limit, now)
}

// allowShared runs the check against Redis. A false second return means
// the caller should fall back to the in-process window.
func (m *Manager) allowShared(ctx context.Context, key string, limit int, now time.Time, cfg Config) (Result, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.backingOff(now) {
		return Result{}, false
	}
	limiter, errShared := m.sharedLimiter(ctx, cfg)
	if errShared != nil {
		m.startBackoff(errShared, now)
		return Result{}, false
	}
	result, errAllow := limiter.Allow(ctx, key, limit, now)
	if errAllow != nil {
		m.startBackoff(errAllow, now)
		return Result{}, false
	}
	return result, true
}

func (m *Manager) backingOff(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retryAt.IsZero() {
		return false
	}
	if now.Before(m.retryAt) {
		return true
	}
	m.retryAt = time.Time{}
	return false
}

func (m *Manager) startBackoff(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.retryAt.IsZero() && now.Before(m.retryAt) {
		return
	}
	m.retryAt = now.Add(redisRetryBackoff)
	log.WithError(err).Warn("rate limit: redis unavailable, using in-process window")
}

// sharedLimiter returns the Redis limiter for the configured target,
// reconnecting when the settings rows point somewhere new.
func (m *Manager) sharedLimiter(ctx context.Context, cfg Config) (*RedisLimiter, error) {
	next := redisTarget{
		addr:     strings.TrimSpace(cfg.RedisAddr),
		password: cfg.RedisPassword,
		prefix:   cfg.RedisPrefix,
		db:       cfg.RedisDB,
	}
	if next.addr == "" {
		return nil, errors.New("rate limit: redis enabled without an address")
	}
	if next.db < 0 {
		next.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shared != nil && m.target == next {
		return m.shared, nil
	}
	if m.shared != nil {
		_ = m.shared.Close()
		m.shared = nil
	}

	client := m.newClient(&redis.Options{
		Addr:     next.addr,
		Password: next.password,
		DB:       next.db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.shared = NewRedisLimiter(client, next.prefix)
	m.target = next
	return m.shared, nil
}
