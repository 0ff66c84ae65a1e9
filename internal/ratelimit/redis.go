package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window keys expire shortly after their second passes. Two seconds keeps
// small clock skew between replicas from expiring a live window.
const redisWindowTTLSeconds = 2

// incrWindow bumps the window counter and sets its expiry on first use,
// atomically, so concurrent replicas agree on the count.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisLimiter counts requests per key in one-second fixed windows shared
// across replicas.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter over client. prefix
// namespaces the window keys so limiter state coexists with other users
// of the same Redis.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix)}
}

// Close releases the underlying client.
func (l *RedisLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

// Allow spends one slot from key's current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if l == nil || l.client == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	second := now.Unix()
	reset := time.Unix(second+1, 0).UTC()

	count, errRun := incrWindow.Run(ctx, l.client, []string{l.windowKey(key, second)}, redisWindowTTLSeconds).Int64()
	if errRun != nil {
		return Result{}, errRun
	}
	if count > int64(limit) {
		return Result{Allowed: false, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(count), Reset: reset}, nil
}

func (l *RedisLimiter) windowKey(key string, second int64) string {
	if l.prefix == "" {
		return fmt.Sprintf("%s:%d", key, second)
	}
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, second)
}
