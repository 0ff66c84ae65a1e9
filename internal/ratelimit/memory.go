package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Stale windows are swept once the map grows past this many keys.
const memorySweepThreshold = 4096

type window struct {
	second int64
	count  int
}

// MemoryLimiter counts requests per key in one-second fixed windows held
// in process memory. Limits enforced here do not hold across replicas.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]window
}

// NewMemoryLimiter constructs an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]window)}
}

// Allow spends one slot from key's current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	second := now.Unix()
	reset := time.Unix(second+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w.second != second {
		w = window{second: second}
	}
	if w.count >= limit {
		l.windows[key] = w
		return Result{Allowed: false, Reset: reset}, nil
	}
	w.count++
	l.windows[key] = w
	if len(l.windows) > memorySweepThreshold {
		l.sweep(second)
	}
	return Result{Allowed: true, Remaining: limit - w.count, Reset: reset}, nil
}

// sweep drops windows from past seconds. Called under mu.
func (l *MemoryLimiter) sweep(second int64) {
	for key, w := range l.windows {
		if w.second != second {
			delete(l.windows, key)
		}
	}
}
