package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of spending one slot from a window.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter counts requests per key in one-second fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}
