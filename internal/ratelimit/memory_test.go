package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(context.Background(), "u:1", 3, now)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !result.Allowed {
			t.Fatalf("request #%d denied under limit 3", i+1)
		}
	}

	result, err := limiter.Allow(context.Background(), "u:1", 3, now)
	if err != nil {
		t.Fatalf("Allow over limit: %v", err)
	}
	if result.Allowed {
		t.Fatal("4th request in the window was allowed")
	}
	if !result.Reset.After(now) {
		t.Fatalf("reset %v is not after now %v", result.Reset, now)
	}

	// A different key has its own window.
	other, err := limiter.Allow(context.Background(), "u:2", 3, now)
	if err != nil {
		t.Fatalf("Allow other key: %v", err)
	}
	if !other.Allowed {
		t.Fatal("fresh key denied")
	}

	// The window rolls over on the next second.
	later := now.Add(time.Second)
	result, err = limiter.Allow(context.Background(), "u:1", 3, later)
	if err != nil {
		t.Fatalf("Allow after window: %v", err)
	}
	if !result.Allowed {
		t.Fatal("request after window rollover denied")
	}
}

func TestManagerZeroLimitAllowsEverything(t *testing.T) {
	mgr := NewManager(func() Config { return Config{} }, nil, nil)
	for i := 0; i < 100; i++ {
		result, err := mgr.Allow(context.Background(), "u:1", 0)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !result.Allowed {
			t.Fatal("zero limit denied a request")
		}
	}
}

func TestManagerLimitFromConfig(t *testing.T) {
	mgr := NewManager(func() Config { return Config{Limit: 7} }, nil, nil)
	if got := mgr.Limit(); got != 7 {
		t.Fatalf("Limit = %d, want 7", got)
	}
	mgr = NewManager(func() Config { return Config{Limit: -3} }, nil, nil)
	if got := mgr.Limit(); got != 0 {
		t.Fatalf("negative configured limit = %d, want 0", got)
	}
}

func TestMemoryLimiterSweepsStaleWindows(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i <= memorySweepThreshold; i++ {
		key := "ip:10.0." + strconv.Itoa(i/256) + "." + strconv.Itoa(i%256)
		if _, err := limiter.Allow(context.Background(), key, 1, now); err != nil {
			t.Fatalf("Allow %s: %v", key, err)
		}
	}

	// The next second's first hit sweeps every stale window.
	later := now.Add(time.Second)
	if _, err := limiter.Allow(context.Background(), "u:1", 1, later); err != nil {
		t.Fatalf("Allow after rollover: %v", err)
	}
	limiter.mu.Lock()
	size := len(limiter.windows)
	limiter.mu.Unlock()
	if size > memorySweepThreshold {
		t.Fatalf("%d windows retained after sweep", size)
	}
}

func TestKeyShapes(t *testing.T) {
	if got := KeyForUser(42); got != "u:42" {
		t.Fatalf("KeyForUser = %q", got)
	}
	if got := KeyForIP("10.0.0.1"); got != "ip:10.0.0.1" {
		t.Fatalf("KeyForIP = %q", got)
	}
	if got := KeyForIP(""); got != "" {
		t.Fatalf("KeyForIP empty = %q, want empty", got)
	}
}
