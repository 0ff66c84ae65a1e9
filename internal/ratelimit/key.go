package ratelimit

import (
	"fmt"
	"strings"
)

// KeyForUser builds a limiter key for an authenticated user.
func KeyForUser(userID uint64) string {
	if userID == 0 {
		return ""
	}
	return fmt.Sprintf("u:%d", userID)
}

// KeyForIP builds a limiter key for an anonymous remote address.
func KeyForIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	return "ip:" + addr
}
