package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"sehatlog-server/internal/config"
	"sehatlog-server/internal/utils"
)

// RateLimiter is a process-local sliding-window counter keyed by
// identity (user ID when authenticated, client IP otherwise). State is
// in memory and resets on restart; the deployment assumption is a
// single instance.
type RateLimiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	window  time.Duration
	max     int
	nowFunc func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		hits:    make(map[string][]time.Time),
		window:  cfg.Window,
		max:     cfg.MaxRequests,
		nowFunc: time.Now,
	}
}

// Allow records a hit for key and reports whether it stays within the
// window. When denied it also returns the seconds until the oldest hit
// leaves the window.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	cutoff := now.Add(-rl.window)

	kept := rl.hits[key][:0]
	for _, t := range rl.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.max {
		rl.hits[key] = kept
		retryAfter := int(kept[0].Sub(cutoff).Seconds()) + 1
		return false, retryAfter
	}

	rl.hits[key] = append(kept, now)
	return true, 0
}

// Middleware throttles sensitive endpoints. It runs before auth on the
// public routes, so the key falls back to the client IP there.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := GetUserIDFromContext(c)
		if !ok {
			key = c.ClientIP()
		}
		allowed, retryAfter := rl.Allow(key)
		if !allowed {
			utils.TooManyRequests(c, "Too many requests, please slow down", retryAfter)
			c.Abort()
			return
		}
		c.Next()
	}
}
