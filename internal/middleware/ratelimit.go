// Package middleware provides HTTP middleware for the neon server.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxLimiters is the maximum number of tracked IPs to prevent memory exhaustion.
const maxLimiters = 100_000

// limiterIdle is how long an IP's limiter survives without traffic.
const limiterIdle = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a RateLimiter allowing perSec requests per second
// with the given burst. A background goroutine evicts idle IPs until ctx is
// cancelled.
func NewRateLimiter(ctx context.Context, perSec float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		limit:    rate.Limit(perSec),
		burst:    burst,
	}
	go rl.cleanupLoop(ctx)

	return rl
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, l := range rl.limiters {
		if now.Sub(l.lastSeen) > limiterIdle {
			delete(rl.limiters, ip)
		}
	}
}

// allow reports whether ip may make a request now. ok is false when the
// limiter table is full and ip is not yet tracked.
func (rl *RateLimiter) allow(ip string) (allowed, ok bool) {
	now := time.Now()

	rl.mu.Lock()
	l, found := rl.limiters[ip]
	if !found {
		if len(rl.limiters) >= maxLimiters {
			rl.mu.Unlock()
			return false, false
		}

		l = &ipLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = l
	}
	l.lastSeen = now
	rl.mu.Unlock()

	return l.limiter.AllowN(now, 1), true
}

// Handler returns Gin middleware that applies rate limiting per client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// c.ClientIP() ignores X-Forwarded-For because the router trusts no proxies.
		allowed, ok := rl.allow(c.ClientIP())
		if !ok {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many clients")
			return
		}

		if !allowed {
			c.Header("Retry-After", "1")
			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}

		c.Next()
	}
}
