package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per client key refilling limit tokens per
// window. Idle keys are swept lazily.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		every:     rate.Every(window / time.Duration(limit)),
		burst:     limit,
		window:    window,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	v := rl.visitors[key]
	if v == nil {
		v = &visitor{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) <= limiterIdleTTL {
		return
	}
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(rl.visitors, k)
		}
	}
	rl.lastSweep = now
}

// RateLimit applies rl to every request keyed by client IP.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			tooManyRequests(c, rl.window, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// RouteLimits holds stricter limits for individual route patterns, such as
// the retraining triggers.
type RouteLimits map[string]*RateLimiter

// Limit registers a limit for a route pattern as gin reports it from
// FullPath, e.g. "/train".
func (rl RouteLimits) Limit(route string, limit int, window time.Duration) RouteLimits {
	rl[route] = NewRateLimiter(limit, window)
	return rl
}

// Middleware must be installed after the routes table is final; RouteLimits
// is not safe for concurrent registration.
func (rl RouteLimits) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter, ok := rl[c.FullPath()]
		if ok && !limiter.Allow(c.ClientIP()) {
			tooManyRequests(c, limiter.window, "rate limit exceeded for "+c.FullPath())
			return
		}
		c.Next()
	}
}

func tooManyRequests(c *gin.Context, window time.Duration, msg string) {
	c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success":     false,
		"error":       msg,
		"retry_after": window.Seconds(),
	})
}
