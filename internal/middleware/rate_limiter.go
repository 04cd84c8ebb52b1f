package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// visitorIdleTTL is how long a key may stay silent before its limiter is dropped.
const visitorIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorTable holds one limiter per key and sweeps idle keys at most once per ttl.
type visitorTable struct {
	mu        sync.Mutex
	r         rate.Limit
	b         int
	ttl       time.Duration
	now       func() time.Time
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newVisitorTable(r rate.Limit, b int, ttl time.Duration, now func() time.Time) *visitorTable {
	return &visitorTable{
		r:         r,
		b:         b,
		ttl:       ttl,
		now:       now,
		visitors:  make(map[string]*visitor),
		lastSweep: now(),
	}
}

func (t *visitorTable) get(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) >= t.ttl {
		for k, v := range t.visitors {
			if now.Sub(v.lastSeen) >= t.ttl {
				delete(t.visitors, k)
			}
		}
		t.lastSweep = now
	}

	v, exists := t.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(t.r, t.b)}
		t.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (t *visitorTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visitors)
}

// RateLimiter limits each key to r requests per second with burst b, in process memory.
func RateLimiter(r rate.Limit, b int, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	visitors := newVisitorTable(r, b, visitorIdleTTL, time.Now)

	return func(c *gin.Context) {
		if !visitors.get(keyFunc(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// DistributedRateLimiter shares a sliding-window limit across instances through Redis.
type DistributedRateLimiter struct {
	redis  *redis.Client
	logger *slog.Logger
}

type RateLimit struct {
	Rate    int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

func NewDistributedRateLimiter(redisClient *redis.Client, logger *slog.Logger) *DistributedRateLimiter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DistributedRateLimiter{redis: redisClient, logger: logger}
}

// Middleware enforces limit under name. Redis failures let the request through.
func (rl *DistributedRateLimiter) Middleware(name string, limit RateLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, limit.KeyFunc(c))

		allowed, err := rl.checkLimit(c.Request.Context(), key, limit)
		if err != nil {
			rl.logger.Warn("rate limit check failed", "key", key, "err", err)
			c.Header("X-RateLimit-Error", "true")
			c.Next()
			return
		}

		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
			c.Header("X-RateLimit-Window", limit.Window.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     "rate limit exceeded",
				"retry_after": limit.Window.Seconds(),
			})
			return
		}

		c.Next()
	}
}

func (rl *DistributedRateLimiter) checkLimit(ctx context.Context, key string, limit RateLimit) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - limit.Window.Nanoseconds()

	pipe := rl.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}
	return countCmd.Val() < int64(limit.Rate), nil
}

func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}
