// Package middleware provides HTTP middleware for the research platform API.
// This file implements the per-endpoint rolling-window quota enforcement of
// spec.md §4.3, backed primarily by Redis INCR+EXPIRE counters with an
// in-process token-bucket fallback — generalized from the teacher's
// map-of-rate.Limiter pattern — when Redis is disabled. When Redis is
// configured but a counter call fails, RedisLimiter allows the request; it
// does not switch to the in-process limiter.
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/research-platform/imagedesc-core/internal/apierror"
	"github.com/research-platform/imagedesc-core/internal/cache"
)

// Quota is a rolling-window request limit for one endpoint. A route missing
// from EndpointQuotas gets the "default" quotas (see QuotaKey); unlimited
// routes (GET /api/health) are exempted by unlimitedRoutes instead.
type Quota struct {
	Window time.Duration
	Limit  int
}

// EndpointQuotas is the literal per-endpoint table from spec.md §4.3. An
// endpoint may carry more than one window (the global default enforces both
// a daily and an hourly cap simultaneously).
var EndpointQuotas = map[string][]Quota{
	"default":                     {{Window: 24 * time.Hour, Limit: 200}, {Window: time.Hour, Limit: 50}},
	"POST /api/participants":      {{Window: time.Minute, Limit: 30}},
	"POST /api/consent":           {{Window: time.Minute, Limit: 20}},
	"POST /api/submit":            {{Window: time.Minute, Limit: 60}},
	"GET /api/images/random":      {{Window: time.Minute, Limit: 120}},
	"GET /api/images/:image_id":   {{Window: time.Minute, Limit: 300}},
	"POST /api/reward/select/:participant_id": {{Window: time.Minute, Limit: 10}},
}

// QuotaKey returns the lookup key for a route, falling back to "default".
func QuotaKey(method, route string) string {
	key := method + " " + route
	if _, ok := EndpointQuotas[key]; ok {
		return key
	}
	return "default"
}

// Limiter enforces one or more rolling-window quotas for a client+endpoint
// pair. Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether the call under key/quotaKey is permitted, and if
	// not, how long the caller should wait before retrying.
	Allow(ctx context.Context, key, quotaKey string, quotas []Quota) (allowed bool, retryAfter time.Duration)
}

// RedisLimiter implements rolling windows with Redis INCR+EXPIRE counters,
// one counter per (key, quotaKey, window).
type RedisLimiter struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisLimiter(client *redis.Client, logger zerolog.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, logger: logger}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key, quotaKey string, quotas []Quota) (bool, time.Duration) {
	for _, q := range quotas {
		counterKey := cache.RateLimitKey(quotaKey, key, int64(q.Window.Seconds()))

		count, err := rl.client.Incr(ctx, counterKey).Result()
		if err != nil {
			rl.logger.Warn().Err(err).Msg("redis rate limiter unavailable, allowing request")
			return true, 0
		}
		if count == 1 {
			rl.client.Expire(ctx, counterKey, q.Window)
		}
		if count > int64(q.Limit) {
			ttl, err := rl.client.TTL(ctx, counterKey).Result()
			if err != nil || ttl < 0 {
				ttl = q.Window
			}
			return false, ttl
		}
	}
	return true, 0
}

// LocalLimiter is the in-process token-bucket fallback, generalized from the
// teacher's map-of-rate.Limiter pattern. One bucket per (key, quotaKey); the
// tightest quota in the list sets the bucket's rate.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLocalLimiter() *LocalLimiter {
	ll := &LocalLimiter{limiters: make(map[string]*rate.Limiter)}
	go ll.cleanupRoutine()
	return ll
}

func (ll *LocalLimiter) cleanupRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		ll.GC()
	}
}

// GC trims the bucket map when it grows past a sane bound; exposed so the
// scheduled-maintenance job (C12) can invoke it deterministically too.
func (ll *LocalLimiter) GC() {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	if len(ll.limiters) > 10000 {
		ll.limiters = make(map[string]*rate.Limiter)
	}
}

func (ll *LocalLimiter) Allow(_ context.Context, key, quotaKey string, quotas []Quota) (bool, time.Duration) {
	tightest := tightestQuota(quotas)

	bucketKey := quotaKey + ":" + key
	ll.mu.Lock()
	limiter, exists := ll.limiters[bucketKey]
	if !exists {
		perSecond := float64(tightest.Limit) / tightest.Window.Seconds()
		limiter = rate.NewLimiter(rate.Limit(perSecond), tightest.Limit)
		ll.limiters[bucketKey] = limiter
	}
	ll.mu.Unlock()

	if limiter.Allow() {
		return true, 0
	}
	return false, time.Second
}

func tightestQuota(quotas []Quota) Quota {
	tightest := quotas[0]
	tightestRate := float64(tightest.Limit) / tightest.Window.Seconds()
	for _, q := range quotas[1:] {
		r := float64(q.Limit) / q.Window.Seconds()
		if r < tightestRate {
			tightest = q
			tightestRate = r
		}
	}
	return tightest
}

// unlimitedRoutes holds the routes spec.md §4.3 exempts from quota
// enforcement entirely (GET /api/health).
var unlimitedRoutes = map[string]bool{
	"GET /api/health": true,
}

// QuotaMiddleware enforces EndpointQuotas per spec.md §4.3, keyed by the
// caller's hashed IP. GET /api/health is exempted outright via
// unlimitedRoutes, since the request never reaches a handler that could
// otherwise short-circuit this middleware. onRateLimited, if non-nil, is
// invoked once per rejected request so the caller can emit the
// application-level rate_limit_exceeded audit event spec.md §4.9 requires,
// without this package taking a direct dependency on internal/db.
func QuotaMiddleware(limiter Limiter, hashIP func(string) string, onRateLimited func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if unlimitedRoutes[c.Request.Method+" "+c.FullPath()] {
			c.Next()
			return
		}

		quotaKey := QuotaKey(c.Request.Method, c.FullPath())
		quotas := EndpointQuotas[quotaKey]
		clientKey := hashIP(c.ClientIP())

		allowed, retryAfter := limiter.Allow(c.Request.Context(), clientKey, quotaKey, quotas)
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
			if onRateLimited != nil {
				onRateLimited(c)
			}
			apierror.Abort(c, apierror.RateLimited())
			return
		}

		c.Next()
	}
}
