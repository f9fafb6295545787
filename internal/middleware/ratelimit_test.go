package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLocalLimiterAllowsWithinQuota(t *testing.T) {
	ll := NewLocalLimiter()
	quotas := []Quota{{Window: time.Minute, Limit: 5}}

	for i := 0; i < 5; i++ {
		allowed, _ := ll.Allow(context.Background(), "client-a", "POST /api/consent", quotas)
		assert.True(t, allowed, "call %d should be allowed", i+1)
	}
}

func TestLocalLimiterRejectsOverQuota(t *testing.T) {
	ll := NewLocalLimiter()
	quotas := []Quota{{Window: time.Minute, Limit: 2}}

	ll.Allow(context.Background(), "client-b", "POST /api/consent", quotas)
	ll.Allow(context.Background(), "client-b", "POST /api/consent", quotas)
	allowed, retryAfter := ll.Allow(context.Background(), "client-b", "POST /api/consent", quotas)

	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestLocalLimiterIsolatesClients(t *testing.T) {
	ll := NewLocalLimiter()
	quotas := []Quota{{Window: time.Minute, Limit: 1}}

	allowedA, _ := ll.Allow(context.Background(), "client-c", "POST /api/consent", quotas)
	allowedB, _ := ll.Allow(context.Background(), "client-d", "POST /api/consent", quotas)

	assert.True(t, allowedA)
	assert.True(t, allowedB)
}

func TestQuotaKeyFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "POST /api/consent", QuotaKey("POST", "/api/consent"))
	assert.Equal(t, "default", QuotaKey("GET", "/api/unknown"))
}

func TestQuotaKeyMatchesRewardSelectRoute(t *testing.T) {
	key := QuotaKey("POST", "/api/reward/select/:participant_id")
	assert.Equal(t, "POST /api/reward/select/:participant_id", key)

	quotas := EndpointQuotas[key]
	assert.Equal(t, []Quota{{Window: time.Minute, Limit: 10}}, quotas)
}

// denyAllLimiter always rejects, so a route that still returns 200 through
// it must have bypassed QuotaMiddleware entirely.
type denyAllLimiter struct{}

func (denyAllLimiter) Allow(context.Context, string, string, []Quota) (bool, time.Duration) {
	return false, time.Second
}

func TestQuotaMiddlewareExemptsHealthRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.Use(QuotaMiddleware(denyAllLimiter{}, func(ip string) string { return ip }, nil))
	api.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.GET("/images/random", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/images/random", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
