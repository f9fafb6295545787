// Package middleware - timeout.go
//
// Enforces spec.md §5's per-request deadline: every request is bounded,
// including its database and cache round-trips, so a slow query degrades
// one request rather than exhausting the connection pool.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/research-platform/imagedesc-core/internal/apierror"
)

type TimeoutConfig struct {
	Timeout time.Duration
}

// DefaultTimeoutConfig returns spec.md §5's 15-second default.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{Timeout: 15 * time.Second}
}

// Timeout aborts the request with 503 once config.Timeout elapses, rather
// than letting a hung handler hold its goroutine and connection forever.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		go func() {
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
			return
		case <-ctx.Done():
			apierror.Abort(c, apierror.ServiceUnavailable("request took too long to process"))
			return
		}
	}
}

// TimeoutWithDuration creates a timeout middleware with a specific duration.
func TimeoutWithDuration(timeout time.Duration) gin.HandlerFunc {
	return Timeout(TimeoutConfig{Timeout: timeout})
}
