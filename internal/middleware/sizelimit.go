package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/research-platform/imagedesc-core/internal/apierror"
)

// DefaultMaxBodyBytes is spec.md §6's MAX_BODY_BYTES default. The API is
// JSON-only — there is no file upload endpoint — so a single cap applies to
// every request body.
const DefaultMaxBodyBytes int64 = 65536

// RequestSizeLimiter rejects bodies over maxSize via a fast Content-Length
// check and wraps the reader with http.MaxBytesReader to catch a lying or
// chunked request that exceeds the cap mid-stream.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			apierror.Abort(c, apierror.PayloadTooLarge())
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// DefaultSizeLimiter enforces the maxBodyBytes cap it is given (the caller
// passes DefaultMaxBodyBytes or the MAX_BODY_BYTES override).
func DefaultSizeLimiter(maxBodyBytes int64) gin.HandlerFunc {
	return RequestSizeLimiter(maxBodyBytes)
}
