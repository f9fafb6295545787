// Package middleware - cors.go
//
// Implements the CORS policy of spec.md §4.3: a configured origin
// allow-list, generalized from the teacher's fixed-origin-list
// corsMiddleware into an exported constructor so cmd/main.go can build it
// from CORS_ORIGINS.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds the resolved allow-list and the any-origin flag.
type CORSConfig struct {
	// AllowedOrigins is the configured allow-list. Ignored when AllowAny is set.
	AllowedOrigins []string
	// AllowAny is set when CORS_ORIGINS is the literal "*": any origin is
	// accepted, but per spec.md §4.3 that widening disables credentialed
	// mode (no Access-Control-Allow-Credentials is ever sent in that case).
	AllowAny bool
}

// NewCORSConfig parses a comma-separated CORS_ORIGINS value. The literal
// "*" selects AllowAny; anything else is split and trimmed into an
// allow-list.
func NewCORSConfig(origins string) CORSConfig {
	origins = strings.TrimSpace(origins)
	if origins == "*" {
		return CORSConfig{AllowAny: true}
	}

	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed = append(allowed, o)
		}
	}
	return CORSConfig{AllowedOrigins: allowed}
}

// CORS enforces spec.md §4.3's CORS policy: GET/POST/PUT/DELETE/OPTIONS,
// a 10-minute preflight max-age, and credentials only when the allow-list
// is not wildcarded.
func CORS(config CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		switch {
		case config.AllowAny:
			if origin != "" {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Vary", "Origin")
			} else {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			}
		case origin != "" && containsOrigin(config.AllowedOrigins, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func containsOrigin(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == origin {
			return true
		}
	}
	return false
}
