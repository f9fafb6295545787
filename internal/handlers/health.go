// Package handlers - health.go
//
// Implements the unauthenticated operational endpoints (spec.md §4.10):
//
// - GET /api/health          - C1 storage ping + C6 sanity check
// - GET /api/security/info   - C3 rate-limit/security configuration snapshot
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/research-platform/imagedesc-core/internal/db"
	"github.com/research-platform/imagedesc-core/internal/middleware"
)

// HealthHandler serves the health and security-info endpoints.
type HealthHandler struct {
	db             *db.Database
	maxBodyBytes   int64
	paymentRequired bool
	cacheEnabled   bool
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(database *db.Database, maxBodyBytes int64, paymentRequired, cacheEnabled bool) *HealthHandler {
	return &HealthHandler{db: database, maxBodyBytes: maxBodyBytes, paymentRequired: paymentRequired, cacheEnabled: cacheEnabled}
}

// RegisterRoutes registers health and security-info routes.
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.Health)
	router.GET("/security/info", h.SecurityInfo)
}

// Health pings the database (C1) and confirms the catalog is reachable
// (C6), returning 503 if either check fails.
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.db.DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "database"})
		return
	}

	if _, err := h.db.PickRandomImage(c.Request.Context(), nil); err != nil && err != db.ErrNotFound {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "catalog"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SecurityInfo returns a non-sensitive snapshot of the active security
// configuration: rate-limit quotas, body size cap, and payment enforcement.
func (h *HealthHandler) SecurityInfo(c *gin.Context) {
	quotas := make(gin.H, len(middleware.EndpointQuotas))
	for route, q := range middleware.EndpointQuotas {
		quotas[route] = gin.H{"window_seconds": int(q.Window.Seconds()), "limit": q.Limit}
	}

	c.JSON(http.StatusOK, gin.H{
		"max_body_bytes":   h.maxBodyBytes,
		"payment_required": h.paymentRequired,
		"cache_enabled":    h.cacheEnabled,
		"quotas":           quotas,
	})
}
