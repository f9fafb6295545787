// Package handlers - metrics.go
//
// Exposes the Prometheus registry at GET /api/metrics (SPEC_FULL.md C9
// supplement), gated by METRICS_ENABLED so deployments that don't scrape
// Prometheus don't pay for the collector or expose the endpoint.
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterMetricsRoute mounts the Prometheus handler at /api/metrics.
func RegisterMetricsRoute(router *gin.RouterGroup) {
	handler := promhttp.Handler()
	router.GET("/metrics", gin.WrapH(handler))
}
