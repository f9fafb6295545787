// Package middleware - auditlog.go
//
// Appends one audit_log row and one performance_metrics row for every
// request (spec.md §4.9/C9), independent of and in addition to the
// per-entity audit rows the database triggers insert (trg_participant_created_audit
// etc.). Both writes are best-effort: a failure here is logged and never
// fails the request.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/research-platform/imagedesc-core/internal/db"
	"github.com/research-platform/imagedesc-core/internal/identity"
	"github.com/research-platform/imagedesc-core/internal/telemetry"
)

// AuditLogger writes the generic per-request audit and metric rows. A nil
// database disables both writes, so the platform still runs without
// Postgres configured (e.g. unit tests of unrelated middleware).
type AuditLogger struct {
	database *db.Database
	ipSalt   string
	logger   zerolog.Logger
}

func NewAuditLogger(database *db.Database, ipSalt string, logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{database: database, ipSalt: ipSalt, logger: logger}
}

// Middleware records the request asynchronously after it completes, so
// logging latency never adds to response latency.
func (a *AuditLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestSize := c.Request.ContentLength
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		telemetry.ObserveRequest(c.Request.Method, route, statusClass(status), duration.Seconds())

		if a.database == nil {
			return
		}

		ipHash := identity.HashIP(a.ipSalt, c.ClientIP())
		c.Set("client_ip_hash", ipHash)

		endpoint := c.Request.Method + " " + route
		details := ""
		if len(c.Errors) > 0 {
			details = truncateDetails(c.Errors.String())
		}

		var participantFK interface{}
		if pid, exists := c.Get("participant_fk"); exists {
			participantFK = pid
		}

		go a.writeRows(endpoint, c.Request.Method, status, ipHash, c.Request.UserAgent(), details,
			participantFK, duration, requestSize, int64(c.Writer.Size()))
	}
}

// statusClass buckets an HTTP status into a low-cardinality Prometheus label.
func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func (a *AuditLogger) writeRows(endpoint, method string, status int, ipHash, userAgent, details string,
	participantFK interface{}, duration time.Duration, requestSize, responseSize int64) {

	if _, err := a.database.DB().Exec(
		`INSERT INTO audit_log (event_type, participant_fk, endpoint, method, status_code, ip_hash, user_agent, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		"http_request", participantFK, endpoint, method, status, ipHash, userAgent, details,
	); err != nil {
		a.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("audit log write failed")
		telemetry.RecordAuditWriteFailure()
	}

	if requestSize < 0 {
		requestSize = 0
	}
	if _, err := a.database.DB().Exec(
		`INSERT INTO performance_metrics (endpoint, response_time_ms, status_code, request_size, response_size)
		 VALUES ($1, $2, $3, $4, $5)`,
		endpoint, duration.Milliseconds(), status, requestSize, responseSize,
	); err != nil {
		a.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("performance metric write failed")
		telemetry.RecordAuditWriteFailure()
	}
}

func truncateDetails(s string) string {
	const max = 2000
	if len(s) <= max {
		return s
	}
	return s[:max]
}
