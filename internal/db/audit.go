package db

import (
	"context"
	"time"
)

// AppendAudit writes one application-level audit event (spec.md §4.9):
// security_violation, rate_limit_exceeded, reward_selected, reward_skipped.
// Unlike the trigger-written participant/consent/submission events, callers
// invoke this directly and it is best-effort — a failure here is the
// caller's to log, never to fail the request over.
func (d *Database) AppendAudit(ctx context.Context, e AuditEvent) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, participant_fk, endpoint, method, status_code, ip_hash, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.EventType, e.ParticipantFK, e.Endpoint, e.Method, e.StatusCode, e.IPHash, e.UserAgent, e.Details,
	)
	return err
}

// AppendMetric writes one performance_metrics row.
func (d *Database) AppendMetric(ctx context.Context, m PerformanceMetric) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO performance_metrics (endpoint, response_time_ms, status_code, request_size, response_size)
		VALUES ($1, $2, $3, $4, $5)`,
		m.Endpoint, m.ResponseTimeMs, m.StatusCode, m.RequestSize, m.ResponseSize,
	)
	return err
}

// PurgeAuditOlderThan deletes audit_log and performance_metrics rows past
// retention, the C12 audit-retention job's only storage call. This never
// touches participants/submissions/consent_records/payments/reward_winners,
// which the application treats as append-only for the life of the record.
func (d *Database) PurgeAuditOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	res, err := d.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	auditDeleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = d.db.ExecContext(ctx, `DELETE FROM performance_metrics WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	metricsDeleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return auditDeleted + metricsDeleted, nil
}
