package db

import (
	"context"
	"database/sql"
	"time"
)

// RecordConsent inserts a consent_records row and mirrors consent_given/
// consent_timestamp onto the participant, in the same transaction so the
// mirror is never stale relative to the latest insert (spec.md §5's
// ordering guarantee). trg_consent_recorded_audit fires off the INSERT.
func (d *Database) RecordConsent(ctx context.Context, participantFK int64, consentGiven bool, ipHash, userAgent string) (time.Time, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback()

	var createdAt time.Time
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO consent_records (participant_fk, consent_given, ip_hash, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		participantFK, consentGiven, ipHash, userAgent,
	).Scan(&createdAt); err != nil {
		return time.Time{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE participants SET consent_given = $1, consent_timestamp = $2 WHERE id = $3`,
		consentGiven, createdAt, participantFK,
	); err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, err
	}
	return createdAt, nil
}

// LatestConsent returns the most recent consent_records row for a
// participant.
func (d *Database) LatestConsent(ctx context.Context, participantFK int64) (*ConsentRecord, error) {
	c := &ConsentRecord{ParticipantFK: participantFK}
	var userAgent sql.NullString

	err := d.db.QueryRowContext(ctx, `
		SELECT id, consent_given, ip_hash, user_agent, created_at
		FROM consent_records WHERE participant_fk = $1
		ORDER BY created_at DESC, id DESC LIMIT 1`, participantFK,
	).Scan(&c.ID, &c.ConsentGiven, &c.IPHash, &userAgent, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.UserAgent = userAgent.String
	return c, nil
}
