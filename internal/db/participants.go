package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrAlreadyExists is returned by CreateParticipant whenever the business id
// is already taken, whatever the existing row's demographics (C5 then decides
// 200-vs-409 by comparing against the existing row).
var ErrAlreadyExists = errors.New("participant already exists")

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("not found")

// CreateParticipant inserts a new participant row. The audit_log row is
// written by trg_participant_created_audit in the same transaction as this
// INSERT, not by this method.
func (d *Database) CreateParticipant(ctx context.Context, n NewParticipant, ipHash, userAgent string) (*Participant, error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO participants
			(participant_id, session_id, username, email, phone, gender, age, place, native_language, prior_experience, ip_hash, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at`,
		n.ParticipantID, n.SessionID, n.Username, n.Email, n.Phone, n.Gender, n.Age, n.Place, n.NativeLanguage, n.PriorExperience, ipHash, userAgent,
	)

	p := &Participant{
		ParticipantID:   n.ParticipantID,
		SessionID:       n.SessionID,
		Username:        n.Username,
		Email:           n.Email,
		Phone:           n.Phone,
		Gender:          n.Gender,
		Age:             n.Age,
		Place:           n.Place,
		NativeLanguage:  n.NativeLanguage,
		PriorExperience: n.PriorExperience,
		PaymentStatus:   "pending",
		IPHash:          ipHash,
		UserAgent:       userAgent,
	}

	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return p, nil
}

// GetParticipant looks up a participant by business id.
func (d *Database) GetParticipant(ctx context.Context, businessID string) (*Participant, error) {
	p := &Participant{}
	var phone, place, priorExperience sql.NullString
	var consentTimestamp sql.NullTime

	err := d.db.QueryRowContext(ctx, `
		SELECT id, participant_id, session_id, username, email, phone, gender, age, place,
		       native_language, prior_experience, payment_status, consent_given, consent_timestamp,
		       ip_hash, user_agent, created_at
		FROM participants WHERE participant_id = $1`, businessID,
	).Scan(&p.ID, &p.ParticipantID, &p.SessionID, &p.Username, &p.Email, &phone, &p.Gender, &p.Age, &place,
		&p.NativeLanguage, &priorExperience, &p.PaymentStatus, &p.ConsentGiven, &consentTimestamp,
		&p.IPHash, &p.UserAgent, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Phone = phone.String
	p.Place = place.String
	p.PriorExperience = priorExperience.String
	if consentTimestamp.Valid {
		t := consentTimestamp.Time
		p.ConsentTimestamp = &t
	}
	return p, nil
}

// GetParticipantByFK looks up a participant by surrogate id, for handlers
// that already hold a foreign key (e.g. a submission's participant_fk) and
// need the public projection's business id.
func (d *Database) GetParticipantByFK(ctx context.Context, participantFK int64) (*Participant, error) {
	p := &Participant{}
	var phone, place, priorExperience sql.NullString
	var consentTimestamp sql.NullTime

	err := d.db.QueryRowContext(ctx, `
		SELECT id, participant_id, session_id, username, email, phone, gender, age, place,
		       native_language, prior_experience, payment_status, consent_given, consent_timestamp,
		       ip_hash, user_agent, created_at
		FROM participants WHERE id = $1`, participantFK,
	).Scan(&p.ID, &p.ParticipantID, &p.SessionID, &p.Username, &p.Email, &phone, &p.Gender, &p.Age, &place,
		&p.NativeLanguage, &priorExperience, &p.PaymentStatus, &p.ConsentGiven, &consentTimestamp,
		&p.IPHash, &p.UserAgent, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Phone = phone.String
	p.Place = place.String
	p.PriorExperience = priorExperience.String
	if consentTimestamp.Valid {
		t := consentTimestamp.Time
		p.ConsentTimestamp = &t
	}
	return p, nil
}

// HasPaidPayment reports whether the participant has at least one payment
// in status 'paid', the precondition the submission handler checks for
// non-survey trials when PAYMENT_REQUIRED is true.
func (d *Database) HasPaidPayment(ctx context.Context, participantFK int64) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM payments WHERE participant_fk = $1 AND status = 'paid')`,
		participantFK,
	).Scan(&exists)
	return exists, err
}
