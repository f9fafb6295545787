package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrDescriptionMismatch is returned by RecordSubmission when a replayed
// request lands on an already-assigned survey_index but its description
// hash doesn't match the stored row — a genuine conflict, not a retry.
var ErrDescriptionMismatch = errors.New("submission conflicts with an existing one")

// RecordSubmission performs spec.md §4.7 steps 5-10 in a single transaction:
// ensure the image exists, assign the next survey_index under a row lock on
// the participant, insert the submission, and fold the result into
// attention_stats/participant_stats. trg_submission_created_audit writes the
// audit row off the INSERT.
//
// A unique-index hit on (participant_fk, survey_index) — which the row lock
// should make unreachable from a single writer, but a retried request
// racing its own earlier attempt can still produce — is treated as a replay:
// the existing row is fetched and compared by description hash. A match
// returns the existing submission instead of erroring; a mismatch returns
// ErrDescriptionMismatch for the caller to turn into 409.
func (d *Database) RecordSubmission(ctx context.Context, n NewSubmission, imageID, imageURL string) (*Submission, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT id FROM participants WHERE id = $1 FOR UPDATE`, n.ParticipantFK); err != nil {
		return nil, err
	}

	var imageFK int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO images (image_id, url) VALUES ($1, $2)
		ON CONFLICT (image_id) DO UPDATE SET image_id = EXCLUDED.image_id
		RETURNING id`, imageID, imageURL,
	).Scan(&imageFK); err != nil {
		return nil, err
	}
	n.ImageFK = imageFK

	var nextIndex int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(survey_index) + 1, 0) FROM submissions WHERE participant_fk = $1`,
		n.ParticipantFK,
	).Scan(&nextIndex); err != nil {
		return nil, err
	}

	sub := &Submission{
		ParticipantFK:    n.ParticipantFK,
		ImageFK:          imageFK,
		SessionID:        n.SessionID,
		SurveyIndex:      nextIndex,
		Description:      n.Description,
		DescriptionHash:  n.DescriptionHash,
		WordCount:        n.WordCount,
		Rating:           n.Rating,
		Feedback:         n.Feedback,
		TimeSpentSeconds: n.TimeSpentSeconds,
		IsSurvey:         n.IsSurvey,
		IsAttention:      n.IsAttention,
		AttentionPassed:  n.AttentionPassed,
		TooFastFlag:      n.TooFastFlag,
		QualityScore:     n.QualityScore,
		AISuspected:      n.AISuspected,
		IPHash:           n.IPHash,
		UserAgent:        n.UserAgent,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO submissions
			(submission_id, participant_fk, image_fk, session_id, survey_index, description, description_hash,
			 word_count, rating, feedback, time_spent_seconds, is_survey, is_attention, attention_passed,
			 too_fast_flag, quality_score, ai_suspected, ip_hash, user_agent)
		VALUES (gen_random_uuid()::text, $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id, submission_id, created_at`,
		n.ParticipantFK, imageFK, n.SessionID, nextIndex, n.Description, n.DescriptionHash,
		n.WordCount, n.Rating, n.Feedback, n.TimeSpentSeconds, n.IsSurvey, n.IsAttention, n.AttentionPassed,
		n.TooFastFlag, n.QualityScore, n.AISuspected, n.IPHash, n.UserAgent,
	).Scan(&sub.ID, &sub.SubmissionID, &sub.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return d.fetchReplayedSubmission(ctx, n.ParticipantFK, nextIndex, n.DescriptionHash)
		}
		return nil, err
	}

	if err := incrementAttentionStatsTx(ctx, tx, n.ParticipantFK, n.IsAttention, n.AttentionPassed); err != nil {
		return nil, err
	}
	if err := incrementParticipantStatsTx(ctx, tx, n.ParticipantFK, n.WordCount, n.IsSurvey); err != nil {
		return nil, err
	}
	if err := mirrorAttentionScoreTx(ctx, tx, n.ParticipantFK); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetSubmissionByBusinessID looks up a submission by its business id, for
// the read-only GET /api/submissions/{id} projection.
func (d *Database) GetSubmissionByBusinessID(ctx context.Context, submissionID string) (*Submission, error) {
	sub := &Submission{}
	var attentionPassed sql.NullBool
	var qualityScore sql.NullFloat64

	err := d.db.QueryRowContext(ctx, `
		SELECT id, submission_id, participant_fk, image_fk, session_id, survey_index, description, description_hash,
		       word_count, rating, feedback, time_spent_seconds, is_survey, is_attention, attention_passed,
		       too_fast_flag, quality_score, ai_suspected, ip_hash, user_agent, created_at
		FROM submissions WHERE submission_id = $1`,
		submissionID,
	).Scan(&sub.ID, &sub.SubmissionID, &sub.ParticipantFK, &sub.ImageFK, &sub.SessionID, &sub.SurveyIndex,
		&sub.Description, &sub.DescriptionHash, &sub.WordCount, &sub.Rating, &sub.Feedback, &sub.TimeSpentSeconds,
		&sub.IsSurvey, &sub.IsAttention, &attentionPassed, &sub.TooFastFlag, &qualityScore, &sub.AISuspected,
		&sub.IPHash, &sub.UserAgent, &sub.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if attentionPassed.Valid {
		b := attentionPassed.Bool
		sub.AttentionPassed = &b
	}
	if qualityScore.Valid {
		q := qualityScore.Float64
		sub.QualityScore = &q
	}
	return sub, nil
}

func (d *Database) fetchReplayedSubmission(ctx context.Context, participantFK int64, surveyIndex int, descriptionHash string) (*Submission, error) {
	sub := &Submission{}
	var attentionPassed sql.NullBool
	var qualityScore sql.NullFloat64

	err := d.db.QueryRowContext(ctx, `
		SELECT id, submission_id, participant_fk, image_fk, session_id, survey_index, description, description_hash,
		       word_count, rating, feedback, time_spent_seconds, is_survey, is_attention, attention_passed,
		       too_fast_flag, quality_score, ai_suspected, ip_hash, user_agent, created_at
		FROM submissions WHERE participant_fk = $1 AND survey_index = $2`,
		participantFK, surveyIndex,
	).Scan(&sub.ID, &sub.SubmissionID, &sub.ParticipantFK, &sub.ImageFK, &sub.SessionID, &sub.SurveyIndex,
		&sub.Description, &sub.DescriptionHash, &sub.WordCount, &sub.Rating, &sub.Feedback, &sub.TimeSpentSeconds,
		&sub.IsSurvey, &sub.IsAttention, &attentionPassed, &sub.TooFastFlag, &qualityScore, &sub.AISuspected,
		&sub.IPHash, &sub.UserAgent, &sub.CreatedAt)

	if err != nil {
		return nil, err
	}
	if attentionPassed.Valid {
		b := attentionPassed.Bool
		sub.AttentionPassed = &b
	}
	if qualityScore.Valid {
		q := qualityScore.Float64
		sub.QualityScore = &q
	}

	if sub.DescriptionHash != descriptionHash {
		return nil, ErrDescriptionMismatch
	}
	return sub, nil
}
