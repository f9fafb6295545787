package db

import (
	"context"
	"database/sql"
)

// PriorityWordThreshold and PriorityRoundThreshold are the thresholds at
// which participant_stats.priority_eligible flips true (spec.md §3):
// total_words >= 500 OR survey_rounds >= 3.
const (
	PriorityWordThreshold  = 500
	PriorityRoundThreshold = 3
)

// incrementAttentionStatsTx folds one submission's attention outcome into
// attention_stats (spec.md §4.7 step 7). Non-attention trials leave the
// counters untouched.
func incrementAttentionStatsTx(ctx context.Context, tx *sql.Tx, participantFK int64, isAttention bool, attentionPassed *bool) error {
	var totalDelta, passedDelta, failedDelta int
	if isAttention {
		totalDelta = 1
		if attentionPassed != nil && *attentionPassed {
			passedDelta = 1
		} else {
			failedDelta = 1
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO attention_stats (participant_fk, total_checks, passed_checks, failed_checks, attention_score, is_flagged)
		VALUES ($1, $2, $3, $4, 0, false)
		ON CONFLICT (participant_fk) DO UPDATE SET
			total_checks = attention_stats.total_checks + EXCLUDED.total_checks,
			passed_checks = attention_stats.passed_checks + EXCLUDED.passed_checks,
			failed_checks = attention_stats.failed_checks + EXCLUDED.failed_checks,
			updated_at = CURRENT_TIMESTAMP`,
		participantFK, totalDelta, passedDelta, failedDelta,
	)
	if err != nil {
		return err
	}

	// attention_score is passed/total once any checks exist; is_flagged marks
	// a participant whose score has dropped below the policy threshold
	// (spec.md §3 — no minimum-sample condition).
	_, err = tx.ExecContext(ctx, `
		UPDATE attention_stats SET
			attention_score = CASE WHEN total_checks = 0 THEN 0 ELSE passed_checks::double precision / total_checks END,
			is_flagged = (total_checks > 0 AND passed_checks::double precision / total_checks < 0.5)
		WHERE participant_fk = $1`,
		participantFK,
	)
	return err
}

// incrementParticipantStatsTx folds one submission into participant_stats
// (spec.md §4.7 step 8), re-evaluating priority_eligible as a sticky OR
// against its previous value so a later stat update can never flip it back
// to false.
func incrementParticipantStatsTx(ctx context.Context, tx *sql.Tx, participantFK int64, wordCount int, isSurvey bool) error {
	surveyDelta := 0
	if isSurvey {
		surveyDelta = 1
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO participant_stats (participant_fk, total_words, total_submissions, survey_rounds, priority_eligible)
		VALUES ($1, $2, 1, $3, ($2 >= $4 OR $3 >= $5))
		ON CONFLICT (participant_fk) DO UPDATE SET
			total_words = participant_stats.total_words + EXCLUDED.total_words,
			total_submissions = participant_stats.total_submissions + 1,
			survey_rounds = participant_stats.survey_rounds + EXCLUDED.survey_rounds,
			priority_eligible = participant_stats.priority_eligible
				OR (participant_stats.total_words + EXCLUDED.total_words) >= $4
				OR (participant_stats.survey_rounds + EXCLUDED.survey_rounds) >= $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE participant_stats.participant_fk = $1`,
		participantFK, wordCount, surveyDelta, PriorityWordThreshold, PriorityRoundThreshold,
	)
	return err
}

// mirrorAttentionScoreTx copies attention_stats.attention_score onto
// participant_stats.attention_score, the denormalized mirror spec.md §3
// keeps on the participant row so reward selection can read one table.
func mirrorAttentionScoreTx(ctx context.Context, tx *sql.Tx, participantFK int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE participant_stats SET attention_score = (
			SELECT attention_score FROM attention_stats WHERE participant_fk = $1
		) WHERE participant_fk = $1`,
		participantFK,
	)
	return err
}

// ParticipantStatsFor returns the current stats row for a participant, or a
// zero-value row if none exists yet (a participant with no submissions).
func (d *Database) ParticipantStatsFor(ctx context.Context, participantFK int64) (*ParticipantStats, error) {
	s := &ParticipantStats{ParticipantFK: participantFK}
	var lastRewardAttempt sql.NullTime

	err := d.db.QueryRowContext(ctx, `
		SELECT total_words, total_submissions, survey_rounds, attention_score, priority_eligible, last_reward_attempt_at, updated_at
		FROM participant_stats WHERE participant_fk = $1`, participantFK,
	).Scan(&s.TotalWords, &s.TotalSubmissions, &s.SurveyRounds, &s.AttentionScore, &s.PriorityEligible, &lastRewardAttempt, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if lastRewardAttempt.Valid {
		t := lastRewardAttempt.Time
		s.LastRewardAttemptAt = &t
	}
	return s, nil
}

// AttentionStatsFor returns the current attention_stats row for a
// participant, or a zero-value row (is_flagged false) if none exists yet.
func (d *Database) AttentionStatsFor(ctx context.Context, participantFK int64) (*AttentionStats, error) {
	s := &AttentionStats{ParticipantFK: participantFK}
	err := d.db.QueryRowContext(ctx, `
		SELECT total_checks, passed_checks, failed_checks, attention_score, is_flagged, updated_at
		FROM attention_stats WHERE participant_fk = $1`, participantFK,
	).Scan(&s.TotalChecks, &s.PassedChecks, &s.FailedChecks, &s.AttentionScore, &s.IsFlagged, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
