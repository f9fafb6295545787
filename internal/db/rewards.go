package db

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	"github.com/lib/pq"
)

// RewardAmount is the fixed payout spec.md §4.8 step 5 grants a winner.
const RewardAmount int64 = 10

// RewardOutcome is the result of one POST /api/reward/select/{participant_id}
// attempt.
type RewardOutcome struct {
	Selected     bool
	RewardAmount int64
	Reason       string // "no_activity", "already_decided", "cooldown", "not_selected"
	Status       string // existing reward_winners.status, set only when already_decided
}

// SelectReward runs spec.md §4.8's six-step procedure inside a single
// transaction. The row lock on participant_stats serializes concurrent
// callers for the same participant; the UNIQUE constraint on
// reward_winners(participant_fk) is the final backstop if two callers
// somehow both pass the probability draw in overlapping transactions.
func (d *Database) SelectReward(ctx context.Context, participantFK int64, cooldown time.Duration) (*RewardOutcome, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var totalWords, surveyRounds int
	var priorityEligible bool
	var lastAttempt sql.NullTime

	err = tx.QueryRowContext(ctx, `
		SELECT total_words, survey_rounds, priority_eligible, last_reward_attempt_at
		FROM participant_stats WHERE participant_fk = $1 FOR UPDATE`,
		participantFK,
	).Scan(&totalWords, &surveyRounds, &priorityEligible, &lastAttempt)

	if err == sql.ErrNoRows {
		return &RewardOutcome{Selected: false, Reason: "no_activity"}, nil
	}
	if err != nil {
		return nil, err
	}

	var existingStatus string
	err = tx.QueryRowContext(ctx, `SELECT status FROM reward_winners WHERE participant_fk = $1`, participantFK).Scan(&existingStatus)
	if err == nil {
		return &RewardOutcome{Selected: false, Reason: "already_decided", Status: existingStatus}, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	if lastAttempt.Valid && time.Since(lastAttempt.Time) < cooldown {
		return &RewardOutcome{Selected: false, Reason: "cooldown"}, nil
	}

	p := 0.05
	if priorityEligible {
		p += 0.10
	}

	if rand.Float64() < p {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reward_winners (participant_fk, amount, status) VALUES ($1, $2, 'pending')`,
			participantFK, RewardAmount,
		)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				var status string
				if err := tx.QueryRowContext(ctx, `SELECT status FROM reward_winners WHERE participant_fk = $1`, participantFK).Scan(&status); err != nil {
					return nil, err
				}
				if err := tx.Commit(); err != nil {
					return nil, err
				}
				return &RewardOutcome{Selected: false, Reason: "already_decided", Status: status}, nil
			}
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &RewardOutcome{Selected: true, RewardAmount: RewardAmount}, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE participant_stats SET last_reward_attempt_at = CURRENT_TIMESTAMP WHERE participant_fk = $1`,
		participantFK,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &RewardOutcome{Selected: false, Reason: "not_selected"}, nil
}

// CountParticipantsInCooldown reports how many participants attempted a
// reward selection within the given window and have not yet won, for the
// scheduled cooldown report job (SPEC_FULL.md §4.12). Purely informational.
func (d *Database) CountParticipantsInCooldown(ctx context.Context, cooldown time.Duration) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM participant_stats ps
		WHERE ps.last_reward_attempt_at IS NOT NULL
		  AND ps.last_reward_attempt_at > $1
		  AND NOT EXISTS (SELECT 1 FROM reward_winners rw WHERE rw.participant_fk = ps.participant_fk)`,
		time.Now().Add(-cooldown),
	).Scan(&count)
	return count, err
}

// RewardStatus reports the current reward_winners row for a participant, if
// any, for GET /api/reward/{participant_id}.
func (d *Database) RewardStatus(ctx context.Context, participantFK int64) (*RewardWinner, error) {
	rw := &RewardWinner{ParticipantFK: participantFK}
	var paidAt sql.NullTime

	err := d.db.QueryRowContext(ctx, `
		SELECT id, amount, status, selected_at, paid_at FROM reward_winners WHERE participant_fk = $1`,
		participantFK,
	).Scan(&rw.ID, &rw.Amount, &rw.Status, &rw.SelectedAt, &paidAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		rw.PaidAt = &t
	}
	return rw, nil
}
