// Package handlers - reward.go
//
// Implements the reward endpoints (spec.md §4.8):
//
// - GET  /api/reward/:participant_id          - current reward status
// - POST /api/reward/select/:participant_id   - attempt a selection draw
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/research-platform/imagedesc-core/internal/apierror"
	"github.com/research-platform/imagedesc-core/internal/db"
	"github.com/research-platform/imagedesc-core/internal/telemetry"
)

// RewardCooldown is the minimum interval between selection attempts for a
// participant that didn't win (spec.md §4.8's "configured cooldown").
const RewardCooldown = 24 * time.Hour

// RewardHandler handles reward status and selection endpoints.
type RewardHandler struct {
	db        *db.Database
	publisher *telemetry.Publisher
	cooldown  time.Duration
}

// NewRewardHandler creates a new reward handler.
func NewRewardHandler(database *db.Database, publisher *telemetry.Publisher) *RewardHandler {
	return &RewardHandler{db: database, publisher: publisher, cooldown: RewardCooldown}
}

// RegisterRoutes registers reward routes.
func (h *RewardHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/reward/:participant_id", h.Status)
	router.POST("/reward/select/:participant_id", h.Select)
}

// Status returns the participant's current reward standing.
func (h *RewardHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := h.db.GetParticipant(ctx, c.Param("participant_id"))
	if err == db.ErrNotFound {
		apierror.Abort(c, apierror.NotFound("participant"))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	stats, err := h.db.ParticipantStatsFor(ctx, p.ID)
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	isWinner := false
	rewardAmount := int64(0)
	status := ""
	winner, err := h.db.RewardStatus(ctx, p.ID)
	if err != nil && err != db.ErrNotFound {
		apierror.Abort(c, apierror.Internal(err))
		return
	}
	if err == nil {
		isWinner = true
		rewardAmount = winner.Amount
		status = winner.Status
	}

	c.JSON(http.StatusOK, gin.H{
		"is_winner":              isWinner,
		"reward_amount":          rewardAmount,
		"status":                 status,
		"total_words":            stats.TotalWords,
		"survey_rounds":          stats.SurveyRounds,
		"priority_eligible":      stats.PriorityEligible,
		"last_reward_attempt_at": stats.LastRewardAttemptAt,
	})
}

// Select attempts one reward-selection draw, per spec.md §4.8's six-step
// procedure.
func (h *RewardHandler) Select(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := h.db.GetParticipant(ctx, c.Param("participant_id"))
	if err == db.ErrNotFound {
		apierror.Abort(c, apierror.NotFound("participant"))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	outcome, err := h.db.SelectReward(ctx, p.ID, h.cooldown)
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	participantFK := p.ID
	if outcome.Selected {
		_ = h.db.AppendAudit(ctx, db.AuditEvent{
			EventType:     "reward_selected",
			ParticipantFK: &participantFK,
			Endpoint:      "/api/reward/select/:participant_id",
			Method:        http.MethodPost,
			StatusCode:    http.StatusOK,
		})
		telemetry.RecordRewardSelected()
		h.publisher.PublishRewardSelected(telemetry.RewardSelectedEvent{
			ParticipantID: p.ParticipantID,
			RewardAmount:  outcome.RewardAmount,
			SelectedAt:    time.Now(),
		})
	} else {
		_ = h.db.AppendAudit(ctx, db.AuditEvent{
			EventType:     "reward_skipped",
			ParticipantFK: &participantFK,
			Endpoint:      "/api/reward/select/:participant_id",
			Method:        http.MethodPost,
			StatusCode:    http.StatusOK,
			Details:       outcome.Reason,
		})
	}

	response := gin.H{"selected": outcome.Selected}
	if outcome.Selected {
		response["reward_amount"] = outcome.RewardAmount
	} else {
		response["reason"] = outcome.Reason
		if outcome.Status != "" {
			response["status"] = outcome.Status
		}
	}

	c.JSON(http.StatusOK, response)
}
