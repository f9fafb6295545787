// Package handlers - submission.go
//
// Implements the submission endpoints (spec.md §4.7):
//
// - POST /api/submit               - record a description submission
// - GET  /api/submissions/:id      - read back a submission projection
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	"github.com/research-platform/imagedesc-core/internal/apierror"
	"github.com/research-platform/imagedesc-core/internal/db"
	"github.com/research-platform/imagedesc-core/internal/identity"
	"github.com/research-platform/imagedesc-core/internal/telemetry"
	"github.com/research-platform/imagedesc-core/internal/validation"
)

// SubmissionConfig carries the operator-tunable thresholds spec.md §4.7
// cites by name with defaults (SPEC_FULL.md §6).
type SubmissionConfig struct {
	MinWordCount     int
	TooFastSeconds   int
	PaymentRequired  bool
}

// DefaultSubmissionConfig returns spec.md's documented defaults.
func DefaultSubmissionConfig() SubmissionConfig {
	return SubmissionConfig{MinWordCount: 60, TooFastSeconds: 5, PaymentRequired: true}
}

// SubmissionHandler handles description submission endpoints.
type SubmissionHandler struct {
	db     *db.Database
	ipSalt string
	config SubmissionConfig
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(database *db.Database, ipSalt string, config SubmissionConfig) *SubmissionHandler {
	return &SubmissionHandler{db: database, ipSalt: ipSalt, config: config}
}

// RegisterRoutes registers submission routes.
func (h *SubmissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/submit", h.Submit)
	router.GET("/submissions/:id", h.Get)
}

type submitRequest struct {
	ParticipantID      string `json:"participant_id" validate:"required"`
	SessionID          string `json:"session_id" validate:"required"`
	ImageID            string `json:"image_id" validate:"required"`
	ImageURL           string `json:"image_url" validate:"required"`
	Description        string `json:"description" validate:"required,max=10000"`
	Rating             int    `json:"rating" validate:"required,min=1,max=10"`
	Feedback           string `json:"feedback" validate:"max=2000"`
	TimeSpentSeconds   int    `json:"time_spent_seconds" validate:"min=0"`
	IsSurvey           bool   `json:"is_survey"`
	IsAttention        bool   `json:"is_attention"`
	AttentionExpected  string `json:"attention_expected"`
}

// Submit validates and records one submission, per the nine-step pipeline
// in spec.md §4.7.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Abort(c, apierror.ValidationError("invalid request body"))
		return
	}

	ctx := c.Request.Context()

	// spec.md §4.7 pre-conditions, checked in order, first failure wins:
	// 1. participant exists, 2. consent, 3. payment, 4. validation.
	p, err := h.db.GetParticipant(ctx, req.ParticipantID)
	if err == db.ErrNotFound {
		apierror.Abort(c, apierror.NotFound("participant"))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	if !p.ConsentGiven {
		apierror.Abort(c, apierror.ConsentRequired())
		return
	}

	if !req.IsSurvey && h.config.PaymentRequired {
		paid, err := h.db.HasPaidPayment(ctx, p.ID)
		if err != nil {
			apierror.Abort(c, apierror.Internal(err))
			return
		}
		if !paid {
			apierror.Abort(c, apierror.PaymentRequired())
			return
		}
	}

	if req.IsAttention && strings.TrimSpace(req.AttentionExpected) == "" {
		apierror.Abort(c, apierror.ValidationError("attention_expected is required when is_attention is true"))
		return
	}
	if msg := validation.ValidateStruct(req); msg != "" {
		apierror.Abort(c, apierror.ValidationError(msg))
		return
	}
	if validation.IsSuspicious(req.Description) {
		_ = h.db.AppendAudit(ctx, db.AuditEvent{
			EventType:  "security_violation",
			Endpoint:   "/api/submit",
			Method:     http.MethodPost,
			StatusCode: http.StatusBadRequest,
			Details:    "suspicious content in submission description",
		})
		apierror.Abort(c, apierror.ValidationError("description contains disallowed content"))
		return
	}

	// SPEC_FULL.md §4.4: bluemonday's StrictPolicy is applied to persisted
	// free-text fields before they reach storage.
	req.Description = validation.Sanitize(req.Description)
	req.Feedback = validation.Sanitize(req.Feedback)

	wordCount := validation.WordCount(req.Description)
	if wordCount < h.config.MinWordCount {
		apierror.Abort(c, apierror.ValidationError("description is below the minimum word count"))
		return
	}

	tooFast := req.TimeSpentSeconds < h.config.TooFastSeconds

	var attentionPassed *bool
	if req.IsAttention {
		passed := containsWholeWord(req.Description, req.AttentionExpected)
		attentionPassed = &passed
	}

	qualityScore := computeQualityScore(req.Description, wordCount)
	aiSuspected := qualityScore > 0.95 && countStructuralMarkers(req.Description) >= 3

	ipHash := identity.HashIP(h.ipSalt, c.ClientIP())
	userAgent := identity.TruncateUA(c.Request.UserAgent())

	n := db.NewSubmission{
		SessionID:        req.SessionID,
		Description:      req.Description,
		DescriptionHash:  descriptionHash(req.Description),
		WordCount:        wordCount,
		Rating:           req.Rating,
		Feedback:         req.Feedback,
		TimeSpentSeconds: req.TimeSpentSeconds,
		IsSurvey:         req.IsSurvey,
		IsAttention:      req.IsAttention,
		AttentionPassed:  attentionPassed,
		TooFastFlag:      tooFast,
		QualityScore:     &qualityScore,
		AISuspected:      aiSuspected,
		IPHash:           ipHash,
		UserAgent:        userAgent,
		ParticipantFK:    p.ID,
	}

	sub, err := h.db.RecordSubmission(ctx, n, req.ImageID, req.ImageURL)
	if err == db.ErrDescriptionMismatch {
		apierror.Abort(c, apierror.Conflict("submission conflicts with an existing one for this survey round"))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	attStats, err := h.db.AttentionStatsFor(ctx, p.ID)
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	kind := "payable"
	if req.IsSurvey {
		kind = "survey"
	}
	telemetry.RecordSubmission(kind)

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"word_count":        sub.WordCount,
		"attention_passed":  sub.AttentionPassed,
		"submission_id":     sub.SubmissionID,
		"survey_index":      sub.SurveyIndex,
		"is_flagged_now":    attStats.IsFlagged,
	})
}

type submissionProjection struct {
	SubmissionID     string   `json:"submission_id"`
	ParticipantID    string   `json:"participant_id"`
	SessionID        string   `json:"session_id"`
	SurveyIndex      int      `json:"survey_index"`
	WordCount        int      `json:"word_count"`
	Rating           int      `json:"rating"`
	IsSurvey         bool     `json:"is_survey"`
	IsAttention      bool     `json:"is_attention"`
	AttentionPassed  *bool    `json:"attention_passed"`
	TooFastFlag      bool     `json:"too_fast_flag"`
	QualityScore     *float64 `json:"quality_score"`
	AISuspected      bool     `json:"ai_suspected"`
}

// Get returns a read-only projection of one submission by business id.
func (h *SubmissionHandler) Get(c *gin.Context) {
	sub, err := h.db.GetSubmissionByBusinessID(c.Request.Context(), c.Param("id"))
	if err == db.ErrNotFound {
		apierror.Abort(c, apierror.NotFound("submission"))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	p, err := h.db.GetParticipantByFK(c.Request.Context(), sub.ParticipantFK)
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, submissionProjection{
		SubmissionID:    sub.SubmissionID,
		ParticipantID:   p.ParticipantID,
		SessionID:       sub.SessionID,
		SurveyIndex:     sub.SurveyIndex,
		WordCount:       sub.WordCount,
		Rating:          sub.Rating,
		IsSurvey:        sub.IsSurvey,
		IsAttention:     sub.IsAttention,
		AttentionPassed: sub.AttentionPassed,
		TooFastFlag:     sub.TooFastFlag,
		QualityScore:    sub.QualityScore,
		AISuspected:     sub.AISuspected,
	})
}

func descriptionHash(description string) string {
	sum := sha256.Sum256([]byte(description))
	return hex.EncodeToString(sum[:])
}

// containsWholeWord reports whether needle appears as a whole word in
// haystack, case-insensitively (spec.md §4.7 step 3).
func containsWholeWord(haystack, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	for _, word := range strings.FieldsFunc(strings.ToLower(haystack), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if word == needle {
			return true
		}
	}
	return false
}

// computeQualityScore blends normalized word count, character diversity,
// punctuation presence, and sentence count into a cheap [0,1] score
// (spec.md §4.7 step 4).
func computeQualityScore(description string, wordCount int) float64 {
	const wordCap = 500
	wordComponent := float64(wordCount) / wordCap
	if wordComponent > 1 {
		wordComponent = 1
	}

	unique := map[rune]struct{}{}
	for _, r := range description {
		unique[r] = struct{}{}
	}
	diversity := 0.0
	if len(description) > 0 {
		diversity = float64(len(unique)) / float64(len(description))
		if diversity > 1 {
			diversity = 1
		}
	}

	punctuation := 0.0
	if strings.ContainsAny(description, ".,!?;:") {
		punctuation = 1.0
	}

	sentences := 0
	for _, r := range description {
		if r == '.' || r == '!' || r == '?' {
			sentences++
		}
	}
	sentenceComponent := float64(sentences) / 10
	if sentenceComponent > 1 {
		sentenceComponent = 1
	}

	return (wordComponent + diversity + punctuation + sentenceComponent) / 4
}

// countStructuralMarkers counts uncommon structural markers: enumerated
// list items, parenthetical asides, and semicolons (spec.md §4.7 step 4).
func countStructuralMarkers(description string) int {
	count := 0
	if strings.Contains(description, "1.") || strings.Contains(description, "1)") {
		count++
	}
	if strings.Contains(description, "(") && strings.Contains(description, ")") {
		count++
	}
	if strings.Contains(description, ";") {
		count++
	}
	return count
}

