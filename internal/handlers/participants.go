// Package handlers provides the HTTP handlers for the research platform API.
// This file implements participant registration and consent (spec.md §4.5).
//
// API Endpoints:
// - POST /api/participants       - Register a participant (idempotent by business id)
// - GET  /api/participants/:id   - Fetch the public participant projection
// - POST /api/consent            - Record or withdraw consent
// - GET  /api/consent/:id        - Fetch the latest consent state
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/research-platform/imagedesc-core/internal/apierror"
	"github.com/research-platform/imagedesc-core/internal/db"
	"github.com/research-platform/imagedesc-core/internal/identity"
	"github.com/research-platform/imagedesc-core/internal/validation"
)

// ParticipantHandler handles participant registration and consent endpoints.
type ParticipantHandler struct {
	db     *db.Database
	ipSalt string
}

// NewParticipantHandler creates a new participant handler.
func NewParticipantHandler(database *db.Database, ipSalt string) *ParticipantHandler {
	return &ParticipantHandler{db: database, ipSalt: ipSalt}
}

// RegisterRoutes registers participant and consent routes.
func (h *ParticipantHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/participants", h.Register)
	router.GET("/participants/:id", h.Get)
	router.POST("/consent", h.RecordConsent)
	router.GET("/consent/:id", h.GetConsent)
}

type registerRequest struct {
	ParticipantID   string `json:"participant_id" validate:"required,max=100"`
	SessionID       string `json:"session_id" validate:"required"`
	Username        string `json:"username" validate:"required,platformusername"`
	Email           string `json:"email" validate:"required,platformemail"`
	Phone           string `json:"phone" validate:"omitempty,platformphone"`
	Gender          string `json:"gender"`
	Age             int    `json:"age" validate:"required,min=1,max=120"`
	Place           string `json:"place"`
	NativeLanguage  string `json:"native_language"`
	PriorExperience string `json:"prior_experience"`
}

// Register creates a participant, or returns the existing row 200 when the
// business id is replayed with identical demographics (spec.md §4.5).
func (h *ParticipantHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Abort(c, apierror.ValidationError("invalid request body"))
		return
	}
	if msg := validation.ValidateStruct(req); msg != "" {
		apierror.Abort(c, apierror.ValidationError(msg))
		return
	}

	n := db.NewParticipant{
		ParticipantID:   req.ParticipantID,
		SessionID:       req.SessionID,
		Username:        validation.TrimOrEmpty(req.Username),
		Email:           req.Email,
		Phone:           req.Phone,
		Gender:          req.Gender,
		Age:             req.Age,
		Place:           req.Place,
		NativeLanguage:  req.NativeLanguage,
		PriorExperience: req.PriorExperience,
	}

	ipHash := identity.HashIP(h.ipSalt, c.ClientIP())
	userAgent := identity.TruncateUA(c.Request.UserAgent())

	p, err := h.db.CreateParticipant(c.Request.Context(), n, ipHash, userAgent)
	if err == db.ErrAlreadyExists {
		existing, getErr := h.db.GetParticipant(c.Request.Context(), req.ParticipantID)
		if getErr != nil {
			apierror.Abort(c, apierror.Internal(getErr))
			return
		}
		if !existing.SameDemographics(n) {
			apierror.Abort(c, apierror.Conflict("participant_id already registered with different details"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "participant_id": existing.ParticipantID})
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "participant_id": p.ParticipantID})
}

// participantProjection is the public view of a participant: no ip_hash, no
// user_agent (spec.md §4.5).
type participantProjection struct {
	ParticipantID    string     `json:"participant_id"`
	SessionID        string     `json:"session_id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	Gender           string     `json:"gender"`
	Age              int        `json:"age"`
	Place            string     `json:"place"`
	NativeLanguage   string     `json:"native_language"`
	PriorExperience  string     `json:"prior_experience"`
	PaymentStatus    string     `json:"payment_status"`
	ConsentGiven     bool       `json:"consent_given"`
	ConsentTimestamp *time.Time `json:"consent_timestamp"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Get returns the public projection of a participant.
func (h *ParticipantHandler) Get(c *gin.Context) {
	p, err := h.db.GetParticipant(c.Request.Context(), c.Param("id"))
	if err == db.ErrNotFound {
		apierror.Abort(c, apierror.NotFound("participant"))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, participantProjection{
		ParticipantID:    p.ParticipantID,
		SessionID:        p.SessionID,
		Username:         p.Username,
		Email:            p.Email,
		Gender:           p.Gender,
		Age:              p.Age,
		Place:            p.Place,
		NativeLanguage:   p.NativeLanguage,
		PriorExperience:  p.PriorExperience,
		PaymentStatus:    p.PaymentStatus,
		ConsentGiven:     p.ConsentGiven,
		ConsentTimestamp: p.ConsentTimestamp,
		CreatedAt:        p.CreatedAt,
	})
}

type consentRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	ConsentGiven  bool   `json:"consent_given"`
}

// RecordConsent records a consent decision, including withdrawal
// (consent_given=false), which is itself a valid history row.
func (h *ParticipantHandler) RecordConsent(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Abort(c, apierror.ValidationError("invalid request body"))
		return
	}
	if msg := validation.ValidateStruct(req); msg != "" {
		apierror.Abort(c, apierror.ValidationError(msg))
		return
	}

	p, err := h.db.GetParticipant(c.Request.Context(), req.ParticipantID)
	if err == db.ErrNotFound {
		apierror.Abort(c, apierror.NotFound("participant"))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	ipHash := identity.HashIP(h.ipSalt, c.ClientIP())
	userAgent := identity.TruncateUA(c.Request.UserAgent())

	if _, err := h.db.RecordConsent(c.Request.Context(), p.ID, req.ConsentGiven, ipHash, userAgent); err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetConsent returns the latest consent state for a participant.
func (h *ParticipantHandler) GetConsent(c *gin.Context) {
	p, err := h.db.GetParticipant(c.Request.Context(), c.Param("id"))
	if err == db.ErrNotFound {
		apierror.Abort(c, apierror.NotFound("participant"))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	record, err := h.db.LatestConsent(c.Request.Context(), p.ID)
	if err == db.ErrNotFound {
		c.JSON(http.StatusOK, gin.H{"consent_given": false, "consent_timestamp": nil})
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"consent_given": record.ConsentGiven, "consent_timestamp": record.CreatedAt})
}
