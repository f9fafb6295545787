package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/research-platform/imagedesc-core/internal/telemetry"
)

func noopPublisher(t *testing.T) *telemetry.Publisher {
	t.Helper()
	p, err := telemetry.Connect("")
	if err != nil {
		t.Fatalf("unexpected error constructing publisher: %v", err)
	}
	return p
}

func TestRewardStatusReturns404ForUnknownParticipant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	database, mock := newMockDatabase(t)

	mock.ExpectQuery("SELECT id, participant_id, session_id").WillReturnError(sql.ErrNoRows)

	h := NewRewardHandler(database, noopPublisher(t))
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reward/unknown-participant", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRewardSelectReturns404ForUnknownParticipant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	database, mock := newMockDatabase(t)

	mock.ExpectQuery("SELECT id, participant_id, session_id").WillReturnError(sql.ErrNoRows)

	h := NewRewardHandler(database, noopPublisher(t))
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/reward/select/unknown-participant", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
