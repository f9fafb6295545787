package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-platform/imagedesc-core/internal/catalog"
)

func TestRandomRequiresSessionID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	database, _ := newMockDatabase(t)

	h := NewCatalogHandler(database, catalog.NewExclusion(nil), t.TempDir())
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/images/random", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRandomReturnsDrawnImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	database, mock := newMockDatabase(t)

	rows := sqlmock.NewRows([]string{"id", "image_id", "url", "width", "height", "object_count", "difficulty", "seeded_from", "created_at"}).
		AddRow(int64(1), "img-1", "https://example.com/img-1.jpg", nil, nil, nil, nil, nil, time.Now())
	mock.ExpectQuery("SELECT id, image_id, url").WillReturnRows(rows)

	h := NewCatalogHandler(database, catalog.NewExclusion(nil), t.TempDir())
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/images/random?session_id=session-1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "img-1")
}

func TestServeReturns404ForUnknownImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	database, mock := newMockDatabase(t)

	mock.ExpectQuery("SELECT id, image_id, url").WillReturnError(sql.ErrNoRows)

	h := NewCatalogHandler(database, catalog.NewExclusion(nil), t.TempDir())
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/images/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
