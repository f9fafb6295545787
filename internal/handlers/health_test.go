package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-platform/imagedesc-core/internal/db"
)

func newMockDatabase(t *testing.T) (*db.Database, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return db.NewDatabaseForTesting(mockDB), mock
}

func TestHealthReturnsOKWhenDatabaseAndCatalogAreHealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	database, mock := newMockDatabase(t)

	mock.ExpectPing().WillReturnError(nil)
	rows := sqlmock.NewRows([]string{"id", "image_id", "url", "width", "height", "object_count", "difficulty", "seeded_from", "created_at"})
	mock.ExpectQuery("SELECT id, image_id, url").WillReturnRows(rows)

	h := NewHealthHandler(database, 65536, true, false)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityInfoReportsConfiguredLimits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	database, _ := newMockDatabase(t)

	h := NewHealthHandler(database, 65536, true, true)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/security/info", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "max_body_bytes")
	assert.Contains(t, w.Body.String(), "65536")
}
