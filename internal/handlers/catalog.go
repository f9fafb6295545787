// Package handlers - catalog.go
//
// Implements the image catalog and static serving endpoints (spec.md §4.6):
//
// - GET /api/images/random          - draw one unseen image for a session
// - GET /api/images/:image_id       - stream the catalog's static bytes
package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/research-platform/imagedesc-core/internal/apierror"
	"github.com/research-platform/imagedesc-core/internal/catalog"
	"github.com/research-platform/imagedesc-core/internal/db"
)

// CatalogHandler handles random-draw and static-file image serving.
type CatalogHandler struct {
	db        *db.Database
	exclusion *catalog.Exclusion
	imagesDir string
}

// NewCatalogHandler creates a new catalog handler. imagesDir is the root
// directory static image bytes are served from (spec.md §5's "Static
// files").
func NewCatalogHandler(database *db.Database, exclusion *catalog.Exclusion, imagesDir string) *CatalogHandler {
	return &CatalogHandler{db: database, exclusion: exclusion, imagesDir: imagesDir}
}

// RegisterRoutes registers catalog routes.
func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/images/random", h.Random)
	router.GET("/images/:image_id", h.Serve)
}

type randomImageResponse struct {
	ImageID  string `json:"image_id"`
	ImageURL string `json:"image_url"`
}

// Random draws one image uniformly at random from the catalog, excluding
// any image already served to this session within the last 24 hours. If
// every image has been served, exclusion is reset and the draw is
// unconstrained (spec.md §4.6).
func (h *CatalogHandler) Random(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		apierror.Abort(c, apierror.ValidationError("session_id is required"))
		return
	}

	ctx := c.Request.Context()
	excluded := h.exclusion.Seen(ctx, sessionID)

	img, err := h.db.PickRandomImage(ctx, excluded)
	if err == db.ErrNotFound && len(excluded) > 0 {
		h.exclusion.Reset(ctx, sessionID)
		img, err = h.db.PickRandomImage(ctx, nil)
	}
	if err == db.ErrNotFound {
		apierror.Abort(c, apierror.NotFound("image"))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	h.exclusion.Mark(ctx, sessionID, img.ImageID)

	c.JSON(http.StatusOK, randomImageResponse{ImageID: img.ImageID, ImageURL: img.URL})
}

// Serve streams the static bytes for a catalog image with a long-lived
// Cache-Control header. Missing files 404 even when the catalog row
// exists, per spec.md §5.
func (h *CatalogHandler) Serve(c *gin.Context) {
	imageID := c.Param("image_id")

	if _, err := h.db.GetImageByBusinessID(c.Request.Context(), imageID); err == db.ErrNotFound {
		apierror.Abort(c, apierror.NotFound("image"))
		return
	} else if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	path := filepath.Join(h.imagesDir, filepath.FromSlash(imageID))
	cleaned, err := filepath.Abs(path)
	if err != nil || !strings.HasPrefix(cleaned, mustAbs(h.imagesDir)) {
		apierror.Abort(c, apierror.NotFound("image"))
		return
	}

	c.Header("Cache-Control", "public, max-age=604800, immutable")
	c.File(cleaned)
}

func mustAbs(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
