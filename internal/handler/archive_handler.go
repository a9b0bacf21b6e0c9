package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
	"github.com/drtc-peru/tramite-api/pkg/response"
)

type archiveService interface {
	Archive(ctx context.Context, req dto.ArchiveDocumentRequest, actor *models.JWTClaims) (*models.ArchiveEntry, error)
	Get(ctx context.Context, id string) (*models.ArchiveEntry, error)
	List(ctx context.Context, query dto.ArchiveListQuery) ([]models.ArchiveEntry, int, error)
	NearExpiry(ctx context.Context, days int) ([]models.ArchiveEntry, error)
	Expired(ctx context.Context) ([]models.ArchiveEntry, error)
	BulkDestroy(ctx context.Context, req dto.BulkArchiveOpRequest, actor *models.JWTClaims) ([]models.ArchiveOpResult, error)
	BulkMigrate(ctx context.Context, req dto.BulkArchiveOpRequest, actor *models.JWTClaims) ([]models.ArchiveOpResult, error)
}

// ArchiveHandler manages physical archive endpoints.
type ArchiveHandler struct {
	service archiveService
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(svc archiveService) *ArchiveHandler {
	return &ArchiveHandler{service: svc}
}

// Archive godoc
// @Summary Move a document into the physical archive
// @Tags Archivo
// @Accept json
// @Produce json
// @Param payload body dto.ArchiveDocumentRequest true "Archive data"
// @Success 201 {object} response.Envelope
// @Router /archivo [post]
func (h *ArchiveHandler) Archive(c *gin.Context) {
	var req dto.ArchiveDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid archive payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.service.Archive(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Get godoc
// @Summary Get one archive entry
// @Tags Archivo
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /archivo/{id} [get]
func (h *ArchiveHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// List godoc
// @Summary List archived entries
// @Tags Archivo
// @Produce json
// @Param clasificacion query string false "Classification filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /archivo [get]
func (h *ArchiveHandler) List(c *gin.Context) {
	var query dto.ArchiveListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid list query"))
		return
	}
	entries, total, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pageMeta(query.Page, query.PageSize, total))
}

// NearExpiry godoc
// @Summary Entries whose retention lapses soon
// @Tags Archivo
// @Produce json
// @Param dias query int false "Window in days (default 30)"
// @Success 200 {object} response.Envelope
// @Router /archivo/por-vencer [get]
func (h *ArchiveHandler) NearExpiry(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("dias"))
	entries, err := h.service.NearExpiry(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Expired godoc
// @Summary Entries whose retention already lapsed
// @Tags Archivo
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /archivo/vencidos [get]
func (h *ArchiveHandler) Expired(c *gin.Context) {
	entries, err := h.service.Expired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// BulkDestroy godoc
// @Summary Destroy a batch of expired entries
// @Tags Archivo
// @Accept json
// @Produce json
// @Param payload body dto.BulkArchiveOpRequest true "Entry batch"
// @Success 200 {object} response.Envelope
// @Router /archivo/destruir [post]
func (h *ArchiveHandler) BulkDestroy(c *gin.Context) {
	var req dto.BulkArchiveOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	results, err := h.service.BulkDestroy(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// BulkMigrate godoc
// @Summary Mark a batch of entries as migrated to external custody
// @Tags Archivo
// @Accept json
// @Produce json
// @Param payload body dto.BulkArchiveOpRequest true "Entry batch"
// @Success 200 {object} response.Envelope
// @Router /archivo/migrar [post]
func (h *ArchiveHandler) BulkMigrate(c *gin.Context) {
	var req dto.BulkArchiveOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	results, err := h.service.BulkMigrate(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}
