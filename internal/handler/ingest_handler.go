package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drtc-peru/tramite-api/internal/ingest"
	"github.com/drtc-peru/tramite-api/internal/service"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
	"github.com/drtc-peru/tramite-api/pkg/response"
)

type ingestService interface {
	ImportResolutions(ctx context.Context, r io.Reader) (*ingest.Report, error)
	ImportRoutes(ctx context.Context, r io.Reader) (*ingest.Report, error)
	ImportVehicles(ctx context.Context, r io.Reader) (*ingest.Report, error)
	ImportCompanies(ctx context.Context, r io.Reader) (*ingest.Report, error)
	Template(entity string) ([]byte, error)
}

// IngestHandler manages padron spreadsheet imports.
type IngestHandler struct {
	service ingestService
	metrics *service.MetricsService
}

// NewIngestHandler constructs the handler.
func NewIngestHandler(svc ingestService, metrics *service.MetricsService) *IngestHandler {
	return &IngestHandler{service: svc, metrics: metrics}
}

// Import godoc
// @Summary Import a padron spreadsheet
// @Tags Importar
// @Accept multipart/form-data
// @Produce json
// @Param entidad path string true "Entity: resoluciones, rutas, vehiculos or empresas"
// @Param file formData file true "Spreadsheet (.xlsx)"
// @Success 200 {object} response.Envelope
// @Router /importar/{entidad} [post]
func (h *IngestHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to open file"))
		return
	}
	defer src.Close()

	entity := c.Param("entidad")
	var report *ingest.Report
	switch entity {
	case "resoluciones":
		report, err = h.service.ImportResolutions(c.Request.Context(), src)
	case "rutas":
		report, err = h.service.ImportRoutes(c.Request.Context(), src)
	case "vehiculos":
		report, err = h.service.ImportVehicles(c.Request.Context(), src)
	case "empresas":
		report, err = h.service.ImportCompanies(c.Request.Context(), src)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown import entity %q", entity)))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordIngestRows(entity, "valid", report.Valid)
	h.metrics.RecordIngestRows(entity, "invalid", report.Invalid)
	response.JSON(c, http.StatusOK, report, nil)
}

// Template godoc
// @Summary Download the import template for an entity
// @Tags Importar
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param entidad path string true "Entity: resoluciones, rutas, vehiculos or empresas"
// @Success 200 {file} binary
// @Router /importar/{entidad}/plantilla [get]
func (h *IngestHandler) Template(c *gin.Context) {
	entity := c.Param("entidad")
	data, err := h.service.Template(entity)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=plantilla_%s.xlsx", entity))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
