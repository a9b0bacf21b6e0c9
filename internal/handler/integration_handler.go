package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
	"github.com/drtc-peru/tramite-api/pkg/response"
)

type integrationService interface {
	Create(ctx context.Context, req dto.SaveIntegrationRequest) (*models.Integration, error)
	Update(ctx context.Context, id string, req dto.SaveIntegrationRequest) (*models.Integration, error)
	Get(ctx context.Context, id string) (*models.Integration, error)
	List(ctx context.Context) ([]models.Integration, error)
	Delete(ctx context.Context, id string) error
	TestConnection(ctx context.Context, id string) (models.ConnectionState, error)
	Send(ctx context.Context, integrationID string, req dto.SendDocumentRequest) (*models.SyncLog, error)
	Receive(ctx context.Context, integrationID string, req dto.ReceiveDocumentRequest) (*models.Document, error)
	QueryState(ctx context.Context, integrationID, externalID string) (json.RawMessage, error)
	Logs(ctx context.Context, integrationID string, page, size int) ([]models.SyncLog, int, error)
	Stats(ctx context.Context, integrationID string) (*models.SyncStats, error)
	ExportLogsCSV(ctx context.Context, integrationID string) ([]byte, error)
}

// IntegrationHandler manages external system connectors.
type IntegrationHandler struct {
	service integrationService
}

// NewIntegrationHandler constructs the handler.
func NewIntegrationHandler(svc integrationService) *IntegrationHandler {
	return &IntegrationHandler{service: svc}
}

// Create godoc
// @Summary Register an external integration
// @Tags Integraciones
// @Accept json
// @Produce json
// @Param payload body dto.SaveIntegrationRequest true "Integration data"
// @Success 201 {object} response.Envelope
// @Router /integraciones [post]
func (h *IntegrationHandler) Create(c *gin.Context) {
	var req dto.SaveIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid integration payload"))
		return
	}
	integration, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, integration)
}

// Update godoc
// @Summary Update an integration
// @Tags Integraciones
// @Accept json
// @Produce json
// @Param id path string true "Integration ID"
// @Param payload body dto.SaveIntegrationRequest true "Integration data"
// @Success 200 {object} response.Envelope
// @Router /integraciones/{id} [put]
func (h *IntegrationHandler) Update(c *gin.Context) {
	var req dto.SaveIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid integration payload"))
		return
	}
	integration, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, integration, nil)
}

// Get godoc
// @Summary Get one integration
// @Tags Integraciones
// @Produce json
// @Param id path string true "Integration ID"
// @Success 200 {object} response.Envelope
// @Router /integraciones/{id} [get]
func (h *IntegrationHandler) Get(c *gin.Context) {
	integration, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, integration, nil)
}

// List godoc
// @Summary List integrations
// @Tags Integraciones
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /integraciones [get]
func (h *IntegrationHandler) List(c *gin.Context) {
	integrations, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, integrations, nil)
}

// Delete godoc
// @Summary Delete an integration
// @Tags Integraciones
// @Param id path string true "Integration ID"
// @Success 204
// @Router /integraciones/{id} [delete]
func (h *IntegrationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// TestConnection godoc
// @Summary Probe the remote endpoint
// @Tags Integraciones
// @Produce json
// @Param id path string true "Integration ID"
// @Success 200 {object} response.Envelope
// @Router /integraciones/{id}/probar [post]
func (h *IntegrationHandler) TestConnection(c *gin.Context) {
	state, err := h.service.TestConnection(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"connection_state": state}, nil)
}

// Send godoc
// @Summary Send a document to the external system
// @Tags Integraciones
// @Accept json
// @Produce json
// @Param id path string true "Integration ID"
// @Param payload body dto.SendDocumentRequest true "Document reference"
// @Success 200 {object} response.Envelope
// @Router /integraciones/{id}/enviar [post]
func (h *IntegrationHandler) Send(c *gin.Context) {
	var req dto.SendDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid send payload"))
		return
	}
	log, err := h.service.Send(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, log, nil)
}

// Receive godoc
// @Summary Receive a document pushed by the external system
// @Tags Integraciones
// @Accept json
// @Produce json
// @Param id path string true "Integration ID"
// @Param payload body dto.ReceiveDocumentRequest true "External payload"
// @Success 201 {object} response.Envelope
// @Router /integraciones/{id}/recibir [post]
func (h *IntegrationHandler) Receive(c *gin.Context) {
	var req dto.ReceiveDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid receive payload"))
		return
	}
	doc, err := h.service.Receive(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// QueryState godoc
// @Summary Query the state of a previously sent document
// @Tags Integraciones
// @Produce json
// @Param id path string true "Integration ID"
// @Param externalId path string true "External document ID"
// @Success 200 {object} response.Envelope
// @Router /integraciones/{id}/documentos/{externalId} [get]
func (h *IntegrationHandler) QueryState(c *gin.Context) {
	raw, err := h.service.QueryState(c.Request.Context(), c.Param("id"), c.Param("externalId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, raw, nil)
}

// Logs godoc
// @Summary Synchronization log of an integration
// @Tags Integraciones
// @Produce json
// @Param id path string true "Integration ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /integraciones/{id}/logs [get]
func (h *IntegrationHandler) Logs(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	logs, total, err := h.service.Logs(c.Request.Context(), c.Param("id"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pageMeta(page, size, total))
}

// Stats godoc
// @Summary Synchronization counters of an integration
// @Tags Integraciones
// @Produce json
// @Param id path string true "Integration ID"
// @Success 200 {object} response.Envelope
// @Router /integraciones/{id}/estadisticas [get]
func (h *IntegrationHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ExportLogs godoc
// @Summary Download the synchronization log as CSV
// @Tags Integraciones
// @Produce text/csv
// @Param id path string true "Integration ID"
// @Success 200 {file} binary
// @Router /integraciones/{id}/logs/csv [get]
func (h *IntegrationHandler) ExportLogs(c *gin.Context) {
	data, err := h.service.ExportLogsCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=sync_%s.csv", c.Param("id")))
	c.Data(http.StatusOK, "text/csv", data)
}
