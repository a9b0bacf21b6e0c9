package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	"github.com/drtc-peru/tramite-api/internal/service"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
	"github.com/drtc-peru/tramite-api/pkg/response"
)

type derivationService interface {
	Derive(ctx context.Context, req dto.CreateDerivationRequest, actor *models.JWTClaims) ([]models.Derivation, error)
	Receive(ctx context.Context, id string, req dto.ReceiveDerivationRequest, actor *models.JWTClaims) (*models.Derivation, error)
	Attend(ctx context.Context, id string, req dto.AttendDerivationRequest, actor *models.JWTClaims) (*models.Derivation, error)
	History(ctx context.Context, documentID string) (*models.DerivationHistory, error)
	Inbox(ctx context.Context, areaID string) ([]models.DerivationView, error)
	Overdue(ctx context.Context) ([]models.DerivationView, error)
	UrgentPending(ctx context.Context) ([]models.DerivationView, error)
	BulkDerive(ctx context.Context, req dto.BulkDeriveRequest, actor *models.JWTClaims) ([]dto.BulkDeriveResult, error)
}

// DerivationHandler manages inter-area routing endpoints.
type DerivationHandler struct {
	service derivationService
	metrics *service.MetricsService
}

// NewDerivationHandler constructs the handler.
func NewDerivationHandler(svc derivationService, metrics *service.MetricsService) *DerivationHandler {
	return &DerivationHandler{service: svc, metrics: metrics}
}

// Derive godoc
// @Summary Derive a document to one or more areas
// @Tags Derivaciones
// @Accept json
// @Produce json
// @Param payload body dto.CreateDerivationRequest true "Derivation data"
// @Success 201 {object} response.Envelope
// @Router /derivaciones [post]
func (h *DerivationHandler) Derive(c *gin.Context) {
	var req dto.CreateDerivationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid derivation payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	derivations, err := h.service.Derive(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordDerivation()
	response.Created(c, derivations)
}

// Receive godoc
// @Summary Accept or reject a pending derivation
// @Tags Derivaciones
// @Accept json
// @Produce json
// @Param id path string true "Derivation ID"
// @Param payload body dto.ReceiveDerivationRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /derivaciones/{id}/recepcion [post]
func (h *DerivationHandler) Receive(c *gin.Context) {
	var req dto.ReceiveDerivationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reception payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	derivation, err := h.service.Receive(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, derivation, nil)
}

// Attend godoc
// @Summary Attend a derivation, optionally chaining to the next area
// @Tags Derivaciones
// @Accept json
// @Produce json
// @Param id path string true "Derivation ID"
// @Param payload body dto.AttendDerivationRequest true "Attention data"
// @Success 200 {object} response.Envelope
// @Router /derivaciones/{id}/atencion [post]
func (h *DerivationHandler) Attend(c *gin.Context) {
	var req dto.AttendDerivationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid attention payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	derivation, err := h.service.Attend(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, derivation, nil)
}

// History godoc
// @Summary Full routing history of a document
// @Tags Derivaciones
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documentos/{id}/derivaciones [get]
func (h *DerivationHandler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Inbox godoc
// @Summary Pending derivations for the caller's area
// @Tags Derivaciones
// @Produce json
// @Param area query string false "Area override (admin only)"
// @Success 200 {object} response.Envelope
// @Router /derivaciones/bandeja [get]
func (h *DerivationHandler) Inbox(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	areaID := claims.AreaID
	if override := c.Query("area"); override != "" && claims.IsAdmin() {
		areaID = override
	}
	items, err := h.service.Inbox(c.Request.Context(), areaID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Overdue godoc
// @Summary Derivations past their deadline
// @Tags Derivaciones
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /derivaciones/vencidas [get]
func (h *DerivationHandler) Overdue(c *gin.Context) {
	items, err := h.service.Overdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UrgentPending godoc
// @Summary Urgent derivations still waiting
// @Tags Derivaciones
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /derivaciones/urgentes [get]
func (h *DerivationHandler) UrgentPending(c *gin.Context) {
	items, err := h.service.UrgentPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// BulkDerive godoc
// @Summary Derive a batch of documents to one area
// @Tags Derivaciones
// @Accept json
// @Produce json
// @Param payload body dto.BulkDeriveRequest true "Batch data"
// @Success 200 {object} response.Envelope
// @Router /derivaciones/lote [post]
func (h *DerivationHandler) BulkDerive(c *gin.Context) {
	var req dto.BulkDeriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	results, err := h.service.BulkDerive(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}
