package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	"github.com/drtc-peru/tramite-api/internal/service"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
	"github.com/drtc-peru/tramite-api/pkg/response"
)

type documentService interface {
	Create(ctx context.Context, req dto.CreateDocumentRequest, actor *models.JWTClaims) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.DocumentDetail, error)
	GetByExpediente(ctx context.Context, expediente string) (*models.DocumentDetail, error)
	LookupByQR(ctx context.Context, token string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	Update(ctx context.Context, id string, req dto.UpdateDocumentRequest) (*models.Document, error)
	Attach(ctx context.Context, documentID string, upload service.AttachmentUpload) (*models.Attachment, error)
	Receipt(ctx context.Context, id string) ([]byte, error)
	QRCode(ctx context.Context, id string) ([]byte, error)
}

// DocumentHandler manages document intake and lookup endpoints.
type DocumentHandler struct {
	service documentService
	metrics *service.MetricsService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(svc documentService, metrics *service.MetricsService) *DocumentHandler {
	return &DocumentHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary Register an incoming document
// @Tags Documentos
// @Accept json
// @Produce json
// @Param payload body dto.CreateDocumentRequest true "Document data"
// @Success 201 {object} response.Envelope
// @Router /documentos [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordDocumentRegistered()
	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Tags Documentos
// @Produce json
// @Param estado query string false "State filter"
// @Param remitente query string false "Sender filter"
// @Param asunto query string false "Subject filter"
// @Param solo_vencidos query bool false "Only overdue"
// @Param solo_urgentes query bool false "Only urgent"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documentos [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var query dto.DocumentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid list query"))
		return
	}
	docs, total, err := h.service.List(c.Request.Context(), query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pageMeta(query.Page, query.PageSize, total))
}

// Get godoc
// @Summary Get document detail
// @Tags Documentos
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documentos/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// GetByExpediente godoc
// @Summary Get document detail by expediente number
// @Tags Documentos
// @Produce json
// @Param expediente path string true "Expediente number"
// @Success 200 {object} response.Envelope
// @Router /documentos/expediente/{expediente} [get]
func (h *DocumentHandler) GetByExpediente(c *gin.Context) {
	detail, err := h.service.GetByExpediente(c.Request.Context(), c.Param("expediente"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Lookup godoc
// @Summary Public document lookup by QR token
// @Tags Consulta
// @Produce json
// @Param token path string true "QR token"
// @Success 200 {object} response.Envelope
// @Router /consulta/{token} [get]
func (h *DocumentHandler) Lookup(c *gin.Context) {
	doc, err := h.service.LookupByQR(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Update godoc
// @Summary Update mutable document fields
// @Tags Documentos
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /documentos/{id} [patch]
func (h *DocumentHandler) Update(c *gin.Context) {
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update payload"))
		return
	}
	doc, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Attach godoc
// @Summary Attach a file to a document
// @Tags Documentos
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Document ID"
// @Param file formData file true "Attachment"
// @Success 201 {object} response.Envelope
// @Router /documentos/{id}/adjuntos [post]
func (h *DocumentHandler) Attach(c *gin.Context) {
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

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}
	upload := service.AttachmentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	}
	attachment, err := h.service.Attach(c.Request.Context(), c.Param("id"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attachment)
}

// Receipt godoc
// @Summary Download the intake receipt as PDF
// @Tags Documentos
// @Produce application/pdf
// @Param id path string true "Document ID"
// @Success 200 {file} binary
// @Router /documentos/{id}/cargo [get]
func (h *DocumentHandler) Receipt(c *gin.Context) {
	pdf, err := h.service.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=cargo_%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// QRCode godoc
// @Summary Download the document QR code as PNG
// @Tags Documentos
// @Produce image/png
// @Param id path string true "Document ID"
// @Success 200 {file} binary
// @Router /documentos/{id}/qr [get]
func (h *DocumentHandler) QRCode(c *gin.Context) {
	png, err := h.service.QRCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
