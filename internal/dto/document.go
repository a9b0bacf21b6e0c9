package dto

import (
	"time"

	"github.com/drtc-peru/tramite-api/internal/models"
)

// CreateDocumentRequest registers a new document at Mesa de Partes.
type CreateDocumentRequest struct {
	Sender     string                  `json:"sender" binding:"required"`
	Subject    string                  `json:"subject" binding:"required"`
	DocTypeID  string                  `json:"doc_type_id" binding:"required"`
	Priority   models.DocumentPriority `json:"priority"`
	Deadline   *time.Time              `json:"deadline"`
	Labels     []string                `json:"labels"`
	ReceivedAt *time.Time              `json:"received_at"`
}

// UpdateDocumentRequest patches mutable metadata. Identity fields
// (expediente, QR token, registration data) are frozen after intake.
type UpdateDocumentRequest struct {
	Subject  *string                  `json:"subject"`
	Priority *models.DocumentPriority `json:"priority"`
	Deadline *time.Time               `json:"deadline"`
	Labels   []string                 `json:"labels"`
	State    *models.DocumentState    `json:"state"`
}

// DocumentListQuery captures the listing filters from query parameters.
type DocumentListQuery struct {
	Expediente     string                  `form:"expediente"`
	Sender         string                  `form:"remitente"`
	Subject        string                  `form:"asunto"`
	DocTypeID      string                  `form:"tipo_documento"`
	State          models.DocumentState    `form:"estado"`
	Priority       models.DocumentPriority `form:"prioridad"`
	AreaID         string                  `form:"area"`
	RegisterUserID string                  `form:"registrado_por"`
	ReceivedFrom   *time.Time              `form:"recibido_desde" time_format:"2006-01-02"`
	ReceivedTo     *time.Time              `form:"recibido_hasta" time_format:"2006-01-02"`
	DeadlineFrom   *time.Time              `form:"plazo_desde" time_format:"2006-01-02"`
	DeadlineTo     *time.Time              `form:"plazo_hasta" time_format:"2006-01-02"`
	HasAttachments *bool                   `form:"con_adjuntos"`
	Labels         []string                `form:"etiquetas"`
	ExternalOrigin *bool                   `form:"origen_externo"`
	OnlyOverdue    bool                    `form:"solo_vencidos"`
	OnlyUrgent     bool                    `form:"solo_urgentes"`
	SortBy         string                  `form:"ordenar_por"`
	SortOrder      string                  `form:"orden"`
	Page           int                     `form:"page"`
	PageSize       int                     `form:"page_size"`
}

// Filter converts the query into the repository filter.
func (q DocumentListQuery) Filter() models.DocumentFilter {
	return models.DocumentFilter{
		Expediente:     q.Expediente,
		Sender:         q.Sender,
		Subject:        q.Subject,
		DocTypeID:      q.DocTypeID,
		State:          q.State,
		Priority:       q.Priority,
		AreaID:         q.AreaID,
		RegisterUserID: q.RegisterUserID,
		ReceivedFrom:   q.ReceivedFrom,
		ReceivedTo:     q.ReceivedTo,
		DeadlineFrom:   q.DeadlineFrom,
		DeadlineTo:     q.DeadlineTo,
		HasAttachments: q.HasAttachments,
		Labels:         q.Labels,
		ExternalOrigin: q.ExternalOrigin,
		OnlyOverdue:    q.OnlyOverdue,
		OnlyUrgent:     q.OnlyUrgent,
		SortBy:         q.SortBy,
		SortOrder:      q.SortOrder,
		Page:           q.Page,
		PageSize:       q.PageSize,
	}
}
