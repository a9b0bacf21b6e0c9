package dto

import (
	"encoding/json"

	"github.com/drtc-peru/tramite-api/internal/models"
)

// SaveIntegrationRequest creates or updates an external system endpoint.
// Durations are plain strings ("30s", "5m") parsed by the service.
type SaveIntegrationRequest struct {
	Code          string                     `json:"code" binding:"required"`
	Name          string                     `json:"name" binding:"required"`
	BaseURL       string                     `json:"base_url" binding:"required,url"`
	AuthKind      models.IntegrationAuthKind `json:"auth_kind"`
	Credentials   string                     `json:"credentials"`
	Headers       json.RawMessage            `json:"headers"`
	AllowsSend    bool                       `json:"allows_send"`
	AllowsReceive bool                       `json:"allows_receive"`
	FieldMapping  json.RawMessage            `json:"field_mapping"`
	WebhookURL    *string                    `json:"webhook_url"`
	MaxAttempts   int                        `json:"max_attempts"`
	RetryInterval string                     `json:"retry_interval"`
	Timeout       string                     `json:"timeout"`
}

// SendDocumentRequest pushes one document through an integration.
type SendDocumentRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
}

// ReceiveDocumentRequest is the inbound webhook payload: an arbitrary
// remote-schema object translated through the reverse field mapping.
type ReceiveDocumentRequest struct {
	Payload map[string]interface{} `json:"payload" binding:"required"`
}
