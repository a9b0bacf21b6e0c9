package models

import (
	"encoding/json"
	"time"
)

// IntegrationAuthKind selects how outbound requests authenticate.
type IntegrationAuthKind string

const (
	AuthNone   IntegrationAuthKind = "NONE"
	AuthAPIKey IntegrationAuthKind = "API_KEY"
	AuthBearer IntegrationAuthKind = "BEARER"
	AuthBasic  IntegrationAuthKind = "BASIC"
)

// ConnectionState is the last observed health of the remote system.
type ConnectionState string

const (
	ConnectionConnected ConnectionState = "CONNECTED"
	ConnectionError     ConnectionState = "ERROR"
	ConnectionTesting   ConnectionState = "TESTING"
	ConnectionUnknown   ConnectionState = "UNKNOWN"
)

// FieldMapping maps one local field onto the remote schema.
type FieldMapping struct {
	RemoteField string `json:"remote_field"`
	Transform   string `json:"transform,omitempty"`
	Required    bool   `json:"required"`
	Type        string `json:"type,omitempty"`
	Default     string `json:"default,omitempty"`
}

// FieldMappingTable is keyed by local field name. Stored as JSONB.
type FieldMappingTable map[string]FieldMapping

// Integration describes one external system endpoint.
type Integration struct {
	ID              string              `db:"id" json:"id"`
	Code            string              `db:"code" json:"code"`
	Name            string              `db:"name" json:"name"`
	BaseURL         string              `db:"base_url" json:"base_url"`
	AuthKind        IntegrationAuthKind `db:"auth_kind" json:"auth_kind"`
	Credentials     []byte              `db:"credentials" json:"-"`
	Headers         json.RawMessage     `db:"headers" json:"headers,omitempty"`
	ConnState       ConnectionState     `db:"conn_state" json:"conn_state"`
	LastSyncAt      *time.Time          `db:"last_sync_at" json:"last_sync_at,omitempty"`
	AllowsSend      bool                `db:"allows_send" json:"allows_send"`
	AllowsReceive   bool                `db:"allows_receive" json:"allows_receive"`
	FieldMappingRaw json.RawMessage     `db:"field_mapping" json:"field_mapping,omitempty"`
	WebhookURL      *string             `db:"webhook_url" json:"webhook_url,omitempty"`
	MaxAttempts     int                 `db:"max_attempts" json:"max_attempts"`
	RetryInterval   time.Duration       `db:"retry_interval" json:"retry_interval"`
	Timeout         time.Duration       `db:"timeout" json:"timeout"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// Mapping decodes the stored field-mapping table.
func (i *Integration) Mapping() (FieldMappingTable, error) {
	if len(i.FieldMappingRaw) == 0 {
		return FieldMappingTable{}, nil
	}
	var table FieldMappingTable
	if err := json.Unmarshal(i.FieldMappingRaw, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// SyncOperation labels a synchronization log row.
type SyncOperation string

const (
	SyncSend       SyncOperation = "SEND"
	SyncReceive    SyncOperation = "RECEIVE"
	SyncQueryState SyncOperation = "QUERY_STATE"
)

// SyncDirection marks the data flow of a log row.
type SyncDirection string

const (
	DirectionOut SyncDirection = "OUT"
	DirectionIn  SyncDirection = "IN"
)

// SyncState is the outcome recorded in the log.
type SyncState string

const (
	SyncSuccess  SyncState = "SUCCESS"
	SyncError    SyncState = "ERROR"
	SyncRetrying SyncState = "RETRYING"
)

// SyncLog is the append-only audit trail per integration.
type SyncLog struct {
	ID              string        `db:"id" json:"id"`
	IntegrationID   string        `db:"integration_id" json:"integration_id"`
	DocumentID      *string       `db:"document_id" json:"document_id,omitempty"`
	Operation       SyncOperation `db:"operation" json:"operation"`
	Direction       SyncDirection `db:"direction" json:"direction"`
	State           SyncState     `db:"state" json:"state"`
	PayloadSent     []byte        `db:"payload_sent" json:"payload_sent,omitempty"`
	PayloadReceived []byte        `db:"payload_received" json:"payload_received,omitempty"`
	ErrorText       *string       `db:"error_text" json:"error_text,omitempty"`
	Attempt         int           `db:"attempt" json:"attempt"`
	NextRetryAt     *time.Time    `db:"next_retry_at" json:"next_retry_at,omitempty"`
	LatencyMS       int64         `db:"latency_ms" json:"latency_ms"`
	ExternalID      *string       `db:"external_id" json:"external_id,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// SyncStats aggregates the log for one integration.
type SyncStats struct {
	Total        int        `db:"total" json:"total"`
	Success      int        `db:"success" json:"success"`
	Errors       int        `db:"errors" json:"errors"`
	Retrying     int        `db:"retrying" json:"retrying"`
	AvgLatencyMS float64    `db:"avg_latency_ms" json:"avg_latency_ms"`
	LastSyncAt   *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
}
