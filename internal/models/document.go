package models

import (
	"time"

	"github.com/lib/pq"
)

// DocumentState tracks a document through the workflow.
type DocumentState string

const (
	DocumentRegistered DocumentState = "REGISTERED"
	DocumentInProcess  DocumentState = "IN_PROCESS"
	DocumentAttended   DocumentState = "ATTENDED"
	DocumentArchived   DocumentState = "ARCHIVED"
)

// Terminal reports whether the state admits no further derivations.
func (s DocumentState) Terminal() bool {
	return s == DocumentArchived
}

// DocumentPriority orders attention urgency.
type DocumentPriority string

const (
	PriorityLow    DocumentPriority = "LOW"
	PriorityNormal DocumentPriority = "NORMAL"
	PriorityUrgent DocumentPriority = "URGENT"
)

// Document is the central Mesa de Partes entity.
type Document struct {
	ID             string           `db:"id" json:"id"`
	Expediente     string           `db:"expediente" json:"expediente"`
	QRToken        string           `db:"qr_token" json:"qr_token"`
	Sender         string           `db:"sender" json:"sender"`
	Subject        string           `db:"subject" json:"subject"`
	DocTypeID      string           `db:"doc_type_id" json:"doc_type_id"`
	Priority       DocumentPriority `db:"priority" json:"priority"`
	State          DocumentState    `db:"state" json:"state"`
	CurrentAreaID  string           `db:"current_area_id" json:"current_area_id"`
	RegisterUserID string           `db:"register_user_id" json:"register_user_id"`
	ReceivedAt     time.Time        `db:"received_at" json:"received_at"`
	Deadline       *time.Time       `db:"deadline" json:"deadline,omitempty"`
	HasAttachments bool             `db:"has_attachments" json:"has_attachments"`
	Labels         pq.StringArray   `db:"labels" json:"labels"`
	ExternalOrigin bool             `db:"external_origin" json:"external_origin"`
	ExternalID     *string          `db:"external_id" json:"external_id,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// Attachment is a file owned by exactly one document. SHA256 is the unique
// key within a document; duplicate uploads are idempotent.
type Attachment struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	SHA256     string    `db:"sha256" json:"sha256"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	StorageURL string    `db:"storage_url" json:"storage_url"`
	Filename   string    `db:"filename" json:"filename"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Expediente     string
	Sender         string
	Subject        string
	DocTypeID      string
	State          DocumentState
	Priority       DocumentPriority
	AreaID         string
	RegisterUserID string
	ReceivedFrom   *time.Time
	ReceivedTo     *time.Time
	DeadlineFrom   *time.Time
	DeadlineTo     *time.Time
	HasAttachments *bool
	Labels         []string
	ExternalOrigin *bool
	OnlyOverdue    bool
	OnlyUrgent     bool

	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// DocumentDetail joins the record with its attachments and current derivation.
type DocumentDetail struct {
	Document
	Attachments       []Attachment `json:"attachments"`
	CurrentDerivation *Derivation  `json:"current_derivation,omitempty"`
}
