package dto

import "time"

// CreateDerivationRequest routes a document to one or more areas. The first
// destination receives the primary (blocking) derivation; the rest get
// informational copies.
type CreateDerivationRequest struct {
	DocumentID       string     `json:"document_id" binding:"required"`
	DestAreaIDs      []string   `json:"dest_area_ids" binding:"required,min=1"`
	Deadline         *time.Time `json:"deadline"`
	Urgent           bool       `json:"urgent"`
	RequiresResponse bool       `json:"requires_response"`
	Instructions     string     `json:"instructions"`
}

// ReceiveDerivationRequest accepts or rejects a pending derivation.
type ReceiveDerivationRequest struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

// AttendDerivationRequest closes a derivation, optionally chaining the
// document onward to another area.
type AttendDerivationRequest struct {
	Observations string     `json:"observations"`
	NextAreaID   *string    `json:"next_area_id"`
	NextDeadline *time.Time `json:"next_deadline"`
}

// BulkDeriveRequest routes several documents to one area in a single call.
type BulkDeriveRequest struct {
	DocumentIDs      []string   `json:"document_ids" binding:"required,min=1"`
	DestAreaID       string     `json:"dest_area_id" binding:"required"`
	Deadline         *time.Time `json:"deadline"`
	Urgent           bool       `json:"urgent"`
	RequiresResponse bool       `json:"requires_response"`
	Instructions     string     `json:"instructions"`
}

// BulkDeriveResult reports the per-document outcome of a bulk derive.
type BulkDeriveResult struct {
	DocumentID string `json:"document_id"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}
