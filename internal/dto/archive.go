package dto

import "github.com/drtc-peru/tramite-api/internal/models"

// ArchiveDocumentRequest moves an attended document into the archive.
type ArchiveDocumentRequest struct {
	DocumentID     string                       `json:"document_id" binding:"required"`
	Classification models.ArchiveClassification `json:"classification" binding:"required"`
	Retention      models.RetentionPolicy       `json:"retention" binding:"required"`
	Observations   string                       `json:"observations"`
}

// BulkArchiveOpRequest destroys or migrates a batch of archive entries.
type BulkArchiveOpRequest struct {
	EntryIDs     []string `json:"entry_ids" binding:"required,min=1"`
	Observations string   `json:"observations"`
}

// ArchiveListQuery filters the archive listing.
type ArchiveListQuery struct {
	Classification models.ArchiveClassification `form:"clasificacion"`
	Page           int                          `form:"page"`
	PageSize       int                          `form:"page_size"`
}
