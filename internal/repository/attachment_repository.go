package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drtc-peru/tramite-api/internal/models"
)

const attachmentColumns = `id, document_id, sha256, size_bytes, mime_type, storage_url, filename, created_at`

// AttachmentRepository handles attachment metadata persistence.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository constructs the repository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create inserts a new attachment row.
func (r *AttachmentRepository) Create(ctx context.Context, att *models.Attachment) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attachments
	(id, document_id, sha256, size_bytes, mime_type, storage_url, filename, created_at)
	VALUES (:id, :document_id, :sha256, :size_bytes, :mime_type, :storage_url, :filename, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, att); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// FindByHash returns the attachment with the given content hash for a
// document, or nil when absent. The hash is the idempotency key.
func (r *AttachmentRepository) FindByHash(ctx context.Context, documentID, sha256 string) (*models.Attachment, error) {
	const query = `SELECT ` + attachmentColumns + ` FROM attachments WHERE document_id = $1 AND sha256 = $2`
	var att models.Attachment
	if err := r.db.GetContext(ctx, &att, query, documentID, sha256); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attachment by hash: %w", err)
	}
	return &att, nil
}

// ListByDocument returns all attachments of a document, oldest first.
func (r *AttachmentRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Attachment, error) {
	const query = `SELECT ` + attachmentColumns + ` FROM attachments WHERE document_id = $1 ORDER BY created_at ASC`
	var items []models.Attachment
	if err := r.db.SelectContext(ctx, &items, query, documentID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return items, nil
}

// CountByDocument returns how many attachments a document owns.
func (r *AttachmentRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM attachments WHERE document_id = $1`, documentID); err != nil {
		return 0, fmt.Errorf("count attachments: %w", err)
	}
	return count, nil
}
