package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drtc-peru/tramite-api/internal/models"
)

const archiveColumns = `id, document_id, classification, retention, location_code, archived_at,
       archived_by_user_id, retention_expiry, status, observations`

// ArchiveRepository handles archive entry persistence.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Create inserts an archive entry inside the caller's transaction. The
// unique constraint on document_id keeps one entry per document.
func (r *ArchiveRepository) Create(ctx context.Context, q sqlx.ExtContext, entry *models.ArchiveEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ArchivedAt.IsZero() {
		entry.ArchivedAt = time.Now().UTC()
	}
	const query = `INSERT INTO archive_entries
	(id, document_id, classification, retention, location_code, archived_at, archived_by_user_id,
	 retention_expiry, status, observations)
	VALUES (:id, :document_id, :classification, :retention, :location_code, :archived_at,
	 :archived_by_user_id, :retention_expiry, :status, :observations)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, entry); err != nil {
		return fmt.Errorf("create archive entry: %w", err)
	}
	return nil
}

// GetByID retrieves one archive entry.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*models.ArchiveEntry, error) {
	var entry models.ArchiveEntry
	if err := r.db.GetContext(ctx, &entry, `SELECT `+archiveColumns+` FROM archive_entries WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByDocument retrieves the entry owned by a document.
func (r *ArchiveRepository) GetByDocument(ctx context.Context, documentID string) (*models.ArchiveEntry, error) {
	var entry models.ArchiveEntry
	if err := r.db.GetContext(ctx, &entry, `SELECT `+archiveColumns+` FROM archive_entries WHERE document_id = $1`, documentID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns archived entries, most recent first, paginated.
func (r *ArchiveRepository) List(ctx context.Context, classification models.ArchiveClassification, page, size int) ([]models.ArchiveEntry, int, error) {
	where := ` WHERE status = 'ARCHIVED'`
	args := []interface{}{}
	if classification != "" {
		args = append(args, classification)
		where += fmt.Sprintf(" AND classification = $%d", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM archive_entries`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count archive entries: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM archive_entries%s ORDER BY archived_at DESC LIMIT %d OFFSET %d`,
		archiveColumns, where, size, size*(page-1))

	var entries []models.ArchiveEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list archive entries: %w", err)
	}
	return entries, total, nil
}

// NearExpiry lists archived entries whose retention expires within the
// given number of days.
func (r *ArchiveRepository) NearExpiry(ctx context.Context, days int) ([]models.ArchiveEntry, error) {
	const query = `SELECT ` + archiveColumns + ` FROM archive_entries
	WHERE status = 'ARCHIVED' AND retention_expiry <= NOW() + ($1 || ' days')::interval
	AND retention_expiry > NOW() ORDER BY retention_expiry ASC`
	var entries []models.ArchiveEntry
	if err := r.db.SelectContext(ctx, &entries, query, days); err != nil {
		return nil, fmt.Errorf("near-expiry archive entries: %w", err)
	}
	return entries, nil
}

// Expired lists archived entries whose retention has lapsed.
func (r *ArchiveRepository) Expired(ctx context.Context) ([]models.ArchiveEntry, error) {
	const query = `SELECT ` + archiveColumns + ` FROM archive_entries
	WHERE status = 'ARCHIVED' AND retention_expiry <= NOW() ORDER BY retention_expiry ASC`
	var entries []models.ArchiveEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("expired archive entries: %w", err)
	}
	return entries, nil
}

// UpdateStatus moves an entry to DESTROYED or MIGRATED. The guard keeps
// terminal entries terminal.
func (r *ArchiveRepository) UpdateStatus(ctx context.Context, id string, status models.ArchiveStatus, observations string) error {
	const query = `UPDATE archive_entries SET status = $2, observations = $3
	WHERE id = $1 AND status = 'ARCHIVED'`
	res, err := r.db.ExecContext(ctx, query, id, status, observations)
	if err != nil {
		return fmt.Errorf("update archive status: %w", err)
	}
	return requireAffected(res)
}
