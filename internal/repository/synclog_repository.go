package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drtc-peru/tramite-api/internal/models"
)

const syncLogColumns = `id, integration_id, document_id, operation, direction, state, payload_sent,
       payload_received, error_text, attempt, next_retry_at, latency_ms, external_id, created_at`

// SyncLogRepository handles the per-integration audit trail.
type SyncLogRepository struct {
	db *sqlx.DB
}

// NewSyncLogRepository constructs the repository.
func NewSyncLogRepository(db *sqlx.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create appends a log row.
func (r *SyncLogRepository) Create(ctx context.Context, log *models.SyncLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sync_logs
	(id, integration_id, document_id, operation, direction, state, payload_sent, payload_received,
	 error_text, attempt, next_retry_at, latency_ms, external_id, created_at)
	VALUES (:id, :integration_id, :document_id, :operation, :direction, :state, :payload_sent,
	 :payload_received, :error_text, :attempt, :next_retry_at, :latency_ms, :external_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create sync log: %w", err)
	}
	return nil
}

// Update rewrites the outcome fields of a log row after a send attempt.
func (r *SyncLogRepository) Update(ctx context.Context, log *models.SyncLog) error {
	const query = `UPDATE sync_logs SET state = :state, payload_received = :payload_received,
	error_text = :error_text, attempt = :attempt, next_retry_at = :next_retry_at,
	latency_ms = :latency_ms, external_id = :external_id WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, log)
	if err != nil {
		return fmt.Errorf("update sync log: %w", err)
	}
	return requireAffected(res)
}

// GetByID retrieves one log row.
func (r *SyncLogRepository) GetByID(ctx context.Context, id string) (*models.SyncLog, error) {
	var log models.SyncLog
	if err := r.db.GetContext(ctx, &log, `SELECT `+syncLogColumns+` FROM sync_logs WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &log, nil
}

// DueRetries lists RETRYING rows whose next_retry_at has passed, oldest
// first, bounded so one poll cycle stays cheap.
func (r *SyncLogRepository) DueRetries(ctx context.Context, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM sync_logs
	WHERE state = 'RETRYING' AND next_retry_at IS NOT NULL AND next_retry_at <= NOW()
	ORDER BY next_retry_at ASC LIMIT %d`, syncLogColumns, limit)
	var items []models.SyncLog
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("due retries: %w", err)
	}
	return items, nil
}

// ListByIntegration returns the integration's trail, newest first,
// paginated.
func (r *SyncLogRepository) ListByIntegration(ctx context.Context, integrationID string, page, size int) ([]models.SyncLog, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sync_logs WHERE integration_id = $1`, integrationID); err != nil {
		return nil, 0, fmt.Errorf("count sync logs: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM sync_logs WHERE integration_id = $1
	ORDER BY created_at DESC LIMIT %d OFFSET %d`, syncLogColumns, size, size*(page-1))

	var items []models.SyncLog
	if err := r.db.SelectContext(ctx, &items, query, integrationID); err != nil {
		return nil, 0, fmt.Errorf("list sync logs: %w", err)
	}
	return items, total, nil
}

// Stats aggregates outcomes and latency for one integration.
func (r *SyncLogRepository) Stats(ctx context.Context, integrationID string) (*models.SyncStats, error) {
	const query = `SELECT COUNT(*) AS total,
	COUNT(*) FILTER (WHERE state = 'SUCCESS') AS success,
	COUNT(*) FILTER (WHERE state = 'ERROR') AS errors,
	COUNT(*) FILTER (WHERE state = 'RETRYING') AS retrying,
	COALESCE(AVG(latency_ms), 0) AS avg_latency_ms,
	MAX(created_at) FILTER (WHERE state = 'SUCCESS') AS last_sync_at
	FROM sync_logs WHERE integration_id = $1`
	var stats models.SyncStats
	if err := r.db.GetContext(ctx, &stats, query, integrationID); err != nil {
		return nil, fmt.Errorf("sync stats: %w", err)
	}
	return &stats, nil
}
