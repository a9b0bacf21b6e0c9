package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drtc-peru/tramite-api/internal/models"
)

const integrationColumns = `id, code, name, base_url, auth_kind, credentials, headers, conn_state,
       last_sync_at, allows_send, allows_receive, field_mapping, webhook_url, max_attempts,
       retry_interval, timeout, created_at, updated_at`

// IntegrationRepository handles external-system endpoint persistence.
type IntegrationRepository struct {
	db *sqlx.DB
}

// NewIntegrationRepository constructs the repository.
func NewIntegrationRepository(db *sqlx.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// Create inserts an integration row.
func (r *IntegrationRepository) Create(ctx context.Context, in *models.Integration) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	in.CreatedAt = now
	in.UpdatedAt = now
	if in.ConnState == "" {
		in.ConnState = models.ConnectionUnknown
	}
	const query = `INSERT INTO integrations
	(id, code, name, base_url, auth_kind, credentials, headers, conn_state, last_sync_at,
	 allows_send, allows_receive, field_mapping, webhook_url, max_attempts, retry_interval,
	 timeout, created_at, updated_at)
	VALUES (:id, :code, :name, :base_url, :auth_kind, :credentials, :headers, :conn_state,
	 :last_sync_at, :allows_send, :allows_receive, :field_mapping, :webhook_url, :max_attempts,
	 :retry_interval, :timeout, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, in); err != nil {
		return fmt.Errorf("create integration: %w", err)
	}
	return nil
}

// GetByID retrieves one integration.
func (r *IntegrationRepository) GetByID(ctx context.Context, id string) (*models.Integration, error) {
	var in models.Integration
	if err := r.db.GetContext(ctx, &in, `SELECT `+integrationColumns+` FROM integrations WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &in, nil
}

// GetByCode retrieves an integration by its stable code.
func (r *IntegrationRepository) GetByCode(ctx context.Context, code string) (*models.Integration, error) {
	var in models.Integration
	if err := r.db.GetContext(ctx, &in, `SELECT `+integrationColumns+` FROM integrations WHERE code = $1`, code); err != nil {
		return nil, err
	}
	return &in, nil
}

// List returns all integrations ordered by code.
func (r *IntegrationRepository) List(ctx context.Context) ([]models.Integration, error) {
	var items []models.Integration
	if err := r.db.SelectContext(ctx, &items, `SELECT `+integrationColumns+` FROM integrations ORDER BY code ASC`); err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	return items, nil
}

// Update patches the mutable configuration of an integration.
func (r *IntegrationRepository) Update(ctx context.Context, in *models.Integration) error {
	in.UpdatedAt = time.Now().UTC()
	const query = `UPDATE integrations SET name = :name, base_url = :base_url, auth_kind = :auth_kind,
	credentials = :credentials, headers = :headers, allows_send = :allows_send,
	allows_receive = :allows_receive, field_mapping = :field_mapping, webhook_url = :webhook_url,
	max_attempts = :max_attempts, retry_interval = :retry_interval, timeout = :timeout,
	updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, in)
	if err != nil {
		return fmt.Errorf("update integration: %w", err)
	}
	return requireAffected(res)
}

// UpdateConnectionState records the outcome of the last connectivity probe.
func (r *IntegrationRepository) UpdateConnectionState(ctx context.Context, id string, state models.ConnectionState) error {
	const query = `UPDATE integrations SET conn_state = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, state, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update connection state: %w", err)
	}
	return requireAffected(res)
}

// UpdateLastSync stamps the last successful synchronization.
func (r *IntegrationRepository) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE integrations SET last_sync_at = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update last sync: %w", err)
	}
	return requireAffected(res)
}

// Delete removes an integration. Its sync log rows cascade at the schema
// level.
func (r *IntegrationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM integrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	return requireAffected(res)
}
