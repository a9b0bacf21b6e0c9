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

const derivationColumns = `id, number, document_id, origin_area_id, dest_area_id, derived_by_user_id,
       received_by_user_id, attended_by_user_id, derived_at, received_at, attended_at, deadline,
       state, urgent, requires_response, is_copy, instructions, observations, rejection_reason`

// DerivationRepository handles derivation persistence. Write methods take an
// ExtContext so the service can group them with document mutations in one
// transaction.
type DerivationRepository struct {
	db *sqlx.DB
}

// NewDerivationRepository constructs the repository.
func NewDerivationRepository(db *sqlx.DB) *DerivationRepository {
	return &DerivationRepository{db: db}
}

// Create inserts a derivation row inside the caller's transaction.
func (r *DerivationRepository) Create(ctx context.Context, q sqlx.ExtContext, d *models.Derivation) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DerivedAt.IsZero() {
		d.DerivedAt = time.Now().UTC()
	}
	const query = `INSERT INTO derivations
	(id, number, document_id, origin_area_id, dest_area_id, derived_by_user_id, received_by_user_id,
	 attended_by_user_id, derived_at, received_at, attended_at, deadline, state, urgent,
	 requires_response, is_copy, instructions, observations, rejection_reason)
	VALUES (:id, :number, :document_id, :origin_area_id, :dest_area_id, :derived_by_user_id,
	 :received_by_user_id, :attended_by_user_id, :derived_at, :received_at, :attended_at, :deadline,
	 :state, :urgent, :requires_response, :is_copy, :instructions, :observations, :rejection_reason)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, d); err != nil {
		return fmt.Errorf("create derivation: %w", err)
	}
	return nil
}

// GetByID retrieves one derivation row.
func (r *DerivationRepository) GetByID(ctx context.Context, id string) (*models.Derivation, error) {
	var d models.Derivation
	if err := r.db.GetContext(ctx, &d, `SELECT `+derivationColumns+` FROM derivations WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByDocument returns the document's derivation trail, oldest first.
func (r *DerivationRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Derivation, error) {
	const query = `SELECT ` + derivationColumns + ` FROM derivations WHERE document_id = $1 ORDER BY derived_at ASC`
	var items []models.Derivation
	if err := r.db.SelectContext(ctx, &items, query, documentID); err != nil {
		return nil, fmt.Errorf("list derivations: %w", err)
	}
	return items, nil
}

// ActiveNonCopy returns the document's single blocking derivation (PENDING
// or RECEIVED, not a copy), or nil when the pipeline is clear.
func (r *DerivationRepository) ActiveNonCopy(ctx context.Context, documentID string) (*models.Derivation, error) {
	const query = `SELECT ` + derivationColumns + ` FROM derivations
	WHERE document_id = $1 AND is_copy = FALSE AND state IN ('PENDING', 'RECEIVED')
	ORDER BY derived_at DESC LIMIT 1`
	var d models.Derivation
	if err := r.db.GetContext(ctx, &d, query, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active derivation: %w", err)
	}
	return &d, nil
}

// ActiveNonCopyExcept reports whether another blocking derivation remains
// once the given one closes. It runs on the caller's transaction so the
// in-flight state change is visible.
func (r *DerivationRepository) ActiveNonCopyExcept(ctx context.Context, q sqlx.ExtContext, documentID, exceptID string) (*models.Derivation, error) {
	const query = `SELECT ` + derivationColumns + ` FROM derivations
	WHERE document_id = $1 AND id <> $2 AND is_copy = FALSE AND state IN ('PENDING', 'RECEIVED')
	ORDER BY derived_at DESC LIMIT 1`
	var d models.Derivation
	if err := sqlx.GetContext(ctx, q, &d, query, documentID, exceptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find remaining derivation: %w", err)
	}
	return &d, nil
}

// MarkReceived transitions PENDING → RECEIVED inside the caller's
// transaction. The state guard makes a second receive a no-op at the SQL
// level; the service reports it as a validation failure.
func (r *DerivationRepository) MarkReceived(ctx context.Context, q sqlx.ExtContext, id, userID string, at time.Time) error {
	const query = `UPDATE derivations SET state = 'RECEIVED', received_by_user_id = $2, received_at = $3
	WHERE id = $1 AND state = 'PENDING'`
	res, err := q.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("mark derivation received: %w", err)
	}
	return requireAffected(res)
}

// MarkRejected transitions PENDING → REJECTED inside the caller's
// transaction.
func (r *DerivationRepository) MarkRejected(ctx context.Context, q sqlx.ExtContext, id, userID, reason string, at time.Time) error {
	const query = `UPDATE derivations SET state = 'REJECTED', received_by_user_id = $2,
	received_at = $3, rejection_reason = $4 WHERE id = $1 AND state = 'PENDING'`
	res, err := q.ExecContext(ctx, query, id, userID, at, reason)
	if err != nil {
		return fmt.Errorf("mark derivation rejected: %w", err)
	}
	return requireAffected(res)
}

// MarkAttended transitions PENDING|RECEIVED → ATTENDED inside the caller's
// transaction.
func (r *DerivationRepository) MarkAttended(ctx context.Context, q sqlx.ExtContext, id, userID, observations string, at time.Time) error {
	const query = `UPDATE derivations SET state = 'ATTENDED', attended_by_user_id = $2,
	attended_at = $3, observations = $4 WHERE id = $1 AND state IN ('PENDING', 'RECEIVED')`
	res, err := q.ExecContext(ctx, query, id, userID, at, observations)
	if err != nil {
		return fmt.Errorf("mark derivation attended: %w", err)
	}
	return requireAffected(res)
}

// Inbox lists derivations pending or received at the given destination area.
func (r *DerivationRepository) Inbox(ctx context.Context, areaID string) ([]models.Derivation, error) {
	const query = `SELECT ` + derivationColumns + ` FROM derivations
	WHERE dest_area_id = $1 AND state IN ('PENDING', 'RECEIVED') ORDER BY derived_at ASC`
	var items []models.Derivation
	if err := r.db.SelectContext(ctx, &items, query, areaID); err != nil {
		return nil, fmt.Errorf("area inbox: %w", err)
	}
	return items, nil
}

// Overdue lists active derivations whose deadline has passed.
func (r *DerivationRepository) Overdue(ctx context.Context) ([]models.Derivation, error) {
	const query = `SELECT ` + derivationColumns + ` FROM derivations
	WHERE deadline IS NOT NULL AND deadline < NOW() AND state IN ('PENDING', 'RECEIVED')
	ORDER BY deadline ASC`
	var items []models.Derivation
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("overdue derivations: %w", err)
	}
	return items, nil
}

// Urgent lists active derivations flagged urgent.
func (r *DerivationRepository) Urgent(ctx context.Context) ([]models.Derivation, error) {
	const query = `SELECT ` + derivationColumns + ` FROM derivations
	WHERE urgent = TRUE AND state IN ('PENDING', 'RECEIVED') ORDER BY derived_at ASC`
	var items []models.Derivation
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("urgent derivations: %w", err)
	}
	return items, nil
}
