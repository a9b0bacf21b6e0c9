package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SerialRepository scans the highest identifier stored under a given prefix.
// It backs the per-year/per-kind serial allocator; uniqueness is enforced by
// the database constraints, not here.
type SerialRepository struct {
	db *sqlx.DB
}

// NewSerialRepository constructs the repository.
func NewSerialRepository(db *sqlx.DB) *SerialRepository {
	return &SerialRepository{db: db}
}

// LastExpediente returns the highest expediente number with the prefix, or
// "" when the series is empty.
func (r *SerialRepository) LastExpediente(ctx context.Context, prefix string) (string, error) {
	return r.last(ctx, `SELECT expediente FROM documents WHERE expediente LIKE $1 ORDER BY expediente DESC LIMIT 1`, prefix)
}

// LastDerivationNumber returns the highest derivation number with the prefix.
func (r *SerialRepository) LastDerivationNumber(ctx context.Context, prefix string) (string, error) {
	return r.last(ctx, `SELECT number FROM derivations WHERE number LIKE $1 ORDER BY number DESC LIMIT 1`, prefix)
}

// LastLocationCode returns the highest archive location code with the prefix.
func (r *SerialRepository) LastLocationCode(ctx context.Context, prefix string) (string, error) {
	return r.last(ctx, `SELECT location_code FROM archive_entries WHERE location_code LIKE $1 ORDER BY location_code DESC LIMIT 1`, prefix)
}

func (r *SerialRepository) last(ctx context.Context, query, prefix string) (string, error) {
	var value string
	if err := r.db.GetContext(ctx, &value, query, prefix+"%"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}
