package repository

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// requireAffected maps zero-row updates to sql.ErrNoRows so services can
// translate them into NotFound.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, the signal that an identifier allocation raced another writer.
func IsUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
