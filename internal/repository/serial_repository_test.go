package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSerialMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSerialRepositoryLastExpediente(t *testing.T) {
	db, mock, cleanup := newSerialMock(t)
	defer cleanup()
	repo := NewSerialRepository(db)

	mock.ExpectQuery("SELECT expediente FROM documents").
		WithArgs("EXP-2025-%").
		WillReturnRows(sqlmock.NewRows([]string{"expediente"}).AddRow("EXP-2025-0042"))

	last, err := repo.LastExpediente(context.Background(), "EXP-2025-")
	require.NoError(t, err)
	assert.Equal(t, "EXP-2025-0042", last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSerialRepositoryEmptySeries(t *testing.T) {
	db, mock, cleanup := newSerialMock(t)
	defer cleanup()
	repo := NewSerialRepository(db)

	mock.ExpectQuery("SELECT number FROM derivations").
		WithArgs("DER-202501-%").
		WillReturnRows(sqlmock.NewRows([]string{"number"}))

	last, err := repo.LastDerivationNumber(context.Background(), "DER-202501-")
	require.NoError(t, err)
	assert.Equal(t, "", last)
	assert.NoError(t, mock.ExpectationsWereMet())
}
