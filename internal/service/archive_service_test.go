package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
)

type archiveEntryStoreStub struct {
	entries   map[string]*models.ArchiveEntry
	created   []*models.ArchiveEntry
	createErr error
	statusLog []models.ArchiveStatus
}

func (s *archiveEntryStoreStub) Create(ctx context.Context, q sqlx.ExtContext, entry *models.ArchiveEntry) error {
	if s.createErr != nil {
		return s.createErr
	}
	entry.ID = "arc-1"
	s.created = append(s.created, entry)
	return nil
}

func (s *archiveEntryStoreStub) GetByID(ctx context.Context, id string) (*models.ArchiveEntry, error) {
	if entry, ok := s.entries[id]; ok {
		copy := *entry
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *archiveEntryStoreStub) GetByDocument(ctx context.Context, documentID string) (*models.ArchiveEntry, error) {
	return nil, sql.ErrNoRows
}

func (s *archiveEntryStoreStub) List(ctx context.Context, classification models.ArchiveClassification, page, size int) ([]models.ArchiveEntry, int, error) {
	return nil, 0, nil
}

func (s *archiveEntryStoreStub) NearExpiry(ctx context.Context, days int) ([]models.ArchiveEntry, error) {
	return nil, nil
}

func (s *archiveEntryStoreStub) Expired(ctx context.Context) ([]models.ArchiveEntry, error) {
	return nil, nil
}

func (s *archiveEntryStoreStub) UpdateStatus(ctx context.Context, id string, status models.ArchiveStatus, observations string) error {
	if entry, ok := s.entries[id]; ok {
		entry.Status = status
	}
	s.statusLog = append(s.statusLog, status)
	return nil
}

type archiveDocStoreStub struct {
	doc        *models.Document
	finalState models.DocumentState
}

func (s *archiveDocStoreStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *s.doc
	return &copy, nil
}

func (s *archiveDocStoreStub) SetState(ctx context.Context, q sqlx.ExtContext, id string, state models.DocumentState) error {
	s.finalState = state
	return nil
}

type locationAllocatorStub struct {
	codes []string
	next  int
}

func (s *locationAllocatorStub) NextLocationCode(ctx context.Context, classCode string) (string, error) {
	code := s.codes[s.next%len(s.codes)]
	s.next++
	return code, nil
}

func newArchiveFixture(t *testing.T, docState models.DocumentState) (*ArchiveService, *archiveEntryStoreStub, *archiveDocStoreStub, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	entries := &archiveEntryStoreStub{entries: map[string]*models.ArchiveEntry{}}
	docs := &archiveDocStoreStub{doc: &models.Document{ID: "doc-1", Expediente: "EXP-2025-0001", State: docState}}
	alloc := &locationAllocatorStub{codes: []string{"EST-TD-2025-0001"}}
	svc := NewArchiveService(db, entries, docs, alloc, nil, nil, nil)
	return svc, entries, docs, mock
}

func TestArchiveServiceArchivesAttendedDocument(t *testing.T) {
	svc, entries, docs, mock := newArchiveFixture(t, models.DocumentAttended)
	mock.ExpectBegin()
	mock.ExpectCommit()

	entry, err := svc.Archive(context.Background(), dto.ArchiveDocumentRequest{
		DocumentID:     "doc-1",
		Classification: models.ClassTramiteDocumentario,
		Retention:      models.RetentionCortoPlazo,
	}, &models.JWTClaims{UserID: "u-1", Role: models.RoleAreaUser})
	require.NoError(t, err)

	assert.Equal(t, "EST-TD-2025-0001", entry.LocationCode)
	assert.Equal(t, models.ArchiveStatusArchived, entry.Status)
	assert.Equal(t, models.DocumentArchived, docs.finalState)
	require.Len(t, entries.created, 1)

	years := entry.RetentionExpiry.Year() - entry.ArchivedAt.Year()
	assert.Equal(t, 2, years)
}

func TestArchiveServiceRejectsUnattendedForNonAdmin(t *testing.T) {
	svc, _, _, _ := newArchiveFixture(t, models.DocumentInProcess)
	_, err := svc.Archive(context.Background(), dto.ArchiveDocumentRequest{
		DocumentID:     "doc-1",
		Classification: models.ClassTramiteDocumentario,
		Retention:      models.RetentionCortoPlazo,
	}, &models.JWTClaims{UserID: "u-1", Role: models.RoleAreaUser})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestArchiveServiceAdminMayArchiveEarly(t *testing.T) {
	svc, _, docs, mock := newArchiveFixture(t, models.DocumentInProcess)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Archive(context.Background(), dto.ArchiveDocumentRequest{
		DocumentID:     "doc-1",
		Classification: models.ClassLegal,
		Retention:      models.RetentionPermanente,
	}, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentArchived, docs.finalState)
}

func TestArchiveServiceRejectsAlreadyArchived(t *testing.T) {
	svc, _, _, _ := newArchiveFixture(t, models.DocumentArchived)
	_, err := svc.Archive(context.Background(), dto.ArchiveDocumentRequest{
		DocumentID:     "doc-1",
		Classification: models.ClassTramiteDocumentario,
		Retention:      models.RetentionCortoPlazo,
	}, &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestArchiveServiceRejectsUnknownRetention(t *testing.T) {
	svc, _, _, _ := newArchiveFixture(t, models.DocumentAttended)
	_, err := svc.Archive(context.Background(), dto.ArchiveDocumentRequest{
		DocumentID:     "doc-1",
		Classification: models.ClassTramiteDocumentario,
		Retention:      "ETERNO",
	}, &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestArchiveServiceBulkDestroyRequiresLapsedRetention(t *testing.T) {
	svc, entries, _, _ := newArchiveFixture(t, models.DocumentArchived)
	entries.entries["arc-live"] = &models.ArchiveEntry{
		ID: "arc-live", DocumentID: "doc-1", Status: models.ArchiveStatusArchived,
		RetentionExpiry: time.Now().Add(365 * 24 * time.Hour),
	}
	entries.entries["arc-old"] = &models.ArchiveEntry{
		ID: "arc-old", DocumentID: "doc-2", Status: models.ArchiveStatusArchived,
		RetentionExpiry: time.Now().Add(-24 * time.Hour),
	}

	results, err := svc.BulkDestroy(context.Background(), dto.BulkArchiveOpRequest{
		EntryIDs: []string{"arc-live", "arc-old", "arc-missing"},
	}, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Error, "retention runs until")
	assert.True(t, results[1].OK)
	assert.False(t, results[2].OK)
	assert.Equal(t, "entry not found", results[2].Error)
	assert.Equal(t, models.ArchiveStatusDestroyed, entries.entries["arc-old"].Status)
}

func TestArchiveServiceBulkDestroyForbiddenForNonAdmin(t *testing.T) {
	svc, _, _, _ := newArchiveFixture(t, models.DocumentArchived)
	_, err := svc.BulkDestroy(context.Background(), dto.BulkArchiveOpRequest{EntryIDs: []string{"x"}},
		&models.JWTClaims{UserID: "u-1", Role: models.RoleMesaPartes})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestArchiveServiceBulkMigrateMarksEntries(t *testing.T) {
	svc, entries, _, _ := newArchiveFixture(t, models.DocumentArchived)
	entries.entries["arc-1"] = &models.ArchiveEntry{ID: "arc-1", Status: models.ArchiveStatusArchived}

	results, err := svc.BulkMigrate(context.Background(), dto.BulkArchiveOpRequest{
		EntryIDs: []string{"arc-1"}, Observations: "traslado al archivo regional",
	}, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	assert.Equal(t, models.ArchiveStatusMigrated, entries.entries["arc-1"].Status)
}
