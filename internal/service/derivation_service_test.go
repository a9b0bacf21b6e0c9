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

type derivationStoreStub struct {
	items       map[string]*models.Derivation
	active      *models.Derivation
	created     []*models.Derivation
	markErr     error
	rejectedBy  string
	attendedObs string
}

func (s *derivationStoreStub) Create(ctx context.Context, q sqlx.ExtContext, d *models.Derivation) error {
	d.ID = "der-" + d.Number
	s.created = append(s.created, d)
	if s.items == nil {
		s.items = make(map[string]*models.Derivation)
	}
	copy := *d
	s.items[d.ID] = &copy
	return nil
}

func (s *derivationStoreStub) GetByID(ctx context.Context, id string) (*models.Derivation, error) {
	if d, ok := s.items[id]; ok {
		copy := *d
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *derivationStoreStub) ListByDocument(ctx context.Context, documentID string) ([]models.Derivation, error) {
	result := []models.Derivation{}
	for _, d := range s.items {
		if d.DocumentID == documentID {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (s *derivationStoreStub) ActiveNonCopy(ctx context.Context, documentID string) (*models.Derivation, error) {
	return s.active, nil
}

func (s *derivationStoreStub) ActiveNonCopyExcept(ctx context.Context, q sqlx.ExtContext, documentID, exceptID string) (*models.Derivation, error) {
	for _, d := range s.items {
		if d.DocumentID == documentID && d.ID != exceptID && !d.IsCopy && d.State.Active() {
			copy := *d
			return &copy, nil
		}
	}
	return nil, nil
}

func (s *derivationStoreStub) MarkReceived(ctx context.Context, q sqlx.ExtContext, id, userID string, at time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.items[id].State = models.DerivationReceived
	return nil
}

func (s *derivationStoreStub) MarkRejected(ctx context.Context, q sqlx.ExtContext, id, userID, reason string, at time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.rejectedBy = userID
	s.items[id].State = models.DerivationRejected
	return nil
}

func (s *derivationStoreStub) MarkAttended(ctx context.Context, q sqlx.ExtContext, id, userID, observations string, at time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.attendedObs = observations
	s.items[id].State = models.DerivationAttended
	return nil
}

func (s *derivationStoreStub) Inbox(ctx context.Context, areaID string) ([]models.Derivation, error) {
	return nil, nil
}

func (s *derivationStoreStub) Overdue(ctx context.Context) ([]models.Derivation, error) {
	return nil, nil
}

func (s *derivationStoreStub) Urgent(ctx context.Context) ([]models.Derivation, error) {
	return nil, nil
}

type derivationDocStoreStub struct {
	doc           *models.Document
	workflowState models.DocumentState
	workflowArea  string
	finalState    models.DocumentState
}

func (s *derivationDocStoreStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *s.doc
	return &copy, nil
}

func (s *derivationDocStoreStub) SetWorkflowState(ctx context.Context, q sqlx.ExtContext, id string, state models.DocumentState, areaID string) error {
	s.workflowState = state
	s.workflowArea = areaID
	return nil
}

func (s *derivationDocStoreStub) SetState(ctx context.Context, q sqlx.ExtContext, id string, state models.DocumentState) error {
	s.finalState = state
	return nil
}

type derivationAllocatorStub struct {
	next int
}

func (s *derivationAllocatorStub) NextDerivationNumber(ctx context.Context) (string, error) {
	s.next++
	return "DER-202503-000" + string(rune('0'+s.next)), nil
}

type notifierStub struct {
	emitted []*models.Notification
}

func (s *notifierStub) Emit(ctx context.Context, n *models.Notification) error {
	s.emitted = append(s.emitted, n)
	return nil
}

func newDerivationFixture(t *testing.T) (*DerivationService, *derivationStoreStub, *derivationDocStoreStub, *notifierStub, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	store := &derivationStoreStub{}
	docs := &derivationDocStoreStub{doc: &models.Document{
		ID:            "doc-1",
		Expediente:    "EXP-2025-0001",
		State:         models.DocumentRegistered,
		CurrentAreaID: "mesa-partes",
		Priority:      models.PriorityNormal,
	}}
	notifier := &notifierStub{}
	svc := NewDerivationService(db, store, docs, &derivationAllocatorStub{}, notifier, nil, nil)
	return svc, store, docs, notifier, mock
}

func TestDerivationServiceDeriveFirstDestinationBlocks(t *testing.T) {
	svc, store, docs, notifier, mock := newDerivationFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	created, err := svc.Derive(context.Background(), dto.CreateDerivationRequest{
		DocumentID:  "doc-1",
		DestAreaIDs: []string{"transportes", "fiscalizacion"},
	}, &models.JWTClaims{UserID: "u-1", AreaID: "mesa-partes"})
	require.NoError(t, err)
	require.Len(t, created, 2)

	assert.False(t, created[0].IsCopy)
	assert.True(t, created[1].IsCopy)
	assert.Equal(t, "mesa-partes", created[0].OriginAreaID)
	assert.Equal(t, models.DocumentInProcess, docs.workflowState)
	assert.Equal(t, "transportes", docs.workflowArea)
	require.Len(t, notifier.emitted, 2)
	assert.Equal(t, "transportes", notifier.emitted[0].UserID)
	require.Len(t, store.created, 2)
}

func TestDerivationServiceDeriveRejectsDuplicateAreas(t *testing.T) {
	svc, _, _, _, _ := newDerivationFixture(t)
	_, err := svc.Derive(context.Background(), dto.CreateDerivationRequest{
		DocumentID:  "doc-1",
		DestAreaIDs: []string{"transportes", "transportes"},
	}, &models.JWTClaims{UserID: "u-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDerivationServiceDeriveConflictsWithActiveDerivation(t *testing.T) {
	svc, store, _, _, _ := newDerivationFixture(t)
	store.active = &models.Derivation{ID: "der-0", Number: "DER-202502-0001"}

	_, err := svc.Derive(context.Background(), dto.CreateDerivationRequest{
		DocumentID:  "doc-1",
		DestAreaIDs: []string{"transportes"},
	}, &models.JWTClaims{UserID: "u-1", AreaID: "mesa-partes"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "DER-202502-0001")
}

func TestDerivationServiceDeriveForbiddenOutsideCurrentArea(t *testing.T) {
	svc, store, _, _, _ := newDerivationFixture(t)

	_, err := svc.Derive(context.Background(), dto.CreateDerivationRequest{
		DocumentID:  "doc-1",
		DestAreaIDs: []string{"transportes"},
	}, &models.JWTClaims{UserID: "u-9", AreaID: "area-ajena", Role: models.RoleAreaUser})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.created)
}

func TestDerivationServiceDeriveAllowedForOriginatingUser(t *testing.T) {
	svc, store, docs, _, mock := newDerivationFixture(t)
	docs.doc.RegisterUserID = "u-9"
	mock.ExpectBegin()
	mock.ExpectCommit()

	created, err := svc.Derive(context.Background(), dto.CreateDerivationRequest{
		DocumentID:  "doc-1",
		DestAreaIDs: []string{"transportes"},
	}, &models.JWTClaims{UserID: "u-9", AreaID: "area-ajena", Role: models.RoleAreaUser})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Len(t, store.created, 1)
}

func TestDerivationServiceDeriveAcceptsPastDeadline(t *testing.T) {
	svc, store, _, _, mock := newDerivationFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	deadline := time.Now().Add(-48 * time.Hour)
	created, err := svc.Derive(context.Background(), dto.CreateDerivationRequest{
		DocumentID:  "doc-1",
		DestAreaIDs: []string{"transportes"},
		Deadline:    &deadline,
	}, &models.JWTClaims{UserID: "u-1", AreaID: "mesa-partes"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.NotNil(t, created[0].Deadline)

	view := store.created[0].Decorate(time.Now())
	assert.True(t, view.IsOverdue)
	require.NotNil(t, view.DaysRemaining)
	assert.Equal(t, 0, *view.DaysRemaining)
}

func TestDerivationServiceReceiveRejectRequiresReason(t *testing.T) {
	svc, store, _, _, _ := newDerivationFixture(t)
	store.items = map[string]*models.Derivation{
		"der-1": {ID: "der-1", DocumentID: "doc-1", DestAreaID: "transportes", State: models.DerivationPending},
	}
	_, err := svc.Receive(context.Background(), "der-1", dto.ReceiveDerivationRequest{Accept: false},
		&models.JWTClaims{UserID: "u-2", AreaID: "transportes"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDerivationServiceReceiveRejectReturnsDocumentToOrigin(t *testing.T) {
	svc, store, docs, notifier, mock := newDerivationFixture(t)
	store.items = map[string]*models.Derivation{
		"der-1": {ID: "der-1", Number: "DER-202503-0001", DocumentID: "doc-1",
			OriginAreaID: "mesa-partes", DestAreaID: "transportes", State: models.DerivationPending},
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	d, err := svc.Receive(context.Background(), "der-1", dto.ReceiveDerivationRequest{
		Accept: false,
		Reason: "no corresponde al área",
	}, &models.JWTClaims{UserID: "u-2", AreaID: "transportes"})
	require.NoError(t, err)
	assert.Equal(t, models.DerivationRejected, d.State)
	assert.Equal(t, "mesa-partes", docs.workflowArea)
	require.Len(t, notifier.emitted, 1)
	assert.Equal(t, "mesa-partes", notifier.emitted[0].UserID)
}

func TestDerivationServiceReceiveForbiddenForOtherArea(t *testing.T) {
	svc, store, _, _, _ := newDerivationFixture(t)
	store.items = map[string]*models.Derivation{
		"der-1": {ID: "der-1", DocumentID: "doc-1", DestAreaID: "transportes", State: models.DerivationPending},
	}
	_, err := svc.Receive(context.Background(), "der-1", dto.ReceiveDerivationRequest{Accept: true},
		&models.JWTClaims{UserID: "u-3", AreaID: "fiscalizacion", Role: models.RoleAreaUser})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDerivationServiceReceiveConcurrentTransitionConflicts(t *testing.T) {
	svc, store, _, _, mock := newDerivationFixture(t)
	store.items = map[string]*models.Derivation{
		"der-1": {ID: "der-1", DocumentID: "doc-1", DestAreaID: "transportes", State: models.DerivationPending},
	}
	store.markErr = sql.ErrNoRows
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Receive(context.Background(), "der-1", dto.ReceiveDerivationRequest{Accept: true},
		&models.JWTClaims{UserID: "u-2", AreaID: "transportes"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "concurrently")
}

func TestDerivationServiceAttendMarksDocumentAttended(t *testing.T) {
	svc, store, docs, notifier, mock := newDerivationFixture(t)
	store.items = map[string]*models.Derivation{
		"der-1": {ID: "der-1", Number: "DER-202503-0001", DocumentID: "doc-1",
			OriginAreaID: "mesa-partes", DestAreaID: "transportes", State: models.DerivationReceived},
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	d, err := svc.Attend(context.Background(), "der-1", dto.AttendDerivationRequest{
		Observations: "autorización emitida",
	}, &models.JWTClaims{UserID: "u-2", AreaID: "transportes"})
	require.NoError(t, err)
	assert.Equal(t, models.DerivationAttended, d.State)
	assert.Equal(t, models.DocumentAttended, docs.finalState)
	require.Len(t, notifier.emitted, 1)
	assert.Equal(t, "mesa-partes", notifier.emitted[0].UserID)
}

func TestDerivationServiceAttendChainsToNextArea(t *testing.T) {
	svc, store, docs, notifier, mock := newDerivationFixture(t)
	store.items = map[string]*models.Derivation{
		"der-1": {ID: "der-1", Number: "DER-202503-0001", DocumentID: "doc-1",
			OriginAreaID: "mesa-partes", DestAreaID: "transportes",
			State: models.DerivationReceived, Urgent: true, RequiresResponse: true},
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	next := "fiscalizacion"
	_, err := svc.Attend(context.Background(), "der-1", dto.AttendDerivationRequest{
		Observations: "pasa a fiscalización",
		NextAreaID:   &next,
	}, &models.JWTClaims{UserID: "u-2", AreaID: "transportes"})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	chained := store.created[0]
	assert.Equal(t, "transportes", chained.OriginAreaID)
	assert.Equal(t, "fiscalizacion", chained.DestAreaID)
	assert.True(t, chained.Urgent)
	assert.True(t, chained.RequiresResponse)
	assert.Equal(t, models.DocumentInProcess, docs.workflowState)
	assert.Equal(t, "fiscalizacion", docs.workflowArea)
	require.Len(t, notifier.emitted, 2)
}

func TestDerivationServiceAttendCopyKeepsDocumentOpen(t *testing.T) {
	svc, store, docs, _, mock := newDerivationFixture(t)
	store.items = map[string]*models.Derivation{
		"der-1": {ID: "der-1", Number: "DER-202503-0001", DocumentID: "doc-1",
			OriginAreaID: "mesa-partes", DestAreaID: "transportes", State: models.DerivationPending},
		"der-2": {ID: "der-2", Number: "DER-202503-0002", DocumentID: "doc-1",
			OriginAreaID: "mesa-partes", DestAreaID: "fiscalizacion", State: models.DerivationPending, IsCopy: true},
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	d, err := svc.Attend(context.Background(), "der-2", dto.AttendDerivationRequest{
		Observations: "tomado conocimiento",
	}, &models.JWTClaims{UserID: "u-3", AreaID: "fiscalizacion"})
	require.NoError(t, err)
	assert.Equal(t, models.DerivationAttended, d.State)
	assert.Empty(t, docs.finalState)

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err = svc.Attend(context.Background(), "der-1", dto.AttendDerivationRequest{
		Observations: "autorización emitida",
	}, &models.JWTClaims{UserID: "u-2", AreaID: "transportes"})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentAttended, docs.finalState)
}

func TestDerivationServiceHistoryComputesCurrent(t *testing.T) {
	svc, store, _, _, _ := newDerivationFixture(t)
	derivedAt := time.Now().Add(-72 * time.Hour)
	store.items = map[string]*models.Derivation{
		"der-1": {ID: "der-1", Number: "DER-202503-0001", DocumentID: "doc-1",
			OriginAreaID: "mesa-partes", DestAreaID: "transportes",
			State: models.DerivationAttended, DerivedAt: derivedAt},
		"der-2": {ID: "der-2", Number: "DER-202503-0002", DocumentID: "doc-1",
			OriginAreaID: "transportes", DestAreaID: "fiscalizacion",
			State: models.DerivationPending, DerivedAt: derivedAt.Add(24 * time.Hour)},
	}

	history, err := svc.History(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, history.Derivations, 2)
	require.NotNil(t, history.CurrentDerivation)
	assert.Equal(t, "DER-202503-0002", history.CurrentDerivation.Number)
	assert.ElementsMatch(t, []string{"mesa-partes", "transportes", "fiscalizacion"}, history.InvolvedAreas)
}

func TestDerivationServiceHistoryEndsAtLastAttention(t *testing.T) {
	svc, store, _, _, _ := newDerivationFixture(t)
	now := time.Now()
	firstDerived := now.Add(-240 * time.Hour)
	firstAttended := now.Add(-120 * time.Hour)
	lastDerived := now.Add(-110 * time.Hour)
	lastAttended := now.Add(-96 * time.Hour)
	store.items = map[string]*models.Derivation{
		"der-1": {ID: "der-1", Number: "DER-202503-0001", DocumentID: "doc-1",
			OriginAreaID: "mesa-partes", DestAreaID: "transportes",
			State: models.DerivationAttended, DerivedAt: firstDerived, AttendedAt: &firstAttended},
		"der-2": {ID: "der-2", Number: "DER-202503-0002", DocumentID: "doc-1",
			OriginAreaID: "transportes", DestAreaID: "fiscalizacion",
			State: models.DerivationAttended, DerivedAt: lastDerived, AttendedAt: &lastAttended},
	}

	history, err := svc.History(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Nil(t, history.CurrentDerivation)
	assert.Equal(t, 6, history.TotalProcessDays)
}
