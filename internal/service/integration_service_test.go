package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
)

type integrationStoreStub struct {
	items      map[string]*models.Integration
	connStates []models.ConnectionState
	lastSync   *time.Time
}

func (s *integrationStoreStub) Create(ctx context.Context, in *models.Integration) error {
	in.ID = "int-1"
	s.items[in.ID] = in
	return nil
}

func (s *integrationStoreStub) GetByID(ctx context.Context, id string) (*models.Integration, error) {
	if in, ok := s.items[id]; ok {
		return in, nil
	}
	return nil, sql.ErrNoRows
}

func (s *integrationStoreStub) GetByCode(ctx context.Context, code string) (*models.Integration, error) {
	for _, in := range s.items {
		if in.Code == code {
			return in, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *integrationStoreStub) List(ctx context.Context) ([]models.Integration, error) {
	out := make([]models.Integration, 0, len(s.items))
	for _, in := range s.items {
		out = append(out, *in)
	}
	return out, nil
}

func (s *integrationStoreStub) Update(ctx context.Context, in *models.Integration) error {
	s.items[in.ID] = in
	return nil
}

func (s *integrationStoreStub) UpdateConnectionState(ctx context.Context, id string, state models.ConnectionState) error {
	s.connStates = append(s.connStates, state)
	return nil
}

func (s *integrationStoreStub) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	s.lastSync = &at
	return nil
}

func (s *integrationStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

type syncLogStoreStub struct {
	created []*models.SyncLog
	updated []*models.SyncLog
	due     []models.SyncLog
	logs    []models.SyncLog
}

func (s *syncLogStoreStub) Create(ctx context.Context, log *models.SyncLog) error {
	log.ID = fmt.Sprintf("log-%d", len(s.created)+1)
	log.CreatedAt = time.Now().UTC()
	s.created = append(s.created, log)
	return nil
}

func (s *syncLogStoreStub) Update(ctx context.Context, log *models.SyncLog) error {
	s.updated = append(s.updated, log)
	return nil
}

func (s *syncLogStoreStub) GetByID(ctx context.Context, id string) (*models.SyncLog, error) {
	return nil, sql.ErrNoRows
}

func (s *syncLogStoreStub) DueRetries(ctx context.Context, limit int) ([]models.SyncLog, error) {
	return s.due, nil
}

func (s *syncLogStoreStub) ListByIntegration(ctx context.Context, integrationID string, page, size int) ([]models.SyncLog, int, error) {
	return s.logs, len(s.logs), nil
}

func (s *syncLogStoreStub) Stats(ctx context.Context, integrationID string) (*models.SyncStats, error) {
	return &models.SyncStats{Total: len(s.logs)}, nil
}

type outboxDocStoreStub struct {
	docs    map[string]*models.Document
	created []*models.Document
	updated map[string]map[string]interface{}
}

func (s *outboxDocStoreStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if doc, ok := s.docs[id]; ok {
		return doc, nil
	}
	return nil, sql.ErrNoRows
}

func (s *outboxDocStoreStub) GetByExternalID(ctx context.Context, externalID string) (*models.Document, error) {
	for _, doc := range s.docs {
		if doc.ExternalID != nil && *doc.ExternalID == externalID {
			return doc, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *outboxDocStoreStub) Create(ctx context.Context, doc *models.Document) error {
	doc.ID = fmt.Sprintf("doc-ext-%d", len(s.created)+1)
	s.created = append(s.created, doc)
	return nil
}

func (s *outboxDocStoreStub) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if s.updated == nil {
		s.updated = map[string]map[string]interface{}{}
	}
	s.updated[id] = fields
	return nil
}

func testIntegration(baseURL, mapping string) *models.Integration {
	in := &models.Integration{
		ID:            "int-1",
		Code:          "sutran",
		Name:          "SUTRAN",
		BaseURL:       baseURL,
		AuthKind:      models.AuthBearer,
		Credentials:   []byte("tok-123"),
		AllowsSend:    true,
		AllowsReceive: true,
		MaxAttempts:   3,
		RetryInterval: 2 * time.Minute,
		Timeout:       5 * time.Second,
	}
	if mapping != "" {
		in.FieldMappingRaw = json.RawMessage(mapping)
	}
	return in
}

func newIntegrationFixture(in *models.Integration) (*IntegrationService, *integrationStoreStub, *syncLogStoreStub, *outboxDocStoreStub) {
	integrations := &integrationStoreStub{items: map[string]*models.Integration{}}
	if in != nil {
		integrations.items[in.ID] = in
	}
	logs := &syncLogStoreStub{}
	docs := &outboxDocStoreStub{docs: map[string]*models.Document{}}
	alloc := &allocatorStub{numbers: []string{"EXP-2025-0100"}}
	svc := NewIntegrationService(integrations, logs, docs, alloc, zap.NewNop(), IntegrationServiceConfig{})
	return svc, integrations, logs, docs
}

func TestIntegrationServiceSendDeliversMappedPayload(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"EXT-77"}`)
	}))
	defer srv.Close()

	mapping := `{
		"expediente": {"remote_field": "numero", "required": true, "transform": "lower"},
		"sender":     {"remote_field": "remitente", "transform": "prefix:DE "},
		"priority":   {"remote_field": "prioridad", "transform": "upper"}
	}`
	in := testIntegration(srv.URL, mapping)
	svc, integrations, logs, docs := newIntegrationFixture(in)
	docs.docs["doc-1"] = &models.Document{
		ID: "doc-1", Expediente: "EXP-2025-0001", Sender: "Empresa Andina",
		Subject: "Consulta", Priority: models.PriorityNormal, State: models.DocumentRegistered,
	}

	log, err := svc.Send(context.Background(), "int-1", dto.SendDocumentRequest{DocumentID: "doc-1"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "exp-2025-0001", gotBody["numero"])
	assert.Equal(t, "DE Empresa Andina", gotBody["remitente"])
	assert.Equal(t, "NORMAL", gotBody["prioridad"])

	assert.Equal(t, models.SyncSuccess, log.State)
	assert.Equal(t, 1, log.Attempt)
	require.NotNil(t, log.ExternalID)
	assert.Equal(t, "EXT-77", *log.ExternalID)
	require.Contains(t, docs.updated, "doc-1")
	assert.Equal(t, "EXT-77", docs.updated["doc-1"]["external_id"])
	assert.NotNil(t, integrations.lastSync)
	require.Len(t, logs.created, 1)
	require.Len(t, logs.updated, 1)
}

func TestIntegrationServiceSendSchedulesRetryOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	in := testIntegration(srv.URL, "")
	svc, integrations, _, docs := newIntegrationFixture(in)
	docs.docs["doc-1"] = &models.Document{ID: "doc-1", Expediente: "EXP-2025-0001", Sender: "X", Subject: "Y"}

	before := time.Now().UTC()
	log, err := svc.Send(context.Background(), "int-1", dto.SendDocumentRequest{DocumentID: "doc-1"})
	require.NoError(t, err)

	assert.Equal(t, models.SyncRetrying, log.State)
	assert.Equal(t, 1, log.Attempt)
	require.NotNil(t, log.ErrorText)
	assert.Contains(t, *log.ErrorText, "remote returned 502")
	require.NotNil(t, log.NextRetryAt)
	assert.WithinDuration(t, before.Add(2*time.Minute), *log.NextRetryAt, 5*time.Second)
	assert.Nil(t, integrations.lastSync)
}

func TestIntegrationServiceRetryDueExhaustsAttemptBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	in := testIntegration(srv.URL, "")
	svc, _, logs, _ := newIntegrationFixture(in)
	docID := "doc-1"
	logs.due = []models.SyncLog{{
		ID: "log-9", IntegrationID: "int-1", DocumentID: &docID,
		Operation: models.SyncSend, Direction: models.DirectionOut,
		State: models.SyncRetrying, PayloadSent: []byte(`{"numero":"EXP-2025-0001"}`), Attempt: 2,
	}}

	processed, err := svc.RetryDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	require.Len(t, logs.updated, 1)
	assert.Equal(t, models.SyncError, logs.updated[0].State)
	assert.Equal(t, 3, logs.updated[0].Attempt)
	assert.Nil(t, logs.updated[0].NextRetryAt)
}

func TestIntegrationServiceSendRejectedWhenNotAllowed(t *testing.T) {
	in := testIntegration("http://127.0.0.1:1", "")
	in.AllowsSend = false
	svc, _, _, _ := newIntegrationFixture(in)

	_, err := svc.Send(context.Background(), "int-1", dto.SendDocumentRequest{DocumentID: "doc-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestIntegrationServiceSendRequiredMappingFieldMissing(t *testing.T) {
	mapping := `{"external_id": {"remote_field": "id_externo", "required": true}}`
	in := testIntegration("http://127.0.0.1:1", mapping)
	svc, _, _, docs := newIntegrationFixture(in)
	docs.docs["doc-1"] = &models.Document{ID: "doc-1", Expediente: "EXP-2025-0001", Sender: "X", Subject: "Y"}

	_, err := svc.Send(context.Background(), "int-1", dto.SendDocumentRequest{DocumentID: "doc-1"})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "required by the mapping")
}

func TestIntegrationServiceReceiveCreatesExternalDocument(t *testing.T) {
	mapping := `{
		"sender":      {"remote_field": "remitente", "required": true},
		"subject":     {"remote_field": "asunto", "required": true},
		"doc_type_id": {"remote_field": "tipo", "default": "OFICIO"},
		"external_id": {"remote_field": "id_externo"},
		"priority":    {"remote_field": "prioridad"}
	}`
	in := testIntegration("http://127.0.0.1:1", mapping)
	svc, integrations, logs, docs := newIntegrationFixture(in)

	doc, err := svc.Receive(context.Background(), "int-1", dto.ReceiveDocumentRequest{Payload: map[string]interface{}{
		"remitente":  "SUTRAN LIMA",
		"asunto":     "Traslado de denuncia",
		"id_externo": "SUT-4411",
		"prioridad":  "urgent",
	}})
	require.NoError(t, err)

	assert.Equal(t, "EXP-2025-0100", doc.Expediente)
	assert.True(t, doc.ExternalOrigin)
	assert.Equal(t, "integracion:sutran", doc.RegisterUserID)
	assert.Equal(t, "OFICIO", doc.DocTypeID)
	assert.Equal(t, models.PriorityUrgent, doc.Priority)
	require.NotNil(t, doc.ExternalID)
	assert.Equal(t, "SUT-4411", *doc.ExternalID)

	require.Len(t, docs.created, 1)
	require.Len(t, logs.created, 1)
	assert.Equal(t, models.SyncReceive, logs.created[0].Operation)
	assert.Equal(t, models.DirectionIn, logs.created[0].Direction)
	assert.Equal(t, models.SyncSuccess, logs.created[0].State)
	assert.NotNil(t, integrations.lastSync)
}

func TestIntegrationServiceReceiveRejectsMissingSender(t *testing.T) {
	in := testIntegration("http://127.0.0.1:1", "")
	svc, _, _, _ := newIntegrationFixture(in)

	_, err := svc.Receive(context.Background(), "int-1", dto.ReceiveDocumentRequest{Payload: map[string]interface{}{
		"asunto": "sin remitente",
	}})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "no sender")
}

func TestIntegrationServiceQueryStateLogsExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documentos/EXT-9", r.URL.Path)
		fmt.Fprint(w, `{"estado":"ATENDIDO"}`)
	}))
	defer srv.Close()

	in := testIntegration(srv.URL, "")
	svc, _, logs, _ := newIntegrationFixture(in)

	body, err := svc.QueryState(context.Background(), "int-1", "EXT-9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"estado":"ATENDIDO"}`, string(body))

	require.Len(t, logs.created, 1)
	assert.Equal(t, models.SyncQueryState, logs.created[0].Operation)
	assert.Equal(t, models.SyncSuccess, logs.created[0].State)
}

func TestIntegrationServiceQueryStateUpdatesLocalDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"estado":"attended"}`)
	}))
	defer srv.Close()

	mapping := `{"state": {"remote_field": "estado"}}`
	in := testIntegration(srv.URL, mapping)
	svc, _, _, docs := newIntegrationFixture(in)
	externalID := "EXT-9"
	docs.docs["doc-1"] = &models.Document{
		ID: "doc-1", Expediente: "EXP-2025-0001",
		State: models.DocumentInProcess, ExternalID: &externalID,
	}

	_, err := svc.QueryState(context.Background(), "int-1", "EXT-9")
	require.NoError(t, err)

	require.Contains(t, docs.updated, "doc-1")
	assert.Equal(t, models.DocumentAttended, docs.updated["doc-1"]["state"])
}

func TestIntegrationServiceQueryStateIgnoresUnknownRemoteState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"estado":"EN COLA REMOTA"}`)
	}))
	defer srv.Close()

	mapping := `{"state": {"remote_field": "estado"}}`
	in := testIntegration(srv.URL, mapping)
	svc, _, _, docs := newIntegrationFixture(in)
	externalID := "EXT-9"
	docs.docs["doc-1"] = &models.Document{
		ID: "doc-1", State: models.DocumentInProcess, ExternalID: &externalID,
	}

	_, err := svc.QueryState(context.Background(), "int-1", "EXT-9")
	require.NoError(t, err)
	assert.Empty(t, docs.updated)
}

func TestIntegrationServiceAuthorizeHeaderKinds(t *testing.T) {
	svc, _, _, _ := newIntegrationFixture(nil)

	cases := []struct {
		kind   models.IntegrationAuthKind
		header string
		value  string
	}{
		{models.AuthAPIKey, "X-API-Key", "tok-123"},
		{models.AuthBearer, "Authorization", "Bearer tok-123"},
		{models.AuthBasic, "Authorization", "Basic dG9rLTEyMw=="},
	}
	for _, tc := range cases {
		req, err := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
		require.NoError(t, err)
		in := testIntegration("http://example.invalid", "")
		in.AuthKind = tc.kind
		svc.authorize(req, in)
		assert.Equal(t, tc.value, req.Header.Get(tc.header), string(tc.kind))
	}
}

func TestApplyTransform(t *testing.T) {
	assert.Equal(t, "ABC", applyTransform("abc", "upper"))
	assert.Equal(t, "abc", applyTransform("ABC", "lower"))
	assert.Equal(t, "DRTC-123", applyTransform("123", "prefix:DRTC-"))
	assert.Equal(t, "123/CUS", applyTransform("123", "suffix:/CUS"))
	assert.Equal(t, "123", applyTransform("123", "reverse"))
}

func TestIntegrationServiceCreateValidatesAuthKindAndMapping(t *testing.T) {
	svc, integrations, _, _ := newIntegrationFixture(nil)

	_, err := svc.Create(context.Background(), dto.SaveIntegrationRequest{
		Name: "MTC", BaseURL: "https://api.mtc.gob.pe/",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.SaveIntegrationRequest{
		Code: "mtc", Name: "MTC", BaseURL: "https://api.mtc.gob.pe/", AuthKind: "OAUTH2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.SaveIntegrationRequest{
		Code: "mtc", Name: "MTC", BaseURL: "https://api.mtc.gob.pe/", FieldMapping: json.RawMessage(`{broken`),
	})
	require.Error(t, err)

	in, err := svc.Create(context.Background(), dto.SaveIntegrationRequest{
		Code: "mtc", Name: "MTC", BaseURL: "https://api.mtc.gob.pe/", RetryInterval: "90s",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api.mtc.gob.pe", in.BaseURL)
	assert.Equal(t, models.AuthNone, in.AuthKind)
	assert.Equal(t, 3, in.MaxAttempts)
	assert.Equal(t, 90*time.Second, in.RetryInterval)
	assert.Len(t, integrations.items, 1)
}
