package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
)

type documentStoreStub struct {
	docs          map[string]*models.Document
	createCalls   int
	failUniqueFor int
	getCalls      int
	updatedFields map[string]interface{}
}

func (s *documentStoreStub) Create(ctx context.Context, doc *models.Document) error {
	s.createCalls++
	if s.createCalls <= s.failUniqueFor {
		return &pq.Error{Code: "23505"}
	}
	doc.ID = "doc-1"
	if s.docs == nil {
		s.docs = make(map[string]*models.Document)
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *documentStoreStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	s.getCalls++
	if doc, ok := s.docs[id]; ok {
		copy := *doc
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *documentStoreStub) GetByExpediente(ctx context.Context, expediente string) (*models.Document, error) {
	for _, doc := range s.docs {
		if doc.Expediente == expediente {
			copy := *doc
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *documentStoreStub) GetByQR(ctx context.Context, token string) (*models.Document, error) {
	for _, doc := range s.docs {
		if doc.QRToken == token {
			copy := *doc
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *documentStoreStub) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	result := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		result = append(result, *doc)
	}
	return result, len(result), nil
}

func (s *documentStoreStub) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if _, ok := s.docs[id]; !ok {
		return sql.ErrNoRows
	}
	s.updatedFields = fields
	if subject, ok := fields["subject"].(string); ok {
		s.docs[id].Subject = subject
	}
	return nil
}

func (s *documentStoreStub) MarkHasAttachments(ctx context.Context, id string) error {
	if doc, ok := s.docs[id]; ok {
		doc.HasAttachments = true
	}
	return nil
}

type attachmentStoreStub struct {
	existing *models.Attachment
	created  []*models.Attachment
}

func (s *attachmentStoreStub) Create(ctx context.Context, att *models.Attachment) error {
	att.ID = "att-1"
	s.created = append(s.created, att)
	return nil
}

func (s *attachmentStoreStub) FindByHash(ctx context.Context, documentID, hash string) (*models.Attachment, error) {
	return s.existing, nil
}

func (s *attachmentStoreStub) ListByDocument(ctx context.Context, documentID string) ([]models.Attachment, error) {
	return nil, nil
}

type derivationFinderStub struct {
	active *models.Derivation
}

func (s *derivationFinderStub) ActiveNonCopy(ctx context.Context, documentID string) (*models.Derivation, error) {
	return s.active, nil
}

type allocatorStub struct {
	numbers []string
	next    int
}

func (s *allocatorStub) NextExpediente(ctx context.Context) (string, error) {
	n := s.numbers[s.next%len(s.numbers)]
	s.next++
	return n, nil
}

func newDocumentServiceForTest(docs *documentStoreStub, atts *attachmentStoreStub, alloc *allocatorStub) *DocumentService {
	return NewDocumentService(docs, atts, &derivationFinderStub{}, alloc, nil, &storageStub{}, nil, DocumentServiceConfig{
		MaxFileSize:  1024,
		AllowedMIMEs: []string{"application/pdf"},
		BaseURL:      "https://tramite.drtc.gob.pe",
	})
}

type storageStub struct {
	saved   []string
	deleted []string
}

func (f *storageStub) SaveStream(filename string, r io.Reader) (string, error) {
	f.saved = append(f.saved, filename)
	return "adjuntos/" + filename, nil
}

func (f *storageStub) Delete(filename string) error {
	f.deleted = append(f.deleted, filename)
	return nil
}

func TestDocumentServiceLookupURLMatchesPublicRoute(t *testing.T) {
	svc := newDocumentServiceForTest(&documentStoreStub{}, &attachmentStoreStub{}, &allocatorStub{numbers: []string{"EXP-2025-0001"}})
	assert.Equal(t, "https://tramite.drtc.gob.pe/consulta/QR-EXP-2025-0001-ab12cd34",
		svc.lookupURL("QR-EXP-2025-0001-ab12cd34"))
}

func TestDocumentServiceCreateRetriesOnUniqueViolation(t *testing.T) {
	docs := &documentStoreStub{failUniqueFor: 1}
	alloc := &allocatorStub{numbers: []string{"EXP-2025-0001", "EXP-2025-0002"}}
	svc := newDocumentServiceForTest(docs, &attachmentStoreStub{}, alloc)

	doc, err := svc.Create(context.Background(), dto.CreateDocumentRequest{
		Sender:    "Empresa Andina SAC",
		Subject:   "Renovacion de autorizacion",
		DocTypeID: "OFICIO",
	}, &models.JWTClaims{UserID: "u-1", AreaID: "mesa-partes"})
	require.NoError(t, err)
	assert.Equal(t, 2, docs.createCalls)
	assert.Equal(t, "EXP-2025-0002", doc.Expediente)
	assert.Equal(t, models.DocumentRegistered, doc.State)
	assert.True(t, strings.HasPrefix(doc.QRToken, "QR-EXP-2025-0002-"))
}

func TestDocumentServiceCreateExhaustsRetries(t *testing.T) {
	docs := &documentStoreStub{failUniqueFor: 10}
	alloc := &allocatorStub{numbers: []string{"EXP-2025-0001"}}
	svc := newDocumentServiceForTest(docs, &attachmentStoreStub{}, alloc)

	_, err := svc.Create(context.Background(), dto.CreateDocumentRequest{
		Sender:    "Empresa Andina SAC",
		Subject:   "Renovacion",
		DocTypeID: "OFICIO",
	}, &models.JWTClaims{UserID: "u-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 3, docs.createCalls)
}

func TestDocumentServiceCreateRejectsInvalidPriority(t *testing.T) {
	svc := newDocumentServiceForTest(&documentStoreStub{}, &attachmentStoreStub{}, &allocatorStub{numbers: []string{"EXP-2025-0001"}})
	_, err := svc.Create(context.Background(), dto.CreateDocumentRequest{
		Sender:    "Empresa",
		Subject:   "Asunto",
		DocTypeID: "OFICIO",
		Priority:  "EXTREMA",
	}, &models.JWTClaims{UserID: "u-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUpdateFrozenWhenArchived(t *testing.T) {
	docs := &documentStoreStub{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", State: models.DocumentArchived},
	}}
	svc := newDocumentServiceForTest(docs, &attachmentStoreStub{}, &allocatorStub{numbers: []string{"EXP-2025-0001"}})

	subject := "nuevo asunto"
	_, err := svc.Update(context.Background(), "doc-1", dto.UpdateDocumentRequest{Subject: &subject})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUpdateRejectsArchivedState(t *testing.T) {
	docs := &documentStoreStub{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", State: models.DocumentAttended},
	}}
	svc := newDocumentServiceForTest(docs, &attachmentStoreStub{}, &allocatorStub{numbers: []string{"EXP-2025-0001"}})

	state := models.DocumentArchived
	_, err := svc.Update(context.Background(), "doc-1", dto.UpdateDocumentRequest{State: &state})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "archive workflow")
}

func TestDocumentServiceAttachRejectsOversizedFile(t *testing.T) {
	docs := &documentStoreStub{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", Expediente: "EXP-2025-0001", State: models.DocumentRegistered},
	}}
	svc := newDocumentServiceForTest(docs, &attachmentStoreStub{}, &allocatorStub{numbers: []string{"EXP-2025-0001"}})

	_, err := svc.Attach(context.Background(), "doc-1", AttachmentUpload{
		Filename: "informe.pdf",
		Size:     99999,
		MimeType: "application/pdf",
		Content:  bytes.NewReader([]byte("%PDF-1.4")),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceAttachRejectsDisallowedMime(t *testing.T) {
	docs := &documentStoreStub{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", Expediente: "EXP-2025-0001", State: models.DocumentRegistered},
	}}
	svc := newDocumentServiceForTest(docs, &attachmentStoreStub{}, &allocatorStub{numbers: []string{"EXP-2025-0001"}})

	_, err := svc.Attach(context.Background(), "doc-1", AttachmentUpload{
		Filename: "virus.exe",
		Size:     10,
		MimeType: "application/x-msdownload",
		Content:  bytes.NewReader([]byte("MZ history")),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceAttachIsIdempotentOnDuplicateContent(t *testing.T) {
	docs := &documentStoreStub{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", Expediente: "EXP-2025-0001", State: models.DocumentRegistered},
	}}
	existing := &models.Attachment{ID: "att-0", DocumentID: "doc-1"}
	atts := &attachmentStoreStub{existing: existing}
	svc := newDocumentServiceForTest(docs, atts, &allocatorStub{numbers: []string{"EXP-2025-0001"}})

	att, err := svc.Attach(context.Background(), "doc-1", AttachmentUpload{
		Filename: "informe.pdf",
		Size:     8,
		MimeType: "application/pdf",
		Content:  bytes.NewReader([]byte("%PDF-1.4")),
	})
	require.NoError(t, err)
	assert.Equal(t, "att-0", att.ID)
	assert.Empty(t, atts.created)
}

func TestDocumentServiceAttachStoresAndFlagsDocument(t *testing.T) {
	docs := &documentStoreStub{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", Expediente: "EXP-2025-0001", State: models.DocumentRegistered},
	}}
	atts := &attachmentStoreStub{}
	svc := newDocumentServiceForTest(docs, atts, &allocatorStub{numbers: []string{"EXP-2025-0001"}})

	att, err := svc.Attach(context.Background(), "doc-1", AttachmentUpload{
		Filename: "informe.pdf",
		Size:     8,
		MimeType: "application/pdf",
		Content:  bytes.NewReader([]byte("%PDF-1.4")),
	})
	require.NoError(t, err)
	require.Len(t, atts.created, 1)
	assert.True(t, strings.HasPrefix(att.StorageURL, "adjuntos/EXP-2025-0001_"))
	assert.True(t, docs.docs["doc-1"].HasAttachments)
}

func TestDocumentServiceGetNotFound(t *testing.T) {
	svc := newDocumentServiceForTest(&documentStoreStub{}, &attachmentStoreStub{}, &allocatorStub{numbers: []string{"EXP-2025-0001"}})
	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
