package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	"github.com/drtc-peru/tramite-api/internal/repository"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
	"github.com/drtc-peru/tramite-api/pkg/export"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetByExpediente(ctx context.Context, expediente string) (*models.Document, error)
	GetByQR(ctx context.Context, token string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	MarkHasAttachments(ctx context.Context, id string) error
}

type attachmentStore interface {
	Create(ctx context.Context, att *models.Attachment) error
	FindByHash(ctx context.Context, documentID, sha256 string) (*models.Attachment, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Attachment, error)
}

type activeDerivationFinder interface {
	ActiveNonCopy(ctx context.Context, documentID string) (*models.Derivation, error)
}

type expedienteAllocator interface {
	NextExpediente(ctx context.Context) (string, error)
}

type documentCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type attachmentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// AttachmentUpload carries upload metadata and the stream reader.
type AttachmentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// DocumentServiceConfig tunes intake and the read path.
type DocumentServiceConfig struct {
	CacheTTL        time.Duration
	AllocateRetries int
	MaxFileSize     int64
	AllowedMIMEs    []string
	BaseURL         string
}

// DocumentService owns document intake, lookup, metadata updates and
// attachments.
type DocumentService struct {
	docs        documentStore
	attachments attachmentStore
	derivations activeDerivationFinder
	numbering   expedienteAllocator
	cache       documentCache
	storage     attachmentFileStorage
	logger      *zap.Logger
	cfg         DocumentServiceConfig
	receipts    *export.ReceiptRenderer
	mimeSet     map[string]struct{}
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(docs documentStore, attachments attachmentStore, derivations activeDerivationFinder, numbering expedienteAllocator, cache documentCache, storage attachmentFileStorage, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.AllocateRetries <= 0 {
		cfg.AllocateRetries = 3
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &DocumentService{
		docs:        docs,
		attachments: attachments,
		derivations: derivations,
		numbering:   numbering,
		cache:       cache,
		storage:     storage,
		logger:      logger,
		cfg:         cfg,
		receipts:    export.NewReceiptRenderer("DRTC - MESA DE PARTES"),
		mimeSet:     mimeSet,
	}
}

// Create registers a new document, allocating its expediente and QR token.
// Allocation races surface as unique violations and are retried with a fresh
// number.
func (s *DocumentService) Create(ctx context.Context, req dto.CreateDocumentRequest, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.Sender) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sender is required")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	switch priority {
	case models.PriorityLow, models.PriorityNormal, models.PriorityUrgent:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid priority")
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.AllocateRetries; attempt++ {
		expediente, err := s.numbering.NextExpediente(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to allocate expediente")
		}
		doc := &models.Document{
			Expediente:     expediente,
			QRToken:        qrToken(expediente),
			Sender:         strings.TrimSpace(req.Sender),
			Subject:        strings.TrimSpace(req.Subject),
			DocTypeID:      req.DocTypeID,
			Priority:       priority,
			State:          models.DocumentRegistered,
			RegisterUserID: actor.UserID,
			CurrentAreaID:  actor.AreaID,
			Deadline:       req.Deadline,
			Labels:         pq.StringArray(req.Labels),
		}
		if req.ReceivedAt != nil {
			doc.ReceivedAt = req.ReceivedAt.UTC()
		}
		if err := s.docs.Create(ctx, doc); err != nil {
			if repository.IsUniqueViolation(err) {
				lastErr = err
				s.logger.Warn("expediente allocation collided, retrying",
					zap.String("expediente", expediente), zap.Int("attempt", attempt+1))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to register document")
		}
		return doc, nil
	}
	return nil, appErrors.Wrap(lastErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "expediente allocation kept colliding")
}

// Get returns the document detail, served from cache when warm.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.DocumentDetail, error) {
	key := cacheKey(id)
	if s.cache != nil {
		var cached models.DocumentDetail
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("document cache read failed", zap.Error(err), zap.String("id", id))
		}
	}

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load document")
	}
	detail, err := s.buildDetail(ctx, doc)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("document cache write failed", zap.Error(err), zap.String("id", id))
		}
	}
	return detail, nil
}

// GetByExpediente resolves a document through its public number.
func (s *DocumentService) GetByExpediente(ctx context.Context, expediente string) (*models.DocumentDetail, error) {
	doc, err := s.docs.GetByExpediente(ctx, expediente)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load document")
	}
	return s.buildDetail(ctx, doc)
}

// LookupByQR resolves a document through its QR token. This backs the public
// consulta endpoint, so it returns the bare document rather than the detail.
func (s *DocumentService) LookupByQR(ctx context.Context, token string) (*models.Document, error) {
	doc, err := s.docs.GetByQR(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to resolve QR token")
	}
	return doc, nil
}

// List returns documents matching the filter.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list documents")
	}
	return docs, total, nil
}

// Update patches mutable metadata. Archived documents are frozen, and the
// ARCHIVED state is only reachable through the archive workflow.
func (s *DocumentService) Update(ctx context.Context, id string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load document")
	}
	if doc.State.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archived documents are immutable")
	}

	fields := map[string]interface{}{}
	if req.Subject != nil {
		if strings.TrimSpace(*req.Subject) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subject cannot be empty")
		}
		fields["subject"] = strings.TrimSpace(*req.Subject)
	}
	if req.Priority != nil {
		switch *req.Priority {
		case models.PriorityLow, models.PriorityNormal, models.PriorityUrgent:
			fields["priority"] = *req.Priority
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid priority")
		}
	}
	if req.Deadline != nil {
		fields["deadline"] = *req.Deadline
	}
	if req.Labels != nil {
		fields["labels"] = pq.StringArray(req.Labels)
	}
	if req.State != nil {
		if *req.State == models.DocumentArchived {
			return nil, appErrors.Clone(appErrors.ErrValidation, "use the archive workflow to archive a document")
		}
		switch *req.State {
		case models.DocumentRegistered, models.DocumentInProcess, models.DocumentAttended:
			fields["state"] = *req.State
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid state")
		}
	}
	if len(fields) == 0 {
		return doc, nil
	}

	if err := s.docs.UpdateFields(ctx, id, fields); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to update document")
	}
	s.invalidate(ctx, id)

	updated, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to reload document")
	}
	return updated, nil
}

// Attach stores a file against the document. Duplicate content (same SHA256)
// is idempotent and returns the existing attachment.
func (s *DocumentService) Attach(ctx context.Context, documentID string, upload AttachmentUpload) (*models.Attachment, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load document")
	}
	if doc.State.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archived documents do not accept attachments")
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}

	hash, err := hashContent(upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to hash file")
	}
	if existing, err := s.attachments.FindByHash(ctx, documentID, hash); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to check duplicates")
	} else if existing != nil {
		return existing, nil
	}

	filename := fmt.Sprintf("%s_%s%s", doc.Expediente, hash[:12], strings.ToLower(filepath.Ext(upload.Filename)))
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to reset upload stream")
	}
	path, err := s.storage.SaveStream(filename, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to persist file")
	}

	att := &models.Attachment{
		DocumentID: documentID,
		SHA256:     hash,
		SizeBytes:  upload.Size,
		MimeType:   mimeType,
		StorageURL: path,
		Filename:   upload.Filename,
	}
	if err := s.attachments.Create(ctx, att); err != nil {
		_ = s.storage.Delete(path)
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to record attachment")
	}
	if !doc.HasAttachments {
		if err := s.docs.MarkHasAttachments(ctx, documentID); err != nil {
			s.logger.Warn("failed to flag attachments", zap.Error(err), zap.String("document_id", documentID))
		}
	}
	s.invalidate(ctx, documentID)
	return att, nil
}

// Receipt renders the reception cargo PDF for a document.
func (s *DocumentService) Receipt(ctx context.Context, id string) ([]byte, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data := export.ReceiptData{
		Expediente: detail.Expediente,
		ReceivedAt: detail.ReceivedAt,
		Sender:     detail.Sender,
		Subject:    detail.Subject,
		DocType:    detail.DocTypeID,
		Priority:   string(detail.Priority),
		State:      string(detail.State),
		QRToken:    detail.QRToken,
		LookupURL:  s.lookupURL(detail.QRToken),
	}
	pdf, err := s.receipts.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to render receipt")
	}
	return pdf, nil
}

// QRCode renders the document's lookup QR as a PNG.
func (s *DocumentService) QRCode(ctx context.Context, id string) ([]byte, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := export.RenderQR(s.lookupURL(detail.QRToken), 256)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to render QR code")
	}
	return png, nil
}

func (s *DocumentService) buildDetail(ctx context.Context, doc *models.Document) (*models.DocumentDetail, error) {
	detail := &models.DocumentDetail{Document: *doc}
	attachments, err := s.attachments.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load attachments")
	}
	detail.Attachments = attachments
	if s.derivations != nil {
		current, err := s.derivations.ActiveNonCopy(ctx, doc.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load current derivation")
		}
		detail.CurrentDerivation = current
	}
	return detail, nil
}

func (s *DocumentService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, cacheKey(id)); err != nil {
		s.logger.Warn("document cache invalidation failed", zap.Error(err), zap.String("id", id))
	}
}

func (s *DocumentService) detectMime(upload AttachmentUpload) (string, error) {
	if upload.MimeType != "" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func (s *DocumentService) lookupURL(token string) string {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/consulta/%s", base, token)
}

func cacheKey(id string) string {
	return "documento:" + id
}

func qrToken(expediente string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("QR-%s-%s", expediente, raw[:8])
}

func hashContent(r io.ReadSeeker) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
