package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	"github.com/drtc-peru/tramite-api/internal/repository"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
)

type archiveEntryStore interface {
	Create(ctx context.Context, q sqlx.ExtContext, entry *models.ArchiveEntry) error
	GetByID(ctx context.Context, id string) (*models.ArchiveEntry, error)
	GetByDocument(ctx context.Context, documentID string) (*models.ArchiveEntry, error)
	List(ctx context.Context, classification models.ArchiveClassification, page, size int) ([]models.ArchiveEntry, int, error)
	NearExpiry(ctx context.Context, days int) ([]models.ArchiveEntry, error)
	Expired(ctx context.Context) ([]models.ArchiveEntry, error)
	UpdateStatus(ctx context.Context, id string, status models.ArchiveStatus, observations string) error
}

type archiveDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	SetState(ctx context.Context, q sqlx.ExtContext, id string, state models.DocumentState) error
}

type locationAllocator interface {
	NextLocationCode(ctx context.Context, classCode string) (string, error)
}

// ArchiveService manages the physical archive: classification, location
// codes, retention horizons and end-of-life operations.
type ArchiveService struct {
	db        *sqlx.DB
	entries   archiveEntryStore
	docs      archiveDocumentStore
	numbering locationAllocator
	cache     cacheInvalidator
	logger    *zap.Logger
	retention map[string]int
	retries   int
	now       func() time.Time
}

// NewArchiveService constructs the service. retentionYears maps policy names
// to horizons; missing policies fall back to sane defaults.
func NewArchiveService(db *sqlx.DB, entries archiveEntryStore, docs archiveDocumentStore, numbering locationAllocator, cache cacheInvalidator, logger *zap.Logger, retentionYears map[string]int) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := map[string]int{
		string(models.RetentionPermanente):   100,
		string(models.RetentionLargoPlazo):   10,
		string(models.RetentionMedianoPlazo): 5,
		string(models.RetentionCortoPlazo):   2,
	}
	for policy, years := range retentionYears {
		if years > 0 {
			defaults[policy] = years
		}
	}
	return &ArchiveService{
		db:        db,
		entries:   entries,
		docs:      docs,
		numbering: numbering,
		cache:     cache,
		logger:    logger,
		retention: defaults,
		retries:   3,
		now:       time.Now,
	}
}

// Archive moves a document into the physical archive. Only ATTENDED
// documents qualify; administrators may archive directly from any earlier
// state.
func (s *ArchiveService) Archive(ctx context.Context, req dto.ArchiveDocumentRequest, actor *models.JWTClaims) (*models.ArchiveEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	classCode, ok := req.Classification.LocationCode()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid classification")
	}
	years, ok := s.retention[string(req.Retention)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid retention policy")
	}

	doc, err := s.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load document")
	}
	if doc.State.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "document is already archived")
	}
	if doc.State != models.DocumentAttended && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only attended documents can be archived")
	}

	archivedAt := s.now().UTC()
	entry := &models.ArchiveEntry{
		DocumentID:       doc.ID,
		Classification:   req.Classification,
		Retention:        req.Retention,
		ArchivedAt:       archivedAt,
		ArchivedByUserID: actor.UserID,
		RetentionExpiry:  archivedAt.AddDate(years, 0, 0),
		Status:           models.ArchiveStatusArchived,
		Observations:     req.Observations,
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		code, err := s.numbering.NextLocationCode(ctx, classCode)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to allocate location code")
		}
		entry.ID = ""
		entry.LocationCode = code

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to open transaction")
		}
		if err := s.entries.Create(ctx, tx, entry); err != nil {
			tx.Rollback() //nolint:errcheck
			if repository.IsUniqueViolation(errors.Unwrap(err)) || repository.IsUniqueViolation(err) {
				lastErr = err
				s.logger.Warn("location code allocation collided, retrying",
					zap.String("location_code", code), zap.Int("attempt", attempt+1))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to create archive entry")
		}
		if err := s.docs.SetState(ctx, tx, doc.ID, models.DocumentArchived); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to mark document archived")
		}
		if err := tx.Commit(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to commit archive")
		}
		s.invalidate(ctx, doc.ID)
		return entry, nil
	}
	return nil, appErrors.Wrap(lastErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "location code allocation kept colliding")
}

// Get returns one archive entry.
func (s *ArchiveService) Get(ctx context.Context, id string) (*models.ArchiveEntry, error) {
	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load archive entry")
	}
	return entry, nil
}

// List returns archived entries filtered by classification.
func (s *ArchiveService) List(ctx context.Context, query dto.ArchiveListQuery) ([]models.ArchiveEntry, int, error) {
	if query.Classification != "" {
		if _, ok := query.Classification.LocationCode(); !ok {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, "invalid classification")
		}
	}
	entries, total, err := s.entries.List(ctx, query.Classification, query.Page, query.PageSize)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list archive")
	}
	return entries, total, nil
}

// NearExpiry lists entries whose retention lapses within the window.
func (s *ArchiveService) NearExpiry(ctx context.Context, days int) ([]models.ArchiveEntry, error) {
	if days <= 0 {
		days = 30
	}
	entries, err := s.entries.NearExpiry(ctx, days)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list near-expiry entries")
	}
	return entries, nil
}

// Expired lists entries whose retention already lapsed.
func (s *ArchiveService) Expired(ctx context.Context) ([]models.ArchiveEntry, error) {
	entries, err := s.entries.Expired(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list expired entries")
	}
	return entries, nil
}

// BulkDestroy destroys a batch of entries. Destruction requires a lapsed
// retention horizon; each item reports its own outcome.
func (s *ArchiveService) BulkDestroy(ctx context.Context, req dto.BulkArchiveOpRequest, actor *models.JWTClaims) ([]models.ArchiveOpResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	results := make([]models.ArchiveOpResult, 0, len(req.EntryIDs))
	now := s.now()
	for _, entryID := range req.EntryIDs {
		results = append(results, s.destroyOne(ctx, entryID, req.Observations, now))
	}
	return results, nil
}

// BulkMigrate marks a batch of entries as migrated to external custody.
func (s *ArchiveService) BulkMigrate(ctx context.Context, req dto.BulkArchiveOpRequest, actor *models.JWTClaims) ([]models.ArchiveOpResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	results := make([]models.ArchiveOpResult, 0, len(req.EntryIDs))
	for _, entryID := range req.EntryIDs {
		result := models.ArchiveOpResult{EntryID: entryID, OK: true}
		if err := s.entries.UpdateStatus(ctx, entryID, models.ArchiveStatusMigrated, req.Observations); err != nil {
			result.OK = false
			result.Error = s.opError(err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *ArchiveService) destroyOne(ctx context.Context, entryID, observations string, now time.Time) models.ArchiveOpResult {
	result := models.ArchiveOpResult{EntryID: entryID, OK: true}
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		result.OK = false
		result.Error = s.opError(err)
		return result
	}
	if entry.Status != models.ArchiveStatusArchived {
		result.OK = false
		result.Error = fmt.Sprintf("entry is %s", entry.Status)
		return result
	}
	if entry.RetentionExpiry.After(now) {
		result.OK = false
		result.Error = fmt.Sprintf("retention runs until %s", entry.RetentionExpiry.Format("2006-01-02"))
		return result
	}
	if err := s.entries.UpdateStatus(ctx, entryID, models.ArchiveStatusDestroyed, observations); err != nil {
		result.OK = false
		result.Error = s.opError(err)
		return result
	}
	s.invalidate(ctx, entry.DocumentID)
	return result
}

func (s *ArchiveService) opError(err error) string {
	if errors.Is(err, sql.ErrNoRows) {
		return "entry not found"
	}
	return appErrors.FromError(err).Message
}

func (s *ArchiveService) invalidate(ctx context.Context, documentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "documento:"+documentID); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err), zap.String("document_id", documentID))
	}
}
