package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
)

type derivationStore interface {
	Create(ctx context.Context, q sqlx.ExtContext, d *models.Derivation) error
	GetByID(ctx context.Context, id string) (*models.Derivation, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Derivation, error)
	ActiveNonCopy(ctx context.Context, documentID string) (*models.Derivation, error)
	ActiveNonCopyExcept(ctx context.Context, q sqlx.ExtContext, documentID, exceptID string) (*models.Derivation, error)
	MarkReceived(ctx context.Context, q sqlx.ExtContext, id, userID string, at time.Time) error
	MarkRejected(ctx context.Context, q sqlx.ExtContext, id, userID, reason string, at time.Time) error
	MarkAttended(ctx context.Context, q sqlx.ExtContext, id, userID, observations string, at time.Time) error
	Inbox(ctx context.Context, areaID string) ([]models.Derivation, error)
	Overdue(ctx context.Context) ([]models.Derivation, error)
	Urgent(ctx context.Context) ([]models.Derivation, error)
}

type derivationDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	SetWorkflowState(ctx context.Context, q sqlx.ExtContext, id string, state models.DocumentState, areaID string) error
	SetState(ctx context.Context, q sqlx.ExtContext, id string, state models.DocumentState) error
}

type derivationNumberAllocator interface {
	NextDerivationNumber(ctx context.Context) (string, error)
}

type derivationNotifier interface {
	Emit(ctx context.Context, n *models.Notification) error
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DerivationService moves documents between areas. Every workflow mutation
// runs in one transaction so the derivation row and the document state never
// diverge; notifications go out after commit, best effort.
type DerivationService struct {
	db          *sqlx.DB
	derivations derivationStore
	docs        derivationDocumentStore
	numbering   derivationNumberAllocator
	notifier    derivationNotifier
	cache       cacheInvalidator
	logger      *zap.Logger
	now         func() time.Time
}

// NewDerivationService constructs the service.
func NewDerivationService(db *sqlx.DB, derivations derivationStore, docs derivationDocumentStore, numbering derivationNumberAllocator, notifier derivationNotifier, cache cacheInvalidator, logger *zap.Logger) *DerivationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DerivationService{
		db:          db,
		derivations: derivations,
		docs:        docs,
		numbering:   numbering,
		notifier:    notifier,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// Derive routes a document to one or more areas. The first destination gets
// the blocking derivation; the rest receive informational copies that never
// gate the workflow.
func (s *DerivationService) Derive(ctx context.Context, req dto.CreateDerivationRequest, actor *models.JWTClaims) ([]models.Derivation, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(req.DestAreaIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one destination area is required")
	}
	seen := map[string]struct{}{}
	for _, areaID := range req.DestAreaIDs {
		if strings.TrimSpace(areaID) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "destination area cannot be empty")
		}
		if _, dup := seen[areaID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate destination area")
		}
		seen[areaID] = struct{}{}
	}

	doc, err := s.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load document")
	}
	if !actor.IsAdmin() && actor.AreaID != doc.CurrentAreaID && actor.UserID != doc.RegisterUserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document is not held by your area")
	}
	if doc.State.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archived documents cannot be derived")
	}
	active, err := s.derivations.ActiveNonCopy(ctx, doc.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to check active derivations")
	}
	if active != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("document has an active derivation %s", active.Number))
	}

	created := make([]models.Derivation, 0, len(req.DestAreaIDs))
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to open transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	for i, areaID := range req.DestAreaIDs {
		number, err := s.numbering.NextDerivationNumber(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to allocate derivation number")
		}
		d := models.Derivation{
			Number:           number,
			DocumentID:       doc.ID,
			OriginAreaID:     doc.CurrentAreaID,
			DestAreaID:       areaID,
			DerivedByUserID:  actor.UserID,
			DerivedAt:        s.now().UTC(),
			Deadline:         req.Deadline,
			State:            models.DerivationPending,
			Urgent:           req.Urgent,
			RequiresResponse: req.RequiresResponse,
			IsCopy:           i > 0,
			Instructions:     req.Instructions,
		}
		if err := s.derivations.Create(ctx, tx, &d); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to create derivation")
		}
		created = append(created, d)
	}
	if err := s.docs.SetWorkflowState(ctx, tx, doc.ID, models.DocumentInProcess, req.DestAreaIDs[0]); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to move document")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to commit derivation")
	}

	s.invalidate(ctx, doc.ID)
	for _, d := range created {
		s.notify(ctx, d.DestAreaID, models.NotifyDerivationPending,
			fmt.Sprintf("Nueva derivación %s", d.Number),
			fmt.Sprintf("El documento %s fue derivado a su área", doc.Expediente), doc)
	}
	return created, nil
}

// Receive accepts or rejects a pending derivation at the destination area.
// Rejection returns the document to the origin area.
func (s *DerivationService) Receive(ctx context.Context, id string, req dto.ReceiveDerivationRequest, actor *models.JWTClaims) (*models.Derivation, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	d, err := s.loadDerivation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.AreaID != d.DestAreaID {
		return nil, appErrors.ErrForbidden
	}
	if d.State != models.DerivationPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("derivation is %s, only PENDING can be received", d.State))
	}
	if !req.Accept && strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires a reason")
	}

	doc, err := s.docs.GetByID(ctx, d.DocumentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load document")
	}

	now := s.now().UTC()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to open transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if req.Accept {
		if err := s.derivations.MarkReceived(ctx, tx, d.ID, actor.UserID, now); err != nil {
			return nil, s.transitionError(err, "failed to receive derivation")
		}
	} else {
		if err := s.derivations.MarkRejected(ctx, tx, d.ID, actor.UserID, strings.TrimSpace(req.Reason), now); err != nil {
			return nil, s.transitionError(err, "failed to reject derivation")
		}
		if err := s.docs.SetWorkflowState(ctx, tx, doc.ID, models.DocumentInProcess, d.OriginAreaID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to return document to origin")
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to commit reception")
	}

	s.invalidate(ctx, doc.ID)
	if !req.Accept {
		s.notify(ctx, d.OriginAreaID, models.NotifyDerivationRejected,
			fmt.Sprintf("Derivación %s rechazada", d.Number),
			fmt.Sprintf("El documento %s fue rechazado: %s", doc.Expediente, req.Reason), doc)
	}
	return s.loadDerivation(ctx, id)
}

// Attend closes a derivation. With NextAreaID set the document chains to the
// next area in the same transaction; otherwise it becomes ATTENDED.
func (s *DerivationService) Attend(ctx context.Context, id string, req dto.AttendDerivationRequest, actor *models.JWTClaims) (*models.Derivation, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	d, err := s.loadDerivation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.AreaID != d.DestAreaID {
		return nil, appErrors.ErrForbidden
	}
	if !d.State.Active() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("derivation is %s and cannot be attended", d.State))
	}

	doc, err := s.docs.GetByID(ctx, d.DocumentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load document")
	}

	var chained *models.Derivation
	now := s.now().UTC()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to open transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.derivations.MarkAttended(ctx, tx, d.ID, actor.UserID, strings.TrimSpace(req.Observations), now); err != nil {
		return nil, s.transitionError(err, "failed to attend derivation")
	}
	if req.NextAreaID != nil && strings.TrimSpace(*req.NextAreaID) != "" {
		number, err := s.numbering.NextDerivationNumber(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to allocate derivation number")
		}
		next := models.Derivation{
			Number:           number,
			DocumentID:       doc.ID,
			OriginAreaID:     d.DestAreaID,
			DestAreaID:       *req.NextAreaID,
			DerivedByUserID:  actor.UserID,
			DerivedAt:        now,
			Deadline:         req.NextDeadline,
			State:            models.DerivationPending,
			Urgent:           d.Urgent,
			RequiresResponse: d.RequiresResponse,
			Instructions:     strings.TrimSpace(req.Observations),
		}
		if err := s.derivations.Create(ctx, tx, &next); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to chain derivation")
		}
		if err := s.docs.SetWorkflowState(ctx, tx, doc.ID, models.DocumentInProcess, *req.NextAreaID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to move document")
		}
		chained = &next
	} else {
		// Attending an informational copy must not close the document while
		// the blocking derivation is still open.
		remaining, err := s.derivations.ActiveNonCopyExcept(ctx, tx, doc.ID, d.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to check remaining derivations")
		}
		if remaining == nil {
			if err := s.docs.SetState(ctx, tx, doc.ID, models.DocumentAttended); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to mark document attended")
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to commit attention")
	}

	s.invalidate(ctx, doc.ID)
	s.notify(ctx, d.OriginAreaID, models.NotifyDerivationAttended,
		fmt.Sprintf("Derivación %s atendida", d.Number),
		fmt.Sprintf("El documento %s fue atendido", doc.Expediente), doc)
	if chained != nil {
		s.notify(ctx, chained.DestAreaID, models.NotifyDerivationPending,
			fmt.Sprintf("Nueva derivación %s", chained.Number),
			fmt.Sprintf("El documento %s fue derivado a su área", doc.Expediente), doc)
	}
	return s.loadDerivation(ctx, id)
}

// History returns the full routing trail of a document with computed flags.
func (s *DerivationService) History(ctx context.Context, documentID string) (*models.DerivationHistory, error) {
	items, err := s.derivations.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load derivation history")
	}
	now := s.now()
	history := &models.DerivationHistory{Derivations: make([]models.DerivationView, 0, len(items))}
	areas := map[string]struct{}{}
	for _, d := range items {
		view := d.Decorate(now)
		history.Derivations = append(history.Derivations, view)
		areas[d.OriginAreaID] = struct{}{}
		areas[d.DestAreaID] = struct{}{}
		if !d.IsCopy && d.State.Active() {
			current := view
			history.CurrentDerivation = &current
		}
	}
	for area := range areas {
		history.InvolvedAreas = append(history.InvolvedAreas, area)
	}
	if len(items) > 0 {
		first := items[0].DerivedAt
		var lastAttended time.Time
		for _, d := range items {
			if d.DerivedAt.Before(first) {
				first = d.DerivedAt
			}
			if d.AttendedAt != nil && d.AttendedAt.After(lastAttended) {
				lastAttended = *d.AttendedAt
			}
		}
		end := now
		if history.CurrentDerivation == nil && !lastAttended.IsZero() {
			end = lastAttended
		}
		history.TotalProcessDays = int(end.Sub(first).Hours() / 24)
	}
	return history, nil
}

// Inbox lists the pending work of an area, decorated.
func (s *DerivationService) Inbox(ctx context.Context, areaID string) ([]models.DerivationView, error) {
	items, err := s.derivations.Inbox(ctx, areaID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load inbox")
	}
	return s.decorate(items), nil
}

// Overdue lists active derivations past their deadline.
func (s *DerivationService) Overdue(ctx context.Context) ([]models.DerivationView, error) {
	items, err := s.derivations.Overdue(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load overdue derivations")
	}
	return s.decorate(items), nil
}

// UrgentPending lists active urgent derivations.
func (s *DerivationService) UrgentPending(ctx context.Context) ([]models.DerivationView, error) {
	items, err := s.derivations.Urgent(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load urgent derivations")
	}
	return s.decorate(items), nil
}

// BulkDerive routes several documents to one area, reporting per-document
// outcomes instead of failing the whole batch.
func (s *DerivationService) BulkDerive(ctx context.Context, req dto.BulkDeriveRequest, actor *models.JWTClaims) ([]dto.BulkDeriveResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	results := make([]dto.BulkDeriveResult, 0, len(req.DocumentIDs))
	for _, docID := range req.DocumentIDs {
		_, err := s.Derive(ctx, dto.CreateDerivationRequest{
			DocumentID:       docID,
			DestAreaIDs:      []string{req.DestAreaID},
			Deadline:         req.Deadline,
			Urgent:           req.Urgent,
			RequiresResponse: req.RequiresResponse,
			Instructions:     req.Instructions,
		}, actor)
		result := dto.BulkDeriveResult{DocumentID: docID, OK: err == nil}
		if err != nil {
			result.Error = appErrors.FromError(err).Message
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *DerivationService) decorate(items []models.Derivation) []models.DerivationView {
	now := s.now()
	views := make([]models.DerivationView, 0, len(items))
	for _, d := range items {
		views = append(views, d.Decorate(now))
	}
	return views
}

func (s *DerivationService) loadDerivation(ctx context.Context, id string) (*models.Derivation, error) {
	d, err := s.derivations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load derivation")
	}
	return d, nil
}

// transitionError maps the zero-rows signal from guarded updates to a
// conflict: somebody else moved the derivation first.
func (s *DerivationService) transitionError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConflict, "derivation state changed concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, message)
}

func (s *DerivationService) invalidate(ctx context.Context, documentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "documento:"+documentID); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err), zap.String("document_id", documentID))
	}
}

func (s *DerivationService) notify(ctx context.Context, areaID string, kind models.NotificationKind, title, message string, doc *models.Document) {
	if s.notifier == nil {
		return
	}
	icon, color := kind.Icon()
	priority := models.PriorityNormal
	if doc.Priority == models.PriorityUrgent {
		priority = models.PriorityUrgent
	}
	n := &models.Notification{
		UserID:     areaID,
		Kind:       kind,
		Title:      title,
		Message:    message,
		Priority:   priority,
		DocumentID: &doc.ID,
		Expediente: &doc.Expediente,
		Icon:       icon,
		Color:      color,
	}
	if err := s.notifier.Emit(ctx, n); err != nil {
		s.logger.Warn("derivation notification failed", zap.Error(err), zap.String("area_id", areaID))
	}
}
