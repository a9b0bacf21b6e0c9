package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/drtc-peru/tramite-api/internal/models"
)

const documentColumns = `id, expediente, qr_token, sender, subject, doc_type_id, priority, state,
       current_area_id, register_user_id, received_at, deadline, has_attachments, labels,
       external_origin, external_id, created_at, updated_at`

// DocumentRepository handles document persistence.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = now
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Labels == nil {
		doc.Labels = pq.StringArray{}
	}
	const query = `INSERT INTO documents
	(id, expediente, qr_token, sender, subject, doc_type_id, priority, state, current_area_id,
	 register_user_id, received_at, deadline, has_attachments, labels, external_origin, external_id,
	 created_at, updated_at)
	VALUES (:id, :expediente, :qr_token, :sender, :subject, :doc_type_id, :priority, :state,
	 :current_area_id, :register_user_id, :received_at, :deadline, :has_attachments, :labels,
	 :external_origin, :external_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document row.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

// GetByExpediente retrieves a document by its expediente number.
func (r *DocumentRepository) GetByExpediente(ctx context.Context, expediente string) (*models.Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE expediente = $1`, expediente)
}

// GetByQR retrieves a document by its QR token.
func (r *DocumentRepository) GetByQR(ctx context.Context, token string) (*models.Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE qr_token = $1`, token)
}

// GetByExternalID retrieves a document by the identifier assigned to it by an
// external system.
func (r *DocumentRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE external_id = $1`, externalID)
}

func (r *DocumentRepository) get(ctx context.Context, query string, arg interface{}) (*models.Document, error) {
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, arg); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents matching the filter plus the unbounded total count.
// Documents whose archive entry is DESTROYED are excluded from the listing
// surface but stay reachable through the direct lookups above.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	conditions, args := buildDocumentConditions(filter)

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM documents` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	sortBy := sortColumn(filter.SortBy)
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		documentColumns, where, sortBy, order, size, size*(page-1))

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	return docs, total, nil
}

func buildDocumentConditions(filter models.DocumentFilter) ([]string, []interface{}) {
	conditions := []string{
		`NOT EXISTS (SELECT 1 FROM archive_entries ae WHERE ae.document_id = documents.id AND ae.status = 'DESTROYED')`,
	}
	args := make([]interface{}, 0, 12)

	like := func(column, value string) {
		args = append(args, "%"+value+"%")
		conditions = append(conditions, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
	}
	eq := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Expediente != "" {
		like("expediente", filter.Expediente)
	}
	if filter.Sender != "" {
		like("sender", filter.Sender)
	}
	if filter.Subject != "" {
		like("subject", filter.Subject)
	}
	if filter.DocTypeID != "" {
		eq("doc_type_id", filter.DocTypeID)
	}
	if filter.State != "" {
		eq("state", filter.State)
	}
	if filter.Priority != "" {
		eq("priority", filter.Priority)
	}
	if filter.AreaID != "" {
		eq("current_area_id", filter.AreaID)
	}
	if filter.RegisterUserID != "" {
		eq("register_user_id", filter.RegisterUserID)
	}
	if filter.ReceivedFrom != nil {
		args = append(args, *filter.ReceivedFrom)
		conditions = append(conditions, fmt.Sprintf("received_at >= $%d", len(args)))
	}
	if filter.ReceivedTo != nil {
		args = append(args, *filter.ReceivedTo)
		conditions = append(conditions, fmt.Sprintf("received_at <= $%d", len(args)))
	}
	if filter.DeadlineFrom != nil {
		args = append(args, *filter.DeadlineFrom)
		conditions = append(conditions, fmt.Sprintf("deadline >= $%d", len(args)))
	}
	if filter.DeadlineTo != nil {
		args = append(args, *filter.DeadlineTo)
		conditions = append(conditions, fmt.Sprintf("deadline <= $%d", len(args)))
	}
	if filter.HasAttachments != nil {
		eq("has_attachments", *filter.HasAttachments)
	}
	if len(filter.Labels) > 0 {
		args = append(args, pq.Array(filter.Labels))
		conditions = append(conditions, fmt.Sprintf("labels && $%d", len(args)))
	}
	if filter.ExternalOrigin != nil {
		eq("external_origin", *filter.ExternalOrigin)
	}
	if filter.OnlyOverdue {
		conditions = append(conditions, "deadline IS NOT NULL AND deadline < NOW() AND state IN ('REGISTERED', 'IN_PROCESS')")
	}
	if filter.OnlyUrgent {
		conditions = append(conditions, "priority = 'URGENT'")
	}

	return conditions, args
}

func sortColumn(requested string) string {
	switch requested {
	case "deadline", "expediente", "priority", "state", "sender", "updated_at":
		return requested
	default:
		return "received_at"
	}
}

// UpdateFields patches the provided columns and bumps updated_at.
func (r *DocumentRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+2)
	for column, value := range fields {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireAffected(res)
}

// SetWorkflowState moves the document's state and current area inside the
// caller's transaction.
func (r *DocumentRepository) SetWorkflowState(ctx context.Context, q sqlx.ExtContext, id string, state models.DocumentState, areaID string) error {
	const query = `UPDATE documents SET state = $2, current_area_id = $3, updated_at = $4 WHERE id = $1`
	res, err := q.ExecContext(ctx, query, id, state, areaID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set document workflow state: %w", err)
	}
	return requireAffected(res)
}

// SetState moves only the state inside the caller's transaction.
func (r *DocumentRepository) SetState(ctx context.Context, q sqlx.ExtContext, id string, state models.DocumentState) error {
	const query = `UPDATE documents SET state = $2, updated_at = $3 WHERE id = $1`
	res, err := q.ExecContext(ctx, query, id, state, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set document state: %w", err)
	}
	return requireAffected(res)
}

// MarkHasAttachments flips the attachment flag once.
func (r *DocumentRepository) MarkHasAttachments(ctx context.Context, id string) error {
	const query = `UPDATE documents SET has_attachments = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark document attachments: %w", err)
	}
	return nil
}
