package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drtc-peru/tramite-api/internal/models"
)

const notificationColumns = `id, user_id, kind, title, message, priority, state, document_id,
       expediente, icon, color, send_email, email_sent, email_sent_at, action_url, expires_at,
       created_at, updated_at`

// NotificationRepository handles per-user notification persistence.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.State == "" {
		n.State = models.NotificationPending
	}
	const query = `INSERT INTO notifications
	(id, user_id, kind, title, message, priority, state, document_id, expediente, icon, color,
	 send_email, email_sent, email_sent_at, action_url, expires_at, created_at, updated_at)
	VALUES (:id, :user_id, :kind, :title, :message, :priority, :state, :document_id, :expediente,
	 :icon, :color, :send_email, :email_sent, :email_sent_at, :action_url, :expires_at,
	 :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first, paginated.
// Expired rows are hidden, not deleted.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, int, error) {
	where := ` WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > NOW())`
	if unreadOnly {
		where += ` AND state = 'PENDING'`
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications`+where, userID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM notifications%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		notificationColumns, where, size, size*(page-1))

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

// CountUnread returns the user's pending count for the badge.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications
	WHERE user_id = $1 AND state = 'PENDING' AND (expires_at IS NULL OR expires_at > NOW())`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips one notification to READ. Ownership is part of the guard.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	const query = `UPDATE notifications SET state = 'READ', updated_at = $3
	WHERE id = $1 AND user_id = $2 AND state = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, id, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireAffected(res)
}

// MarkAllRead flips every pending notification of a user and returns how
// many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const query = `UPDATE notifications SET state = 'READ', updated_at = $2
	WHERE user_id = $1 AND state = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

// PendingEmails lists notifications flagged for email that have not been
// sent yet.
func (r *NotificationRepository) PendingEmails(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM notifications
	WHERE send_email = TRUE AND email_sent = FALSE ORDER BY created_at ASC LIMIT %d`,
		notificationColumns, limit)
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("pending email notifications: %w", err)
	}
	return items, nil
}

// MarkEmailSent stamps a successful email delivery.
func (r *NotificationRepository) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notifications SET email_sent = TRUE, email_sent_at = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	return requireAffected(res)
}

// Cleanup deletes read notifications older than the cutoff plus any row past
// its expiry, and returns how many were removed.
func (r *NotificationRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM notifications
	WHERE (state = 'READ' AND created_at < $1)
	   OR (expires_at IS NOT NULL AND expires_at < NOW())`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", err)
	}
	return res.RowsAffected()
}
