package models

import (
	"time"

	"github.com/lib/pq"
)

// NotificationKind enumerates the domain events that notify users.
type NotificationKind string

const (
	NotifyDocumentReceived   NotificationKind = "DOCUMENT_RECEIVED"
	NotifyDerivationPending  NotificationKind = "DERIVATION_PENDING"
	NotifyDerivationRejected NotificationKind = "DERIVATION_REJECTED"
	NotifyDerivationAttended NotificationKind = "DERIVATION_ATTENDED"
	NotifyDeadlineNear       NotificationKind = "DEADLINE_NEAR"
	NotifyDeadlineOverdue    NotificationKind = "DEADLINE_OVERDUE"
	NotifyRetentionExpiry    NotificationKind = "RETENTION_EXPIRY"
	NotifySystemAlert        NotificationKind = "SYSTEM_ALERT"
)

// Icon returns the UI hint pair (icon, color) derived from the kind.
func (k NotificationKind) Icon() (string, string) {
	switch k {
	case NotifyDocumentReceived:
		return "inbox", "blue"
	case NotifyDerivationPending:
		return "send", "orange"
	case NotifyDerivationRejected:
		return "x-circle", "red"
	case NotifyDerivationAttended:
		return "check-circle", "green"
	case NotifyDeadlineNear:
		return "clock", "yellow"
	case NotifyDeadlineOverdue:
		return "alert-triangle", "red"
	case NotifyRetentionExpiry:
		return "archive", "gray"
	default:
		return "bell", "gray"
	}
}

// NotificationState marks read status.
type NotificationState string

const (
	NotificationPending NotificationState = "PENDING"
	NotificationRead    NotificationState = "READ"
)

// Notification is one per-user delivery record.
type Notification struct {
	ID          string            `db:"id" json:"id"`
	UserID      string            `db:"user_id" json:"user_id"`
	Kind        NotificationKind  `db:"kind" json:"kind"`
	Title       string            `db:"title" json:"title"`
	Message     string            `db:"message" json:"message"`
	Priority    DocumentPriority  `db:"priority" json:"priority"`
	State       NotificationState `db:"state" json:"state"`
	DocumentID  *string           `db:"document_id" json:"document_id,omitempty"`
	Expediente  *string           `db:"expediente" json:"expediente,omitempty"`
	Icon        string            `db:"icon" json:"icon"`
	Color       string            `db:"color" json:"color"`
	SendEmail   bool              `db:"send_email" json:"send_email"`
	EmailSent   bool              `db:"email_sent" json:"email_sent"`
	EmailSentAt *time.Time        `db:"email_sent_at" json:"email_sent_at,omitempty"`
	ActionURL   *string           `db:"action_url" json:"action_url,omitempty"`
	ExpiresAt   *time.Time        `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// ScheduledAlert defines a periodic SQL-driven alert.
type ScheduledAlert struct {
	ID            string           `db:"id" json:"id"`
	Name          string           `db:"name" json:"name"`
	Kind          NotificationKind `db:"kind" json:"kind"`
	PredicateSQL  string           `db:"predicate_sql" json:"predicate_sql"`
	PeriodMinutes int              `db:"period_minutes" json:"period_minutes"`
	Recipients    pq.StringArray   `db:"recipients" json:"recipients"`
	TitleTmpl     string           `db:"title_tmpl" json:"title_tmpl"`
	MessageTmpl   string           `db:"message_tmpl" json:"message_tmpl"`
	Priority      DocumentPriority `db:"priority" json:"priority"`
	LastRunAt     *time.Time       `db:"last_run_at" json:"last_run_at,omitempty"`
	NextRunAt     *time.Time       `db:"next_run_at" json:"next_run_at,omitempty"`
	RunCount      int64            `db:"run_count" json:"run_count"`
	EmittedCount  int64            `db:"emitted_count" json:"emitted_count"`
	LastError     *string          `db:"last_error" json:"last_error,omitempty"`
	Active        bool             `db:"active" json:"active"`
}
