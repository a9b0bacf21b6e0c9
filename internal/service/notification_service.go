package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
	"github.com/drtc-peru/tramite-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	PendingEmails(ctx context.Context, limit int) ([]models.Notification, error)
	MarkEmailSent(ctx context.Context, id string, at time.Time) error
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

type alertStore interface {
	DueAlerts(ctx context.Context) ([]models.ScheduledAlert, error)
	List(ctx context.Context) ([]models.ScheduledAlert, error)
	UpdateAfterRun(ctx context.Context, id string, ranAt, nextRun time.Time, emitted int64, lastError *string) error
	ExecutePredicate(ctx context.Context, predicateSQL string) ([]map[string]interface{}, error)
}

type emailSender interface {
	Send(to, subject, htmlBody string) error
}

// NotificationService fans domain events out to users: in-app rows always,
// email asynchronously through a bounded worker queue.
type NotificationService struct {
	notifications notificationStore
	alerts        alertStore
	mailer        emailSender
	queue         *jobs.Queue
	logger        *zap.Logger
	cleanupAge    time.Duration
	now           func() time.Time
}

// NewNotificationService constructs the service and its email queue.
func NewNotificationService(notifications notificationStore, alerts alertStore, mailer emailSender, logger *zap.Logger, emailWorkers, cleanupAgeDays int) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emailWorkers <= 0 {
		emailWorkers = 2
	}
	if cleanupAgeDays <= 0 {
		cleanupAgeDays = 90
	}
	s := &NotificationService{
		notifications: notifications,
		alerts:        alerts,
		mailer:        mailer,
		logger:        logger,
		cleanupAge:    time.Duration(cleanupAgeDays) * 24 * time.Hour,
		now:           time.Now,
	}
	s.queue = jobs.NewQueue("notification-email", s.handleEmailJob, jobs.QueueConfig{
		Workers: emailWorkers,
	})
	return s
}

// StartEmailQueue launches the email workers. Safe to skip in tests.
func (s *NotificationService) StartEmailQueue(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopEmailQueue drains and stops the workers.
func (s *NotificationService) StopEmailQueue() {
	s.queue.Stop()
}

// Emit stores one notification, deriving the UI hint pair from its kind,
// and queues the email leg when requested.
func (s *NotificationService) Emit(ctx context.Context, n *models.Notification) error {
	if n == nil || strings.TrimSpace(n.UserID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "notification recipient is required")
	}
	if n.Kind == "" {
		n.Kind = models.NotifySystemAlert
	}
	if n.Icon == "" || n.Color == "" {
		n.Icon, n.Color = n.Kind.Icon()
	}
	if n.Priority == "" {
		n.Priority = models.PriorityNormal
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to store notification")
	}
	if n.SendEmail {
		if err := s.queue.Enqueue(jobs.Job{ID: n.ID}); err != nil {
			s.logger.Warn("email queue full, deferring to pending sweep", zap.String("notification", n.ID))
		}
	}
	return nil
}

// ListForUser returns the user's notifications.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, int, error) {
	items, total, err := s.notifications.ListByUser(ctx, userID, unreadOnly, page, size)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list notifications")
	}
	return items, total, nil
}

// UnreadCount returns the badge counter.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flips one notification.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.notifications.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to mark notification")
	}
	return nil
}

// MarkAllRead flips every pending notification of the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to mark notifications")
	}
	return count, nil
}

// ProcessPendingEmails sweeps notifications whose email leg never went out,
// covering queue overflows and restarts.
func (s *NotificationService) ProcessPendingEmails(ctx context.Context, limit int) (int, error) {
	pending, err := s.notifications.PendingEmails(ctx, limit)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list pending emails")
	}
	sent := 0
	for _, n := range pending {
		if err := s.deliverEmail(ctx, &n); err != nil {
			s.logger.Warn("email delivery failed", zap.Error(err), zap.String("notification", n.ID))
			continue
		}
		sent++
	}
	return sent, nil
}

// RunScheduledAlerts executes every due alert: runs its predicate, expands
// the templates against each result row and notifies the recipients.
func (s *NotificationService) RunScheduledAlerts(ctx context.Context) (int, error) {
	due, err := s.alerts.DueAlerts(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list due alerts")
	}
	ran := 0
	for _, alert := range due {
		s.runAlert(ctx, alert)
		ran++
	}
	return ran, nil
}

// Cleanup deletes read notifications older than the configured age.
func (s *NotificationService) Cleanup(ctx context.Context) (int64, error) {
	removed, err := s.notifications.Cleanup(ctx, s.now().Add(-s.cleanupAge))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to clean notifications")
	}
	return removed, nil
}

func (s *NotificationService) runAlert(ctx context.Context, alert models.ScheduledAlert) {
	ranAt := s.now().UTC()
	period := time.Duration(alert.PeriodMinutes) * time.Minute
	if period <= 0 {
		period = time.Hour
	}
	nextRun := ranAt.Add(period)

	rows, err := s.alerts.ExecutePredicate(ctx, alert.PredicateSQL)
	if err != nil {
		msg := err.Error()
		s.logger.Warn("alert predicate failed", zap.Error(err), zap.String("alert", alert.Name))
		if uerr := s.alerts.UpdateAfterRun(ctx, alert.ID, ranAt, nextRun, 0, &msg); uerr != nil {
			s.logger.Warn("failed to record alert failure", zap.Error(uerr), zap.String("alert", alert.Name))
		}
		return
	}

	var emitted int64
	for _, row := range rows {
		title := expandTemplate(alert.TitleTmpl, row)
		message := expandTemplate(alert.MessageTmpl, row)
		for _, recipient := range alert.Recipients {
			n := &models.Notification{
				UserID:    recipient,
				Kind:      alert.Kind,
				Title:     title,
				Message:   message,
				Priority:  alert.Priority,
				SendEmail: strings.Contains(recipient, "@"),
			}
			if id, ok := row["document_id"].(string); ok && id != "" {
				n.DocumentID = &id
			}
			if exp, ok := row["expediente"].(string); ok && exp != "" {
				n.Expediente = &exp
			}
			if err := s.Emit(ctx, n); err != nil {
				s.logger.Warn("alert notification failed", zap.Error(err), zap.String("alert", alert.Name))
				continue
			}
			emitted++
		}
	}
	if err := s.alerts.UpdateAfterRun(ctx, alert.ID, ranAt, nextRun, emitted, nil); err != nil {
		s.logger.Warn("failed to record alert run", zap.Error(err), zap.String("alert", alert.Name))
	}
}

func (s *NotificationService) handleEmailJob(ctx context.Context, job jobs.Job) error {
	pending, err := s.notifications.PendingEmails(ctx, 50)
	if err != nil {
		return err
	}
	for _, n := range pending {
		if n.ID != job.ID {
			continue
		}
		return s.deliverEmail(ctx, &n)
	}
	return nil
}

// deliverEmail sends the email leg. Recipients that are not addresses (area
// or user ids without a mailbox) are stamped as sent so the sweep does not
// retry them forever.
func (s *NotificationService) deliverEmail(ctx context.Context, n *models.Notification) error {
	if s.mailer != nil && strings.Contains(n.UserID, "@") {
		body := fmt.Sprintf("<h3>%s</h3><p>%s</p>", n.Title, n.Message)
		if n.Expediente != nil {
			body += fmt.Sprintf("<p>Expediente: %s</p>", *n.Expediente)
		}
		if err := s.mailer.Send(n.UserID, n.Title, body); err != nil {
			return err
		}
	}
	return s.notifications.MarkEmailSent(ctx, n.ID, s.now().UTC())
}

// expandTemplate substitutes {column} placeholders with predicate row
// values.
func expandTemplate(tmpl string, row map[string]interface{}) string {
	out := tmpl
	for key, value := range row {
		out = strings.ReplaceAll(out, "{"+key+"}", fmt.Sprintf("%v", value))
	}
	return out
}
