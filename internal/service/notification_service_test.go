package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
)

type notificationStoreStub struct {
	created       []*models.Notification
	pending       []models.Notification
	emailSent     []string
	cleanupBefore time.Time
	cleaned       int64
}

func (s *notificationStoreStub) Create(ctx context.Context, n *models.Notification) error {
	n.ID = fmt.Sprintf("ntf-%d", len(s.created)+1)
	s.created = append(s.created, n)
	return nil
}

func (s *notificationStoreStub) ListByUser(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, int, error) {
	return nil, 0, nil
}

func (s *notificationStoreStub) CountUnread(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (s *notificationStoreStub) MarkRead(ctx context.Context, id, userID string) error {
	if id == "missing" {
		return sql.ErrNoRows
	}
	return nil
}

func (s *notificationStoreStub) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 3, nil
}

func (s *notificationStoreStub) PendingEmails(ctx context.Context, limit int) ([]models.Notification, error) {
	return s.pending, nil
}

func (s *notificationStoreStub) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	s.emailSent = append(s.emailSent, id)
	return nil
}

func (s *notificationStoreStub) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	s.cleanupBefore = before
	return s.cleaned, nil
}

type alertStoreStub struct {
	due          []models.ScheduledAlert
	rows         []map[string]interface{}
	predicateErr error
	ranAlertID   string
	emitted      int64
	lastError    *string
	nextRun      time.Time
}

func (s *alertStoreStub) DueAlerts(ctx context.Context) ([]models.ScheduledAlert, error) {
	return s.due, nil
}

func (s *alertStoreStub) List(ctx context.Context) ([]models.ScheduledAlert, error) {
	return s.due, nil
}

func (s *alertStoreStub) UpdateAfterRun(ctx context.Context, id string, ranAt, nextRun time.Time, emitted int64, lastError *string) error {
	s.ranAlertID = id
	s.nextRun = nextRun
	s.emitted = emitted
	s.lastError = lastError
	return nil
}

func (s *alertStoreStub) ExecutePredicate(ctx context.Context, predicateSQL string) ([]map[string]interface{}, error) {
	if s.predicateErr != nil {
		return nil, s.predicateErr
	}
	return s.rows, nil
}

type mailerStub struct {
	sent []string
	err  error
}

func (m *mailerStub) Send(to, subject, htmlBody string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func newNotificationFixture() (*NotificationService, *notificationStoreStub, *alertStoreStub, *mailerStub) {
	notifications := &notificationStoreStub{}
	alerts := &alertStoreStub{}
	mailer := &mailerStub{}
	svc := NewNotificationService(notifications, alerts, mailer, zap.NewNop(), 1, 90)
	return svc, notifications, alerts, mailer
}

func TestNotificationServiceEmitRequiresRecipient(t *testing.T) {
	svc, _, _, _ := newNotificationFixture()
	err := svc.Emit(context.Background(), &models.Notification{Title: "sin destinatario"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceEmitDerivesUIHints(t *testing.T) {
	svc, notifications, _, _ := newNotificationFixture()

	n := &models.Notification{UserID: "u-1", Kind: models.NotifyDerivationRejected, Title: "Rechazada"}
	require.NoError(t, svc.Emit(context.Background(), n))

	require.Len(t, notifications.created, 1)
	assert.Equal(t, "x-circle", n.Icon)
	assert.Equal(t, "red", n.Color)
	assert.Equal(t, models.PriorityNormal, n.Priority)
}

func TestNotificationServiceEmitDefaultsToSystemAlert(t *testing.T) {
	svc, _, _, _ := newNotificationFixture()

	n := &models.Notification{UserID: "u-1", Title: "aviso"}
	require.NoError(t, svc.Emit(context.Background(), n))

	assert.Equal(t, models.NotifySystemAlert, n.Kind)
	assert.Equal(t, "bell", n.Icon)
}

func TestNotificationServiceProcessPendingEmails(t *testing.T) {
	svc, notifications, _, mailer := newNotificationFixture()
	exp := "EXP-2025-0009"
	notifications.pending = []models.Notification{
		{ID: "ntf-1", UserID: "jefe@drtc.gob.pe", Title: "Documento vencido", Message: "Revise la bandeja", Expediente: &exp},
		{ID: "ntf-2", UserID: "area:transportes", Title: "Documento vencido"},
	}

	sent, err := svc.ProcessPendingEmails(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"jefe@drtc.gob.pe"}, mailer.sent)
	assert.Equal(t, []string{"ntf-1", "ntf-2"}, notifications.emailSent)
}

func TestNotificationServiceProcessPendingEmailsKeepsFailedForRetry(t *testing.T) {
	svc, notifications, _, mailer := newNotificationFixture()
	mailer.err = fmt.Errorf("smtp down")
	notifications.pending = []models.Notification{
		{ID: "ntf-1", UserID: "jefe@drtc.gob.pe", Title: "Documento vencido"},
	}

	sent, err := svc.ProcessPendingEmails(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 0, sent)
	assert.Empty(t, notifications.emailSent)
}

func TestNotificationServiceRunScheduledAlertsExpandsTemplates(t *testing.T) {
	svc, notifications, alerts, _ := newNotificationFixture()
	alerts.due = []models.ScheduledAlert{{
		ID:            "alr-1",
		Name:          "derivaciones vencidas",
		Kind:          models.NotifyDeadlineOverdue,
		PredicateSQL:  "select 1",
		PeriodMinutes: 30,
		Recipients:    pq.StringArray{"area:transportes", "jefe@drtc.gob.pe"},
		TitleTmpl:     "Expediente {expediente} vencido",
		MessageTmpl:   "Lleva {dias} días sin atención",
		Priority:      models.PriorityUrgent,
	}}
	alerts.rows = []map[string]interface{}{
		{"expediente": "EXP-2025-0031", "dias": 7, "document_id": "doc-31"},
	}

	ran, err := svc.RunScheduledAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ran)

	require.Len(t, notifications.created, 2)
	first := notifications.created[0]
	assert.Equal(t, "Expediente EXP-2025-0031 vencido", first.Title)
	assert.Equal(t, "Lleva 7 días sin atención", first.Message)
	assert.Equal(t, models.PriorityUrgent, first.Priority)
	require.NotNil(t, first.DocumentID)
	assert.Equal(t, "doc-31", *first.DocumentID)
	assert.False(t, first.SendEmail)
	assert.True(t, notifications.created[1].SendEmail)

	assert.Equal(t, "alr-1", alerts.ranAlertID)
	assert.Equal(t, int64(2), alerts.emitted)
	assert.Nil(t, alerts.lastError)
}

func TestNotificationServiceRunScheduledAlertsRecordsPredicateFailure(t *testing.T) {
	svc, notifications, alerts, _ := newNotificationFixture()
	alerts.due = []models.ScheduledAlert{{
		ID: "alr-1", Name: "rota", PredicateSQL: "select broken", PeriodMinutes: 15,
	}}
	alerts.predicateErr = fmt.Errorf("syntax error")

	ran, err := svc.RunScheduledAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ran)

	assert.Empty(t, notifications.created)
	assert.Equal(t, int64(0), alerts.emitted)
	require.NotNil(t, alerts.lastError)
	assert.Contains(t, *alerts.lastError, "syntax error")
}

func TestNotificationServiceCleanupUsesConfiguredAge(t *testing.T) {
	svc, notifications, _, _ := newNotificationFixture()
	notifications.cleaned = 12
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	removed, err := svc.Cleanup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(12), removed)
	assert.Equal(t, fixed.Add(-90*24*time.Hour), notifications.cleanupBefore)
}

func TestNotificationServiceMarkReadNotFound(t *testing.T) {
	svc, _, _, _ := newNotificationFixture()
	err := svc.MarkRead(context.Background(), "missing", "u-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExpandTemplate(t *testing.T) {
	out := expandTemplate("Documento {expediente} con {dias} días", map[string]interface{}{
		"expediente": "EXP-2025-0001",
		"dias":       3,
	})
	assert.Equal(t, "Documento EXP-2025-0001 con 3 días", out)
}
