package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/drtc-peru/tramite-api/internal/dto"
	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
	"github.com/drtc-peru/tramite-api/pkg/export"
)

type integrationStore interface {
	Create(ctx context.Context, in *models.Integration) error
	GetByID(ctx context.Context, id string) (*models.Integration, error)
	GetByCode(ctx context.Context, code string) (*models.Integration, error)
	List(ctx context.Context) ([]models.Integration, error)
	Update(ctx context.Context, in *models.Integration) error
	UpdateConnectionState(ctx context.Context, id string, state models.ConnectionState) error
	UpdateLastSync(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type syncLogStore interface {
	Create(ctx context.Context, log *models.SyncLog) error
	Update(ctx context.Context, log *models.SyncLog) error
	GetByID(ctx context.Context, id string) (*models.SyncLog, error)
	DueRetries(ctx context.Context, limit int) ([]models.SyncLog, error)
	ListByIntegration(ctx context.Context, integrationID string, page, size int) ([]models.SyncLog, int, error)
	Stats(ctx context.Context, integrationID string) (*models.SyncStats, error)
}

type outboxDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

// IntegrationServiceConfig carries outbox defaults applied when an
// integration leaves them unset.
type IntegrationServiceConfig struct {
	DefaultTimeout       time.Duration
	DefaultMaxAttempts   int
	DefaultRetryInterval time.Duration
}

// IntegrationService is the outbox to external government systems: it
// translates documents through per-integration field mappings, delivers them
// over HTTP and keeps the synchronization audit trail.
type IntegrationService struct {
	integrations integrationStore
	logs         syncLogStore
	docs         outboxDocumentStore
	numbering    expedienteAllocator
	logger       *zap.Logger
	cfg          IntegrationServiceConfig
	csv          *export.CSVExporter
	validator    *validator.Validate
}

// NewIntegrationService constructs the service with defaults.
func NewIntegrationService(integrations integrationStore, logs syncLogStore, docs outboxDocumentStore, numbering expedienteAllocator, logger *zap.Logger, cfg IntegrationServiceConfig) *IntegrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = 3
	}
	if cfg.DefaultRetryInterval <= 0 {
		cfg.DefaultRetryInterval = 5 * time.Minute
	}
	validate := validator.New()
	validate.SetTagName("binding")
	return &IntegrationService{
		integrations: integrations,
		logs:         logs,
		docs:         docs,
		numbering:    numbering,
		logger:       logger,
		cfg:          cfg,
		csv:          export.NewCSVExporter(),
		validator:    validate,
	}
}

// Create registers a new integration endpoint.
func (s *IntegrationService) Create(ctx context.Context, req dto.SaveIntegrationRequest) (*models.Integration, error) {
	in, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.integrations.Create(ctx, in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to create integration")
	}
	return in, nil
}

// Update rewrites an integration's configuration.
func (s *IntegrationService) Update(ctx context.Context, id string, req dto.SaveIntegrationRequest) (*models.Integration, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	in.ID = existing.ID
	in.Code = existing.Code
	if err := s.integrations.Update(ctx, in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to update integration")
	}
	return s.load(ctx, id)
}

// Get returns one integration.
func (s *IntegrationService) Get(ctx context.Context, id string) (*models.Integration, error) {
	return s.load(ctx, id)
}

// List returns all integrations.
func (s *IntegrationService) List(ctx context.Context) ([]models.Integration, error) {
	items, err := s.integrations.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list integrations")
	}
	return items, nil
}

// Delete removes an integration.
func (s *IntegrationService) Delete(ctx context.Context, id string) error {
	if err := s.integrations.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to delete integration")
	}
	return nil
}

// TestConnection probes the remote base URL and records the result.
func (s *IntegrationService) TestConnection(ctx context.Context, id string) (models.ConnectionState, error) {
	in, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	_ = s.integrations.UpdateConnectionState(ctx, in.ID, models.ConnectionTesting)

	client := s.client(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.BaseURL, nil)
	if err != nil {
		return models.ConnectionError, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid base URL")
	}
	s.authorize(req, in)

	state := models.ConnectionConnected
	resp, err := client.Do(req)
	if err != nil {
		state = models.ConnectionError
	} else {
		resp.Body.Close() //nolint:errcheck
		if resp.StatusCode >= http.StatusInternalServerError {
			state = models.ConnectionError
		}
	}
	if err := s.integrations.UpdateConnectionState(ctx, in.ID, state); err != nil {
		s.logger.Warn("failed to record connection state", zap.Error(err), zap.String("integration", in.Code))
	}
	return state, nil
}

// Send pushes one document through the integration. Delivery failures are
// scheduled for retry until the attempt budget runs out.
func (s *IntegrationService) Send(ctx context.Context, integrationID string, req dto.SendDocumentRequest) (*models.SyncLog, error) {
	in, err := s.load(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if !in.AllowsSend {
		return nil, appErrors.Clone(appErrors.ErrValidation, "integration does not allow sending")
	}
	doc, err := s.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load document")
	}

	payload, err := s.mapOutbound(in, doc)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to encode payload")
	}

	log := &models.SyncLog{
		IntegrationID: in.ID,
		DocumentID:    &doc.ID,
		Operation:     models.SyncSend,
		Direction:     models.DirectionOut,
		State:         models.SyncRetrying,
		PayloadSent:   body,
		Attempt:       0,
	}
	if err := s.logs.Create(ctx, log); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to open sync log")
	}

	s.attemptDelivery(ctx, in, log)
	return log, nil
}

// RetryDue re-runs deliveries whose retry time has arrived. The runner calls
// this on a fixed poll interval.
func (s *IntegrationService) RetryDue(ctx context.Context, limit int) (int, error) {
	due, err := s.logs.DueRetries(ctx, limit)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list due retries")
	}
	processed := 0
	for i := range due {
		log := due[i]
		in, err := s.integrations.GetByID(ctx, log.IntegrationID)
		if err != nil {
			s.logger.Warn("retry skipped, integration missing", zap.String("sync_log", log.ID))
			continue
		}
		s.attemptDelivery(ctx, in, &log)
		processed++
	}
	return processed, nil
}

// Receive translates an inbound remote payload into a new document through
// the reverse field mapping.
func (s *IntegrationService) Receive(ctx context.Context, integrationID string, req dto.ReceiveDocumentRequest) (*models.Document, error) {
	in, err := s.load(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if !in.AllowsReceive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "integration does not allow receiving")
	}
	fields, err := s.mapInbound(in, req.Payload)
	if err != nil {
		return nil, err
	}

	expediente, err := s.numbering.NextExpediente(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to allocate expediente")
	}
	externalID := fields["external_id"]
	doc := &models.Document{
		Expediente:     expediente,
		QRToken:        qrToken(expediente),
		Sender:         fields["sender"],
		Subject:        fields["subject"],
		DocTypeID:      fields["doc_type_id"],
		Priority:       models.PriorityNormal,
		State:          models.DocumentRegistered,
		RegisterUserID: "integracion:" + in.Code,
		ExternalOrigin: true,
	}
	if externalID != "" {
		doc.ExternalID = &externalID
	}
	if p := models.DocumentPriority(strings.ToUpper(fields["priority"])); p == models.PriorityLow || p == models.PriorityNormal || p == models.PriorityUrgent {
		doc.Priority = p
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to register received document")
	}

	raw, _ := json.Marshal(req.Payload)
	log := &models.SyncLog{
		IntegrationID:   in.ID,
		DocumentID:      &doc.ID,
		Operation:       models.SyncReceive,
		Direction:       models.DirectionIn,
		State:           models.SyncSuccess,
		PayloadReceived: raw,
		Attempt:         1,
	}
	if externalID != "" {
		log.ExternalID = &externalID
	}
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record inbound sync", zap.Error(err), zap.String("integration", in.Code))
	}
	if err := s.integrations.UpdateLastSync(ctx, in.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to stamp last sync", zap.Error(err), zap.String("integration", in.Code))
	}
	return doc, nil
}

// QueryState asks the remote system for the state of a previously sent
// document and logs the exchange.
func (s *IntegrationService) QueryState(ctx context.Context, integrationID, externalID string) (json.RawMessage, error) {
	in, err := s.load(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(externalID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "external id is required")
	}

	client := s.client(in)
	url := fmt.Sprintf("%s/documentos/%s", strings.TrimRight(in.BaseURL, "/"), externalID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid base URL")
	}
	s.authorize(httpReq, in)

	started := time.Now()
	log := &models.SyncLog{
		IntegrationID: in.ID,
		Operation:     models.SyncQueryState,
		Direction:     models.DirectionOut,
		State:         models.SyncError,
		Attempt:       1,
		ExternalID:    &externalID,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		msg := err.Error()
		log.ErrorText = &msg
		log.LatencyMS = time.Since(started).Milliseconds()
		_ = s.logs.Create(ctx, log)
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "remote query failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	log.LatencyMS = time.Since(started).Milliseconds()
	log.PayloadReceived = body
	if resp.StatusCode >= http.StatusBadRequest {
		msg := fmt.Sprintf("remote returned %d", resp.StatusCode)
		log.ErrorText = &msg
		_ = s.logs.Create(ctx, log)
		return nil, appErrors.Clone(appErrors.ErrBusiness, msg)
	}
	log.State = models.SyncSuccess
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record state query", zap.Error(err), zap.String("integration", in.Code))
	}
	s.syncLocalState(ctx, in, externalID, body)
	return body, nil
}

// syncLocalState applies the remote document state to the local copy, but
// only when the mapped value is a state this system recognizes.
func (s *IntegrationService) syncLocalState(ctx context.Context, in *models.Integration, externalID string, body []byte) {
	table, err := in.Mapping()
	if err != nil {
		return
	}
	remoteField := "state"
	if m, ok := table["state"]; ok && m.RemoteField != "" {
		remoteField = m.RemoteField
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return
	}
	state := models.DocumentState(strings.ToUpper(strings.TrimSpace(stringify(payload[remoteField]))))
	switch state {
	case models.DocumentRegistered, models.DocumentInProcess, models.DocumentAttended, models.DocumentArchived:
	default:
		return
	}
	doc, err := s.docs.GetByExternalID(ctx, externalID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to find document for remote state", zap.Error(err), zap.String("external_id", externalID))
		}
		return
	}
	if doc.State == state {
		return
	}
	if err := s.docs.UpdateFields(ctx, doc.ID, map[string]interface{}{"state": state}); err != nil {
		s.logger.Warn("failed to sync remote state", zap.Error(err), zap.String("document", doc.ID))
		return
	}
	s.logger.Info("document state synced from remote",
		zap.String("integration", in.Code),
		zap.String("document", doc.ID),
		zap.String("state", string(state)))
}

// Logs returns the integration's sync trail.
func (s *IntegrationService) Logs(ctx context.Context, integrationID string, page, size int) ([]models.SyncLog, int, error) {
	logs, total, err := s.logs.ListByIntegration(ctx, integrationID, page, size)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list sync logs")
	}
	return logs, total, nil
}

// Stats aggregates the integration's sync outcomes.
func (s *IntegrationService) Stats(ctx context.Context, integrationID string) (*models.SyncStats, error) {
	stats, err := s.logs.Stats(ctx, integrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to aggregate sync stats")
	}
	return stats, nil
}

// ExportLogsCSV renders the integration's recent sync trail as CSV.
func (s *IntegrationService) ExportLogsCSV(ctx context.Context, integrationID string) ([]byte, error) {
	logs, _, err := s.logs.ListByIntegration(ctx, integrationID, 1, 200)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to list sync logs")
	}
	dataset := export.Dataset{
		Headers: []string{"fecha", "operacion", "direccion", "estado", "intento", "latencia_ms", "error"},
	}
	for _, log := range logs {
		errText := ""
		if log.ErrorText != nil {
			errText = *log.ErrorText
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"fecha":       log.CreatedAt.Format(time.RFC3339),
			"operacion":   string(log.Operation),
			"direccion":   string(log.Direction),
			"estado":      string(log.State),
			"intento":     fmt.Sprintf("%d", log.Attempt),
			"latencia_ms": fmt.Sprintf("%d", log.LatencyMS),
			"error":       errText,
		})
	}
	return s.csv.Render(dataset)
}

// attemptDelivery performs one HTTP delivery attempt and updates the log:
// SUCCESS, RETRYING with a scheduled next attempt, or terminal ERROR.
func (s *IntegrationService) attemptDelivery(ctx context.Context, in *models.Integration, log *models.SyncLog) {
	log.Attempt++
	log.NextRetryAt = nil

	client := s.client(in)
	url := strings.TrimRight(in.BaseURL, "/") + "/documentos"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(log.PayloadSent))
	if err != nil {
		s.finishAttempt(ctx, in, log, 0, nil, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req, in)
	s.extraHeaders(req, in)

	started := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(started).Milliseconds()
	if err != nil {
		s.finishAttempt(ctx, in, log, latency, nil, err)
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		s.finishAttempt(ctx, in, log, latency, body, fmt.Errorf("remote returned %d", resp.StatusCode))
		return
	}
	log.State = models.SyncSuccess
	log.LatencyMS = latency
	log.PayloadReceived = body
	log.ErrorText = nil
	if id := extractExternalID(body); id != "" {
		log.ExternalID = &id
		if log.DocumentID != nil {
			if err := s.docs.UpdateFields(ctx, *log.DocumentID, map[string]interface{}{"external_id": id}); err != nil {
				s.logger.Warn("failed to stamp external id", zap.Error(err), zap.String("document", *log.DocumentID))
			}
		}
	}
	if err := s.logs.Update(ctx, log); err != nil {
		s.logger.Warn("failed to close sync log", zap.Error(err), zap.String("sync_log", log.ID))
	}
	if err := s.integrations.UpdateLastSync(ctx, in.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to stamp last sync", zap.Error(err), zap.String("integration", in.Code))
	}
}

func (s *IntegrationService) finishAttempt(ctx context.Context, in *models.Integration, log *models.SyncLog, latency int64, body []byte, cause error) {
	msg := cause.Error()
	log.ErrorText = &msg
	log.LatencyMS = latency
	log.PayloadReceived = body

	maxAttempts := in.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.DefaultMaxAttempts
	}
	if log.Attempt < maxAttempts {
		interval := in.RetryInterval
		if interval <= 0 {
			interval = s.cfg.DefaultRetryInterval
		}
		next := time.Now().UTC().Add(interval)
		log.State = models.SyncRetrying
		log.NextRetryAt = &next
	} else {
		log.State = models.SyncError
	}
	if err := s.logs.Update(ctx, log); err != nil {
		s.logger.Warn("failed to record failed attempt", zap.Error(err), zap.String("sync_log", log.ID))
	}
	s.logger.Warn("integration delivery failed",
		zap.String("integration", in.Code),
		zap.Int("attempt", log.Attempt),
		zap.String("state", string(log.State)),
		zap.Error(cause))
}

func (s *IntegrationService) load(ctx context.Context, id string) (*models.Integration, error) {
	in, err := s.integrations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to load integration")
	}
	return in, nil
}

func (s *IntegrationService) fromRequest(req dto.SaveIntegrationRequest) (*models.Integration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid integration configuration")
	}
	switch req.AuthKind {
	case "", models.AuthNone, models.AuthAPIKey, models.AuthBearer, models.AuthBasic:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid auth kind")
	}
	if len(req.FieldMapping) > 0 {
		var table models.FieldMappingTable
		if err := json.Unmarshal(req.FieldMapping, &table); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "field mapping is not valid JSON")
		}
	}
	in := &models.Integration{
		Code:            strings.TrimSpace(req.Code),
		Name:            strings.TrimSpace(req.Name),
		BaseURL:         strings.TrimRight(strings.TrimSpace(req.BaseURL), "/"),
		AuthKind:        req.AuthKind,
		Credentials:     []byte(req.Credentials),
		Headers:         req.Headers,
		AllowsSend:      req.AllowsSend,
		AllowsReceive:   req.AllowsReceive,
		FieldMappingRaw: req.FieldMapping,
		WebhookURL:      req.WebhookURL,
		MaxAttempts:     req.MaxAttempts,
	}
	if in.AuthKind == "" {
		in.AuthKind = models.AuthNone
	}
	if in.MaxAttempts <= 0 {
		in.MaxAttempts = s.cfg.DefaultMaxAttempts
	}
	in.RetryInterval = parseOrDefault(req.RetryInterval, s.cfg.DefaultRetryInterval)
	in.Timeout = parseOrDefault(req.Timeout, s.cfg.DefaultTimeout)
	return in, nil
}

func (s *IntegrationService) client(in *models.Integration) *http.Client {
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (s *IntegrationService) authorize(req *http.Request, in *models.Integration) {
	cred := string(in.Credentials)
	switch in.AuthKind {
	case models.AuthAPIKey:
		req.Header.Set("X-API-Key", cred)
	case models.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+cred)
	case models.AuthBasic:
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString(in.Credentials))
	}
}

func (s *IntegrationService) extraHeaders(req *http.Request, in *models.Integration) {
	if len(in.Headers) == 0 {
		return
	}
	var headers map[string]string
	if err := json.Unmarshal(in.Headers, &headers); err != nil {
		s.logger.Warn("invalid extra headers, skipping", zap.String("integration", in.Code))
		return
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// mapOutbound projects the document through the integration's field mapping.
// An empty mapping sends the canonical local schema as-is.
func (s *IntegrationService) mapOutbound(in *models.Integration, doc *models.Document) (map[string]interface{}, error) {
	local := localFields(doc)
	table, err := in.Mapping()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stored field mapping is corrupt")
	}
	if len(table) == 0 {
		out := make(map[string]interface{}, len(local))
		for k, v := range local {
			out[k] = v
		}
		return out, nil
	}
	out := make(map[string]interface{}, len(table))
	for localField, mapping := range table {
		value := local[localField]
		if value == "" {
			value = mapping.Default
		}
		if value == "" {
			if mapping.Required {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %s is required by the mapping", localField))
			}
			continue
		}
		out[mapping.RemoteField] = applyTransform(value, mapping.Transform)
	}
	return out, nil
}

// mapInbound reverses the mapping: remote payload fields back onto the
// canonical local schema.
func (s *IntegrationService) mapInbound(in *models.Integration, payload map[string]interface{}) (map[string]string, error) {
	table, err := in.Mapping()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stored field mapping is corrupt")
	}
	fields := map[string]string{}
	if len(table) == 0 {
		for k, v := range payload {
			fields[k] = stringify(v)
		}
	} else {
		for localField, mapping := range table {
			value := stringify(payload[mapping.RemoteField])
			if value == "" {
				value = mapping.Default
			}
			if value == "" && mapping.Required {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("remote field %s is missing", mapping.RemoteField))
			}
			fields[localField] = value
		}
	}
	if fields["sender"] == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payload has no sender")
	}
	if fields["subject"] == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payload has no subject")
	}
	return fields, nil
}

func localFields(doc *models.Document) map[string]string {
	externalID := ""
	if doc.ExternalID != nil {
		externalID = *doc.ExternalID
	}
	return map[string]string{
		"expediente":  doc.Expediente,
		"sender":      doc.Sender,
		"subject":     doc.Subject,
		"doc_type_id": doc.DocTypeID,
		"priority":    string(doc.Priority),
		"state":       string(doc.State),
		"received_at": doc.ReceivedAt.Format(time.RFC3339),
		"external_id": externalID,
	}
}

// applyTransform supports upper, lower and the parameterized prefix:/suffix:
// forms.
func applyTransform(value, transform string) string {
	switch {
	case transform == "upper":
		return strings.ToUpper(value)
	case transform == "lower":
		return strings.ToLower(value)
	case strings.HasPrefix(transform, "prefix:"):
		return strings.TrimPrefix(transform, "prefix:") + value
	case strings.HasPrefix(transform, "suffix:"):
		return value + strings.TrimPrefix(transform, "suffix:")
	default:
		return value
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func extractExternalID(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var ack struct {
		ID         string `json:"id"`
		ExternalID string `json:"external_id"`
	}
	if err := json.Unmarshal(body, &ack); err != nil {
		return ""
	}
	if ack.ExternalID != "" {
		return ack.ExternalID
	}
	return ack.ID
}

func parseOrDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
