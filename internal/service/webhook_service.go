package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportops/owner-relay/internal/domain"
	"github.com/supportops/owner-relay/internal/events"
	"github.com/supportops/owner-relay/internal/idempotency"
	apperrors "github.com/supportops/owner-relay/pkg/util"
)

// OwnerAcquirer hands out an owner for each event.
type OwnerAcquirer interface {
	AcquireOwner(ctx context.Context) domain.Assignment
}

// Notifier delivers a formatted message to the chat sink.
type Notifier interface {
	Notify(ctx context.Context, message string) bool
}

// WebhookService turns inbound events into owner notifications.
type WebhookService struct {
	owners     OwnerAcquirer
	notifier   Notifier
	replay     idempotency.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// WebhookDependencies bundles collaborators for the webhook service.
type WebhookDependencies struct {
	Owners     OwnerAcquirer
	Notifier   Notifier
	Replay     idempotency.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewWebhookService creates the service.
func NewWebhookService(deps WebhookDependencies) *WebhookService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		owners:     deps.Owners,
		notifier:   deps.Notifier,
		replay:     deps.Replay,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Process handles one raw inbound payload. Only a missing or malformed body
// is reported as an error; owner fallback and notification failure are part
// of a successful result.
func (s *WebhookService) Process(ctx context.Context, raw []byte, deliveryKeyHeader string) (*domain.WebhookResult, error) {
	payload, err := ParsePayload(raw)
	if err != nil {
		s.logger.Warn("rejected webhook payload", zap.Error(err))
		return nil, err
	}

	key, keySource := idempotency.DeriveKey(deliveryKeyHeader, payload)
	if cached := s.lookupReplay(ctx, key); cached != nil {
		s.logger.Info("replaying processed delivery", zap.String("key_source", string(keySource)))
		return cached, nil
	}

	title := ExtractTitle(payload)
	s.logger.Info("extracted title from webhook", zap.String("title", title))

	assignment := s.owners.AcquireOwner(ctx)
	owner := assignment.Owner
	s.logger.Info("processed data",
		zap.String("title", title),
		zap.String("owner_name", owner.Name),
		zap.String("owner_id", owner.ID),
		zap.String("outcome", assignment.Outcome()),
	)

	message := FormatMessage(title, owner)
	sent := s.notifier.Notify(ctx, message)
	s.publishDelivery(ctx, title, sent)
	s.logger.Info("webhook processing completed", zap.Bool("slack_sent", sent))

	result := &domain.WebhookResult{
		Status: domain.WebhookResultSuccess,
		ProcessedData: domain.ProcessedData{
			Title:     title,
			OwnerName: owner.Name,
			OwnerID:   owner.ID,
		},
		SlackSent: sent,
	}
	s.storeReplay(ctx, key, result)
	return result, nil
}

// ParsePayload decodes the inbound body. Absent bodies, JSON null, invalid
// JSON and non-object documents are bad requests.
func ParsePayload(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperrors.NewBadRequest("No data received", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, apperrors.NewBadRequest("invalid JSON payload", err)
	}
	if dec.More() {
		return nil, apperrors.NewBadRequest("invalid JSON payload: trailing data", nil)
	}
	if doc == nil {
		return nil, apperrors.NewBadRequest("No data received", nil)
	}
	payload, ok := doc.(map[string]any)
	if !ok {
		return nil, apperrors.NewBadRequest("payload must be a JSON object", nil)
	}
	return payload, nil
}

// ExtractTitle returns event.data.title, or domain.UnknownTitle when any
// segment of the path is missing or not an object. Non-string titles are
// rendered as their JSON text.
func ExtractTitle(payload map[string]any) string {
	event, ok := payload["event"].(map[string]any)
	if !ok {
		return domain.UnknownTitle
	}
	data, ok := event["data"].(map[string]any)
	if !ok {
		return domain.UnknownTitle
	}
	switch title := data["title"].(type) {
	case nil:
		return domain.UnknownTitle
	case string:
		return title
	case json.Number:
		return title.String()
	default:
		b, err := json.Marshal(title)
		if err != nil {
			return domain.UnknownTitle
		}
		return strings.TrimSpace(string(b))
	}
}

func (s *WebhookService) lookupReplay(ctx context.Context, key string) *domain.WebhookResult {
	if s.replay == nil || key == "" {
		return nil
	}
	raw, ok, err := s.replay.Get(ctx, key)
	if err != nil {
		s.logger.Warn("replay lookup failed; processing delivery", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var result domain.WebhookResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.logger.Warn("discarding unreadable replay entry", zap.Error(err))
		return nil
	}
	return &result
}

func (s *WebhookService) storeReplay(ctx context.Context, key string, result *domain.WebhookResult) {
	if s.replay == nil || key == "" {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("encode replay entry", zap.Error(err))
		return
	}
	if err := s.replay.Put(context.WithoutCancel(ctx), key, raw); err != nil {
		s.logger.Warn("store replay entry", zap.Error(err))
	}
}

func (s *WebhookService) publishDelivery(ctx context.Context, title string, sent bool) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventNotificationDelivered,
		Timestamp: time.Now(),
		Payload:   events.NotificationDeliveredPayload{Title: title, Sent: sent},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("notification_delivered handlers failed", zap.Error(err))
	}
}
