package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/supportops/owner-relay/internal/events"
	"github.com/supportops/owner-relay/internal/observability"
)

// StartMetricsWorker registers handlers that count rotation and delivery outcomes.
func StartMetricsWorker(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) {
	if dispatcher == nil || metrics == nil {
		return
	}
	dispatcher.Subscribe(events.EventOwnerAssigned, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.OwnerAssignedPayload)
		if !ok {
			return fmt.Errorf("event %s: unexpected payload %T", event.ID, event.Payload)
		}
		metrics.RecordAssignment(payload.Outcome())
		if payload.Fallback != "" {
			logger.Debug("fallback owner assigned",
				zap.String("event_id", event.ID),
				zap.String("reason", string(payload.Fallback)))
		}
		return nil
	})
	dispatcher.Subscribe(events.EventNotificationDelivered, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.NotificationDeliveredPayload)
		if !ok {
			return fmt.Errorf("event %s: unexpected payload %T", event.ID, event.Payload)
		}
		metrics.RecordNotification(payload.Sent)
		return nil
	})
}
