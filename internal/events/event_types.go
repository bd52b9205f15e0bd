package events

import (
	"time"

	"github.com/supportops/owner-relay/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOwnerAssigned         EventType = "owner_assigned"
	EventNotificationDelivered EventType = "notification_delivered"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OwnerAssignedPayload payload.
type OwnerAssignedPayload struct {
	OwnerName string                `json:"owner_name"`
	OwnerID   string                `json:"owner_id"`
	Fallback  domain.FallbackReason `json:"fallback,omitempty"`
}

// Outcome mirrors domain.Assignment.Outcome.
func (p OwnerAssignedPayload) Outcome() string {
	return domain.Assignment{Fallback: p.Fallback}.Outcome()
}

// NotificationDeliveredPayload payload.
type NotificationDeliveredPayload struct {
	Title string `json:"title"`
	Sent  bool   `json:"sent"`
}
