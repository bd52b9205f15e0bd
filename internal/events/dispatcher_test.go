package events

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDispatcherDeliversToAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventOwnerAssigned, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.ID)
		return errors.New("first failed")
	})
	d.Subscribe(EventOwnerAssigned, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.ID)
		return nil
	})
	d.Subscribe(EventNotificationDelivered, func(context.Context, Event) error {
		t.Fatalf("unrelated handler invoked")
		return nil
	})

	err := d.Publish(context.Background(), Event{ID: "e1", Type: EventOwnerAssigned})
	if err == nil || !strings.Contains(err.Error(), "first failed") {
		t.Fatalf("err = %v", err)
	}
	if len(calls) != 2 || calls[1] != "second:e1" {
		t.Fatalf("calls = %v; a failing handler must not stop the rest", calls)
	}
}

func TestDispatcherRecoversPanickingHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	delivered := false
	d.Subscribe(EventNotificationDelivered, func(context.Context, Event) error { panic("metrics exploded") })
	d.Subscribe(EventNotificationDelivered, func(context.Context, Event) error {
		delivered = true
		return nil
	})

	err := d.Publish(context.Background(), Event{ID: "e2", Type: EventNotificationDelivered})
	if err == nil || !strings.Contains(err.Error(), "metrics exploded") {
		t.Fatalf("err = %v", err)
	}
	if !delivered {
		t.Fatalf("subscriber after the panic was skipped")
	}
}

func TestOwnerAssignedOutcome(t *testing.T) {
	if got := (OwnerAssignedPayload{}).Outcome(); got != "rotated" {
		t.Fatalf("outcome = %q", got)
	}
	if got := (OwnerAssignedPayload{Fallback: "store_unavailable"}).Outcome(); got != "store_unavailable" {
		t.Fatalf("outcome = %q", got)
	}
}
