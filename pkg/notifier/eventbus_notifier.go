package notifier

import (
	"context"
	"fmt"

	"github.com/eventiq/eventiq/pkg/eventbus"
	"github.com/eventiq/eventiq/pkg/events"
	"github.com/eventiq/eventiq/pkg/models"
)

// EventBusNotifier publishes each intent as a NotificationDispatched event.
// Downstream consumers (mailers, chat bridges) own actual delivery.
type EventBusNotifier struct {
	bus eventbus.EventBus
}

func NewEventBusNotifier(bus eventbus.EventBus) *EventBusNotifier {
	return &EventBusNotifier{bus: bus}
}

func (n *EventBusNotifier) Send(ctx context.Context, intent models.NotificationIntent) error {
	event := events.NotificationDispatched{
		BaseEvent: events.BaseEvent{
			ID:        n.bus.GenerateID(),
			Type:      events.NotificationDispatchedEvent,
			Timestamp: intent.CreatedAt,
			RequestID: intent.RequestID,
			Reference: intent.Reference,
		},
		Kind:      intent.Kind,
		Recipient: intent.Recipient,
		Subject:   intent.Subject,
		Body:      intent.Body,
	}

	if err := n.bus.Publish(ctx, intent.RequestID, event); err != nil {
		return fmt.Errorf("failed to publish notification event: %w", err)
	}

	return nil
}
