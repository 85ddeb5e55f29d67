package notifier_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventiq/eventiq/pkg/channels/gochannel"
	"github.com/eventiq/eventiq/pkg/eventbus"
	"github.com/eventiq/eventiq/pkg/events"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/notifier"
)

func TestEventBusNotifierPublishesDispatchedEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.NotificationDispatched, 1)
	require.NoError(t, bus.Handle(events.NotificationDispatchedEvent, func(_ context.Context, event any) error {
		dispatched, ok := event.(*events.NotificationDispatched)
		require.True(t, ok)
		received <- dispatched

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	n := notifier.NewEventBusNotifier(bus)
	err = n.Send(ctx, models.NotificationIntent{
		ID:        "intent-1",
		Kind:      models.IntentReminder,
		RequestID: "req-1",
		Reference: "WF-ABCD1234",
		Recipient: "manager",
		Subject:   "Reminder: decision pending",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	select {
	case dispatched := <-received:
		assert.Equal(t, models.IntentReminder, dispatched.Kind)
		assert.Equal(t, "req-1", dispatched.RequestID)
		assert.Equal(t, "manager", dispatched.Recipient)
	case <-time.After(2 * time.Second):
		t.Fatal("notification event was not delivered")
	}
}
