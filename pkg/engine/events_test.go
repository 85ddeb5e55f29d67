package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventiq/eventiq/pkg/eventbus"
	"github.com/eventiq/eventiq/pkg/events"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence/file"
)

type captureBus struct {
	mu        sync.Mutex
	published []eventbus.Event
	keys      []string
}

func (b *captureBus) Publish(_ context.Context, key string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, event)
	b.keys = append(b.keys, key)

	return nil
}

func (b *captureBus) Handle(events.EventType, eventbus.EventHandler) error { return nil }

func (b *captureBus) Subscribe(context.Context) error { return nil }

func (b *captureBus) Close() error { return nil }

func (b *captureBus) GenerateID() string { return uuid.NewString() }

func (b *captureBus) types() []events.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]events.EventType, 0, len(b.published))
	for _, event := range b.published {
		out = append(out, event.GetType())
	}

	return out
}

func newEventedEngine(t *testing.T) (*Engine, *captureBus, *fakeClock) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	clock := newFakeClock(t0)
	identity := NewStaticIdentityProvider(map[string][]string{
		"bob":   {"manager"},
		"carol": {"finance"},
	})
	bus := &captureBus{}

	eng := New(Config{DefaultSLAHours: 72}, store, identity, clock, nil, bus, slog.Default())

	ctx := context.Background()
	require.NoError(t, store.Templates().Save(ctx, expenseTemplate()))

	return eng, bus, clock
}

func TestLifecycleEventsThroughDecisionChain(t *testing.T) {
	eng, bus, _ := newEventedEngine(t)
	ctx := context.Background()

	request, err := eng.Submit(ctx, SubmitInput{
		TemplateID: expenseTemplate().ID,
		Requester:  "alice",
		Title:      "Team offsite expenses",
		Payload:    map[string]any{"amount": 500.0},
	})
	require.NoError(t, err)

	_, err = eng.Decide(ctx, request.ID, 1, DecisionInput{
		Decision: models.DecisionApprove,
		Actor:    "bob",
		Comment:  "within budget",
	})
	require.NoError(t, err)

	_, err = eng.Decide(ctx, request.ID, 2, DecisionInput{
		Decision: models.DecisionApprove,
		Actor:    "carol",
	})
	require.NoError(t, err)

	assert.Equal(t, []events.EventType{
		events.RequestSubmittedEvent,
		events.RequestDecidedEvent,
		events.RequestDecidedEvent,
		events.RequestCompletedEvent,
	}, bus.types())

	submitted, ok := bus.published[0].(events.RequestSubmitted)
	require.True(t, ok)
	assert.Equal(t, request.ID, submitted.RequestID)
	assert.Equal(t, "alice", submitted.Requester)
	assert.Equal(t, 2, submitted.Levels)
	assert.NotEmpty(t, submitted.ID)

	decided, ok := bus.published[1].(events.RequestDecided)
	require.True(t, ok)
	assert.Equal(t, 1, decided.Level)
	assert.Equal(t, models.DecisionApprove, decided.Decision)
	assert.Equal(t, "bob", decided.Actor)

	completed, ok := bus.published[3].(events.RequestCompleted)
	require.True(t, ok)
	assert.Equal(t, models.RequestStatusApproved, completed.Status)

	// Events for one request share its ID as partition key.
	for _, key := range bus.keys {
		assert.Equal(t, request.ID, key)
	}
}

func TestLifecycleEventsOnCancel(t *testing.T) {
	eng, bus, _ := newEventedEngine(t)
	ctx := context.Background()

	request, err := eng.Submit(ctx, SubmitInput{
		TemplateID: expenseTemplate().ID,
		Requester:  "alice",
		Title:      "Team offsite expenses",
		Payload:    map[string]any{"amount": 500.0},
	})
	require.NoError(t, err)

	_, err = eng.Cancel(ctx, request.ID, "alice", "plans changed")
	require.NoError(t, err)

	types := bus.types()
	require.Len(t, types, 2)
	assert.Equal(t, events.RequestCompletedEvent, types[1])

	completed, ok := bus.published[1].(events.RequestCompleted)
	require.True(t, ok)
	assert.Equal(t, models.RequestStatusCancelled, completed.Status)
}

func TestTickPublishesReminderAndEscalationEvents(t *testing.T) {
	eng, bus, _ := newEventedEngine(t)
	ctx := context.Background()

	request, err := eng.Submit(ctx, SubmitInput{
		TemplateID: expenseTemplate().ID,
		Requester:  "alice",
		Title:      "Team offsite expenses",
		Payload:    map[string]any{"amount": 500.0},
	})
	require.NoError(t, err)

	// Level 1 deadline is t0+24h; reminder window opens 4h before,
	// escalation 24h after.
	_, err = eng.Tick(ctx, t0.Add(21*time.Hour))
	require.NoError(t, err)

	_, err = eng.Tick(ctx, t0.Add(49*time.Hour))
	require.NoError(t, err)

	types := bus.types()
	require.Len(t, types, 3)
	assert.Equal(t, events.ReminderDueEvent, types[1])
	assert.Equal(t, events.EscalationTriggeredEvent, types[2])

	reminder, ok := bus.published[1].(events.ReminderDue)
	require.True(t, ok)
	assert.Equal(t, request.ID, reminder.RequestID)
	assert.Equal(t, 1, reminder.Level)
	assert.Equal(t, "manager", reminder.Recipient)
	assert.Equal(t, t0.Add(24*time.Hour), reminder.DueAt)

	escalation, ok := bus.published[2].(events.EscalationTriggered)
	require.True(t, ok)
	assert.Equal(t, 1, escalation.Level)
	assert.Equal(t, "senior-manager", escalation.EscalationContact)
}
