package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence/file"
)

type channelNotifier struct {
	intents chan models.NotificationIntent
}

func (n *channelNotifier) Send(_ context.Context, intent models.NotificationIntent) error {
	n.intents <- intent

	return nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

func overdueFixture(t *testing.T) (*engine.Engine, *fixedClock) {
	t.Helper()

	submittedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: submittedAt}
	store := file.NewPersistence(t.TempDir())
	identity := engine.NewStaticIdentityProvider(map[string][]string{"bob": {"manager"}})
	eng := engine.New(engine.Config{DefaultSLAHours: 72}, store, identity, clock, nil, nil, slog.Default())

	ctx := context.Background()
	publishedAt := submittedAt.Add(-time.Hour)
	template := &models.WorkflowTemplate{
		ID:              "tpl-1",
		TemplateGroupID: "grp-1",
		Name:            "Vendor contract",
		Category:        "procurement",
		Status:          models.TemplateStatusPublished,
		SLAHours:        48,
		Levels: []models.ApprovalLevelSpec{
			{Level: 1, RequiredRole: "manager", SLAHours: 1, EscalationContact: "director"},
		},
		EscalationAfterMinutes: 60,
		PublishedAt:            &publishedAt,
	}
	require.NoError(t, store.Templates().Save(ctx, template))

	_, err := eng.Submit(ctx, engine.SubmitInput{
		TemplateID: template.ID,
		Requester:  "alice",
		Title:      "Catering contract",
	})
	require.NoError(t, err)

	// Two hours past submission: one hour past the deadline, at the
	// escalation mark.
	clock.Set(submittedAt.Add(2 * time.Hour))

	return eng, clock
}

func TestRunOnceDeliversEscalationOnce(t *testing.T) {
	eng, _ := overdueFixture(t)

	notifier := &channelNotifier{intents: make(chan models.NotificationIntent, 8)}
	s, err := New(Config{}, eng, nil, notifier, slog.Default())
	require.NoError(t, err)

	s.RunOnce(context.Background())

	select {
	case intent := <-notifier.intents:
		assert.Equal(t, models.IntentEscalation, intent.Kind)
		assert.Equal(t, "director", intent.Recipient)
	default:
		t.Fatal("expected an escalation intent")
	}

	s.RunOnce(context.Background())
	assert.Empty(t, notifier.intents, "escalation must not repeat")
}

func TestStartStopDeliversThroughDispatchQueue(t *testing.T) {
	eng, _ := overdueFixture(t)

	notifier := &channelNotifier{intents: make(chan models.NotificationIntent, 8)}
	s, err := New(Config{Interval: 10 * time.Millisecond}, eng, nil, notifier, slog.Default())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "second start is a no-op")

	select {
	case intent := <-notifier.intents:
		assert.Equal(t, models.IntentEscalation, intent.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never delivered the escalation")
	}

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "second stop is a no-op")
}

func TestNewRejectsBadCronExpression(t *testing.T) {
	eng, _ := overdueFixture(t)

	_, err := New(Config{CronExpression: "not a cron"}, eng, nil, &channelNotifier{intents: make(chan models.NotificationIntent, 1)}, slog.Default())
	assert.Error(t, err)
}

func TestNewAcceptsCronExpression(t *testing.T) {
	eng, _ := overdueFixture(t)

	s, err := New(Config{CronExpression: "*/5 * * * *"}, eng, nil, &channelNotifier{intents: make(chan models.NotificationIntent, 1)}, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, s.schedule)
}
