package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence"
	"github.com/eventiq/eventiq/pkg/persistence/file"
)

func newBackofficeFixture(t *testing.T) (*Backoffice, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	identity := engine.NewStaticIdentityProvider(map[string][]string{
		"frank": {"finance"},
	})
	eng := engine.New(engine.Config{DefaultSLAHours: 72}, store, identity, nil, nil, nil, slog.Default())

	templates := NewTemplate(store)
	ctx := context.Background()

	template, err := templates.Create(ctx, &models.WorkflowTemplate{
		Name:     "Expense approval",
		Category: "finance",
		SLAHours: 48,
		Levels: []models.ApprovalLevelSpec{
			{Level: 1, RequiredRole: "finance", SLAHours: 24},
		},
	})
	require.NoError(t, err)

	template, err = templates.Publish(ctx, template.ID)
	require.NoError(t, err)

	svc := NewBackoffice(BackofficeConfig{
		ExpenseTemplateID: template.ID,
		ExpenseThreshold:  500,
	}, store, eng)

	return svc, store
}

func TestCreateRejectsUnknownCollection(t *testing.T) {
	svc, _ := newBackofficeFixture(t)

	_, err := svc.Create(context.Background(), "gremlins", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestCreateRequiresFields(t *testing.T) {
	svc, _ := newBackofficeFixture(t)

	_, err := svc.Create(context.Background(), CollectionParticipants, map[string]any{"email": "a@b.c"})
	assert.True(t, IsValidationError(err))
}

func TestExpenseBelowThresholdSkipsWorkflow(t *testing.T) {
	svc, _ := newBackofficeFixture(t)

	doc, err := svc.Create(context.Background(), CollectionExpenses, map[string]any{
		"description": "Office snacks",
		"amount":      120.0,
	})
	require.NoError(t, err)
	assert.NotContains(t, doc.Data, "workflow_request_id")
}

func TestExpenseAtThresholdOpensWorkflow(t *testing.T) {
	svc, store := newBackofficeFixture(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, CollectionExpenses, map[string]any{
		"description":  "Main stage rigging",
		"amount":       4200.0,
		"submitted_by": "alice",
	})
	require.NoError(t, err)

	requestID, ok := doc.Data["workflow_request_id"].(string)
	require.True(t, ok, "expense over threshold must open a workflow request")

	request, err := store.Requests().GetByID(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusInReview, request.Status)
	assert.Equal(t, "alice", request.Requester)
	assert.Equal(t, "Main stage rigging", request.Title)
}

func TestParticipantCheckIn(t *testing.T) {
	svc, _ := newBackofficeFixture(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, CollectionParticipants, map[string]any{"name": "Jordan"})
	require.NoError(t, err)

	checked, err := svc.CheckIn(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, true, checked.Data["checked_in"])
	assert.NotEmpty(t, checked.Data["checked_in_at"])

	_, err = svc.CheckIn(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
}

func TestVolunteerHoursAccumulate(t *testing.T) {
	svc, _ := newBackofficeFixture(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, CollectionVolunteers, map[string]any{"name": "Sam"})
	require.NoError(t, err)

	_, err = svc.LogHours(ctx, doc.ID, 3.5, "setup shift")
	require.NoError(t, err)

	updated, err := svc.LogHours(ctx, doc.ID, 2.0, "teardown shift")
	require.NoError(t, err)

	assert.InDelta(t, 5.5, updated.Data["total_hours"], 0.001)

	log, ok := updated.Data["hours_log"].([]any)
	require.True(t, ok)
	assert.Len(t, log, 2)

	_, err = svc.LogHours(ctx, doc.ID, -1, "bogus")
	assert.True(t, IsValidationError(err))
}

func TestUpdateAndDeleteRoundTrip(t *testing.T) {
	svc, _ := newBackofficeFixture(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, CollectionBooths, map[string]any{"name": "B12", "zone": "north"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, CollectionBooths, doc.ID, map[string]any{"zone": "south"})
	require.NoError(t, err)
	assert.Equal(t, "south", updated.Data["zone"])
	assert.Equal(t, "B12", updated.Data["name"])

	require.NoError(t, svc.Delete(ctx, CollectionBooths, doc.ID))

	_, err = svc.Get(ctx, CollectionBooths, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
