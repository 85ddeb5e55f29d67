package file

import (
	"testing"
	"time"

	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRepository_PublishedByGroup(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	repo := p.Templates()

	draft := &models.WorkflowTemplate{
		ID:              "tpl-draft",
		TemplateGroupID: "grp-1",
		Name:            "Expense Approval",
		Category:        "budget",
		SLAHours:        72,
		Status:          models.TemplateStatusDraft,
	}
	published := &models.WorkflowTemplate{
		ID:              "tpl-pub",
		TemplateGroupID: "grp-1",
		Name:            "Expense Approval",
		Category:        "budget",
		SLAHours:        72,
		Status:          models.TemplateStatusPublished,
	}

	require.NoError(t, repo.Save(t.Context(), draft))
	require.NoError(t, repo.Save(t.Context(), published))

	found, err := repo.PublishedByGroup(t.Context(), "grp-1")
	require.NoError(t, err)
	assert.Equal(t, "tpl-pub", found.ID)

	_, err = repo.PublishedByGroup(t.Context(), "grp-missing")
	require.ErrorIs(t, err, persistence.ErrPublishedTemplateNotFound)

	_, err = repo.GetByID(t.Context(), "nope")
	require.ErrorIs(t, err, persistence.ErrTemplateNotFound)
}

func TestTemplateRepository_List_Filters(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	repo := p.Templates()

	for _, template := range []*models.WorkflowTemplate{
		{ID: "t1", TemplateGroupID: "g1", Name: "Expense", Category: "budget", SLAHours: 72, Status: models.TemplateStatusPublished},
		{ID: "t2", TemplateGroupID: "g2", Name: "Leave", Category: "hr", SLAHours: 24, Status: models.TemplateStatusPublished},
		{ID: "t3", TemplateGroupID: "g1", Name: "Expense v2", Category: "budget", SLAHours: 72, Status: models.TemplateStatusDraft},
	} {
		require.NoError(t, repo.Save(t.Context(), template))
	}

	budget, err := repo.List(t.Context(), persistence.ListTemplatesOptions{Category: "budget"})
	require.NoError(t, err)
	assert.Len(t, budget, 2)

	published := models.TemplateStatusPublished
	active, err := repo.List(t.Context(), persistence.ListTemplatesOptions{Status: &published})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	group, err := repo.List(t.Context(), persistence.ListTemplatesOptions{GroupID: "g1"})
	require.NoError(t, err)
	assert.Len(t, group, 2)
}

func TestRequestRepository_ListByStatus(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	repo := p.Requests()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, status := range []models.RequestStatus{
		models.RequestStatusInReview,
		models.RequestStatusApproved,
		models.RequestStatusInReview,
	} {
		request := &models.WorkflowRequest{
			ID:          string(rune('a' + i)),
			TemplateID:  "tpl-1",
			Requester:   "alice",
			Title:       "Request",
			Status:      status,
			SubmittedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Save(t.Context(), request))
	}

	inReview, err := repo.ListByStatus(t.Context(), models.RequestStatusInReview)
	require.NoError(t, err)
	require.Len(t, inReview, 2)
	// Oldest first so the scheduler sweeps in submission order.
	assert.Equal(t, "a", inReview[0].ID)
	assert.Equal(t, "c", inReview[1].ID)

	_, err = repo.GetByID(t.Context(), "missing")
	require.ErrorIs(t, err, persistence.ErrRequestNotFound)
}

func TestRequestRepository_List_Pagination(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	repo := p.Requests()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 5 {
		request := &models.WorkflowRequest{
			ID:          string(rune('a' + i)),
			TemplateID:  "tpl-1",
			Requester:   "alice",
			Title:       "Request",
			Status:      models.RequestStatusInReview,
			SubmittedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Save(t.Context(), request))
	}

	result, err := repo.List(t.Context(), persistence.ListRequestsOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Requests, 2)
	assert.Equal(t, int64(5), result.TotalCount)
	assert.True(t, result.HasNextPage)
	// Default sort is submitted_at desc.
	assert.Equal(t, "e", result.Requests[0].ID)

	_, err = repo.List(t.Context(), persistence.ListRequestsOptions{SortBy: "priority"})
	require.ErrorIs(t, err, persistence.ErrInvalidSortField)
}

func TestApprovalRepository_ActiveAndOverdue(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	repo := p.Approvals()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	active := &models.ApprovalRecord{
		ID:                 "rec-1",
		RequestID:          "req-1",
		Level:              1,
		RequiredRole:       "manager",
		Decision:           models.DecisionPending,
		ExpectedResponseAt: now.Add(-time.Hour),
	}
	upstream := &models.ApprovalRecord{
		ID:           "rec-2",
		RequestID:    "req-1",
		Level:        2,
		RequiredRole: "finance",
		Decision:     models.DecisionPending,
	}

	require.NoError(t, repo.Save(t.Context(), active))
	require.NoError(t, repo.Save(t.Context(), upstream))

	found, err := repo.ActiveRecord(t.Context(), "req-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", found.ID)

	// Level 2 is pending but has no deadline yet; still the active record for its level.
	_, err = repo.ActiveRecord(t.Context(), "req-1", 3)
	require.ErrorIs(t, err, persistence.ErrApprovalNotFound)

	overdue, err := repo.OverdueRecords(t.Context(), now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "rec-1", overdue[0].ID)

	records, err := repo.ByRequest(t.Context(), "req-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Level)
}

func TestHistoryRepository_Order(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	repo := p.History()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i, action := range []string{"submitted", "decision_applied", "completed"} {
		event := &models.HistoryEvent{
			ID:        string(rune('a' + i)),
			RequestID: "req-1",
			Action:    action,
			Actor:     "alice",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Append(t.Context(), event))
	}

	events, err := repo.ByRequest(t.Context(), "req-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "submitted", events[0].Action)
	assert.Equal(t, "completed", events[2].Action)

	empty, err := repo.ByRequest(t.Context(), "req-unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHistoryRepository_SameTimestampEventsBothKept(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	repo := p.History()

	stamp := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for _, action := range []string{"submitted", "approve"} {
		event := &models.HistoryEvent{
			RequestID: "req-1",
			Action:    action,
			Actor:     "alice",
			Timestamp: stamp,
		}
		require.NoError(t, repo.Append(t.Context(), event))
		assert.NotEmpty(t, event.ID, "append assigns an ID when none is given")
	}

	events, err := repo.ByRequest(t.Context(), "req-1")
	require.NoError(t, err)
	require.Len(t, events, 2, "events sharing a timestamp must not overwrite each other")
}

func TestDocumentRepository_CRUD(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	repo := p.Documents()

	doc := &persistence.Document{
		ID:         "vol-1",
		Collection: "volunteers",
		Data:       map[string]any{"name": "Sam", "skills": []any{"setup", "catering"}},
	}
	require.NoError(t, repo.Save(t.Context(), doc))

	loaded, err := repo.Get(t.Context(), "volunteers", "vol-1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", loaded.Data["name"])

	docs, err := repo.List(t.Context(), "volunteers")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, repo.Delete(t.Context(), "volunteers", "vol-1"))

	_, err = repo.Get(t.Context(), "volunteers", "vol-1")
	require.ErrorIs(t, err, persistence.ErrDocumentNotFound)

	// Deleting twice is a no-op.
	require.NoError(t, repo.Delete(t.Context(), "volunteers", "vol-1"))
}
