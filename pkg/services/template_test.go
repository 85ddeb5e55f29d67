package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence"
	"github.com/eventiq/eventiq/pkg/persistence/file"
)

func newTemplateService(t *testing.T) (*Template, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	return NewTemplate(store), store
}

func draftTemplate() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		Name:     "Vendor onboarding",
		Category: "procurement",
		SLAHours: 48,
		Levels: []models.ApprovalLevelSpec{
			{Level: 1, RequiredRole: "ops-lead", SLAHours: 24},
		},
	}
}

func TestCreateForcesDraftStatus(t *testing.T) {
	svc, _ := newTemplateService(t)

	created, err := svc.Create(context.Background(), draftTemplate())
	require.NoError(t, err)

	assert.Equal(t, models.TemplateStatusDraft, created.Status)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.TemplateGroupID)
	assert.Nil(t, created.PublishedAt)
}

func TestCreateRejectsInvalidChain(t *testing.T) {
	svc, _ := newTemplateService(t)

	template := draftTemplate()
	template.Levels = []models.ApprovalLevelSpec{
		{Level: 2, RequiredRole: "ops-lead", SLAHours: 24},
	}

	_, err := svc.Create(context.Background(), template)
	assert.True(t, IsValidationError(err))
}

func TestPublishRetiresPreviousVersion(t *testing.T) {
	svc, store := newTemplateService(t)
	ctx := context.Background()

	v1, err := svc.Create(ctx, draftTemplate())
	require.NoError(t, err)

	v1, err = svc.Publish(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStatusPublished, v1.Status)
	require.NotNil(t, v1.PublishedAt)

	v2, err := svc.CreateDraftFromPublished(ctx, v1.TemplateGroupID)
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStatusDraft, v2.Status)
	assert.Equal(t, v1.TemplateGroupID, v2.TemplateGroupID)
	assert.NotEqual(t, v1.ID, v2.ID)

	v2, err = svc.Publish(ctx, v2.ID)
	require.NoError(t, err)

	published, err := store.Templates().PublishedByGroup(ctx, v1.TemplateGroupID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, published.ID)

	// The old version survives as retired so in-flight requests keep it.
	old, err := store.Templates().GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStatusRetired, old.Status)
}

func TestPublishRejectsNonDraft(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	template, err := svc.Create(ctx, draftTemplate())
	require.NoError(t, err)

	template, err = svc.Publish(ctx, template.ID)
	require.NoError(t, err)

	_, err = svc.Publish(ctx, template.ID)
	assert.ErrorIs(t, err, ErrNotPublishable)
	assert.True(t, IsConflictError(err))
}

func TestUpdateRejectsPublished(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	template, err := svc.Create(ctx, draftTemplate())
	require.NoError(t, err)

	_, err = svc.Publish(ctx, template.ID)
	require.NoError(t, err)

	_, err = svc.Update(ctx, template.ID, draftTemplate())
	assert.ErrorIs(t, err, ErrCannotModifyPublished)
}

func TestUpdateDraft(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	template, err := svc.Create(ctx, draftTemplate())
	require.NoError(t, err)

	update := draftTemplate()
	update.Name = "Vendor onboarding v2"
	update.Levels = []models.ApprovalLevelSpec{
		{Level: 1, RequiredRole: "ops-lead", SLAHours: 24},
		{Level: 2, RequiredRole: "finance", SLAHours: 48},
	}

	updated, err := svc.Update(ctx, template.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "Vendor onboarding v2", updated.Name)
	assert.Len(t, updated.Levels, 2)
}

func TestDeleteOnlyDrafts(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	template, err := svc.Create(ctx, draftTemplate())
	require.NoError(t, err)

	_, err = svc.Publish(ctx, template.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, template.ID)
	assert.ErrorIs(t, err, ErrCannotModifyPublished)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTemplateService(t)

	_, err := svc.List(context.Background(), ListTemplatesRequest{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
