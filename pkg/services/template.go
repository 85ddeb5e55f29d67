// Package services provides template management with simplified versioning.
package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence"
)

// ErrTemplateNotFound is returned when a template is not found.
var ErrTemplateNotFound = persistence.ErrTemplateNotFound

// Template handles workflow template CRUD and versioned publishing.
type Template struct {
	persistence persistence.Persistence
}

// NewTemplate creates a new template service.
func NewTemplate(persistence persistence.Persistence) *Template {
	return &Template{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (t *Template) HealthCheck(ctx context.Context) (string, bool) {
	if t.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := t.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create stores a new template as a draft. A fresh template group is opened
// unless the template already names one.
func (t *Template) Create(ctx context.Context, template *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	if template == nil {
		return nil, ErrTemplateNil
	}

	if template.Name == "" {
		return nil, ErrTemplateNameRequired
	}

	if err := template.Validate(); err != nil {
		return nil, NewValidationError("create_template", "invalid_template", err.Error(), ErrInvalidRequest)
	}

	template.ID = uuid.NewString()
	if template.TemplateGroupID == "" {
		template.TemplateGroupID = uuid.NewString()
	}

	template.Status = models.TemplateStatusDraft
	template.PublishedAt = nil

	if err := t.persistence.Templates().Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	return template, nil
}

// Get returns a template version by ID.
func (t *Template) Get(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	template, err := t.persistence.Templates().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return template, nil
}

// ListTemplatesRequest contains options for listing templates.
type ListTemplatesRequest struct {
	Limit    int
	Offset   int
	Category string
	Status   string
	GroupID  string
}

// List retrieves templates with filtering and pagination.
func (t *Template) List(ctx context.Context, req ListTemplatesRequest) ([]*models.WorkflowTemplate, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	opts := persistence.ListTemplatesOptions{
		Limit:    req.Limit,
		Offset:   req.Offset,
		Category: req.Category,
		GroupID:  req.GroupID,
	}

	if req.Status != "" {
		status := models.TemplateStatus(req.Status)
		if !slices.Contains([]models.TemplateStatus{
			models.TemplateStatusDraft,
			models.TemplateStatusPublished,
			models.TemplateStatusRetired,
		}, status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
		}

		opts.Status = &status
	}

	templates, err := t.persistence.Templates().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	return templates, nil
}

// Update modifies a draft template. Published and retired versions are
// immutable; edit them through CreateDraftFromPublished.
func (t *Template) Update(ctx context.Context, id string, update *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	template, err := t.persistence.Templates().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	switch template.Status {
	case models.TemplateStatusPublished:
		return nil, ErrCannotModifyPublished
	case models.TemplateStatusRetired:
		return nil, ErrCannotModifyRetired
	case models.TemplateStatusDraft:
	}

	if update.Name != "" {
		template.Name = update.Name
	}

	if update.Description != "" {
		template.Description = update.Description
	}

	if update.Category != "" {
		template.Category = update.Category
	}

	if update.SLAHours > 0 {
		template.SLAHours = update.SLAHours
	}

	if update.Levels != nil {
		template.Levels = update.Levels
	}

	if update.AutoApproval != nil {
		template.AutoApproval = update.AutoApproval
	}

	if update.ReminderOffsetMinutes != nil {
		template.ReminderOffsetMinutes = update.ReminderOffsetMinutes
	}

	if update.EscalationAfterMinutes > 0 {
		template.EscalationAfterMinutes = update.EscalationAfterMinutes
	}

	if update.PayloadSchema != nil {
		template.PayloadSchema = update.PayloadSchema
	}

	if err := template.Validate(); err != nil {
		return nil, NewValidationError("update_template", "invalid_template", err.Error(), ErrInvalidRequest)
	}

	if err := t.persistence.Templates().Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	return template, nil
}

// Delete removes a draft template. Published and retired versions stay, so
// in-flight requests keep resolving the version they pinned.
func (t *Template) Delete(ctx context.Context, id string) error {
	template, err := t.persistence.Templates().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get template: %w", err)
	}

	if template.Status != models.TemplateStatusDraft {
		return ErrCannotModifyPublished
	}

	if err := t.persistence.Templates().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	return nil
}

// Publish promotes a draft to the group's published version, retiring the
// previously published version. In-flight requests keep the retired
// version; new submissions resolve the fresh one.
func (t *Template) Publish(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	template, err := t.persistence.Templates().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if template.Status != models.TemplateStatusDraft {
		return nil, fmt.Errorf("%w: template is %s", ErrNotPublishable, template.Status)
	}

	if err := template.Validate(); err != nil {
		return nil, NewValidationError("publish_template", "invalid_template", err.Error(), ErrInvalidRequest)
	}

	current, err := t.persistence.Templates().PublishedByGroup(ctx, template.TemplateGroupID)
	if err != nil && !persistence.IsPublishedTemplateNotFound(err) {
		return nil, fmt.Errorf("failed to look up published version: %w", err)
	}

	if current != nil {
		current.Status = models.TemplateStatusRetired
		if err := t.persistence.Templates().Save(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to retire previous version: %w", err)
		}
	}

	now := time.Now().UTC()
	template.Status = models.TemplateStatusPublished
	template.PublishedAt = &now

	if err := t.persistence.Templates().Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to publish template: %w", err)
	}

	return template, nil
}

// GetPublished returns the published version of a template group.
func (t *Template) GetPublished(ctx context.Context, groupID string) (*models.WorkflowTemplate, error) {
	return t.persistence.Templates().PublishedByGroup(ctx, groupID)
}

// CreateDraftFromPublished copies the group's published version into a new
// draft, the only way to edit a published chain.
func (t *Template) CreateDraftFromPublished(ctx context.Context, groupID string) (*models.WorkflowTemplate, error) {
	published, err := t.persistence.Templates().PublishedByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get published version: %w", err)
	}

	draft := *published
	draft.ID = uuid.NewString()
	draft.Status = models.TemplateStatusDraft
	draft.PublishedAt = nil
	draft.CreatedAt = time.Time{}

	draft.Levels = slices.Clone(published.Levels)
	draft.ReminderOffsetMinutes = slices.Clone(published.ReminderOffsetMinutes)

	if err := t.persistence.Templates().Save(ctx, &draft); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	return &draft, nil
}
