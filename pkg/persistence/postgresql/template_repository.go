package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence"
	"github.com/google/uuid"
)

// TemplateRepository handles template-related database operations.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

const templateColumns = `
	id
  , template_group_id
  , name
  , description
  , category
  , status
  , sla_hours
  , levels
  , auto_approval
  , reminder_offset_minutes
  , escalation_after_minutes
  , payload_schema
  , created_at
  , updated_at
  , published_at
`

// GetByID returns a template by its ID.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM workflow_templates WHERE id = $1`

	template, err := r.scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	return template, nil
}

// PublishedByGroup returns the published version of a template group.
func (r *TemplateRepository) PublishedByGroup(ctx context.Context, groupID string) (*models.WorkflowTemplate, error) {
	query := `SELECT ` + templateColumns + `
		FROM workflow_templates
		WHERE template_group_id = $1 AND status = $2
		ORDER BY published_at DESC
		LIMIT 1`

	template, err := r.scanTemplate(r.db.QueryRowContext(ctx, query, groupID, models.TemplateStatusPublished))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrPublishedTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan published template: %w", err)
	}

	return template, nil
}

// List returns templates matching the given options, newest first.
func (r *TemplateRepository) List(ctx context.Context, opts persistence.ListTemplatesOptions) ([]*models.WorkflowTemplate, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + templateColumns + `
		FROM workflow_templates
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR template_group_id::text = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`

	status := ""
	if opts.Status != nil {
		status = string(*opts.Status)
	}

	rows, err := r.db.QueryContext(ctx, query, opts.Category, status, opts.GroupID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}

	defer r.closeRows(ctx, rows)

	templates := make([]*models.WorkflowTemplate, 0)

	for rows.Next() {
		template, err := r.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}

		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// Save inserts or updates a template.
func (r *TemplateRepository) Save(ctx context.Context, template *models.WorkflowTemplate) error {
	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}

	template.UpdatedAt = now

	if template.ID == "" {
		template.ID = uuid.NewString()
	}

	levels, err := json.Marshal(template.Levels)
	if err != nil {
		return fmt.Errorf("failed to marshal template levels: %w", err)
	}

	autoApproval, err := marshalNullable(template.AutoApproval)
	if err != nil {
		return fmt.Errorf("failed to marshal auto-approval rule: %w", err)
	}

	reminders, err := marshalNullable(template.ReminderOffsetMinutes)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder offsets: %w", err)
	}

	schema, err := marshalNullable(template.PayloadSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal payload schema: %w", err)
	}

	query := `
		INSERT INTO workflow_templates (
			id, template_group_id, name, description, category, status,
			sla_hours, levels, auto_approval, reminder_offset_minutes,
			escalation_after_minutes, payload_schema, created_at, updated_at, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			sla_hours = EXCLUDED.sla_hours,
			levels = EXCLUDED.levels,
			auto_approval = EXCLUDED.auto_approval,
			reminder_offset_minutes = EXCLUDED.reminder_offset_minutes,
			escalation_after_minutes = EXCLUDED.escalation_after_minutes,
			payload_schema = EXCLUDED.payload_schema,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`

	_, err = r.db.ExecContext(ctx, query,
		template.ID, template.TemplateGroupID, template.Name, template.Description,
		template.Category, template.Status, template.SLAHours, levels, autoApproval,
		reminders, template.EscalationAfterMinutes, schema,
		template.CreatedAt, template.UpdatedAt, template.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}

	return nil
}

// Delete removes a template by its ID.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM workflow_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template %s: %w", id, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TemplateRepository) scanTemplate(row rowScanner) (*models.WorkflowTemplate, error) {
	var (
		template         models.WorkflowTemplate
		levelsJSON       []byte
		autoApprovalJSON []byte
		remindersJSON    []byte
		schemaJSON       []byte
	)

	err := row.Scan(
		&template.ID, &template.TemplateGroupID, &template.Name, &template.Description,
		&template.Category, &template.Status, &template.SLAHours, &levelsJSON, &autoApprovalJSON,
		&remindersJSON, &template.EscalationAfterMinutes, &schemaJSON,
		&template.CreatedAt, &template.UpdatedAt, &template.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(levelsJSON, &template.Levels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template levels: %w", err)
	}

	if autoApprovalJSON != nil {
		if err := json.Unmarshal(autoApprovalJSON, &template.AutoApproval); err != nil {
			return nil, fmt.Errorf("failed to unmarshal auto-approval rule: %w", err)
		}
	}

	if remindersJSON != nil {
		if err := json.Unmarshal(remindersJSON, &template.ReminderOffsetMinutes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reminder offsets: %w", err)
		}
	}

	if schemaJSON != nil {
		if err := json.Unmarshal(schemaJSON, &template.PayloadSchema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload schema: %w", err)
		}
	}

	return &template, nil
}

func (r *TemplateRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

// marshalNullable serializes optional JSONB columns, mapping Go nil to SQL NULL.
func marshalNullable(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	if string(data) == "null" {
		return nil, nil
	}

	return data, nil
}
