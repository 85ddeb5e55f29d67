package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence"
)

// TemplateRepository handles template-related file operations.
type TemplateRepository struct {
	root string
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(root string) *TemplateRepository {
	return &TemplateRepository{root: root}
}

// GetByID retrieves a template by its ID from the file system.
func (tr *TemplateRepository) GetByID(_ context.Context, id string) (*models.WorkflowTemplate, error) {
	filePath := filepath.Clean(path.Join(tr.root, "templates", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to fetch template %s: %w", id, err)
	}

	var template models.WorkflowTemplate

	err = json.Unmarshal(body, &template)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %s: %w", id, err)
	}

	return &template, nil
}

// PublishedByGroup returns the published version of a template group.
func (tr *TemplateRepository) PublishedByGroup(ctx context.Context, groupID string) (*models.WorkflowTemplate, error) {
	templates, err := tr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, template := range templates {
		if template.TemplateGroupID == groupID && template.Status == models.TemplateStatusPublished {
			return template, nil
		}
	}

	return nil, persistence.ErrPublishedTemplateNotFound
}

// List returns templates matching the given options, newest first.
func (tr *TemplateRepository) List(ctx context.Context, opts persistence.ListTemplatesOptions) ([]*models.WorkflowTemplate, error) {
	templates, err := tr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.WorkflowTemplate, 0, len(templates))

	for _, template := range templates {
		if opts.Category != "" && template.Category != opts.Category {
			continue
		}

		if opts.Status != nil && template.Status != *opts.Status {
			continue
		}

		if opts.GroupID != "" && template.TemplateGroupID != opts.GroupID {
			continue
		}

		filtered = append(filtered, template)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return paginate(filtered, opts.Offset, opts.Limit), nil
}

// Save saves a template to the file system.
func (tr *TemplateRepository) Save(_ context.Context, template *models.WorkflowTemplate) error {
	err := os.MkdirAll(path.Join(tr.root, "templates"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create templates directory: %w", err)
	}

	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}

	template.UpdatedAt = now

	data, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template %s: %w", template.ID, err)
	}

	filePath := path.Join(tr.root, "templates", template.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// Delete removes a template by its ID.
func (tr *TemplateRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(tr.root, "templates", id+".json")

	err := os.Remove(filePath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete template %s: %w", id, err)
	}

	return nil
}

func (tr *TemplateRepository) loadAll(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	root := os.DirFS(path.Join(tr.root, "templates"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list template files: %w", err)
	}

	templates := make([]*models.WorkflowTemplate, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5] // Remove .json extension

		template, err := tr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load template %s: %w", id, err)
		}

		templates = append(templates, template)
	}

	return templates, nil
}

// paginate applies offset/limit slicing shared by the file repositories.
func paginate[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		limit = 20
	}

	if offset < 0 {
		offset = 0
	}

	if offset >= len(items) {
		return []T{}
	}

	end := offset + limit
	if end > len(items) {
		end = len(items)
	}

	return items[offset:end]
}
