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
	"github.com/google/uuid"
)

// HistoryRepository handles audit-trail file operations. Events are stored
// one file per event under history/<request-id>/, named by timestamp so the
// directory listing preserves per-request order.
type HistoryRepository struct {
	root string
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(root string) *HistoryRepository {
	return &HistoryRepository{root: root}
}

// Append writes a history event. Events are never updated or deleted.
func (hr *HistoryRepository) Append(_ context.Context, event *models.HistoryEvent) error {
	dir := path.Join(hr.root, "history", event.RequestID)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history event %s: %w", event.ID, err)
	}

	name := fmt.Sprintf("%d-%s.json", event.Timestamp.UnixNano(), event.ID)

	return os.WriteFile(path.Join(dir, name), data, 0600)
}

// ByRequest returns a request's events in chronological order.
func (hr *HistoryRepository) ByRequest(_ context.Context, requestID string) ([]*models.HistoryEvent, error) {
	dir := path.Join(hr.root, "history", requestID)

	root := os.DirFS(dir)

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list history files for request %s: %w", requestID, err)
	}

	events := make([]*models.HistoryEvent, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		body, err := os.ReadFile(filepath.Clean(path.Join(dir, file)))
		if err != nil {
			return nil, fmt.Errorf("failed to read history event %s: %w", file, err)
		}

		var event models.HistoryEvent

		err = json.Unmarshal(body, &event)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal history event %s: %w", file, err)
		}

		events = append(events, &event)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events, nil
}
