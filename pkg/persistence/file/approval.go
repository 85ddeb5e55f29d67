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

// ApprovalRepository handles approval-ledger file operations. Records are
// stored one file per record under approvals/<request-id>/.
type ApprovalRepository struct {
	root string
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(root string) *ApprovalRepository {
	return &ApprovalRepository{root: root}
}

// ByRequest returns all records for a request ordered by level, then by creation time.
func (ar *ApprovalRepository) ByRequest(_ context.Context, requestID string) ([]*models.ApprovalRecord, error) {
	dir := path.Join(ar.root, "approvals", requestID)

	root := os.DirFS(dir)

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list approval files for request %s: %w", requestID, err)
	}

	records := make([]*models.ApprovalRecord, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		record, err := ar.read(path.Join(dir, file))
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Level != records[j].Level {
			return records[i].Level < records[j].Level
		}

		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

// ActiveRecord returns the non-superseded pending record for a level.
func (ar *ApprovalRepository) ActiveRecord(ctx context.Context, requestID string, level int) (*models.ApprovalRecord, error) {
	records, err := ar.ByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.Level == level && !record.Superseded && record.Decision == models.DecisionPending {
			return record, nil
		}
	}

	return nil, persistence.ErrApprovalNotFound
}

// OverdueRecords returns active records past their expected response time.
func (ar *ApprovalRepository) OverdueRecords(_ context.Context, now time.Time) ([]*models.ApprovalRecord, error) {
	dir := path.Join(ar.root, "approvals")

	root := os.DirFS(dir)

	jsonFiles, err := fs.Glob(root, "*/*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list approval files: %w", err)
	}

	overdue := make([]*models.ApprovalRecord, 0)

	for _, file := range jsonFiles {
		record, err := ar.read(path.Join(dir, file))
		if err != nil {
			return nil, err
		}

		if record.Overdue(now) {
			overdue = append(overdue, record)
		}
	}

	return overdue, nil
}

// Save saves an approval record to the file system.
func (ar *ApprovalRepository) Save(_ context.Context, record *models.ApprovalRecord) error {
	dir := path.Join(ar.root, "approvals", record.RequestID)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create approvals directory: %w", err)
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal approval record %s: %w", record.ID, err)
	}

	return os.WriteFile(path.Join(dir, record.ID+".json"), data, 0600)
}

func (ar *ApprovalRepository) read(filePath string) (*models.ApprovalRecord, error) {
	body, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrApprovalNotFound
		}

		return nil, fmt.Errorf("failed to read approval record %s: %w", filePath, err)
	}

	var record models.ApprovalRecord

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval record %s: %w", filePath, err)
	}

	return &record, nil
}
