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

// RequestRepository handles workflow-request file operations.
type RequestRepository struct {
	root string
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(root string) *RequestRepository {
	return &RequestRepository{root: root}
}

// GetByID retrieves a request by its ID from the file system.
func (rr *RequestRepository) GetByID(_ context.Context, id string) (*models.WorkflowRequest, error) {
	filePath := filepath.Clean(path.Join(rr.root, "requests", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrRequestNotFound
		}

		return nil, persistence.NewRequestError("GetByID", id, err)
	}

	var request models.WorkflowRequest

	err = json.Unmarshal(body, &request)
	if err != nil {
		return nil, persistence.NewRequestError("GetByID", id, err)
	}

	return &request, nil
}

// List returns paginated and filtered requests with in-memory operations.
func (rr *RequestRepository) List(ctx context.Context, opts persistence.ListRequestsOptions) (*persistence.RequestListResult, error) {
	if opts.SortBy == "" {
		opts.SortBy = "submitted_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"submitted_at": true,
		"updated_at":   true,
		"title":        true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	requests, err := rr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.WorkflowRequest, 0, len(requests))

	for _, request := range requests {
		if opts.Requester != "" && request.Requester != opts.Requester {
			continue
		}

		if opts.Status != nil && request.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, request)
	}

	rr.sortRequests(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))
	page := paginate(filtered, opts.Offset, opts.Limit)

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	return &persistence.RequestListResult{
		Requests:    page,
		TotalCount:  totalCount,
		HasNextPage: opts.Offset+limit < len(filtered),
	}, nil
}

// ListByStatus returns every request in the given status.
func (rr *RequestRepository) ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.WorkflowRequest, error) {
	requests, err := rr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.WorkflowRequest, 0)

	for _, request := range requests {
		if request.Status == status {
			matching = append(matching, request)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].SubmittedAt.Before(matching[j].SubmittedAt)
	})

	return matching, nil
}

// Save saves a request to the file system.
func (rr *RequestRepository) Save(_ context.Context, request *models.WorkflowRequest) error {
	err := os.MkdirAll(path.Join(rr.root, "requests"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create requests directory: %w", err)
	}

	request.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return persistence.NewRequestError("Save", request.ID, err)
	}

	filePath := path.Join(rr.root, "requests", request.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// Delete removes a request by its ID.
func (rr *RequestRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(rr.root, "requests", id+".json")

	err := os.Remove(filePath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return persistence.NewRequestError("Delete", id, err)
	}

	return nil
}

func (rr *RequestRepository) loadAll(ctx context.Context) ([]*models.WorkflowRequest, error) {
	root := os.DirFS(path.Join(rr.root, "requests"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list request files: %w", err)
	}

	requests := make([]*models.WorkflowRequest, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5]

		request, err := rr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load request %s: %w", id, err)
		}

		requests = append(requests, request)
	}

	return requests, nil
}

// sortRequests sorts requests in-place based on the specified field and order.
func (rr *RequestRepository) sortRequests(requests []*models.WorkflowRequest, sortBy, sortOrder string) {
	sort.Slice(requests, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "submitted_at":
			less = requests[i].SubmittedAt.Before(requests[j].SubmittedAt)
		case "updated_at":
			less = requests[i].UpdatedAt.Before(requests[j].UpdatedAt)
		case "title":
			less = requests[i].Title < requests[j].Title
		default:
			less = requests[i].SubmittedAt.Before(requests[j].SubmittedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}
