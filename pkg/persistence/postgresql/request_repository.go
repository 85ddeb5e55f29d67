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

// RequestRepository handles workflow request database operations.
type RequestRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(db *sql.DB, logger *slog.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

const requestColumns = `
	id
  , reference_number
  , template_id
  , requester
  , title
  , description
  , priority
  , payload
  , status
  , current_level
  , submitted_at
  , target_completion_at
  , completed_at
  , updated_at
`

var requestSortFields = map[string]string{
	"submitted_at": "submitted_at",
	"updated_at":   "updated_at",
	"title":        "title",
}

// GetByID returns a request by its ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM workflow_requests WHERE id = $1`

	request, err := r.scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRequestError("get", id, persistence.ErrRequestNotFound)
		}

		return nil, persistence.NewRequestError("get", id, err)
	}

	return request, nil
}

// List returns a page of requests with pagination metadata.
func (r *RequestRepository) List(ctx context.Context, opts persistence.ListRequestsOptions) (*persistence.RequestListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	sortBy := "submitted_at"

	if opts.SortBy != "" {
		column, ok := requestSortFields[opts.SortBy]
		if !ok {
			return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
		}

		sortBy = column
	}

	order := "DESC"
	if opts.SortOrder == "asc" {
		order = "ASC"
	}

	status := ""
	if opts.Status != nil {
		status = string(*opts.Status)
	}

	var total int64

	countQuery := `
		SELECT COUNT(*)
		FROM workflow_requests
		WHERE ($1 = '' OR requester = $1)
		  AND ($2 = '' OR status = $2)
	`

	if err := r.db.QueryRowContext(ctx, countQuery, opts.Requester, status).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	query := `SELECT ` + requestColumns + `
		FROM workflow_requests
		WHERE ($1 = '' OR requester = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY ` + sortBy + ` ` + order + `
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, opts.Requester, status, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}

	defer r.closeRows(ctx, rows)

	requests := make([]*models.WorkflowRequest, 0)

	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}

		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return &persistence.RequestListResult{
		Requests:    requests,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(requests)) < total,
	}, nil
}

// ListByStatus returns all requests in the given status, oldest first.
func (r *RequestRepository) ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.WorkflowRequest, error) {
	query := `SELECT ` + requestColumns + `
		FROM workflow_requests
		WHERE status = $1
		ORDER BY submitted_at ASC`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests by status: %w", err)
	}

	defer r.closeRows(ctx, rows)

	requests := make([]*models.WorkflowRequest, 0)

	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}

		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return requests, nil
}

// Save inserts or updates a request.
func (r *RequestRepository) Save(ctx context.Context, request *models.WorkflowRequest) error {
	request.UpdatedAt = time.Now().UTC()

	if request.ID == "" {
		request.ID = uuid.NewString()
	}

	payload, err := marshalNullable(request.Payload)
	if err != nil {
		return persistence.NewRequestError("save", request.ID, fmt.Errorf("failed to marshal payload: %w", err))
	}

	query := `
		INSERT INTO workflow_requests (
			id, reference_number, template_id, requester, title, description,
			priority, payload, status, current_level, submitted_at,
			target_completion_at, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			priority = EXCLUDED.priority,
			payload = EXCLUDED.payload,
			status = EXCLUDED.status,
			current_level = EXCLUDED.current_level,
			target_completion_at = EXCLUDED.target_completion_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		request.ID, request.ReferenceNumber, request.TemplateID, request.Requester,
		request.Title, request.Description, request.Priority, payload, request.Status,
		request.CurrentLevel, request.SubmittedAt, request.TargetCompletionAt,
		request.CompletedAt, request.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRequestError("save", request.ID, err)
	}

	return nil
}

// Delete removes a request; approval records and history cascade.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM workflow_requests WHERE id = $1`, id)
	if err != nil {
		return persistence.NewRequestError("delete", id, err)
	}

	return nil
}

func (r *RequestRepository) scanRequest(row rowScanner) (*models.WorkflowRequest, error) {
	var (
		request     models.WorkflowRequest
		payloadJSON []byte
	)

	err := row.Scan(
		&request.ID, &request.ReferenceNumber, &request.TemplateID, &request.Requester,
		&request.Title, &request.Description, &request.Priority, &payloadJSON,
		&request.Status, &request.CurrentLevel, &request.SubmittedAt,
		&request.TargetCompletionAt, &request.CompletedAt, &request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &request.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &request, nil
}

func (r *RequestRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
