package services

import (
	"context"
	"fmt"

	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence"
)

// ErrRequestNotFound is returned when a workflow request is not found.
var ErrRequestNotFound = persistence.ErrRequestNotFound

// Request translates API-facing calls onto the workflow engine and the
// request listing queries the engine does not own.
type Request struct {
	engine      *engine.Engine
	persistence persistence.Persistence
}

// NewRequest creates a new request service.
func NewRequest(eng *engine.Engine, persistence persistence.Persistence) *Request {
	return &Request{
		engine:      eng,
		persistence: persistence,
	}
}

// SubmitRequest contains a submission.
type SubmitRequest struct {
	TemplateID  string                 `validate:"required"`
	Requester   string                 `validate:"required"`
	Title       string                 `validate:"required,min=3"`
	Description string
	Priority    models.RequestPriority `validate:"omitempty,oneof=low medium high urgent"`
	Payload     map[string]any
}

// Submit routes a new request into its template's approval chain.
func (r *Request) Submit(ctx context.Context, req SubmitRequest) (*models.WorkflowRequest, error) {
	if req.TemplateID == "" || req.Requester == "" || len(req.Title) < 3 {
		return nil, NewValidationError("submit_request", "invalid_submission",
			"template_id, requester and a title of at least 3 characters are required", ErrInvalidRequest)
	}

	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}

	return r.engine.Submit(ctx, engine.SubmitInput{
		TemplateID:  req.TemplateID,
		Requester:   req.Requester,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Payload:     req.Payload,
	})
}

// DecideRequest contains a decision application.
type DecideRequest struct {
	Level      int             `validate:"required,min=1"`
	Decision   models.Decision `validate:"required"`
	Actor      string          `validate:"required"`
	Comment    string
	DelegateTo string
}

// Decide applies a decision to a request's active level.
func (r *Request) Decide(ctx context.Context, requestID string, req DecideRequest) (*models.WorkflowRequest, error) {
	if req.Actor == "" || req.Level < 1 {
		return nil, NewValidationError("decide", "invalid_decision",
			"actor and a positive level are required", ErrInvalidRequest)
	}

	if !req.Decision.IsActionable() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, req.Decision)
	}

	return r.engine.Decide(ctx, requestID, req.Level, engine.DecisionInput{
		Decision:   req.Decision,
		Actor:      req.Actor,
		Comment:    req.Comment,
		DelegateTo: req.DelegateTo,
	})
}

// Resubmit returns an on-hold request to review.
func (r *Request) Resubmit(ctx context.Context, requestID, actor string) (*models.WorkflowRequest, error) {
	return r.engine.Resubmit(ctx, requestID, actor)
}

// Cancel cancels an in-review or on-hold request.
func (r *Request) Cancel(ctx context.Context, requestID, actor, reason string) (*models.WorkflowRequest, error) {
	return r.engine.Cancel(ctx, requestID, actor, reason)
}

// RequestDetail bundles a request with its approval ledger.
type RequestDetail struct {
	Request   *models.WorkflowRequest  `json:"request"`
	Approvals []*models.ApprovalRecord `json:"approvals"`

	// Overdue is derived from the active record at read time.
	Overdue bool `json:"overdue"`
}

// Get returns a request, its ledger, and its derived overdue state.
func (r *Request) Get(ctx context.Context, requestID string) (*RequestDetail, error) {
	request, records, err := r.engine.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	detail := &RequestDetail{Request: request, Approvals: records}

	now := r.engine.Now()
	for _, record := range records {
		if record.Overdue(now) {
			detail.Overdue = true

			break
		}
	}

	return detail, nil
}

// History returns the audit trail of a request.
func (r *Request) History(ctx context.Context, requestID string) ([]*models.HistoryEvent, error) {
	if _, err := r.persistence.Requests().GetByID(ctx, requestID); err != nil {
		if persistence.IsRequestNotFound(err) {
			return nil, engine.ErrNotFound
		}

		return nil, fmt.Errorf("failed to load request: %w", err)
	}

	events, err := r.persistence.History().ByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return events, nil
}

// ListRequestsRequest contains options for listing requests.
type ListRequestsRequest struct {
	Limit     int
	Offset    int
	Requester string
	Status    string
	SortBy    string
	SortOrder string
}

// ListRequestsResponse contains the result of listing requests.
type ListRequestsResponse struct {
	Requests    []*models.WorkflowRequest `json:"requests"`
	TotalCount  int64                     `json:"total_count"`
	HasNextPage bool                      `json:"has_next_page"`
}

// List retrieves requests with filtering, sorting, and pagination.
func (r *Request) List(ctx context.Context, req ListRequestsRequest) (*ListRequestsResponse, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.SortOrder != "" && req.SortOrder != "asc" && req.SortOrder != "desc" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortOrder, req.SortOrder)
	}

	opts := persistence.ListRequestsOptions{
		Limit:     req.Limit,
		Offset:    req.Offset,
		Requester: req.Requester,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}

	if req.Status != "" {
		status := models.RequestStatus(req.Status)
		switch status {
		case models.RequestStatusSubmitted, models.RequestStatusInReview,
			models.RequestStatusPendingApproval, models.RequestStatusApproved,
			models.RequestStatusRejected, models.RequestStatusOnHold,
			models.RequestStatusCancelled:
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
		}

		opts.Status = &status
	}

	result, err := r.persistence.Requests().List(ctx, opts)
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	return &ListRequestsResponse{
		Requests:    result.Requests,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}
