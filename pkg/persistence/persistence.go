// Package persistence provides the data storage abstraction for workflow
// templates, requests, approval records and back-office documents.
package persistence

import (
	"context"
	"time"

	"github.com/eventiq/eventiq/pkg/models"
)

type Persistence interface {
	Templates() TemplateRepository
	Requests() RequestRepository
	Approvals() ApprovalRepository
	History() HistoryRepository
	Documents() DocumentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListTemplatesOptions filters and paginates template listings.
type ListTemplatesOptions struct {
	Limit    int
	Offset   int
	Category string
	Status   *models.TemplateStatus
	GroupID  string
}

// TemplateRepository stores workflow template versions.
type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	// PublishedByGroup returns the single published version of a template
	// group, or ErrPublishedTemplateNotFound.
	PublishedByGroup(ctx context.Context, groupID string) (*models.WorkflowTemplate, error)
	List(ctx context.Context, opts ListTemplatesOptions) ([]*models.WorkflowTemplate, error)
	Save(ctx context.Context, template *models.WorkflowTemplate) error
	Delete(ctx context.Context, id string) error
}

// ListRequestsOptions filters and paginates request listings.
type ListRequestsOptions struct {
	Limit     int
	Offset    int
	Requester string
	Status    *models.RequestStatus
	SortBy    string
	SortOrder string
}

// RequestListResult carries a page of requests plus pagination metadata.
type RequestListResult struct {
	Requests    []*models.WorkflowRequest
	TotalCount  int64
	HasNextPage bool
}

// RequestRepository stores workflow requests.
type RequestRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowRequest, error)
	List(ctx context.Context, opts ListRequestsOptions) (*RequestListResult, error)
	// ListByStatus returns every request in the given status; the
	// scheduler uses it to sweep in_review requests.
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.WorkflowRequest, error)
	Save(ctx context.Context, request *models.WorkflowRequest) error
	Delete(ctx context.Context, id string) error
}

// ApprovalRepository stores the per-level approval ledger.
type ApprovalRepository interface {
	// ByRequest returns all records for a request ordered by level, with
	// superseded records after their replacements' predecessors.
	ByRequest(ctx context.Context, requestID string) ([]*models.ApprovalRecord, error)
	// ActiveRecord returns the non-superseded pending record for a level,
	// or ErrApprovalNotFound.
	ActiveRecord(ctx context.Context, requestID string, level int) (*models.ApprovalRecord, error)
	// OverdueRecords returns active records whose expected response time
	// is in the past relative to now.
	OverdueRecords(ctx context.Context, now time.Time) ([]*models.ApprovalRecord, error)
	Save(ctx context.Context, record *models.ApprovalRecord) error
}

// HistoryRepository stores the append-only audit trail.
type HistoryRepository interface {
	Append(ctx context.Context, event *models.HistoryEvent) error
	ByRequest(ctx context.Context, requestID string) ([]*models.HistoryEvent, error)
}

// Document is a flexible back-office record (participant, volunteer, booth,
// vendor, expense, feedback). The engine's own records are fully typed;
// back-office rows keep the loosely-structured shape they had upstream.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// DocumentRepository stores back-office documents per collection.
type DocumentRepository interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string) ([]*Document, error)
	Save(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, collection, id string) error
}
