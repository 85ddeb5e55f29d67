package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the lifecycle state of a workflow request.
type RequestStatus string

const (
	RequestStatusSubmitted       RequestStatus = "submitted"
	RequestStatusInReview        RequestStatus = "in_review"
	RequestStatusPendingApproval RequestStatus = "pending_approval"
	RequestStatusApproved        RequestStatus = "approved"
	RequestStatusRejected        RequestStatus = "rejected"
	RequestStatusOnHold          RequestStatus = "on_hold"
	RequestStatusCancelled       RequestStatus = "cancelled"
)

var terminalStatuses = map[RequestStatus]bool{
	RequestStatusApproved:  true,
	RequestStatusRejected:  true,
	RequestStatusCancelled: true,
}

// IsTerminal reports whether no further transitions are permitted.
func (s RequestStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// RequestPriority is carried through to notifications, the engine does not
// branch on it.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityMedium RequestPriority = "medium"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

// WorkflowRequest is one instance being routed through an approval chain.
// It is owned by the engine and mutated only through its transitions.
type WorkflowRequest struct {
	ID              string          `json:"id"`
	ReferenceNumber string          `json:"reference_number"`
	TemplateID      string          `json:"template_id"  validate:"required"`
	Requester       string          `json:"requester"    validate:"required"`
	Title           string          `json:"title"        validate:"required,min=3"`
	Description     string          `json:"description,omitempty"`
	Priority        RequestPriority `json:"priority,omitempty"`

	// Payload is opaque to the engine except for auto-approval evaluation
	// and template schema validation.
	Payload map[string]any `json:"payload,omitempty"`

	Status RequestStatus `json:"status"`

	// CurrentLevel is 0 before the approval chain is entered and N while
	// awaiting a decision at level N. It never decreases.
	CurrentLevel int `json:"current_level"`

	SubmittedAt        time.Time  `json:"submitted_at"`
	TargetCompletionAt time.Time  `json:"target_completion_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewReferenceNumber produces the human-facing WF-XXXXXXXX identifier
// printed on notifications and reports.
func NewReferenceNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]

	return fmt.Sprintf("WF-%s", suffix)
}
