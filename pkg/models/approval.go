package models

import "time"

// Decision is the outcome recorded on one approval level.
type Decision string

const (
	DecisionPending        Decision = "pending"
	DecisionApprove        Decision = "approve"
	DecisionReject         Decision = "reject"
	DecisionRequestChanges Decision = "request_changes"
	DecisionEscalate       Decision = "escalate"
	DecisionDelegate       Decision = "delegate"
)

var knownDecisions = map[Decision]bool{
	DecisionApprove:        true,
	DecisionReject:         true,
	DecisionRequestChanges: true,
	DecisionEscalate:       true,
	DecisionDelegate:       true,
}

// IsActionable reports whether the decision is one a caller may apply.
// Pending is a state, not an action.
func (d Decision) IsActionable() bool {
	return knownDecisions[d]
}

// ApprovalRecord is the ledger entry for one level of one request. Records
// are sealed once decided; delegation and resubmission open a fresh record
// for the same level rather than mutating the old one.
type ApprovalRecord struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	Level     int    `json:"level"`

	AssignedApprover string `json:"assigned_approver"`
	RequiredRole     string `json:"required_role"`

	Decision  Decision   `json:"decision"`
	Comment   string     `json:"comment,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`

	// ExpectedResponseAt is set when the level becomes active, not at
	// submission time. Zero while the level is still upstream.
	ExpectedResponseAt time.Time `json:"expected_response_at,omitzero"`

	ReminderCount       int        `json:"reminder_count"`
	LastReminderAt      *time.Time `json:"last_reminder_at,omitempty"`
	EscalationTriggered bool       `json:"escalation_triggered"`

	DelegatedTo string `json:"delegated_to,omitempty"`

	// Superseded marks a record replaced by a delegation or resubmission;
	// superseded records never count as the active level.
	Superseded bool `json:"superseded,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Decided reports whether the record has been sealed.
func (a *ApprovalRecord) Decided() bool {
	return a.DecidedAt != nil
}

// Active reports whether the record is the one awaiting a decision.
func (a *ApprovalRecord) Active() bool {
	return !a.Superseded && a.Decision == DecisionPending && !a.ExpectedResponseAt.IsZero()
}

// Overdue derives lateness from the supplied clock value. It is recomputed
// on every read; a persisted overdue flag would go stale between writes.
func (a *ApprovalRecord) Overdue(now time.Time) bool {
	return a.Active() && now.After(a.ExpectedResponseAt)
}
