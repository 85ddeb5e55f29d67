package models

import "time"

// HistoryEvent is one audit-trail entry for a request. The engine only
// appends; reporting reads.
type HistoryEvent struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`

	// Action names the transition, e.g. "submitted", "decision_applied",
	// "escalated", "cancelled".
	Action string `json:"action"`

	OldStatus RequestStatus `json:"old_status,omitempty"`
	NewStatus RequestStatus `json:"new_status,omitempty"`
	Level     int           `json:"level,omitempty"`

	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
