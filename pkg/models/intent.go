package models

import "time"

// IntentKind classifies a notification intent.
type IntentKind string

const (
	IntentSubmitted  IntentKind = "submitted"
	IntentReminder   IntentKind = "reminder"
	IntentEscalation IntentKind = "escalation"
	IntentDecision   IntentKind = "decision"
)

// NotificationIntent is the engine's instruction to the notifier: when and
// what to send, never how. Delivery is best-effort and owned by the
// notifier collaborator.
type NotificationIntent struct {
	ID        string     `json:"id"`
	Kind      IntentKind `json:"kind"`
	RequestID string     `json:"request_id"`
	Reference string     `json:"reference"`
	Level     int        `json:"level,omitempty"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
