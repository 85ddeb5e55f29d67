// Package events defines event types and structures for approval workflow
// lifecycle notifications.
package events

import (
	"time"

	"github.com/eventiq/eventiq/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "eventiq.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Request lifecycle events.
	RequestSubmittedEvent EventType = "request.submitted"
	RequestDecidedEvent   EventType = "request.decided"
	RequestCompletedEvent EventType = "request.completed"

	// Scheduler-originated events.
	ReminderDueEvent         EventType = "request.reminder.due"
	EscalationTriggeredEvent EventType = "request.escalation.triggered"

	// Notifier delivery events.
	NotificationDispatchedEvent EventType = "notification.dispatched"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id"`
	Reference string         `json:"reference,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type RequestSubmitted struct {
	BaseEvent

	TemplateID string `json:"template_id"`
	Requester  string `json:"requester"`
	Levels     int    `json:"levels"`
}

func (e RequestSubmitted) GetType() EventType {
	return RequestSubmittedEvent
}

type RequestDecided struct {
	BaseEvent

	Level    int             `json:"level"`
	Decision models.Decision `json:"decision"`
	Actor    string          `json:"actor"`
	Comment  string          `json:"comment,omitempty"`
}

func (e RequestDecided) GetType() EventType {
	return RequestDecidedEvent
}

type RequestCompleted struct {
	BaseEvent

	Status   models.RequestStatus `json:"status"`
	Duration time.Duration        `json:"duration"`
}

func (e RequestCompleted) GetType() EventType {
	return RequestCompletedEvent
}

type ReminderDue struct {
	BaseEvent

	Level     int       `json:"level"`
	Recipient string    `json:"recipient"`
	DueAt     time.Time `json:"due_at"`
}

func (e ReminderDue) GetType() EventType {
	return ReminderDueEvent
}

type EscalationTriggered struct {
	BaseEvent

	Level             int    `json:"level"`
	EscalationContact string `json:"escalation_contact,omitempty"`
}

func (e EscalationTriggered) GetType() EventType {
	return EscalationTriggeredEvent
}

type NotificationDispatched struct {
	BaseEvent

	Kind      models.IntentKind `json:"kind"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body,omitempty"`
}

func (e NotificationDispatched) GetType() EventType {
	return NotificationDispatchedEvent
}
