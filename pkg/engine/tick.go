package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/eventiq/eventiq/pkg/events"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/otelhelper"
	"github.com/eventiq/eventiq/pkg/persistence"
)

// Tick evaluates reminders and escalations for every in-review request at
// the supplied clock value and returns the notification intents due. It is
// a pure function of persisted state plus now, and idempotent within a
// reminder window: re-running it produces no duplicate intents.
func (e *Engine) Tick(ctx context.Context, now time.Time) ([]models.NotificationIntent, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.tick")
	defer span.End()

	inReview, err := e.persistence.Requests().ListByStatus(ctx, models.RequestStatusInReview)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to list in-review requests: %w", err)
	}

	intents := make([]models.NotificationIntent, 0)

	for _, request := range inReview {
		select {
		case <-ctx.Done():
			// Partial progress is safe; the next tick resumes.
			return intents, ctx.Err()
		default:
		}

		due, err := e.evaluateRequest(ctx, request.ID, now)
		if err != nil {
			e.logger.ErrorContext(ctx, "tick evaluation failed",
				"request_id", request.ID,
				"error", err)

			continue
		}

		intents = append(intents, due...)
	}

	span.SetAttributes(attribute.Int("eventiq.tick.intents", len(intents)))

	return intents, nil
}

// evaluateRequest runs the reminder/escalation checks for one request under
// its lock, so a concurrent decision cannot race the evaluation.
func (e *Engine) evaluateRequest(ctx context.Context, requestID string, now time.Time) ([]models.NotificationIntent, error) {
	lock := e.requestLock(requestID)
	lock.Lock()
	defer lock.Unlock()

	request, err := e.persistence.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}

	// A decision may have landed between the listing and the lock.
	if request.Status != models.RequestStatusInReview {
		return nil, nil
	}

	record, err := e.persistence.Approvals().ActiveRecord(ctx, requestID, request.CurrentLevel)
	if err != nil {
		if persistence.IsApprovalNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to load active record: %w", err)
	}

	if record.ExpectedResponseAt.IsZero() {
		return nil, nil
	}

	template, err := e.persistence.Templates().GetByID(ctx, request.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	intents := make([]models.NotificationIntent, 0, 2)

	reminderIntent, reminded := e.evaluateReminder(request, record, template, now)
	if reminded {
		intents = append(intents, reminderIntent)
	}

	escalationIntent, escalated, err := e.evaluateEscalation(ctx, request, record, template, now)
	if err != nil {
		return nil, err
	}

	if escalated {
		intents = append(intents, escalationIntent)
	}

	if len(intents) > 0 {
		if err := e.persistence.Approvals().Save(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to save approval record: %w", err)
		}
	}

	if reminded {
		e.publish(ctx, request.ID, events.ReminderDue{
			BaseEvent: e.baseEvent(events.ReminderDueEvent, request, now),
			Level:     record.Level,
			Recipient: reminderIntent.Recipient,
			DueAt:     record.ExpectedResponseAt,
		})
	}

	if escalated {
		e.publish(ctx, request.ID, events.EscalationTriggered{
			BaseEvent:         e.baseEvent(events.EscalationTriggeredEvent, request, now),
			Level:             record.Level,
			EscalationContact: record.AssignedApprover,
		})
	}

	return intents, nil
}

// evaluateReminder fires at most one reminder per crossed offset window.
// The dedupe key is the count of crossed windows against reminder_count.
func (e *Engine) evaluateReminder(request *models.WorkflowRequest, record *models.ApprovalRecord, template *models.WorkflowTemplate, now time.Time) (models.NotificationIntent, bool) {
	offsets := template.ReminderOffsets()
	if len(offsets) == 0 {
		for _, m := range e.cfg.DefaultReminderOffsetMinutes {
			offsets = append(offsets, time.Duration(m)*time.Minute)
		}
	}

	crossed := 0

	for _, offset := range offsets {
		if !now.Before(record.ExpectedResponseAt.Add(-offset)) {
			crossed++
		}
	}

	if crossed <= record.ReminderCount {
		return models.NotificationIntent{}, false
	}

	record.ReminderCount = crossed
	reminderAt := now
	record.LastReminderAt = &reminderAt

	recipient := record.AssignedApprover
	if recipient == "" {
		recipient = record.RequiredRole
	}

	return models.NotificationIntent{
		ID:        uuid.NewString(),
		Kind:      models.IntentReminder,
		RequestID: request.ID,
		Reference: request.ReferenceNumber,
		Level:     record.Level,
		Recipient: recipient,
		Subject:   fmt.Sprintf("Reminder: %s (%s) awaits your decision", request.Title, request.ReferenceNumber),
		Body:      fmt.Sprintf("Response expected by %s", record.ExpectedResponseAt.Format(time.RFC3339)),
		CreatedAt: now,
	}, true
}

// evaluateEscalation marks escalation exactly once per record and reassigns
// to the level's escalation contact when one is configured. The assignment
// changes; the decision ledger does not.
func (e *Engine) evaluateEscalation(ctx context.Context, request *models.WorkflowRequest, record *models.ApprovalRecord, template *models.WorkflowTemplate, now time.Time) (models.NotificationIntent, bool, error) {
	if record.EscalationTriggered {
		return models.NotificationIntent{}, false, nil
	}

	after := template.EscalationAfter()
	if after == 0 {
		after = time.Duration(e.cfg.DefaultEscalationAfterMinutes) * time.Minute
	}

	if after == 0 || now.Before(record.ExpectedResponseAt.Add(after)) {
		return models.NotificationIntent{}, false, nil
	}

	record.EscalationTriggered = true

	spec, _ := template.LevelSpec(record.Level)

	recipient := record.AssignedApprover
	if recipient == "" {
		recipient = record.RequiredRole
	}

	if spec.EscalationContact != "" {
		record.AssignedApprover = spec.EscalationContact
		recipient = spec.EscalationContact
	}

	e.appendHistory(ctx, &models.HistoryEvent{
		RequestID: request.ID,
		Action:    "escalated",
		OldStatus: request.Status,
		NewStatus: request.Status,
		Level:     record.Level,
		Actor:     "scheduler",
		Reason:    fmt.Sprintf("level %d overdue since %s", record.Level, record.ExpectedResponseAt.Format(time.RFC3339)),
		Timestamp: now,
	})

	return models.NotificationIntent{
		ID:        uuid.NewString(),
		Kind:      models.IntentEscalation,
		RequestID: request.ID,
		Reference: request.ReferenceNumber,
		Level:     record.Level,
		Recipient: recipient,
		Subject:   fmt.Sprintf("Escalation: %s (%s) is overdue at level %d", request.Title, request.ReferenceNumber, record.Level),
		CreatedAt: now,
	}, true, nil
}
