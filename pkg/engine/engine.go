// Package engine implements the multi-level approval workflow state machine:
// submission, decision application, escalation and reminder evaluation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventiq/eventiq/pkg/eventbus"
	"github.com/eventiq/eventiq/pkg/events"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/notifier"
	"github.com/eventiq/eventiq/pkg/otelhelper"
	"github.com/eventiq/eventiq/pkg/persistence"
)

// Config carries engine-level defaults applied when a template leaves the
// corresponding field unset.
type Config struct {
	// DefaultSLAHours bounds overall request completion when a template
	// carries no SLA of its own.
	DefaultSLAHours int

	// DefaultReminderOffsetMinutes is used when a template defines no
	// reminder offsets.
	DefaultReminderOffsetMinutes []int

	// DefaultEscalationAfterMinutes is used when a template defines no
	// escalation window. Zero disables escalation for such templates.
	DefaultEscalationAfterMinutes int

	// NotifyTimeout bounds each fire-and-forget notification dispatch.
	NotifyTimeout time.Duration
}

const defaultNotifyTimeout = 5 * time.Second

// Engine routes workflow requests through their template's approval chain.
// All request mutation is serialized per request; cross-request operations
// run in parallel.
type Engine struct {
	cfg         Config
	persistence persistence.Persistence
	identity    IdentityProvider
	clock       Clock
	logger      *slog.Logger
	notifier    notifier.Notifier
	bus         eventbus.EventBus
	tracer      trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a workflow engine. The notifier and the event bus may be nil;
// a nil notifier drops engine-originated notifications and a nil bus drops
// lifecycle events.
func New(cfg Config, p persistence.Persistence, identity IdentityProvider, clock Clock, n notifier.Notifier, bus eventbus.EventBus, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock()
	}

	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}

	return &Engine{
		cfg:         cfg,
		persistence: p,
		identity:    identity,
		clock:       clock,
		logger:      logger.With("module", "engine"),
		notifier:    n,
		bus:         bus,
		tracer:      otel.Tracer("eventiq.engine"),
		locks:       make(map[string]*sync.Mutex),
	}
}

// Now exposes the engine's clock so callers derive overdue state from the
// same time source the engine transitions on.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// SubmitInput carries a submission request.
type SubmitInput struct {
	TemplateID  string
	Requester   string
	Title       string
	Description string
	Priority    models.RequestPriority
	Payload     map[string]any
}

// Submit resolves the published template, validates the payload, evaluates
// auto-approval and either approves immediately or opens the approval chain
// at level 1 with one pending record per level.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*models.WorkflowRequest, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.submit",
		attribute.String(otelhelper.TemplateIDKey, in.TemplateID),
		attribute.String(otelhelper.ActorKey, in.Requester),
	)
	defer span.End()

	template, err := e.resolveTemplate(ctx, in.TemplateID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := template.ValidatePayload(in.Payload); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, err.Error())
	}

	now := e.clock.Now()

	request := &models.WorkflowRequest{
		ID:              uuid.NewString(),
		ReferenceNumber: models.NewReferenceNumber(),
		TemplateID:      template.ID,
		Requester:       in.Requester,
		Title:           in.Title,
		Description:     in.Description,
		Priority:        in.Priority,
		Payload:         in.Payload,
		Status:          models.RequestStatusSubmitted,
		SubmittedAt:     now,
		UpdatedAt:       now,
	}

	slaHours := template.SLAHours
	if slaHours <= 0 {
		slaHours = e.cfg.DefaultSLAHours
	}

	request.TargetCompletionAt = now.Add(time.Duration(slaHours) * time.Hour)

	if template.AutoApproval != nil {
		satisfied, err := template.AutoApproval.Satisfied(in.Payload)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("auto-approval evaluation: %w", err)
		}

		if satisfied {
			return request, e.approveAutomatically(ctx, request, now)
		}
	}

	if template.LastLevel() == 0 {
		err := newTransitionError("submit", request.ID, 0,
			fmt.Errorf("%w: template %s has no approval levels and its rule was not satisfied", ErrInvalidTransition, template.ID))
		otelhelper.SetError(span, err)

		return nil, err
	}

	request.Status = models.RequestStatusInReview
	request.CurrentLevel = 1

	if err := e.persistence.Requests().Save(ctx, request); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	for _, levelSpec := range template.Levels {
		record := &models.ApprovalRecord{
			ID:           uuid.NewString(),
			RequestID:    request.ID,
			Level:        levelSpec.Level,
			RequiredRole: levelSpec.RequiredRole,
			Decision:     models.DecisionPending,
		}

		// Only the entry level gets a deadline; upstream levels are
		// stamped as they become active.
		if levelSpec.Level == 1 {
			record.ExpectedResponseAt = now.Add(time.Duration(levelSpec.SLAHours) * time.Hour)
		}

		if err := e.persistence.Approvals().Save(ctx, record); err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("failed to save approval record: %w", err)
		}
	}

	e.appendHistory(ctx, &models.HistoryEvent{
		RequestID: request.ID,
		Action:    "submitted",
		NewStatus: request.Status,
		Level:     1,
		Actor:     in.Requester,
		Timestamp: now,
	})

	e.publish(ctx, request.ID, events.RequestSubmitted{
		BaseEvent:  e.baseEvent(events.RequestSubmittedEvent, request, now),
		TemplateID: template.ID,
		Requester:  request.Requester,
		Levels:     template.LastLevel(),
	})

	firstLevel, _ := template.LevelSpec(1)
	e.notify(ctx, models.NotificationIntent{
		Kind:      models.IntentSubmitted,
		RequestID: request.ID,
		Reference: request.ReferenceNumber,
		Level:     1,
		Recipient: firstLevel.RequiredRole,
		Subject:   fmt.Sprintf("Approval needed: %s (%s)", request.Title, request.ReferenceNumber),
		CreatedAt: now,
	})

	e.logger.InfoContext(ctx, "request submitted",
		"request_id", request.ID,
		"reference", request.ReferenceNumber,
		"template_id", template.ID,
		"levels", template.LastLevel())

	return request, nil
}

func (e *Engine) approveAutomatically(ctx context.Context, request *models.WorkflowRequest, now time.Time) error {
	request.Status = models.RequestStatusApproved
	request.CompletedAt = &now

	if err := e.persistence.Requests().Save(ctx, request); err != nil {
		return fmt.Errorf("failed to save auto-approved request: %w", err)
	}

	e.appendHistory(ctx, &models.HistoryEvent{
		RequestID: request.ID,
		Action:    "auto_approved",
		OldStatus: models.RequestStatusSubmitted,
		NewStatus: models.RequestStatusApproved,
		Actor:     "system",
		Timestamp: now,
	})

	e.publish(ctx, request.ID, events.RequestCompleted{
		BaseEvent: e.baseEvent(events.RequestCompletedEvent, request, now),
		Status:    request.Status,
		Duration:  now.Sub(request.SubmittedAt),
	})

	e.notify(ctx, models.NotificationIntent{
		Kind:      models.IntentDecision,
		RequestID: request.ID,
		Reference: request.ReferenceNumber,
		Recipient: request.Requester,
		Subject:   fmt.Sprintf("Request %s approved automatically", request.ReferenceNumber),
		CreatedAt: now,
	})

	e.logger.InfoContext(ctx, "request auto-approved",
		"request_id", request.ID,
		"reference", request.ReferenceNumber)

	return nil
}

// DecisionInput carries one decision application.
type DecisionInput struct {
	Decision models.Decision
	Actor    string
	Comment  string

	// DelegateTo names the new assignee for delegate decisions.
	DelegateTo string
}

// Decide applies a decision to the request's active level, advancing status
// and current level per the transition table. It is atomic per request and
// idempotent against a retry of an identical already-applied decision.
func (e *Engine) Decide(ctx context.Context, requestID string, level int, in DecisionInput) (*models.WorkflowRequest, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.decide",
		attribute.String(otelhelper.RequestIDKey, requestID),
		attribute.Int(otelhelper.LevelKey, level),
		attribute.String(otelhelper.DecisionKey, string(in.Decision)),
		attribute.String(otelhelper.ActorKey, in.Actor),
	)
	defer span.End()

	lock := e.requestLock(requestID)
	lock.Lock()
	defer lock.Unlock()

	request, err := e.loadRequest(ctx, "decide", requestID, level)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	records, err := e.persistence.Approvals().ByRequest(ctx, requestID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load approval records: %w", err)
	}

	// A retry of an identical already-applied decision returns current
	// state without writing a second history event.
	if alreadyApplied(records, level, in) {
		return request, nil
	}

	if err := e.validateDecision(ctx, request, level, in); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	record, err := e.persistence.Approvals().ActiveRecord(ctx, requestID, level)
	if err != nil {
		if persistence.IsApprovalNotFound(err) {
			err = newTransitionError("decide", requestID, level,
				fmt.Errorf("%w: no active approval record at level %d", ErrInvalidTransition, level))
		}

		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := e.authorize(ctx, record, in.Actor); err != nil {
		otelhelper.SetError(span, err)

		return nil, newTransitionError("decide", requestID, level, err)
	}

	if err := e.applyDecision(ctx, request, record, level, in); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return request, nil
}

// applyDecision performs the actual transition. Called with the request
// lock held and all preconditions validated.
func (e *Engine) applyDecision(ctx context.Context, request *models.WorkflowRequest, record *models.ApprovalRecord, level int, in DecisionInput) error {
	template, err := e.persistence.Templates().GetByID(ctx, request.TemplateID)
	if err != nil {
		return fmt.Errorf("failed to load template %s: %w", request.TemplateID, err)
	}

	now := e.clock.Now()
	oldStatus := request.Status

	// Snapshots for rollback: a failed save must leave neither a status
	// advance without a sealed record nor a sealed record without the
	// status advance.
	requestSnapshot := *request
	recordSnapshot := *record

	record.Decision = in.Decision
	record.Comment = in.Comment
	record.DecidedAt = &now
	record.DecidedBy = in.Actor

	var fresh *models.ApprovalRecord

	switch in.Decision {
	case models.DecisionApprove:
		if level < template.LastLevel() {
			request.CurrentLevel = level + 1

			next, err := e.persistence.Approvals().ActiveRecord(ctx, request.ID, level+1)
			if err != nil {
				return fmt.Errorf("failed to load next level record: %w", err)
			}

			spec, _ := template.LevelSpec(level + 1)
			next.ExpectedResponseAt = now.Add(time.Duration(spec.SLAHours) * time.Hour)
			fresh = next
		} else {
			request.Status = models.RequestStatusApproved
			request.CompletedAt = &now
		}
	case models.DecisionReject:
		request.Status = models.RequestStatusRejected
		request.CompletedAt = &now
	case models.DecisionRequestChanges:
		request.Status = models.RequestStatusOnHold
	case models.DecisionDelegate:
		record.Superseded = true
		record.DelegatedTo = in.DelegateTo
		fresh = &models.ApprovalRecord{
			ID:                 uuid.NewString(),
			RequestID:          request.ID,
			Level:              level,
			AssignedApprover:   in.DelegateTo,
			RequiredRole:       record.RequiredRole,
			Decision:           models.DecisionPending,
			ExpectedResponseAt: record.ExpectedResponseAt,
		}
	case models.DecisionEscalate:
		spec, _ := template.LevelSpec(level)
		if spec.EscalationContact == "" {
			request.Status = models.RequestStatusOnHold
		} else {
			record.Superseded = true
			record.EscalationTriggered = true
			fresh = &models.ApprovalRecord{
				ID:                 uuid.NewString(),
				RequestID:          request.ID,
				Level:              level,
				AssignedApprover:   spec.EscalationContact,
				RequiredRole:       record.RequiredRole,
				Decision:           models.DecisionPending,
				ExpectedResponseAt: now.Add(time.Duration(spec.SLAHours) * time.Hour),
			}
		}
	case models.DecisionPending:
		// Unreachable, filtered by IsActionable.
	}

	// Request first: if it fails nothing is persisted. A later ledger
	// failure rolls the request back, so the fresh record (a new row) is
	// never left behind on a partial write.
	if err := e.persistence.Requests().Save(ctx, request); err != nil {
		*request = requestSnapshot

		return fmt.Errorf("failed to save request: %w", err)
	}

	if err := e.persistence.Approvals().Save(ctx, record); err != nil {
		e.rollbackDecision(ctx, request, requestSnapshot, record, recordSnapshot)

		return fmt.Errorf("failed to save approval record: %w", err)
	}

	if fresh != nil {
		if err := e.persistence.Approvals().Save(ctx, fresh); err != nil {
			e.rollbackDecision(ctx, request, requestSnapshot, record, recordSnapshot)

			return fmt.Errorf("failed to save approval record: %w", err)
		}
	}

	e.appendHistory(ctx, &models.HistoryEvent{
		RequestID: request.ID,
		Action:    string(in.Decision),
		OldStatus: oldStatus,
		NewStatus: request.Status,
		Level:     level,
		Actor:     in.Actor,
		Reason:    in.Comment,
		Timestamp: now,
	})

	e.publish(ctx, request.ID, events.RequestDecided{
		BaseEvent: e.baseEvent(events.RequestDecidedEvent, request, now),
		Level:     level,
		Decision:  in.Decision,
		Actor:     in.Actor,
		Comment:   in.Comment,
	})

	if request.Status.IsTerminal() {
		e.publish(ctx, request.ID, events.RequestCompleted{
			BaseEvent: e.baseEvent(events.RequestCompletedEvent, request, now),
			Status:    request.Status,
			Duration:  now.Sub(request.SubmittedAt),
		})
	}

	e.notifyDecision(ctx, request, level, in, fresh, now)

	e.logger.InfoContext(ctx, "decision applied",
		"request_id", request.ID,
		"reference", request.ReferenceNumber,
		"level", level,
		"decision", in.Decision,
		"status", request.Status)

	return nil
}

// rollbackDecision restores the pre-decision request and sealed record after
// a partial write. Compensation is best effort; a failed compensating save is
// logged so an operator can reconcile by hand.
func (e *Engine) rollbackDecision(ctx context.Context, request *models.WorkflowRequest, requestSnapshot models.WorkflowRequest, record *models.ApprovalRecord, recordSnapshot models.ApprovalRecord) {
	*request = requestSnapshot
	*record = recordSnapshot

	if err := e.persistence.Requests().Save(ctx, request); err != nil {
		e.logger.ErrorContext(ctx, "failed to roll back request after partial decision write",
			"request_id", request.ID, "error", err)
	}

	if err := e.persistence.Approvals().Save(ctx, record); err != nil {
		e.logger.ErrorContext(ctx, "failed to roll back approval record after partial decision write",
			"request_id", request.ID, "record_id", record.ID, "error", err)
	}
}

func (e *Engine) notifyDecision(ctx context.Context, request *models.WorkflowRequest, level int, in DecisionInput, fresh *models.ApprovalRecord, now time.Time) {
	e.notify(ctx, models.NotificationIntent{
		Kind:      models.IntentDecision,
		RequestID: request.ID,
		Reference: request.ReferenceNumber,
		Level:     level,
		Recipient: request.Requester,
		Subject:   fmt.Sprintf("Request %s: %s at level %d", request.ReferenceNumber, in.Decision, level),
		Body:      in.Comment,
		CreatedAt: now,
	})

	// The next pending assignee also hears about it.
	if fresh != nil && fresh.Decision == models.DecisionPending {
		recipient := fresh.AssignedApprover
		if recipient == "" {
			recipient = fresh.RequiredRole
		}

		e.notify(ctx, models.NotificationIntent{
			Kind:      models.IntentSubmitted,
			RequestID: request.ID,
			Reference: request.ReferenceNumber,
			Level:     fresh.Level,
			Recipient: recipient,
			Subject:   fmt.Sprintf("Approval needed: %s (%s)", request.Title, request.ReferenceNumber),
			CreatedAt: now,
		})
	}
}

// Resubmit moves an on-hold request back into review at the same level with
// a fresh pending approval record.
func (e *Engine) Resubmit(ctx context.Context, requestID, actor string) (*models.WorkflowRequest, error) {
	lock := e.requestLock(requestID)
	lock.Lock()
	defer lock.Unlock()

	request, err := e.loadRequest(ctx, "resubmit", requestID, 0)
	if err != nil {
		return nil, err
	}

	if request.Status != models.RequestStatusOnHold {
		return nil, newTransitionError("resubmit", requestID, request.CurrentLevel,
			fmt.Errorf("%w: request is %s, not on hold", ErrInvalidTransition, request.Status))
	}

	if actor != request.Requester {
		return nil, newTransitionError("resubmit", requestID, request.CurrentLevel,
			fmt.Errorf("%w: only the requester may resubmit", ErrUnauthorized))
	}

	template, err := e.persistence.Templates().GetByID(ctx, request.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", request.TemplateID, err)
	}

	spec, ok := template.LevelSpec(request.CurrentLevel)
	if !ok {
		return nil, newTransitionError("resubmit", requestID, request.CurrentLevel,
			fmt.Errorf("%w: template has no level %d", ErrInvalidTransition, request.CurrentLevel))
	}

	now := e.clock.Now()

	record := &models.ApprovalRecord{
		ID:                 uuid.NewString(),
		RequestID:          request.ID,
		Level:              request.CurrentLevel,
		RequiredRole:       spec.RequiredRole,
		Decision:           models.DecisionPending,
		ExpectedResponseAt: now.Add(time.Duration(spec.SLAHours) * time.Hour),
	}

	oldStatus := request.Status
	request.Status = models.RequestStatusInReview

	// Request before record: a failed record save rolls the request back
	// to on_hold instead of leaving a stray pending record.
	if err := e.persistence.Requests().Save(ctx, request); err != nil {
		request.Status = oldStatus

		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	if err := e.persistence.Approvals().Save(ctx, record); err != nil {
		request.Status = oldStatus
		if rollbackErr := e.persistence.Requests().Save(ctx, request); rollbackErr != nil {
			e.logger.ErrorContext(ctx, "failed to roll back request after partial resubmit write",
				"request_id", request.ID, "error", rollbackErr)
		}

		return nil, fmt.Errorf("failed to save approval record: %w", err)
	}

	e.appendHistory(ctx, &models.HistoryEvent{
		RequestID: request.ID,
		Action:    "resubmitted",
		OldStatus: oldStatus,
		NewStatus: request.Status,
		Level:     request.CurrentLevel,
		Actor:     actor,
		Timestamp: now,
	})

	e.notify(ctx, models.NotificationIntent{
		Kind:      models.IntentSubmitted,
		RequestID: request.ID,
		Reference: request.ReferenceNumber,
		Level:     request.CurrentLevel,
		Recipient: spec.RequiredRole,
		Subject:   fmt.Sprintf("Approval needed again: %s (%s)", request.Title, request.ReferenceNumber),
		CreatedAt: now,
	})

	return request, nil
}

// Cancel moves an in-review or on-hold request to cancelled. Only the
// requester or an admin may cancel.
func (e *Engine) Cancel(ctx context.Context, requestID, actor, reason string) (*models.WorkflowRequest, error) {
	lock := e.requestLock(requestID)
	lock.Lock()
	defer lock.Unlock()

	request, err := e.loadRequest(ctx, "cancel", requestID, 0)
	if err != nil {
		return nil, err
	}

	if request.Status.IsTerminal() {
		return nil, newTransitionError("cancel", requestID, request.CurrentLevel,
			fmt.Errorf("%w: request is already %s", ErrInvalidTransition, request.Status))
	}

	if actor != request.Requester {
		roles, err := e.identity.RolesOf(ctx, actor)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve roles for %s: %w", actor, err)
		}

		if !slices.Contains(roles, AdminRole) {
			return nil, newTransitionError("cancel", requestID, request.CurrentLevel,
				fmt.Errorf("%w: only the requester or an admin may cancel", ErrUnauthorized))
		}
	}

	now := e.clock.Now()
	oldStatus := request.Status
	request.Status = models.RequestStatusCancelled
	request.CompletedAt = &now

	if err := e.persistence.Requests().Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	e.appendHistory(ctx, &models.HistoryEvent{
		RequestID: request.ID,
		Action:    "cancelled",
		OldStatus: oldStatus,
		NewStatus: request.Status,
		Level:     request.CurrentLevel,
		Actor:     actor,
		Reason:    reason,
		Timestamp: now,
	})

	e.publish(ctx, request.ID, events.RequestCompleted{
		BaseEvent: e.baseEvent(events.RequestCompletedEvent, request, now),
		Status:    request.Status,
		Duration:  now.Sub(request.SubmittedAt),
	})

	return request, nil
}

// Get returns a request together with its approval ledger and audit trail.
func (e *Engine) Get(ctx context.Context, requestID string) (*models.WorkflowRequest, []*models.ApprovalRecord, error) {
	request, err := e.loadRequest(ctx, "get", requestID, 0)
	if err != nil {
		return nil, nil, err
	}

	records, err := e.persistence.Approvals().ByRequest(ctx, requestID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load approval records: %w", err)
	}

	return request, records, nil
}

// resolveTemplate accepts either a template version ID or a template group
// ID and returns the published version submissions must pin.
func (e *Engine) resolveTemplate(ctx context.Context, templateID string) (*models.WorkflowTemplate, error) {
	template, err := e.persistence.Templates().GetByID(ctx, templateID)
	if err != nil {
		if !persistence.IsTemplateNotFound(err) {
			return nil, fmt.Errorf("failed to load template %s: %w", templateID, err)
		}

		template, err = e.persistence.Templates().PublishedByGroup(ctx, templateID)
		if err != nil {
			if persistence.IsPublishedTemplateNotFound(err) {
				return nil, fmt.Errorf("%w: template %s", ErrNotFound, templateID)
			}

			return nil, fmt.Errorf("failed to load template group %s: %w", templateID, err)
		}
	}

	if template.Status != models.TemplateStatusPublished {
		return nil, fmt.Errorf("%w: template %s is %s, only published templates accept submissions",
			ErrInvalidTransition, template.ID, template.Status)
	}

	return template, nil
}

func (e *Engine) loadRequest(ctx context.Context, op, requestID string, level int) (*models.WorkflowRequest, error) {
	request, err := e.persistence.Requests().GetByID(ctx, requestID)
	if err != nil {
		if persistence.IsRequestNotFound(err) {
			return nil, newTransitionError(op, requestID, level, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to load request %s: %w", requestID, err)
	}

	return request, nil
}

func (e *Engine) validateDecision(ctx context.Context, request *models.WorkflowRequest, level int, in DecisionInput) error {
	if request.Status.IsTerminal() {
		return newTransitionError("decide", request.ID, level,
			fmt.Errorf("%w: request is %s", ErrInvalidTransition, request.Status))
	}

	if request.Status != models.RequestStatusInReview {
		return newTransitionError("decide", request.ID, level,
			fmt.Errorf("%w: request is %s, decisions require in_review", ErrInvalidTransition, request.Status))
	}

	if !in.Decision.IsActionable() {
		return newTransitionError("decide", request.ID, level,
			fmt.Errorf("%w: unknown decision %q", ErrInvalidTransition, in.Decision))
	}

	if level != request.CurrentLevel {
		return newTransitionError("decide", request.ID, level,
			fmt.Errorf("%w: level %d is not active, current level is %d", ErrInvalidTransition, level, request.CurrentLevel))
	}

	if in.Decision == models.DecisionDelegate && in.DelegateTo == "" {
		return newTransitionError("decide", request.ID, level,
			fmt.Errorf("%w: delegate decision requires a delegate", ErrInvalidTransition))
	}

	return nil
}

// authorize passes when the actor is the assigned approver (covers
// delegates, whose fresh record names them) or holds the level's role.
func (e *Engine) authorize(ctx context.Context, record *models.ApprovalRecord, actor string) error {
	if record.AssignedApprover != "" && record.AssignedApprover == actor {
		return nil
	}

	roles, err := e.identity.RolesOf(ctx, actor)
	if err != nil {
		return fmt.Errorf("failed to resolve roles for %s: %w", actor, err)
	}

	if slices.Contains(roles, record.RequiredRole) {
		return nil
	}

	return fmt.Errorf("%w: %s holds neither role %q nor the assignment", ErrUnauthorized, actor, record.RequiredRole)
}

// alreadyApplied reports whether the decision is a retry of the one sealed
// on the level's most recent record. An open pending record means the level
// was reopened (resubmission, delegation), so nothing counts as a retry and
// the decision applies fresh.
func alreadyApplied(records []*models.ApprovalRecord, level int, in DecisionInput) bool {
	var last *models.ApprovalRecord

	for _, record := range records {
		if record.Level != level || record.Superseded {
			continue
		}

		if record.Decision == models.DecisionPending {
			return false
		}

		if last == nil || record.CreatedAt.After(last.CreatedAt) {
			last = record
		}
	}

	return last != nil && last.Decided() &&
		last.Decision == in.Decision &&
		last.DecidedBy == in.Actor &&
		last.Comment == in.Comment &&
		last.DelegatedTo == in.DelegateTo
}

func (e *Engine) appendHistory(ctx context.Context, event *models.HistoryEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if err := e.persistence.History().Append(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "failed to append history event",
			"request_id", event.RequestID,
			"action", event.Action,
			"error", err)
	}
}

// publish puts a lifecycle event on the bus, keyed by request so consumers
// see one request's events in order. Publish failures never fail the
// transition that produced the event.
func (e *Engine) publish(ctx context.Context, requestID string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, requestID, event); err != nil {
		e.logger.ErrorContext(ctx, "failed to publish lifecycle event",
			"request_id", requestID,
			"event_type", event.GetType(),
			"error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, request *models.WorkflowRequest, now time.Time) events.BaseEvent {
	base := events.BaseEvent{
		Type:      eventType,
		Timestamp: now,
		RequestID: request.ID,
		Reference: request.ReferenceNumber,
	}

	if e.bus != nil {
		base.ID = e.bus.GenerateID()
	}

	return base
}

// notify dispatches an intent without blocking the transition. Failures are
// logged; reminders and escalations self-heal on the next scheduler pass.
func (e *Engine) notify(ctx context.Context, intent models.NotificationIntent) {
	if e.notifier == nil {
		return
	}

	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.NotifyTimeout)
		defer cancel()

		if err := e.notifier.Send(sendCtx, intent); err != nil {
			e.logger.Error("failed to send notification",
				"intent_id", intent.ID,
				"kind", intent.Kind,
				"request_id", intent.RequestID,
				"error", err)
		}
	}()
}

func (e *Engine) requestLock(requestID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[requestID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[requestID] = lock
	}

	return lock
}
