package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence"
)

// ErrDocumentNotFound is returned when a back-office record is not found.
var ErrDocumentNotFound = persistence.ErrDocumentNotFound

// Back-office collections.
const (
	CollectionParticipants = "participants"
	CollectionVolunteers   = "volunteers"
	CollectionBooths       = "booths"
	CollectionVendors      = "vendors"
	CollectionExpenses     = "expenses"
	CollectionFeedback     = "feedback"
)

var collections = []string{
	CollectionParticipants,
	CollectionVolunteers,
	CollectionBooths,
	CollectionVendors,
	CollectionExpenses,
	CollectionFeedback,
}

var requiredFields = map[string][]string{
	CollectionParticipants: {"name"},
	CollectionVolunteers:   {"name"},
	CollectionBooths:       {"name"},
	CollectionVendors:      {"name"},
	CollectionExpenses:     {"description", "amount"},
	CollectionFeedback:     {"rating"},
}

// BackofficeConfig wires the expense surface to the approval engine.
type BackofficeConfig struct {
	// ExpenseTemplateID is the template (or template group) expense
	// approvals are submitted against.
	ExpenseTemplateID string

	// ExpenseThreshold is the amount at or above which an expense opens
	// an approval request. Zero submits every expense when a template is
	// configured.
	ExpenseThreshold float64
}

// Backoffice manages the event-operations records around the approval
// engine: participants, volunteers, booths, vendors, expenses, feedback.
type Backoffice struct {
	cfg         BackofficeConfig
	persistence persistence.Persistence
	engine      *engine.Engine
}

// NewBackoffice creates a new back-office service. The engine may be nil
// when the expense-to-workflow bridge is not wanted.
func NewBackoffice(cfg BackofficeConfig, persistence persistence.Persistence, eng *engine.Engine) *Backoffice {
	return &Backoffice{
		cfg:         cfg,
		persistence: persistence,
		engine:      eng,
	}
}

func validCollection(collection string) error {
	if !slices.Contains(collections, collection) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}

	return nil
}

// Create stores a new record. Expenses at or above the configured threshold
// also open an approval workflow request.
func (b *Backoffice) Create(ctx context.Context, collection string, data map[string]any) (*persistence.Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	for _, field := range requiredFields[collection] {
		if _, ok := data[field]; !ok {
			return nil, NewValidationError("create_"+collection, "missing_field",
				fmt.Sprintf("field %q is required", field), ErrInvalidRequest)
		}
	}

	doc := &persistence.Document{
		Collection: collection,
		Data:       data,
	}

	if collection == CollectionExpenses {
		if err := b.maybeSubmitExpenseWorkflow(ctx, doc); err != nil {
			return nil, err
		}
	}

	if err := b.persistence.Documents().Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save %s record: %w", collection, err)
	}

	return doc, nil
}

// maybeSubmitExpenseWorkflow opens an approval request for expenses at or
// above the threshold and links the request back onto the record.
func (b *Backoffice) maybeSubmitExpenseWorkflow(ctx context.Context, doc *persistence.Document) error {
	if b.engine == nil || b.cfg.ExpenseTemplateID == "" {
		return nil
	}

	amount, ok := numericValue(doc.Data["amount"])
	if !ok || amount < b.cfg.ExpenseThreshold {
		return nil
	}

	title, _ := doc.Data["description"].(string)
	if title == "" {
		title = "Expense approval"
	}

	requester, _ := doc.Data["submitted_by"].(string)
	if requester == "" {
		requester = "backoffice"
	}

	request, err := b.engine.Submit(ctx, engine.SubmitInput{
		TemplateID: b.cfg.ExpenseTemplateID,
		Requester:  requester,
		Title:      title,
		Priority:   models.PriorityMedium,
		Payload:    doc.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to open expense approval: %w", err)
	}

	doc.Data["workflow_request_id"] = request.ID
	doc.Data["workflow_reference"] = request.ReferenceNumber
	doc.Data["approval_status"] = string(request.Status)

	return nil
}

// Get returns one record.
func (b *Backoffice) Get(ctx context.Context, collection, id string) (*persistence.Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	return b.persistence.Documents().Get(ctx, collection, id)
}

// List returns all records in a collection.
func (b *Backoffice) List(ctx context.Context, collection string) ([]*persistence.Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	return b.persistence.Documents().List(ctx, collection)
}

// Update merges the given fields into an existing record.
func (b *Backoffice) Update(ctx context.Context, collection, id string, data map[string]any) (*persistence.Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	doc, err := b.persistence.Documents().Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	for key, value := range data {
		doc.Data[key] = value
	}

	if err := b.persistence.Documents().Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save %s record: %w", collection, err)
	}

	return doc, nil
}

// Delete removes a record.
func (b *Backoffice) Delete(ctx context.Context, collection, id string) error {
	if err := validCollection(collection); err != nil {
		return err
	}

	return b.persistence.Documents().Delete(ctx, collection, id)
}

// CheckIn marks a participant as arrived. Checking in twice is a conflict.
func (b *Backoffice) CheckIn(ctx context.Context, participantID string) (*persistence.Document, error) {
	doc, err := b.persistence.Documents().Get(ctx, CollectionParticipants, participantID)
	if err != nil {
		return nil, err
	}

	if checked, _ := doc.Data["checked_in"].(bool); checked {
		return nil, ErrAlreadyCheckedIn
	}

	doc.Data["checked_in"] = true
	doc.Data["checked_in_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := b.persistence.Documents().Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save participant: %w", err)
	}

	return doc, nil
}

// LogHours appends a volunteer shift entry and keeps the running total.
func (b *Backoffice) LogHours(ctx context.Context, volunteerID string, hours float64, note string) (*persistence.Document, error) {
	if hours <= 0 {
		return nil, NewValidationError("log_hours", "invalid_hours",
			"hours must be positive", ErrInvalidRequest)
	}

	doc, err := b.persistence.Documents().Get(ctx, CollectionVolunteers, volunteerID)
	if err != nil {
		return nil, err
	}

	entries, _ := doc.Data["hours_log"].([]any)
	entries = append(entries, map[string]any{
		"hours":     hours,
		"note":      note,
		"logged_at": time.Now().UTC().Format(time.RFC3339),
	})
	doc.Data["hours_log"] = entries

	total, _ := numericValue(doc.Data["total_hours"])
	doc.Data["total_hours"] = total + hours

	if err := b.persistence.Documents().Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save volunteer: %w", err)
	}

	return doc, nil
}

func numericValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
