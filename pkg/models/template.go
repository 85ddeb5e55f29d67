// Package models defines the core domain models for the approval workflow engine.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// TemplateStatus represents the lifecycle state of a workflow template.
type TemplateStatus string

const (
	TemplateStatusDraft     TemplateStatus = "draft"     // Editable, not usable for submissions
	TemplateStatusPublished TemplateStatus = "published" // Current active version for its group
	TemplateStatusRetired   TemplateStatus = "retired"   // Historical, kept for in-flight requests
)

// ApprovalLevelSpec configures one stage of a template's approval chain.
type ApprovalLevelSpec struct {
	// Level is the 1-indexed position in the chain.
	Level int `json:"level"          validate:"required,min=1"`

	// RequiredRole must be held by whoever decides this level.
	RequiredRole string `json:"required_role"  validate:"required"`

	// SLAHours is the response budget for this level, counted from the
	// moment the level becomes active.
	SLAHours int `json:"sla_hours"      validate:"required,min=1"`

	// EscalationContact, when set, receives the assignment if the level
	// blows past its escalation window.
	EscalationContact string `json:"escalation_contact,omitempty"`
}

// WorkflowTemplate is the reusable configuration an approval chain is built
// from. Published templates are immutable; editing one creates a new version
// in the same template group so in-flight requests keep the version they
// were submitted against.
type WorkflowTemplate struct {
	ID              string         `json:"id"`
	TemplateGroupID string         `json:"template_group_id"` // Stable ID linking all versions
	Name            string         `json:"name"              validate:"required,min=3"`
	Description     string         `json:"description"`
	Category        string         `json:"category"          validate:"required"`
	Status          TemplateStatus `json:"status"`

	// SLAHours is the overall completion budget for a request.
	SLAHours int `json:"sla_hours" validate:"required,min=1"`

	Levels       []ApprovalLevelSpec `json:"levels"`
	AutoApproval *AutoApprovalRule   `json:"auto_approval,omitempty"`

	// ReminderOffsetMinutes lists how long before a level's deadline each
	// reminder fires, e.g. [1440, 240] for 24h and 4h out.
	ReminderOffsetMinutes []int `json:"reminder_offset_minutes,omitempty"`

	// EscalationAfterMinutes is how far past a level's deadline escalation
	// triggers. Zero disables escalation.
	EscalationAfterMinutes int `json:"escalation_after_minutes,omitempty"`

	// PayloadSchema, when set, is a JSON Schema applied to submitted
	// payloads before a request is accepted.
	PayloadSchema map[string]any `json:"payload_schema,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

var (
	// ErrTemplateNoLevels is returned when a template has neither approval
	// levels nor an auto-approval rule.
	ErrTemplateNoLevels = errors.New("template needs at least one approval level or an auto-approval rule")

	// ErrTemplateLevelOrder is returned when levels are not contiguous and 1-indexed.
	ErrTemplateLevelOrder = errors.New("template levels must be contiguous starting at 1")
)

// Validate checks the structural invariants of the template: contiguous
// 1-indexed levels, a decidable chain, a compilable auto-approval rule and a
// compilable payload schema.
func (t *WorkflowTemplate) Validate() error {
	if len(t.Levels) == 0 && t.AutoApproval == nil {
		return ErrTemplateNoLevels
	}

	for i, level := range t.Levels {
		if level.Level != i+1 {
			return fmt.Errorf("%w: level at position %d has index %d", ErrTemplateLevelOrder, i, level.Level)
		}

		if level.RequiredRole == "" {
			return fmt.Errorf("level %d: required role is empty", level.Level)
		}

		if level.SLAHours <= 0 {
			return fmt.Errorf("level %d: sla_hours must be positive", level.Level)
		}
	}

	if t.AutoApproval != nil {
		if err := t.AutoApproval.Compile(); err != nil {
			return fmt.Errorf("auto-approval rule: %w", err)
		}
	}

	if t.PayloadSchema != nil {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.PayloadSchema)); err != nil {
			return fmt.Errorf("payload schema: %w", err)
		}
	}

	return nil
}

// ValidatePayload applies the template's JSON Schema to a submission payload.
// Templates without a schema accept any payload.
func (t *WorkflowTemplate) ValidatePayload(payload map[string]any) error {
	if t.PayloadSchema == nil {
		return nil
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.PayloadSchema))
	if err != nil {
		return fmt.Errorf("payload schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("payload validation: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("payload does not match template schema: %s", errs[0].String())
		}

		return errors.New("payload does not match template schema")
	}

	return nil
}

// LevelSpec returns the spec for a 1-indexed level.
func (t *WorkflowTemplate) LevelSpec(level int) (ApprovalLevelSpec, bool) {
	if level < 1 || level > len(t.Levels) {
		return ApprovalLevelSpec{}, false
	}

	return t.Levels[level-1], true
}

// LastLevel returns the highest level index, 0 for auto-approval-only templates.
func (t *WorkflowTemplate) LastLevel() int {
	return len(t.Levels)
}

// EscalationAfter returns the escalation window as a duration, 0 when disabled.
func (t *WorkflowTemplate) EscalationAfter() time.Duration {
	return time.Duration(t.EscalationAfterMinutes) * time.Minute
}

// ReminderOffsets returns the reminder offsets as durations before a level deadline.
func (t *WorkflowTemplate) ReminderOffsets() []time.Duration {
	offsets := make([]time.Duration, 0, len(t.ReminderOffsetMinutes))
	for _, m := range t.ReminderOffsetMinutes {
		offsets = append(offsets, time.Duration(m)*time.Minute)
	}

	return offsets
}
