// Package web provides HTTP request and response types for the approval API.
package web

import "github.com/eventiq/eventiq/pkg/models"

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateTemplateRequest represents the request body for creating a new
// workflow template. New templates always start as drafts.
type CreateTemplateRequest struct {
	Name                   string                     `json:"name"                     validate:"required,min=3"`
	Description            string                     `json:"description"`
	Category               string                     `json:"category"                 validate:"required"`
	TemplateGroupID        string                     `json:"template_group_id,omitempty"`
	SLAHours               int                        `json:"sla_hours"                validate:"required,min=1"`
	Levels                 []models.ApprovalLevelSpec `json:"levels"`
	AutoApproval           *models.AutoApprovalRule   `json:"auto_approval,omitempty"`
	ReminderOffsetMinutes  []int                      `json:"reminder_offset_minutes,omitempty"`
	EscalationAfterMinutes int                        `json:"escalation_after_minutes,omitempty"`
	PayloadSchema          map[string]any             `json:"payload_schema,omitempty"`
}

// UpdateTemplateRequest represents the request body for editing a draft
// template. All fields are optional to support partial updates.
type UpdateTemplateRequest struct {
	Name                   string                     `json:"name,omitempty"     validate:"omitempty,min=3"`
	Description            string                     `json:"description,omitempty"`
	Category               string                     `json:"category,omitempty"`
	SLAHours               int                        `json:"sla_hours,omitempty"`
	Levels                 []models.ApprovalLevelSpec `json:"levels,omitempty"`
	AutoApproval           *models.AutoApprovalRule   `json:"auto_approval,omitempty"`
	ReminderOffsetMinutes  []int                      `json:"reminder_offset_minutes,omitempty"`
	EscalationAfterMinutes int                        `json:"escalation_after_minutes,omitempty"`
	PayloadSchema          map[string]any             `json:"payload_schema,omitempty"`
}

// SubmitRequestRequest represents the request body for submitting a new
// approval request. Requester falls back to the X-Actor header when empty.
type SubmitRequestRequest struct {
	TemplateID  string         `json:"template_id" validate:"required"`
	Requester   string         `json:"requester"`
	Title       string         `json:"title"       validate:"required,min=3"`
	Description string         `json:"description"`
	Priority    string         `json:"priority"    validate:"omitempty,oneof=low medium high urgent"`
	Payload     map[string]any `json:"payload"`
}

// DecideRequestRequest represents the request body for deciding an active
// approval level. Actor falls back to the X-Actor header when empty.
type DecideRequestRequest struct {
	Level      int    `json:"level"                 validate:"required,min=1"`
	Decision   string `json:"decision"              validate:"required,oneof=approve reject request_changes escalate delegate"`
	Actor      string `json:"actor"`
	Comment    string `json:"comment,omitempty"`
	DelegateTo string `json:"delegate_to,omitempty"`
}

// CancelRequestRequest represents the request body for cancelling a request.
type CancelRequestRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// ResubmitRequestRequest represents the request body for resubmitting an
// on-hold request back into review.
type ResubmitRequestRequest struct {
	Actor string `json:"actor"`
}

// LogHoursRequest represents the request body for logging volunteer hours.
type LogHoursRequest struct {
	Hours float64 `json:"hours" validate:"required,gt=0"`
	Note  string  `json:"note,omitempty"`
}
