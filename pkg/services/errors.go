// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidDecision  = errors.New("invalid decision")

	// Template Validation Errors (400 Bad Request).
	ErrTemplateNameRequired = errors.New("template name is required")
	ErrTemplateNil          = errors.New("template cannot be nil")

	// Back-office Validation Errors (400 Bad Request).
	ErrUnknownCollection = errors.New("unknown collection")

	// Business Logic Conflicts (409 Conflict).
	ErrCannotModifyPublished = errors.New("cannot modify published template")
	ErrCannotModifyRetired   = errors.New("cannot modify retired template")
	ErrNotPublishable        = errors.New("only draft templates can be published")
	ErrAlreadyCheckedIn      = errors.New("participant already checked in")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrTemplateNameRequired) ||
		errors.Is(err, ErrTemplateNil) ||
		errors.Is(err, ErrUnknownCollection)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyPublished) ||
		errors.Is(err, ErrCannotModifyRetired) ||
		errors.Is(err, ErrNotPublishable) ||
		errors.Is(err, ErrAlreadyCheckedIn)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
