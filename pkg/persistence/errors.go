// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrTemplateNotFound indicates a template was not found by the given identifier.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrPublishedTemplateNotFound indicates no published template exists for the given group.
	ErrPublishedTemplateNotFound = errors.New("published template not found")

	// ErrRequestNotFound indicates a workflow request was not found by the given identifier.
	ErrRequestNotFound = errors.New("workflow request not found")

	// ErrApprovalNotFound indicates no matching approval record exists.
	ErrApprovalNotFound = errors.New("approval record not found")

	// ErrDocumentNotFound indicates a back-office document was not found.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidSortField indicates an unsupported sort field was requested.
	ErrInvalidSortField = errors.New("invalid sort field")
)

// RequestError wraps request-related errors with additional context.
type RequestError struct {
	Op        string // Operation being performed (e.g., "GetByID", "Save")
	RequestID string // Request ID if applicable
	Err       error  // Underlying error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s operation failed for request %s: %v", e.Op, e.RequestID, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRequestError creates a new request error with context.
func NewRequestError(op, requestID string, err error) *RequestError {
	return &RequestError{
		Op:        op,
		RequestID: requestID,
		Err:       err,
	}
}

// TemplateError wraps template-related errors with additional context.
type TemplateError struct {
	Op         string
	TemplateID string
	GroupID    string
	Err        error
}

func (e *TemplateError) Error() string {
	target := e.TemplateID
	if e.GroupID != "" {
		target = fmt.Sprintf("group %s", e.GroupID)
	}

	return fmt.Sprintf("%s operation failed for template %s: %v", e.Op, target, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

func (e *TemplateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsTemplateNotFound checks if an error indicates a template was not found.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsPublishedTemplateNotFound checks if an error indicates no published template exists.
func IsPublishedTemplateNotFound(err error) bool {
	return errors.Is(err, ErrPublishedTemplateNotFound)
}

// IsRequestNotFound checks if an error indicates a request was not found.
func IsRequestNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound)
}

// IsApprovalNotFound checks if an error indicates an approval record was not found.
func IsApprovalNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound)
}

// IsDocumentNotFound checks if an error indicates a document was not found.
func IsDocumentNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}

// IsInvalidSortField checks if an error indicates an unsupported sort field.
func IsInvalidSortField(err error) bool {
	return errors.Is(err, ErrInvalidSortField)
}
