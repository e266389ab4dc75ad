package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates that persisting a resource violated a
	// uniqueness constraint.
	ErrConflict = errors.New("uniqueness conflict")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidFilter indicates that a SCIM filter expression failed to
	// parse or referenced an unmapped attribute.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrNotSaved indicates that a persistence action completed without
	// error but did not store the record.
	ErrNotSaved = errors.New("not saved")

	// ErrInternalError indicates an internal server error.
	ErrInternalError = errors.New("internal error")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Tag     string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// UniquenessError provides details about a uniqueness-constraint violation.
type UniquenessError struct {
	Resource string
	Column   string
	Detail   string
}

// Error implements the error interface.
func (e *UniquenessError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s violates a uniqueness constraint on %s", e.Resource, e.Column)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *UniquenessError) Unwrap() error {
	return ErrConflict
}

// InvalidFilterError describes a filter expression that could not be
// parsed or compiled against a resource type's attribute map.
type InvalidFilterError struct {
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *InvalidFilterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid filter: %s: %v", e.Detail, e.Cause)
	}
	return fmt.Sprintf("invalid filter: %s", e.Detail)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidFilterError) Unwrap() error {
	return ErrInvalidFilter
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewUniquenessError creates a new UniquenessError.
func NewUniquenessError(resource, column, detail string) *UniquenessError {
	return &UniquenessError{
		Resource: resource,
		Column:   column,
		Detail:   detail,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, tag, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Tag:     tag,
		Message: message,
	}
}

// NewInvalidFilterError creates a new InvalidFilterError.
func NewInvalidFilterError(detail string, cause error) *InvalidFilterError {
	return &InvalidFilterError{
		Detail: detail,
		Cause:  cause,
	}
}
