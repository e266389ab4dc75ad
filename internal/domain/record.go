package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation tags attached to field-level errors. The error translation
// layer inspects these when classifying persistence failures.
const (
	// TagTaken marks a field whose value collides with an existing record.
	TagTaken = "taken"

	// TagRequired marks a field that must carry a value before save.
	TagRequired = "required"
)

// FieldError is a field-level validation error accumulated on a record
// during mapping or validation, before or during persistence.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// Record is the native storage representation of one SCIM resource
// instance. Values are keyed by column name. A record is owned by the
// orchestrator handling a single request; durable state belongs to the
// storage engine.
type Record struct {
	ID        uuid.UUID
	Values    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time

	fieldErrors []FieldError
}

// NewRecord creates an empty record with no identifier assigned.
func NewRecord() *Record {
	return &Record{
		Values: make(map[string]any),
	}
}

// Set stores a column value on the record.
func (r *Record) Set(column string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[column] = value
}

// Get returns the value stored for a column, or nil if unset.
func (r *Record) Get(column string) any {
	return r.Values[column]
}

// Clear removes a column value from the record.
func (r *Record) Clear(column string) {
	delete(r.Values, column)
}

// AddFieldError records a field-level validation error on the record.
func (r *Record) AddFieldError(field, tag, message string) {
	r.fieldErrors = append(r.fieldErrors, FieldError{
		Field:   field,
		Tag:     tag,
		Message: message,
	})
}

// FieldErrors returns the accumulated field-level validation errors.
func (r *Record) FieldErrors() []FieldError {
	return r.fieldErrors
}

// HasFieldErrors reports whether any field-level errors were recorded.
func (r *Record) HasFieldErrors() bool {
	return len(r.fieldErrors) > 0
}

// HasFieldErrorTag reports whether any field-level error carries the tag.
func (r *Record) HasFieldErrorTag(tag string) bool {
	for _, fe := range r.fieldErrors {
		if fe.Tag == tag {
			return true
		}
	}
	return false
}

// JoinedFieldErrors joins the full messages of all field-level errors
// with the given separator, in insertion order.
func (r *Record) JoinedFieldErrors(sep string) string {
	if len(r.fieldErrors) == 0 {
		return ""
	}
	msgs := make([]string, len(r.fieldErrors))
	for i, fe := range r.fieldErrors {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, sep)
}
