package workflow

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidTransition is returned when no routing rule exists for a status/action pair
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when rules exist for the action but none of their guards pass
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrUnauthorized is returned when the actor's role is not in the request's next-action set
	ErrUnauthorized = errors.New("actor is not authorized to act on this request")

	// ErrAlreadyTerminal is returned when acting on a paid, rejected or liquidated request
	ErrAlreadyTerminal = errors.New("request is already in a terminal status")

	// ErrNotFound is returned for unknown request, advance or user ids
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed or missing input
	ErrValidation = errors.New("validation error")

	// ErrUnmappedStage is returned when a status has no timeline stage for the request type
	ErrUnmappedStage = errors.New("no timeline stage for status")
)

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level detail and matches ErrValidation
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field error
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
