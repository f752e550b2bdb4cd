package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when a status does not belong to the module
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidModule is returned for an unknown workflow module
	ErrInvalidModule = errors.New("invalid module")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrNotFound is returned when the target record no longer exists
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when the record changed status between read and write
	ErrConflict = errors.New("record was modified concurrently")
)

// ValidationError reports a missing or malformed required field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// GuardError reports that the caller may not act on the record at its current stage
type GuardError struct {
	Stage  int
	Status Status
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("not allowed at stage %d (%s): %s", e.Stage, e.Status, e.Reason)
}

// Unwrap allows errors.Is(err, ErrGuardFailed)
func (e *GuardError) Unwrap() error {
	return ErrGuardFailed
}

// StoreError wraps a failure of the persistence layer
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// HistoryWriteError wraps a failure to append an audit entry
type HistoryWriteError struct {
	Err error
}

func (e *HistoryWriteError) Error() string {
	return fmt.Sprintf("history write failed: %v", e.Err)
}

func (e *HistoryWriteError) Unwrap() error {
	return e.Err
}
