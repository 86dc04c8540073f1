// Package errors provides the error taxonomy shared by the event store,
// the goal aggregate and the command handlers.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes. Every typed error below unwraps
// to one of these, so callers can branch with errors.Is.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("concurrency conflict")
	ErrUnavailable    = errors.New("store unavailable")
	ErrCorruptHistory = errors.New("corrupt history")
	ErrConfiguration  = errors.New("configuration error")
)

// ValidationError reports a command field that is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("validation failed: %s is required", e.Field)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a ValidationError for a required field.
func NewValidationError(field string) *ValidationError {
	return &ValidationError{Field: field}
}

// NotFoundError carries the id of a referenced aggregate that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ConflictError is an optimistic concurrency failure on append: the event
// expected the stream to hold Expected-1 events but it held Actual.
type ConflictError struct {
	StreamID string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on stream %s: expected version %d, stream is at %d",
		e.StreamID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StoreError wraps an I/O failure of the event store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes every StoreError match ErrUnavailable while keeping the cause reachable.
func (e *StoreError) Is(target error) bool { return target == ErrUnavailable }

// NewStoreError wraps err as a StoreError for operation op.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// CorruptHistoryError reports a stream that cannot be folded into an aggregate.
type CorruptHistoryError struct {
	StreamID string
	Version  int64
	Reason   string
}

func (e *CorruptHistoryError) Error() string {
	return fmt.Sprintf("corrupt history for %s at version %d: %s", e.StreamID, e.Version, e.Reason)
}

func (e *CorruptHistoryError) Unwrap() error { return ErrCorruptHistory }

// ConfigError is a wiring mistake: a collaborator required for an operation
// was not supplied at composition time.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// NewConfigError creates a ConfigError.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsRetryable returns true if the caller may reread and try the command again.
// Only optimistic concurrency conflicts qualify; store outages and corrupt
// histories are fatal for the current command.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
