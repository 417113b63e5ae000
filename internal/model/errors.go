package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a mutated or requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller does not own the entity it acts on.
	ErrForbidden = errors.New("permission denied")
	// ErrInvalidCredentials is returned for every failed authentication attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidReference is returned when a write points at a missing parent row.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrPersistence marks storage connectivity and transport faults.
	ErrPersistence = errors.New("persistence failure")
	// ErrPoolExhausted is returned when no pooled connection became free in time.
	ErrPoolExhausted = errors.New("connection pool exhausted")
)

// ValidationError names the offending field and why it was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateError reports a unique constraint conflict on Field.
type DuplicateError struct {
	Field string
}

func NewDuplicateError(field string) *DuplicateError {
	return &DuplicateError{Field: field}
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s is already taken", e.Field)
}

// BulkError is returned by bulk operations when every item failed.
type BulkError struct {
	Failed int
	Total  int
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk operation failed: %d out of %d operations failed", e.Failed, e.Total)
}

// PublicMessage converts err into the message an end user is allowed to see.
// Storage details never leave the core.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	var duplicateErr *DuplicateError
	if errors.As(err, &duplicateErr) {
		return duplicateErr.Error()
	}
	var bulkErr *BulkError
	if errors.As(err, &bulkErr) {
		return bulkErr.Error()
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return "no such task or user"
	case errors.Is(err, ErrForbidden):
		return "you do not have permission to perform this action"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, ErrInvalidReference):
		return "referenced entity does not exist"
	case errors.Is(err, ErrPoolExhausted):
		return "service is busy, try again"
	default:
		return "service unavailable"
	}
}

// IsRetryable reports whether the caller may retry the failed call with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrPoolExhausted)
}
