// Package apperrors defines the error taxonomy surfaced by the domain
// services. Callers match with errors.Is against the sentinel values.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidationFailed          = errors.New("validation failed")
	ErrDuplicateConnection       = errors.New("connection already exists")
	ErrUnauthenticated           = errors.New("no authenticated user")
	ErrStorage                   = errors.New("storage error")
	ErrReciprocalOperationFailed = errors.New("reciprocal operation failed")
	ErrNotFound                  = errors.New("not found")
)

// Validation rule names.
const (
	RuleMissingFrom      = "missing_from_person"
	RuleMissingTo        = "missing_to_person"
	RuleSelfConnection   = "self_connection"
	RuleUnknownType      = "unknown_relationship_type"
	RuleUnknownAttribute = "unknown_attribute"
	RulePersonNotFound   = "person_not_found"
	RuleAncestryCycle    = "ancestry_cycle"
	RuleAgeOrder         = "parent_younger_than_child"
	RuleMissingName      = "missing_name"
	RuleInvalidStatus    = "invalid_status"
	RuleSelfAlreadySet   = "self_already_set"
)

// Violation is one broken validation rule.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every rule an input violated.
type ValidationError struct {
	Violations []Violation
}

// NewValidationError returns nil when there are no violations.
func NewValidationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Is makes errors.Is(err, ErrValidationFailed) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// HasRule reports whether the given rule was violated.
func (e *ValidationError) HasRule(rule string) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// StorageError wraps an unexpected persistence failure.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err for the given operation.
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// ReciprocalError records a failed mirror-edge write after the primary
// write succeeded. It is logged, never returned to the user.
type ReciprocalError struct {
	Op           string
	ConnectionID string
	Err          error
}

func (e *ReciprocalError) Error() string {
	return fmt.Sprintf("reciprocal %s for connection %s: %v", e.Op, e.ConnectionID, e.Err)
}

func (e *ReciprocalError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrReciprocalOperationFailed) true.
func (e *ReciprocalError) Is(target error) bool {
	return target == ErrReciprocalOperationFailed
}
