package ports

import (
	"errors"
	"fmt"
)

// CodeUniqueViolation is the SQLSTATE for a unique constraint violation.
// Stores report duplicate rows with this code whatever the engine.
const CodeUniqueViolation = "23505"

// ErrNotFound is returned by stores when a row to update or delete is missing.
var ErrNotFound = errors.New("record not found")

// StoreError is a structured persistence failure.
type StoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsUniqueViolation reports whether err carries CodeUniqueViolation.
func IsUniqueViolation(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == CodeUniqueViolation
}
