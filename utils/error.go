package utils

import (
	"errors"
	"fmt"
)

var (
	ErrorRecordNotFound    = errors.New("record not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrDuplicateCategory   = errors.New("product category already exists")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrPersistence         = errors.New("persistence failure")
	ErrImmutableField      = errors.New("field is immutable")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrDuplicateId         = errors.New("id already exists")
)

// PersistenceError reports a write to the backing store that did not happen.
// The in-memory state is left as it was before the mutation.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
