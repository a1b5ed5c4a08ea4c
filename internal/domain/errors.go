package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every service layer.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrStorage         = errors.New("storage failure")
)

// StorageError wraps a repository I/O failure. errors.Is(err, ErrStorage)
// holds for every StorageError.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err unless it is nil or already a domain error.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ParseWarning describes a persisted line that could not be read. It is
// reported and skipped, never returned as a failure.
type ParseWarning struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Reason)
}
