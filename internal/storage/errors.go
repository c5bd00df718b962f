package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrStoreWrite marks persistence failures that must abort a run
	ErrStoreWrite = errors.New("store write failed")
)

// WriteError reports a failed durable write. It matches ErrStoreWrite.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store write failed: %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStoreWrite
func (e *WriteError) Is(target error) bool {
	return target == ErrStoreWrite
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Op: op, Err: err}
}
