package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreClosed is returned when performing any persistence operation on
	// a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrTransactionClosed is returned by all methods on Transaction once the
	// transaction is committed or rolled-back.
	ErrTransactionClosed = errors.New("transaction already committed or rolled-back")
)

// ConflictError is an error indicating one or more operations within a batch
// caused an optimistic concurrency conflict.
type ConflictError struct {
	// Cause is the operation that caused the conflict.
	Cause Operation
}

func (e ConflictError) Error() string {
	return fmt.Sprintf(
		"optimistic concurrency conflict in %T operation on %s",
		e.Cause,
		RefOf(e.Cause.Subject()),
	)
}

// IsConflict returns true if err is, or wraps, a ConflictError.
func IsConflict(err error) bool {
	var c ConflictError
	return errors.As(err, &c)
}
