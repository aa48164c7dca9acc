package pipeline

import (
	"errors"
	"fmt"

	"github.com/dogmatiq/flowstate/persistence"
)

// OptimisticLockFailure indicates that a command's changes conflicted with
// those of a concurrent command.
//
// It is the only transient failure; retryable commands are re-executed when it
// occurs.
type OptimisticLockFailure struct {
	Cause error
}

func (e *OptimisticLockFailure) Error() string {
	return "optimistic lock failure: " + e.Cause.Error()
}

// Unwrap returns the cause of the failure.
func (e *OptimisticLockFailure) Unwrap() error {
	return e.Cause
}

// BusinessRuleViolation indicates that a command could not be executed because
// it is invalid given the current state, such as when it refers to an entity
// that does not exist.
//
// It is permanent and is never retried.
type BusinessRuleViolation struct {
	Cause error
}

// Violationf returns a new BusinessRuleViolation with a formatted cause.
func Violationf(f string, v ...any) error {
	return &BusinessRuleViolation{
		Cause: fmt.Errorf(f, v...),
	}
}

func (e *BusinessRuleViolation) Error() string {
	return "business rule violation: " + e.Cause.Error()
}

// Unwrap returns the cause of the failure.
func (e *BusinessRuleViolation) Unwrap() error {
	return e.Cause
}

// InfrastructureFailure indicates that the store could not be used.
type InfrastructureFailure struct {
	Cause error
}

func (e *InfrastructureFailure) Error() string {
	return "infrastructure failure: " + e.Cause.Error()
}

// Unwrap returns the cause of the failure.
func (e *InfrastructureFailure) Unwrap() error {
	return e.Cause
}

// ContinuationFailure indicates that a command's body failed unexpectedly,
// typically because an activity behavior returned an error.
type ContinuationFailure struct {
	Cause error
}

func (e *ContinuationFailure) Error() string {
	return "continuation failure: " + e.Cause.Error()
}

// Unwrap returns the cause of the failure.
func (e *ContinuationFailure) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if err indicates a transient failure.
func IsRetryable(err error) bool {
	var f *OptimisticLockFailure
	return errors.As(err, &f)
}

// IsViolation returns true if err is or wraps a BusinessRuleViolation.
func IsViolation(err error) bool {
	var v *BusinessRuleViolation
	return errors.As(err, &v)
}

// classify wraps err in the appropriate failure type, unless it is already
// classified.
//
// Conflicts are optimistic lock failures, any other unclassified error is
// wrapped using def.
func classify(err error, def func(error) error) error {
	if err == nil || isClassified(err) {
		return err
	}

	if persistence.IsConflict(err) {
		return &OptimisticLockFailure{err}
	}

	return def(err)
}

func isClassified(err error) bool {
	var (
		o *OptimisticLockFailure
		b *BusinessRuleViolation
		i *InfrastructureFailure
		c *ContinuationFailure
	)

	return errors.As(err, &o) ||
		errors.As(err, &b) ||
		errors.As(err, &i) ||
		errors.As(err, &c)
}

func infrastructure(err error) error {
	return &InfrastructureFailure{err}
}

func continuation(err error) error {
	return &ContinuationFailure{err}
}
