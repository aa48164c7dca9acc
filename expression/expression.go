// Package expression evaluates the conditions, cardinalities and scripts
// embedded in process definitions.
package expression

import (
	"context"
	"errors"
	"fmt"
)

// Evaluator evaluates expressions against the variables visible to an
// execution.
//
// Implementations must be safe for concurrent use.
type Evaluator interface {
	// Condition evaluates a boolean expression.
	Condition(ctx context.Context, expr string, vars map[string]any) (bool, error)

	// Number evaluates a numeric expression.
	Number(ctx context.Context, expr string, vars map[string]any) (float64, error)

	// Script runs a script and returns the variables it assigns.
	Script(ctx context.Context, source string, vars map[string]any) (map[string]any, error)
}

// Error is returned when an expression can not be evaluated.
type Error struct {
	Expression string
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("unable to evaluate %q: %s", e.Expression, e.Cause)
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsError returns true if err is or wraps an expression evaluation error.
func IsError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
