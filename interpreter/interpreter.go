// Package interpreter advances process instances through their process
// definitions.
//
// The interpreter operates exclusively on the entity cache of the command that
// invokes it. Each operation stages its changes in the cache and queues
// lifecycle events on the pipeline scope; nothing is persisted until the
// command's pipeline flushes the cache.
package interpreter

import (
	"context"
	"errors"
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/expression"
	"github.com/google/uuid"
)

// Handler types identify the behavior resumed by a job.
const (
	HandlerAsyncContinuation = "async-continuation"
	HandlerTimerCatch        = "timer-catch"
	HandlerTimerBoundary     = "timer-boundary"
	HandlerSuspend           = "suspend-process-instance"
	HandlerActivate          = "activate-process-instance"
)

// Variables maintained on multi-instance executions.
const (
	NrOfInstances          = "nrOfInstances"
	NrOfActiveInstances    = "nrOfActiveInstances"
	NrOfCompletedInstances = "nrOfCompletedInstances"
	LoopCounter            = "loopCounter"
)

// DefaultJobRetries is the number of attempts given to new jobs when
// Interpreter.JobRetries is zero.
const DefaultJobRetries = 3

var (
	// ErrExecutionNotFound is returned (wrapped in a business rule violation)
	// when an operation refers to an execution that does not exist.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrJobNotFound is returned (wrapped in a business rule violation) when
	// an operation refers to a job that does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrTaskNotFound is returned (wrapped in a business rule violation) when
	// an operation refers to a task that does not exist.
	ErrTaskNotFound = errors.New("task not found")
)

// Definitions is a source of compiled process definitions.
type Definitions interface {
	Get(id string) (*definition.Process, bool)
}

// Delegate is the Go implementation of an automatic task.
//
// Returning a *BPMNError throws a business error that may be caught by an
// error boundary event. Any other error aborts the command.
type Delegate func(context.Context, *DelegateScope) error

// BPMNError is a business error thrown by a delegate or an error end event.
type BPMNError struct {
	Code    string
	Message string
}

func (e *BPMNError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("business error %q", e.Code)
	}

	return fmt.Sprintf("business error %q: %s", e.Code, e.Message)
}

// DelegateScope is the view of an execution given to a delegate.
type DelegateScope struct {
	ProcessInstanceID   string
	ProcessDefinitionID string
	ExecutionID         string
	ActivityID          string
	BusinessKey         string

	// Variables are the variables visible to the execution.
	Variables map[string]any

	// Logger is the logger of the command that invoked the delegate.
	Logger logging.Logger

	changes map[string]any
}

// Set assigns a variable in the execution's nearest scope.
//
// The assignment takes effect when the delegate returns without error.
func (s *DelegateScope) Set(name string, v any) {
	if s.changes == nil {
		s.changes = map[string]any{}
	}

	s.changes[name] = v
	s.Variables[name] = v
}

// Interpreter advances the execution trees of process instances.
type Interpreter struct {
	// Definitions is the source of process definitions.
	Definitions Definitions

	// Evaluator evaluates conditions, cardinalities and scripts. If it is nil,
	// expressions are evaluated using expression.Lua.
	Evaluator expression.Evaluator

	// Delegates maps delegate names to their implementations.
	Delegates map[string]Delegate

	// JobRetries is the number of attempts given to new jobs. If it is zero,
	// DefaultJobRetries is used.
	JobRetries int

	// NewID returns a new unique identifier. If it is nil, uuid.NewString()
	// is used.
	NewID func() string
}

func (in *Interpreter) evaluator() expression.Evaluator {
	if in.Evaluator == nil {
		return expression.Lua{}
	}

	return in.Evaluator
}

func (in *Interpreter) jobRetries() int {
	if in.JobRetries == 0 {
		return DefaultJobRetries
	}

	return in.JobRetries
}

func (in *Interpreter) newID() string {
	if in.NewID == nil {
		return uuid.NewString()
	}

	return in.NewID()
}
