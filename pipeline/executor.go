package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/linger/backoff"
	"go.opentelemetry.io/otel/trace"
)

// Position identifies a point in an executor's pipeline at which custom stages
// may be inserted.
type Position int

const (
	// Outermost places stages before the Retry() stage, such that they are
	// invoked once per command.
	Outermost Position = iota

	// BeforeUnitOfWork places stages within the Retry() stage but before the
	// UnitOfWork() stage, such that they are invoked once per attempt.
	BeforeUnitOfWork

	// BeforeTransaction places stages after the UnitOfWork() stage but before
	// the Transaction() stage. The scope's cache is available but the
	// transaction is not.
	BeforeTransaction

	// BeforeHandle places stages within the Transaction() stage, immediately
	// before the command body is executed.
	BeforeHandle

	positionCount
)

// Executor executes commands via a pipeline.
type Executor struct {
	// Store is the store used to persist each command's changes.
	Store persistence.Store

	// Dispatcher delivers events once each command has been committed. If it
	// is nil, events are discarded.
	Dispatcher *event.Dispatcher

	// Logger is the target for log messages about command execution.
	Logger logging.Logger

	// OptimisticLockRetries is the maximum number of times a retryable command
	// is re-attempted after an optimistic lock failure.
	OptimisticLockRetries uint

	// RetryBackoff computes the delay before each re-attempt. If it is nil the
	// command is re-attempted immediately.
	RetryBackoff backoff.Strategy

	// Clock returns the current time. If it is nil, time.Now() is used.
	Clock func() time.Time

	// Tracer, if non-nil, is used to record a span for each attempt.
	Tracer trace.Tracer

	once     sync.Once
	stages   [positionCount][]Stage
	pipeline Pipeline
}

// Use adds a custom stage at the given position.
//
// Stages at the same position are invoked in the order they are added. It must
// not be called after the first command is executed.
func (e *Executor) Use(p Position, s Stage) {
	if p < Outermost || p >= positionCount {
		panic("invalid pipeline position")
	}

	e.stages[p] = append(e.stages[p], s)
}

// Execute executes a command.
//
// The command's changes are committed atomically, or not at all. If the command
// fails, the returned error is an *OptimisticLockFailure,
// *BusinessRuleViolation, *InfrastructureFailure or *ContinuationFailure,
// unless the context is canceled while waiting to retry.
func (e *Executor) Execute(ctx context.Context, cmd Command) error {
	e.once.Do(e.build)

	sc := &Scope{
		Command: cmd,
		Logger:  e.Logger,
	}

	return e.pipeline.Accept(ctx, sc)
}

func (e *Executor) build() {
	now := e.Clock
	if now == nil {
		now = time.Now
	}

	var p Pipeline

	p = append(p, e.stages[Outermost]...)
	p = append(p, Retry(e.OptimisticLockRetries, e.RetryBackoff))
	p = append(p, Log())

	if e.Tracer != nil {
		p = append(p, Trace(e.Tracer))
	}

	p = append(p, e.stages[BeforeUnitOfWork]...)
	p = append(p, UnitOfWork(now, e.Dispatcher))
	p = append(p, e.stages[BeforeTransaction]...)
	p = append(p, Transaction(e.Store))
	p = append(p, e.stages[BeforeHandle]...)
	p = append(p, Terminate(Handle()))

	e.pipeline = p
}
