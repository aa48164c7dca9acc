// Package definition describes the structure of executable processes.
package definition

import (
	"time"
)

// Kind is an enumeration of the kinds of activity.
type Kind string

const (
	// StartEvent is the entry point of a process or sub-process.
	StartEvent Kind = "startEvent"

	// EndEvent completes the execution that reaches it.
	EndEvent Kind = "endEvent"

	// TerminateEndEvent ends every execution in the enclosing scope.
	TerminateEndEvent Kind = "terminateEndEvent"

	// ErrorEndEvent throws a business error.
	ErrorEndEvent Kind = "errorEndEvent"

	// Task is an automatic activity that optionally invokes a Go delegate.
	Task Kind = "task"

	// ScriptTask is an automatic activity that runs a Lua script.
	ScriptTask Kind = "scriptTask"

	// UserTask waits for a task to be completed.
	UserTask Kind = "userTask"

	// ReceiveTask waits for a signal.
	ReceiveTask Kind = "receiveTask"

	// TimerCatchEvent waits for a timer to fire.
	TimerCatchEvent Kind = "timerCatchEvent"

	// ExclusiveGateway takes the first outgoing flow whose condition is
	// satisfied.
	ExclusiveGateway Kind = "exclusiveGateway"

	// ParallelGateway forks to all outgoing flows and joins all incoming
	// flows.
	ParallelGateway Kind = "parallelGateway"

	// SubProcess is an activity with its own scope and body.
	SubProcess Kind = "subProcess"

	// BoundaryEvent interrupts the activity it is attached to when a timer
	// fires or an error is thrown.
	BoundaryEvent Kind = "boundaryEvent"
)

// IsValid returns true if k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case StartEvent,
		EndEvent,
		TerminateEndEvent,
		ErrorEndEvent,
		Task,
		ScriptTask,
		UserTask,
		ReceiveTask,
		TimerCatchEvent,
		ExclusiveGateway,
		ParallelGateway,
		SubProcess,
		BoundaryEvent:
		return true
	default:
		return false
	}
}

// IsEnd returns true if k ends the execution that reaches it.
func (k Kind) IsEnd() bool {
	return k == EndEvent || k == TerminateEndEvent || k == ErrorEndEvent
}

// IsWaitState returns true if an execution waits at activities of this kind.
func (k Kind) IsWaitState() bool {
	return k == UserTask || k == ReceiveTask || k == TimerCatchEvent
}

// isActivity returns true if k is a unit of work, as opposed to an event or a
// gateway. Only activities may be multi-instance or have boundary events.
func (k Kind) isActivity() bool {
	switch k {
	case Task, ScriptTask, UserTask, ReceiveTask, SubProcess:
		return true
	default:
		return false
	}
}

// Process is a compiled process definition.
//
// It is immutable once compiled and may be shared between goroutines.
type Process struct {
	ID   string
	Name string

	// Initial is the start event of the top-level scope.
	Initial *Activity

	// Activities is the set of top-level activities.
	Activities []*Activity

	index map[string]*Activity
}

// Activity returns the activity with the given ID, at any depth.
func (p *Process) Activity(id string) (*Activity, bool) {
	a, ok := p.index[id]
	return a, ok
}

// Activity is a node in a process graph.
type Activity struct {
	ID   string
	Name string
	Kind Kind

	// Parent is the sub-process that contains the activity, or nil if the
	// activity is at the top level of the process.
	Parent *Activity

	Delegate  string
	Script    string
	Event     string
	Timer     *Timer
	ErrorCode string

	// AttachedTo is the activity a boundary event is attached to.
	AttachedTo *Activity

	// Boundaries are the boundary events attached to this activity.
	Boundaries []*Activity

	AsyncBefore   bool
	Default       *Transition
	MultiInstance *MultiInstance

	Incoming []*Transition
	Outgoing []*Transition

	// Initial is the start event of a sub-process.
	Initial *Activity

	// Children are the activities within a sub-process.
	Children []*Activity
}

// IsScope returns true if executions of this activity require their own
// variable scope.
func (a *Activity) IsScope() bool {
	return a.Kind == SubProcess
}

// IsTimerBoundary returns true if a is a boundary event triggered by a timer.
func (a *Activity) IsTimerBoundary() bool {
	return a.Kind == BoundaryEvent && a.Timer != nil
}

// IsErrorBoundary returns true if a is a boundary event triggered by an error.
func (a *Activity) IsErrorBoundary() bool {
	return a.Kind == BoundaryEvent && a.Timer == nil
}

// CatchesError returns true if a is an error boundary event that catches
// errors with the given code.
func (a *Activity) CatchesError(code string) bool {
	return a.IsErrorBoundary() && (a.ErrorCode == "" || a.ErrorCode == code)
}

// Transition is a sequence flow between two activities.
type Transition struct {
	ID          string
	Source      *Activity
	Destination *Activity

	// Condition is a boolean expression. An empty condition is always
	// satisfied.
	Condition string
}

// Timer is the schedule of a timer event.
type Timer struct {
	Duration time.Duration
	Date     time.Time
}

// DueDate returns the time at which a timer started at now fires.
func (t *Timer) DueDate(now time.Time) time.Time {
	if !t.Date.IsZero() {
		return t.Date
	}

	return now.Add(t.Duration)
}

// MultiInstance describes an activity that is executed multiple times.
type MultiInstance struct {
	Sequential bool

	// Cardinality is a numeric expression giving the number of instances.
	Cardinality string

	// Collection is the name of a list variable; one instance is created per
	// element.
	Collection string

	// ElementVariable is the name of the variable that holds the collection
	// element within each instance.
	ElementVariable string

	// CompletionCondition is a boolean expression evaluated as each instance
	// completes. When it is satisfied, remaining instances are cancelled.
	CompletionCondition string
}
