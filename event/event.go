// Package event defines the lifecycle events emitted by the engine.
//
// Events are queued while a command executes and are dispatched to observers
// only once the command's changes have been committed.
package event

import (
	"time"

	"github.com/dogmatiq/flowstate/persistence"
)

// Kind is an enumeration of the kinds of lifecycle event.
type Kind string

const (
	// ProcessStarted indicates that a process instance was started.
	ProcessStarted Kind = "process-started"

	// ProcessCompleted indicates that a process instance reached its end.
	ProcessCompleted Kind = "process-completed"

	// ProcessCancelled indicates that a process instance was deleted before
	// it completed.
	ProcessCancelled Kind = "process-cancelled"

	// ProcessSuspended indicates that a process instance was suspended.
	ProcessSuspended Kind = "process-suspended"

	// ProcessActivated indicates that a suspended process instance was
	// activated.
	ProcessActivated Kind = "process-activated"

	// ActivityStarted indicates that an execution entered an activity.
	ActivityStarted Kind = "activity-started"

	// ActivityCompleted indicates that an execution left an activity normally.
	ActivityCompleted Kind = "activity-completed"

	// ActivityCancelled indicates that an execution was removed from an
	// activity before it completed.
	ActivityCancelled Kind = "activity-cancelled"

	// TaskCreated indicates that a user task was created.
	TaskCreated Kind = "task-created"

	// TaskCompleted indicates that a user task was completed.
	TaskCompleted Kind = "task-completed"

	// TimerFired indicates that a timer job was executed.
	TimerFired Kind = "timer-fired"

	// JobFailed indicates that a job failed and was rescheduled.
	JobFailed Kind = "job-failed"

	// JobRetriesExhausted indicates that a job failed and has no retries
	// remaining.
	JobRetriesExhausted Kind = "job-retries-exhausted"

	// EntityCreated indicates that an entity was inserted.
	EntityCreated Kind = "entity-created"

	// EntityUpdated indicates that an entity was updated.
	EntityUpdated Kind = "entity-updated"

	// EntityDeleted indicates that an entity was deleted.
	EntityDeleted Kind = "entity-deleted"
)

// Event is a lifecycle event.
type Event struct {
	Kind                Kind
	Time                time.Time
	ProcessInstanceID   string
	ProcessDefinitionID string
	ExecutionID         string
	ActivityID          string
	TaskID              string
	JobID               string

	// Entity is the entity that the event relates to. It is only populated
	// for the entity-created, entity-updated and entity-deleted kinds, in
	// which case it is a snapshot taken when the command flushed.
	Entity persistence.Entity

	// Message is an optional human-readable description, such as the cause
	// of a failure or the reason for a cancellation.
	Message string
}

// ForEntity returns the entity event describing op.
func ForEntity(op persistence.Operation, t time.Time) Event {
	e := op.Subject().CloneEntity()

	ev := Event{
		Time:   t,
		Entity: e,
	}

	switch op.(type) {
	case persistence.Insert:
		ev.Kind = EntityCreated
	case persistence.Update:
		ev.Kind = EntityUpdated
	case persistence.Delete:
		ev.Kind = EntityDeleted
	}

	switch e := e.(type) {
	case *persistence.Execution:
		ev.ProcessInstanceID = e.ProcessInstanceID
		ev.ProcessDefinitionID = e.ProcessDefinitionID
		ev.ExecutionID = e.ID
		ev.ActivityID = e.ActivityID
	case *persistence.Job:
		ev.ProcessInstanceID = e.ProcessInstanceID
		ev.ExecutionID = e.ExecutionID
		ev.JobID = e.ID
	case *persistence.Task:
		ev.ProcessInstanceID = e.ProcessInstanceID
		ev.ProcessDefinitionID = e.ProcessDefinitionID
		ev.ExecutionID = e.ExecutionID
		ev.ActivityID = e.ActivityID
		ev.TaskID = e.ID
	}

	return ev
}
