package persistence

import "time"

// Task is a user task waiting to be completed.
type Task struct {
	ID                  string
	Name                string
	ExecutionID         string
	ProcessInstanceID   string
	ProcessDefinitionID string
	ActivityID          string
	CreatedAt           time.Time

	Revision uint64
}

// EntityType returns TaskType.
func (t *Task) EntityType() Type { return TaskType }

// EntityID returns t.ID.
func (t *Task) EntityID() string { return t.ID }

// EntityRevision returns t.Revision.
func (t *Task) EntityRevision() uint64 { return t.Revision }

// References returns the execution waiting on the task.
func (t *Task) References() []Ref {
	return []Ref{{ExecutionType, t.ExecutionID}}
}

// CloneEntity returns a copy of t.
func (t *Task) CloneEntity() Entity {
	return t.Clone()
}

// Clone returns a copy of t.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
