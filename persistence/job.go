package persistence

import "time"

// JobKind is the category of a job.
type JobKind string

const (
	// TimerJob is a job that fires a timer event when it falls due.
	TimerJob JobKind = "timer"

	// AsyncContinuationJob is a job that resumes an execution that was parked
	// at an asynchronous continuation point.
	AsyncContinuationJob JobKind = "async-continuation"

	// ScheduleJob is a job that suspends or activates a process instance at a
	// scheduled time.
	ScheduleJob JobKind = "schedule"
)

// Job is a unit of deferred work bound to an execution.
type Job struct {
	ID                   string
	Kind                 JobKind
	DueDate              time.Time
	ExecutionID          string
	ProcessInstanceID    string
	HandlerType          string
	HandlerConfiguration string

	// Retries is the number of attempts remaining. A job with no retries
	// remaining is dead and is never acquired.
	Retries int

	// Failures is the number of times the job has failed since it was
	// created or its retries were last reset.
	Failures uint

	LockOwner          string
	LockExpirationTime time.Time

	ExceptionMessage string
	ExceptionStack   string

	IsSuspended bool

	Revision uint64
}

// IsLocked returns true if the job is claimed by a worker at time t.
func (j *Job) IsLocked(t time.Time) bool {
	return j.LockOwner != "" && j.LockExpirationTime.After(t)
}

// IsDead returns true if the job has exhausted its retries.
func (j *Job) IsDead() bool {
	return j.Retries <= 0
}

// IsAcquirable returns true if the job may be claimed by a worker at time t.
func (j *Job) IsAcquirable(t time.Time) bool {
	return !j.IsDead() &&
		!j.IsSuspended &&
		!j.DueDate.After(t) &&
		!j.IsLocked(t)
}

// EntityType returns JobType.
func (j *Job) EntityType() Type { return JobType }

// EntityID returns j.ID.
func (j *Job) EntityID() string { return j.ID }

// EntityRevision returns j.Revision.
func (j *Job) EntityRevision() uint64 { return j.Revision }

// References returns the execution the job is bound to.
func (j *Job) References() []Ref {
	return []Ref{{ExecutionType, j.ExecutionID}}
}

// CloneEntity returns a copy of j.
func (j *Job) CloneEntity() Entity {
	return j.Clone()
}

// Clone returns a copy of j.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}
