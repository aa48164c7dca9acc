package persistence

import (
	"sort"
	"time"
)

// ExecutionQuery selects executions. Empty fields are not used as criteria.
type ExecutionQuery struct {
	ParentID          string
	ProcessInstanceID string
}

// Matches returns true if x satisfies the query.
func (q ExecutionQuery) Matches(x *Execution) bool {
	if q.ParentID != "" && x.ParentID != q.ParentID {
		return false
	}

	if q.ProcessInstanceID != "" && x.ProcessInstanceID != q.ProcessInstanceID {
		return false
	}

	return true
}

// JobQuery selects jobs. Empty fields are not used as criteria.
type JobQuery struct {
	ExecutionID       string
	ProcessInstanceID string

	// AcquirableAt, if non-zero, selects only jobs that are acquirable at
	// that time.
	AcquirableAt time.Time

	// Dead, if true, selects only jobs that have exhausted their retries.
	Dead bool

	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
}

// Matches returns true if j satisfies the query.
func (q JobQuery) Matches(j *Job) bool {
	if q.ExecutionID != "" && j.ExecutionID != q.ExecutionID {
		return false
	}

	if q.ProcessInstanceID != "" && j.ProcessInstanceID != q.ProcessInstanceID {
		return false
	}

	if !q.AcquirableAt.IsZero() && !j.IsAcquirable(q.AcquirableAt) {
		return false
	}

	if q.Dead && !j.IsDead() {
		return false
	}

	return true
}

// TaskQuery selects tasks. Empty fields are not used as criteria.
type TaskQuery struct {
	ExecutionID       string
	ProcessInstanceID string
}

// Matches returns true if t satisfies the query.
func (q TaskQuery) Matches(t *Task) bool {
	if q.ExecutionID != "" && t.ExecutionID != q.ExecutionID {
		return false
	}

	if q.ProcessInstanceID != "" && t.ProcessInstanceID != q.ProcessInstanceID {
		return false
	}

	return true
}

// SortExecutions sorts executions by ID.
func SortExecutions(s []*Execution) {
	sort.Slice(s, func(i, j int) bool {
		return s[i].ID < s[j].ID
	})
}

// SortTasks sorts tasks by ID.
func SortTasks(s []*Task) {
	sort.Slice(s, func(i, j int) bool {
		return s[i].ID < s[j].ID
	})
}

// SortJobs sorts jobs by due date, then by ID.
func SortJobs(s []*Job) {
	sort.Slice(s, func(i, j int) bool {
		a, b := s[i], s[j]

		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}

		return a.ID < b.ID
	})
}

// LimitJobs truncates s to the query's limit.
func (q JobQuery) LimitJobs(s []*Job) []*Job {
	if q.Limit > 0 && len(s) > q.Limit {
		return s[:q.Limit]
	}

	return s
}
