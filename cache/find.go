package cache

import (
	"context"

	"github.com/dogmatiq/flowstate/persistence"
)

// FindExecutions returns the executions that match q.
//
// The result reflects the changes made within this command: cached instances
// replace their persisted versions, deleted executions are excluded and
// inserted executions are included.
func (c *Cache) FindExecutions(ctx context.Context, q persistence.ExecutionQuery) ([]*persistence.Execution, error) {
	persisted, err := c.Reader.FindExecutions(ctx, q)
	if err != nil {
		return nil, err
	}

	for _, x := range persisted {
		c.track(x)
	}

	var result []*persistence.Execution
	c.each(persistence.ExecutionType, func(e persistence.Entity) {
		if x := e.(*persistence.Execution); q.Matches(x) {
			result = append(result, x)
		}
	})

	persistence.SortExecutions(result)

	return result, nil
}

// FindJobs returns the jobs that match q.
//
// The result reflects the changes made within this command.
func (c *Cache) FindJobs(ctx context.Context, q persistence.JobQuery) ([]*persistence.Job, error) {
	unlimited := q
	unlimited.Limit = 0

	persisted, err := c.Reader.FindJobs(ctx, unlimited)
	if err != nil {
		return nil, err
	}

	for _, j := range persisted {
		c.track(j)
	}

	var result []*persistence.Job
	c.each(persistence.JobType, func(e persistence.Entity) {
		if j := e.(*persistence.Job); q.Matches(j) {
			result = append(result, j)
		}
	})

	persistence.SortJobs(result)

	return q.LimitJobs(result), nil
}

// FindTasks returns the tasks that match q.
//
// The result reflects the changes made within this command.
func (c *Cache) FindTasks(ctx context.Context, q persistence.TaskQuery) ([]*persistence.Task, error) {
	persisted, err := c.Reader.FindTasks(ctx, q)
	if err != nil {
		return nil, err
	}

	for _, t := range persisted {
		c.track(t)
	}

	var result []*persistence.Task
	c.each(persistence.TaskType, func(e persistence.Entity) {
		if t := e.(*persistence.Task); q.Matches(t) {
			result = append(result, t)
		}
	})

	persistence.SortTasks(result)

	return result, nil
}

// each calls fn for each live cached entity of type t.
func (c *Cache) each(t persistence.Type, fn func(persistence.Entity)) {
	for r, en := range c.entries {
		if r.Type == t && !en.state.isGone() {
			fn(en.entity)
		}
	}
}
