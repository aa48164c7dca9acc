package cache

import (
	"context"

	"github.com/dogmatiq/flowstate/persistence"
)

// Execution returns the execution with the given ID.
func (c *Cache) Execution(ctx context.Context, id string) (*persistence.Execution, bool, error) {
	e, ok, err := c.Get(ctx, persistence.ExecutionType, id)
	if !ok || err != nil {
		return nil, false, err
	}

	return e.(*persistence.Execution), true, nil
}

// Job returns the job with the given ID.
func (c *Cache) Job(ctx context.Context, id string) (*persistence.Job, bool, error) {
	e, ok, err := c.Get(ctx, persistence.JobType, id)
	if !ok || err != nil {
		return nil, false, err
	}

	return e.(*persistence.Job), true, nil
}

// Task returns the task with the given ID.
func (c *Cache) Task(ctx context.Context, id string) (*persistence.Task, bool, error) {
	e, ok, err := c.Get(ctx, persistence.TaskType, id)
	if !ok || err != nil {
		return nil, false, err
	}

	return e.(*persistence.Task), true, nil
}
