package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/dogmatiq/flowstate/interpreter"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
)

// DeadJobs returns the jobs that have exhausted their retries.
func (s *Scheduler) DeadJobs(ctx context.Context) ([]*persistence.Job, error) {
	var jobs []*persistence.Job

	err := s.Executor.Execute(ctx, pipeline.Command{
		Name: "find dead jobs",
		Body: func(ctx context.Context, sc *pipeline.Scope) error {
			var err error
			jobs, err = sc.Cache.FindJobs(ctx, persistence.JobQuery{Dead: true})
			return err
		},
	})

	return jobs, err
}

// SetRetries sets the number of retries remaining for a job.
//
// Setting the retries of a dead job to a positive number makes it acquirable
// again.
func (s *Scheduler) SetRetries(ctx context.Context, jobID string, n int) error {
	if n < 0 {
		return pipeline.Violationf("job %s: retries must not be negative", jobID)
	}

	return s.Executor.Execute(ctx, pipeline.Command{
		Name:      "set retries of job " + jobID,
		Retryable: true,
		Body: func(ctx context.Context, sc *pipeline.Scope) error {
			j, ok, err := sc.Cache.Job(ctx, jobID)
			if err != nil {
				return err
			}

			if !ok {
				return &pipeline.BusinessRuleViolation{
					Cause: fmt.Errorf("job %s: %w", jobID, interpreter.ErrJobNotFound),
				}
			}

			j.Retries = n
			j.Failures = 0
			j.LockOwner = ""
			j.LockExpirationTime = time.Time{}

			return sc.Cache.Update(j)
		},
	})
}
