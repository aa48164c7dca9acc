package scheduler

import (
	"context"
	"time"

	"github.com/dogmatiq/flowstate/pipeline"
)

// Claim attempts to lock the job with the given ID to this scheduler.
//
// It returns false if the job is not acquirable, or if it was claimed by
// another scheduler first. The claim is a single conditional update of the
// job, so at most one of several competing schedulers succeeds.
func (s *Scheduler) Claim(ctx context.Context, jobID string) (bool, error) {
	s.init()

	claimed := false

	err := s.Executor.Execute(ctx, pipeline.Command{
		Name: "claim job " + jobID,
		Body: func(ctx context.Context, sc *pipeline.Scope) error {
			claimed = false

			j, ok, err := sc.Cache.Job(ctx, jobID)
			if err != nil || !ok {
				return err
			}

			if !j.IsAcquirable(sc.Now) {
				return nil
			}

			j.LockOwner = s.owner
			j.LockExpirationTime = sc.Now.Add(s.lockDuration())
			claimed = true

			return sc.Cache.Update(j)
		},
	})

	if pipeline.IsRetryable(err) {
		// Another scheduler modified the job after it was read.
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return claimed, nil
}

func (s *Scheduler) lockDuration() time.Duration {
	if s.LockDuration == 0 {
		return DefaultLockDuration
	}

	return s.LockDuration
}
