package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/internal/mlog"
	"github.com/dogmatiq/flowstate/internal/tracing"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
	"github.com/dogmatiq/linger/backoff"
	"go.opentelemetry.io/otel/trace"
)

// execute executes a claimed job, recording the failure if it does not
// succeed.
func (s *Scheduler) execute(ctx context.Context, jobID string) {
	err := s.Executor.Execute(ctx, pipeline.Command{
		Name:      "execute job " + jobID,
		Retryable: true,
		Body: func(ctx context.Context, sc *pipeline.Scope) error {
			j, ok, err := sc.Cache.Job(ctx, jobID)
			if err != nil {
				return err
			}

			if !ok {
				// The job was consumed by a competing command, such as the
				// completion of the activity that a timer is attached to.
				return nil
			}

			if j.IsSuspended {
				// The process instance was suspended after the job was
				// claimed. The job is released and is acquirable again once
				// the instance is activated.
				j.LockOwner = ""
				j.LockExpirationTime = time.Time{}
				return sc.Cache.Update(j)
			}

			mlog.LogJobStart(sc.Logger, j)
			trace.SpanFromContext(ctx).SetAttributes(tracing.JobAttributes(j)...)

			return s.Handler.ExecuteJob(ctx, sc, jobID)
		},
	})

	if err == nil || ctx.Err() != nil {
		// The lock on a job that is interrupted by shutdown expires
		// naturally.
		return
	}

	if err := s.fail(ctx, jobID, err); err != nil && ctx.Err() == nil {
		s.logError(jobID, err)
	}
}

// fail records the failure of a job.
//
// The job's retries are decremented and it is rescheduled according to the
// backoff strategy. A job that fails with a business rule violation, such as
// a job whose execution no longer exists, can never succeed and has its
// retries exhausted immediately.
func (s *Scheduler) fail(ctx context.Context, jobID string, cause error) error {
	var (
		failed *persistence.Job
		delay  time.Duration
	)

	if err := s.Executor.Execute(ctx, pipeline.Command{
		Name:      "record failure of job " + jobID,
		Retryable: true,
		Body: func(ctx context.Context, sc *pipeline.Scope) error {
			failed = nil

			j, ok, err := sc.Cache.Job(ctx, jobID)
			if err != nil || !ok {
				return err
			}

			if pipeline.IsViolation(cause) || j.Retries <= 1 {
				j.Retries = 0
			} else {
				j.Retries--
			}

			j.LockOwner = ""
			j.LockExpirationTime = time.Time{}
			j.ExceptionMessage = cause.Error()
			j.ExceptionStack = chain(cause)

			ev := event.Event{
				Kind:              event.JobFailed,
				ProcessInstanceID: j.ProcessInstanceID,
				ExecutionID:       j.ExecutionID,
				JobID:             j.ID,
				Message:           cause.Error(),
			}

			if j.IsDead() {
				ev.Kind = event.JobRetriesExhausted
			} else {
				delay = s.backoff()(cause, j.Failures)
				j.DueDate = sc.Now.Add(delay)
			}

			j.Failures++

			sc.Emit(ev)
			failed = j.Clone()

			return sc.Cache.Update(j)
		},
	}); err != nil {
		return err
	}

	if failed == nil {
		return nil
	}

	if failed.IsDead() {
		mlog.LogJobDead(s.logger(), failed, cause)
	} else {
		mlog.LogJobFailure(s.logger(), failed, cause, delay)
	}

	return nil
}

func (s *Scheduler) backoff() backoff.Strategy {
	if s.BackoffStrategy == nil {
		return DefaultBackoffStrategy
	}

	return s.BackoffStrategy
}

func (s *Scheduler) logError(jobID string, err error) {
	logging.Log(
		s.logger(),
		"unable to record failure of job %s: %s",
		jobID,
		err,
	)
}

// chain renders the chain of errors wrapped by err, outermost first.
func chain(err error) string {
	var lines []string

	for err != nil {
		lines = append(lines, err.Error())

		if multi, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range multi.Unwrap() {
				lines = append(lines, "  "+e.Error())
			}
			break
		}

		err = errors.Unwrap(err)
	}

	return strings.Join(lines, "\n")
}
