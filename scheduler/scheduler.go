// Package scheduler acquires and executes due jobs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
	"github.com/dogmatiq/flowstate/semaphore"
	"github.com/dogmatiq/linger/backoff"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// DefaultPollInterval is the default interval at which the store is
	// queried for due jobs.
	DefaultPollInterval = 2 * time.Second

	// DefaultLockDuration is the default time for which a claimed job is
	// locked to the scheduler that claimed it.
	DefaultLockDuration = 5 * time.Minute

	// DefaultBackoffStrategy is the default strategy used to delay the next
	// attempt of a failed job.
	DefaultBackoffStrategy backoff.Strategy = backoff.Constant(10 * time.Second)
)

// Handler executes jobs.
type Handler interface {
	// ExecuteJob executes the job with the given ID within the command
	// described by sc, deleting the job if it succeeds.
	ExecuteJob(ctx context.Context, sc *pipeline.Scope, jobID string) error
}

// Scheduler acquires due jobs from the store and executes each one as a
// retryable command.
//
// It is also an event.Observer; when registered with the executor's
// dispatcher it polls immediately whenever a job becomes acquirable, rather
// than waiting for the next poll interval.
type Scheduler struct {
	// Executor executes the commands that acquire, execute and reschedule
	// jobs.
	Executor *pipeline.Executor

	// Handler executes each claimed job.
	Handler Handler

	// Semaphore limits the number of jobs that are executed concurrently.
	// Jobs are only claimed when a slot is available.
	Semaphore semaphore.Semaphore

	// LockOwner identifies this scheduler in the locks of the jobs it claims.
	// If it is empty, a random UUID is used.
	LockOwner string

	// LockDuration is the time for which a claimed job is locked. If the
	// scheduler crashes, the job may be claimed by another scheduler once the
	// lock expires. If it is zero, DefaultLockDuration is used.
	LockDuration time.Duration

	// PollInterval is the interval at which the store is queried for due jobs.
	// If it is zero, DefaultPollInterval is used.
	PollInterval time.Duration

	// BackoffStrategy computes the delay before the next attempt of a failed
	// job. If it is nil, DefaultBackoffStrategy is used.
	BackoffStrategy backoff.Strategy

	// Logger is the target for log messages from the scheduler.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	once  sync.Once
	owner string
	wake  chan struct{}
	group *errgroup.Group
}

// Run executes due jobs until ctx is canceled or an error occurs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.init()

	s.group, ctx = errgroup.WithContext(ctx)

	s.group.Go(func() error {
		return s.acquire(ctx)
	})

	<-ctx.Done()
	return s.group.Wait()
}

// Notify wakes the acquisition loop if ev indicates that a job has become
// acquirable.
func (s *Scheduler) Notify(_ context.Context, ev event.Event) error {
	if ev.Kind != event.EntityCreated && ev.Kind != event.EntityUpdated {
		return nil
	}

	if j, ok := ev.Entity.(*persistence.Job); ok && j.IsAcquirable(ev.Time) {
		s.init()

		select {
		case s.wake <- struct{}{}:
		default:
		}
	}

	return nil
}

func (s *Scheduler) init() {
	s.once.Do(func() {
		s.owner = s.LockOwner
		if s.owner == "" {
			s.owner = uuid.NewString()
		}

		s.wake = make(chan struct{}, 1)
	})
}

// acquire polls for due jobs and starts a goroutine to execute each one that
// it claims.
func (s *Scheduler) acquire(ctx context.Context) error {
	logging.Log(
		s.logger(),
		"acquiring jobs as %s",
		s.owner,
	)

	interval := s.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		case <-timer.C:
		}

		full, err := s.poll(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			logging.Log(
				s.logger(),
				"unable to acquire jobs: %s",
				err,
			)
		}

		if full {
			// There may be more due jobs than were returned by the query.
			timer.Reset(0)
		} else {
			timer.Reset(interval)
		}
	}
}

// poll claims and dispatches the jobs that are currently due.
//
// full is true if the number of due jobs found was limited by the number of
// worker slots.
func (s *Scheduler) poll(ctx context.Context) (full bool, _ error) {
	limit := s.Semaphore.Limit()

	jobs, err := s.due(ctx, limit)
	if err != nil {
		return false, err
	}

	for _, j := range jobs {
		if err := s.Semaphore.Acquire(ctx); err != nil {
			return false, err
		}

		ok, err := s.Claim(ctx, j.ID)
		if err != nil || !ok {
			s.Semaphore.Release()

			if err != nil {
				return false, err
			}

			continue
		}

		id := j.ID
		s.group.Go(func() error {
			defer s.Semaphore.Release()
			s.execute(ctx, id)
			return nil
		})
	}

	return limit > 0 && len(jobs) == limit, nil
}

// due returns up to limit jobs that are acquirable now.
func (s *Scheduler) due(ctx context.Context, limit int) ([]*persistence.Job, error) {
	var jobs []*persistence.Job

	err := s.Executor.Execute(ctx, pipeline.Command{
		Name: "find due jobs",
		Body: func(ctx context.Context, sc *pipeline.Scope) error {
			var err error
			jobs, err = sc.Cache.FindJobs(
				ctx,
				persistence.JobQuery{
					AcquirableAt: sc.Now,
					Limit:        limit,
				},
			)
			return err
		},
	})

	return jobs, err
}

func (s *Scheduler) logger() logging.Logger {
	if s.Logger == nil {
		return logging.DefaultLogger
	}

	return s.Logger
}
