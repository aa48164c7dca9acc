package interpreter

import (
	"context"
	"fmt"

	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
)

// ExecuteJob executes a job and deletes it.
//
// The job is deleted within the same command that resumes its execution, so
// a job is consumed if and only if its continuation is applied.
func (in *Interpreter) ExecuteJob(
	ctx context.Context,
	sc *pipeline.Scope,
	jobID string,
) error {
	r := in.newRun(ctx, sc)

	j, ok, err := sc.Cache.Job(ctx, jobID)
	if err != nil {
		return err
	}

	if !ok {
		return &pipeline.BusinessRuleViolation{
			Cause: fmt.Errorf("job %s: %w", jobID, ErrJobNotFound),
		}
	}

	if j.IsSuspended {
		return pipeline.Violationf("job %s is suspended", j.ID)
	}

	x, err := r.execution(j.ExecutionID)
	if err != nil {
		return err
	}

	if err := sc.Cache.Delete(j); err != nil {
		return err
	}

	switch j.HandlerType {
	case HandlerAsyncContinuation:
		err = r.continueAsync(x, j)
	case HandlerTimerCatch:
		err = r.fireCatchTimer(x, j)
	case HandlerTimerBoundary:
		err = r.fireBoundaryTimer(x, j)
	case HandlerSuspend:
		err = r.scheduledSuspension(x, true)
	case HandlerActivate:
		err = r.scheduledSuspension(x, false)
	default:
		err = pipeline.Violationf("job %s has unrecognized handler type %q", j.ID, j.HandlerType)
	}

	if err != nil {
		return err
	}

	return r.drain()
}

// continueAsync runs the activity that x was parked before.
func (r *run) continueAsync(x *persistence.Execution, j *persistence.Job) error {
	if err := r.expect(x, j); err != nil {
		return err
	}

	x.IsActive = true
	if err := r.update(x); err != nil {
		return err
	}

	r.push(opProceed, x, nil)

	return nil
}

// fireCatchTimer resumes an execution waiting at a timer catch event.
func (r *run) fireCatchTimer(x *persistence.Execution, j *persistence.Job) error {
	if err := r.expect(x, j); err != nil {
		return err
	}

	r.emitTimer(x, j)

	x.IsActive = true
	if err := r.update(x); err != nil {
		return err
	}

	r.push(opLeave, x, nil)

	return nil
}

// fireBoundaryTimer interrupts the activity that a timer boundary event is
// attached to.
//
// Any competing wait state of the execution, such as a user task, is retired
// within the same command.
func (r *run) fireBoundaryTimer(x *persistence.Execution, j *persistence.Job) error {
	b, err := r.activityByID(x, j.HandlerConfiguration)
	if err != nil {
		return err
	}

	if !b.IsTimerBoundary() || x.ActivityID != b.AttachedTo.ID {
		return pipeline.Violationf(
			"job %s: execution %s is not within the activity that %s is attached to",
			j.ID,
			x.ID,
			b.ID,
		)
	}

	r.emitTimer(x, j)

	return r.interrupt(x, b)
}

func (r *run) scheduledSuspension(root *persistence.Execution, suspend bool) error {
	if root.IsSuspended == suspend {
		return nil
	}

	if err := r.setSuspended(root, suspend); err != nil {
		return err
	}

	if suspend {
		r.emit(event.ProcessSuspended, root)
	} else {
		r.emit(event.ProcessActivated, root)
	}

	return nil
}

// expect returns an error if x is not at the activity that j resumes.
func (r *run) expect(x *persistence.Execution, j *persistence.Job) error {
	if x.ActivityID != j.HandlerConfiguration {
		return pipeline.Violationf(
			"job %s: execution %s is at %s, not %s",
			j.ID,
			x.ID,
			x.ActivityID,
			j.HandlerConfiguration,
		)
	}

	return nil
}

func (r *run) emitTimer(x *persistence.Execution, j *persistence.Job) {
	r.sc.Emit(event.Event{
		Kind:                event.TimerFired,
		ProcessInstanceID:   x.ProcessInstanceID,
		ProcessDefinitionID: x.ProcessDefinitionID,
		ExecutionID:         x.ID,
		ActivityID:          j.HandlerConfiguration,
		JobID:               j.ID,
	})
}
