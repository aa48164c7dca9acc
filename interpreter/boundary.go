package interpreter

import (
	"time"

	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
)

// newJob creates a job bound to x.
func (r *run) newJob(
	x *persistence.Execution,
	k persistence.JobKind,
	handler, config string,
	due time.Time,
) (*persistence.Job, error) {
	j := &persistence.Job{
		ID:                   r.newID(),
		Kind:                 k,
		DueDate:              due,
		ExecutionID:          x.ID,
		ProcessInstanceID:    x.ProcessInstanceID,
		HandlerType:          handler,
		HandlerConfiguration: config,
		Retries:              r.jobRetries(),
		IsSuspended:          x.IsSuspended && k != persistence.ScheduleJob,
	}

	return j, r.sc.Cache.Insert(j)
}

// startBoundaryTimers creates a timer job for each timer boundary event
// attached to a.
func (r *run) startBoundaryTimers(x *persistence.Execution, a *definition.Activity) error {
	for _, b := range a.Boundaries {
		if !b.IsTimerBoundary() {
			continue
		}

		if _, err := r.newJob(
			x,
			persistence.TimerJob,
			HandlerTimerBoundary,
			b.ID,
			b.Timer.DueDate(r.sc.Now),
		); err != nil {
			return err
		}
	}

	return nil
}

// cancelBoundaryTimers deletes the timer jobs of the boundary events attached
// to a, which x is leaving.
func (r *run) cancelBoundaryTimers(x *persistence.Execution, a *definition.Activity) error {
	hasTimer := false
	for _, b := range a.Boundaries {
		if b.IsTimerBoundary() {
			hasTimer = true
			break
		}
	}

	if !hasTimer {
		return nil
	}

	jobs, err := r.sc.Cache.FindJobs(
		r.ctx,
		persistence.JobQuery{ExecutionID: x.ID},
	)
	if err != nil {
		return err
	}

	for _, j := range jobs {
		if j.HandlerType == HandlerTimerBoundary {
			if err := r.sc.Cache.Delete(j); err != nil {
				return err
			}
		}
	}

	return nil
}

// propagate routes an error thrown at x to the nearest error boundary event
// that catches it, searching the enclosing sub-processes outwards.
//
// be is nil if the error is an expression error, which is caught by any error
// boundary event. It returns false if no boundary event catches the error.
func (r *run) propagate(x *persistence.Execution, be *BPMNError) (bool, error) {
	a, err := r.activity(x)
	if err != nil {
		return false, err
	}

	for ; a != nil; a = a.Parent {
		for _, b := range a.Boundaries {
			if !catches(b, be) {
				continue
			}

			owner, err := r.owner(x, a)
			if err != nil {
				return false, err
			}

			if owner == nil {
				continue
			}

			return true, r.interrupt(owner, b)
		}
	}

	return false, nil
}

func catches(b *definition.Activity, be *BPMNError) bool {
	if be == nil {
		return b.IsErrorBoundary()
	}

	return b.CatchesError(be.Code)
}

// owner returns the outermost execution on the path from x to the root that
// is within activity a. This is the execution that boundary events attached
// to a interrupt.
func (r *run) owner(x *persistence.Execution, a *definition.Activity) (*persistence.Execution, error) {
	chain, err := r.ancestors(x)
	if err != nil {
		return nil, err
	}

	var owner *persistence.Execution
	for _, e := range chain {
		if e.ActivityID == a.ID && !e.IsMultiInstanceRoot {
			owner = e
		}
	}

	return owner, nil
}

// interrupt cancels the activity that x is within and moves x to the boundary
// event b.
//
// Everything beneath x is deleted, along with the tasks and jobs bound to x,
// within the same command as the boundary event is taken.
func (r *run) interrupt(x *persistence.Execution, b *definition.Activity) error {
	if err := r.deleteDescendants(x, true); err != nil {
		return err
	}

	if err := r.deleteBound(x); err != nil {
		return err
	}

	r.emit(event.ActivityCancelled, x)

	x.ActivityID = b.ID
	x.IsActive = true
	x.IsEnded = false
	if err := r.update(x); err != nil {
		return err
	}

	r.emit(event.ActivityStarted, x)
	r.push(opExecute, x, nil)

	return nil
}
