package interpreter

import (
	"errors"
	"fmt"

	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
)

// enter moves x into activity a.
func (r *run) enter(x *persistence.Execution, a *definition.Activity) error {
	x.ActivityID = a.ID
	x.IsActive = true
	if err := r.update(x); err != nil {
		return err
	}

	r.emit(event.ActivityStarted, x)

	if err := r.startBoundaryTimers(x, a); err != nil {
		return err
	}

	if a.AsyncBefore {
		x.IsActive = false
		_, err := r.newJob(
			x,
			persistence.AsyncContinuationJob,
			HandlerAsyncContinuation,
			a.ID,
			r.sc.Now,
		)
		return err
	}

	return r.proceed(x)
}

// proceed runs x's current activity, or its multi-instance body if it has
// one.
func (r *run) proceed(x *persistence.Execution) error {
	a, err := r.activity(x)
	if err != nil {
		return err
	}

	if a.MultiInstance != nil {
		return r.startMultiInstance(x, a)
	}

	r.push(opExecute, x, nil)

	return nil
}

// execute runs the behavior of x's current activity.
func (r *run) execute(x *persistence.Execution) error {
	a, err := r.activity(x)
	if err != nil {
		return err
	}

	switch a.Kind {
	case definition.StartEvent,
		definition.ExclusiveGateway,
		definition.BoundaryEvent:
		return r.leave(x)

	case definition.EndEvent:
		return r.end(x)

	case definition.TerminateEndEvent:
		return r.terminate(x)

	case definition.ErrorEndEvent:
		return &BPMNError{Code: a.ErrorCode}

	case definition.Task:
		if a.Delegate != "" {
			if err := r.invoke(x, a); err != nil {
				return err
			}
		}
		return r.leave(x)

	case definition.ScriptTask:
		if err := r.script(x, a); err != nil {
			return err
		}
		return r.leave(x)

	case definition.UserTask:
		return r.createTask(x, a)

	case definition.ReceiveTask:
		return r.park(x)

	case definition.TimerCatchEvent:
		if _, err := r.newJob(
			x,
			persistence.TimerJob,
			HandlerTimerCatch,
			a.ID,
			a.Timer.DueDate(r.sc.Now),
		); err != nil {
			return err
		}
		return r.park(x)

	case definition.ParallelGateway:
		if len(a.Incoming) > 1 {
			return r.join(x, a)
		}
		return r.leave(x)

	case definition.SubProcess:
		return r.startBody(x, a)

	default:
		return fmt.Errorf("activity %s has unsupported kind %s", a.ID, a.Kind)
	}
}

// park leaves x waiting at its current activity.
func (r *run) park(x *persistence.Execution) error {
	x.IsActive = false
	return r.update(x)
}

// invoke calls the delegate of a task.
func (r *run) invoke(x *persistence.Execution, a *definition.Activity) error {
	d, ok := r.Delegates[a.Delegate]
	if !ok {
		return fmt.Errorf("no delegate is registered with the name %q", a.Delegate)
	}

	vars, err := r.visible(x)
	if err != nil {
		return err
	}

	root, err := r.execution(x.ProcessInstanceID)
	if err != nil {
		return err
	}

	s := &DelegateScope{
		ProcessInstanceID:   x.ProcessInstanceID,
		ProcessDefinitionID: x.ProcessDefinitionID,
		ExecutionID:         x.ID,
		ActivityID:          a.ID,
		BusinessKey:         root.BusinessKey,
		Variables:           vars,
		Logger:              r.sc.Logger,
	}

	if err := d(r.ctx, s); err != nil {
		var be *BPMNError
		if errors.As(err, &be) {
			return be
		}

		return fmt.Errorf("delegate %s failed: %w", a.Delegate, err)
	}

	return r.setVariables(x, s.changes)
}

// script runs the script of a script task, assigning the variables it
// returns.
func (r *run) script(x *persistence.Execution, a *definition.Activity) error {
	vars, err := r.visible(x)
	if err != nil {
		return err
	}

	result, err := r.evaluator().Script(r.ctx, a.Script, vars)
	if err != nil {
		return err
	}

	return r.setVariables(x, result)
}

// createTask creates the user task that x waits on.
func (r *run) createTask(x *persistence.Execution, a *definition.Activity) error {
	name := a.Name
	if name == "" {
		name = a.ID
	}

	t := &persistence.Task{
		ID:                  r.newID(),
		Name:                name,
		ExecutionID:         x.ID,
		ProcessInstanceID:   x.ProcessInstanceID,
		ProcessDefinitionID: x.ProcessDefinitionID,
		ActivityID:          a.ID,
		CreatedAt:           r.sc.Now,
	}

	if err := r.sc.Cache.Insert(t); err != nil {
		return err
	}

	r.sc.Emit(event.Event{
		Kind:                event.TaskCreated,
		ProcessInstanceID:   x.ProcessInstanceID,
		ProcessDefinitionID: x.ProcessDefinitionID,
		ExecutionID:         x.ID,
		ActivityID:          a.ID,
		TaskID:              t.ID,
	})

	return r.park(x)
}
