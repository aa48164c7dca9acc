package interpreter

import (
	"context"
	"fmt"
	"time"

	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
)

// StartProcessInstance starts a new instance of the process with the given
// definition ID.
//
// The instance runs until every execution waits or ends. It returns the root
// execution of the new instance, which may already have been deleted if the
// instance ran to completion.
func (in *Interpreter) StartProcessInstance(
	ctx context.Context,
	sc *pipeline.Scope,
	definitionID, businessKey string,
	vars map[string]any,
) (*persistence.Execution, error) {
	p, ok := in.Definitions.Get(definitionID)
	if !ok {
		return nil, pipeline.Violationf("process definition %s is not deployed", definitionID)
	}

	id := in.newID()
	root := &persistence.Execution{
		ID:                  id,
		ProcessInstanceID:   id,
		ProcessDefinitionID: p.ID,
		BusinessKey:         businessKey,
		IsActive:            true,
		IsScope:             true,
		Variables:           persistence.CloneVariables(vars),
	}

	if root.Variables == nil {
		root.Variables = map[string]any{}
	}

	if err := sc.Cache.Insert(root); err != nil {
		return nil, err
	}

	r := in.newRun(ctx, sc)
	r.emit(event.ProcessStarted, root)
	r.push(opEnter, root, p.Initial)

	return root, r.drain()
}

// Signal resumes an execution that is waiting at a receive task.
//
// If the receive task names an event, name must match it. The variables are
// assigned in the execution's nearest scope before it continues.
func (in *Interpreter) Signal(
	ctx context.Context,
	sc *pipeline.Scope,
	executionID, name string,
	vars map[string]any,
) error {
	r := in.newRun(ctx, sc)

	x, err := r.waiting(executionID)
	if err != nil {
		return err
	}

	a, err := r.activity(x)
	if err != nil {
		return err
	}

	if a.Kind != definition.ReceiveTask {
		return pipeline.Violationf(
			"execution %s is waiting at %s, which can not be signaled",
			x.ID,
			a.ID,
		)
	}

	if a.Event != "" && a.Event != name {
		return pipeline.Violationf(
			"execution %s is waiting for the %q event, not %q",
			x.ID,
			a.Event,
			name,
		)
	}

	return r.resume(x, vars)
}

// CompleteTask completes a user task, resuming the execution that waits on
// it.
//
// The variables are assigned in the execution's nearest scope before it
// continues.
func (in *Interpreter) CompleteTask(
	ctx context.Context,
	sc *pipeline.Scope,
	taskID string,
	vars map[string]any,
) error {
	r := in.newRun(ctx, sc)

	t, ok, err := sc.Cache.Task(ctx, taskID)
	if err != nil {
		return err
	}

	if !ok {
		return &pipeline.BusinessRuleViolation{
			Cause: fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound),
		}
	}

	x, err := r.waiting(t.ExecutionID)
	if err != nil {
		return err
	}

	if err := sc.Cache.Delete(t); err != nil {
		return err
	}

	sc.Emit(event.Event{
		Kind:                event.TaskCompleted,
		ProcessInstanceID:   t.ProcessInstanceID,
		ProcessDefinitionID: t.ProcessDefinitionID,
		ExecutionID:         t.ExecutionID,
		ActivityID:          t.ActivityID,
		TaskID:              t.ID,
	})

	return r.resume(x, vars)
}

// waiting loads an execution that is about to be resumed by an external
// trigger.
func (r *run) waiting(id string) (*persistence.Execution, error) {
	x, err := r.execution(id)
	if err != nil {
		return nil, err
	}

	if x.IsSuspended {
		return nil, pipeline.Violationf(
			"process instance %s is suspended",
			x.ProcessInstanceID,
		)
	}

	if x.IsActive || x.IsEnded {
		return nil, pipeline.Violationf("execution %s is not waiting", x.ID)
	}

	// An execution with children is waiting for them, not for an external
	// trigger.
	children, err := r.children(x)
	if err != nil {
		return nil, err
	}

	if len(children) > 0 {
		return nil, pipeline.Violationf("execution %s is not waiting", x.ID)
	}

	return x, nil
}

// resume assigns vars and moves x out of the activity it is waiting at.
func (r *run) resume(x *persistence.Execution, vars map[string]any) error {
	if err := r.setVariables(x, persistence.CloneVariables(vars)); err != nil {
		return err
	}

	x.IsActive = true
	if err := r.update(x); err != nil {
		return err
	}

	r.push(opLeave, x, nil)

	return r.drain()
}

// DeleteProcessInstance deletes a process instance along with all of its
// executions, tasks and jobs.
func (in *Interpreter) DeleteProcessInstance(
	ctx context.Context,
	sc *pipeline.Scope,
	instanceID, reason string,
) error {
	r := in.newRun(ctx, sc)

	root, err := r.instance(instanceID)
	if err != nil {
		return err
	}

	if err := r.deleteTree(root, true); err != nil {
		return err
	}

	sc.Emit(event.Event{
		Kind:                event.ProcessCancelled,
		ProcessInstanceID:   root.ID,
		ProcessDefinitionID: root.ProcessDefinitionID,
		ExecutionID:         root.ID,
		Message:             reason,
	})

	return nil
}

// SuspendProcessInstance suspends every execution and job of a process
// instance. Scheduled suspensions and activations are not suspended.
func (in *Interpreter) SuspendProcessInstance(
	ctx context.Context,
	sc *pipeline.Scope,
	instanceID string,
) error {
	r := in.newRun(ctx, sc)

	root, err := r.instance(instanceID)
	if err != nil {
		return err
	}

	if root.IsSuspended {
		return pipeline.Violationf("process instance %s is already suspended", root.ID)
	}

	if err := r.setSuspended(root, true); err != nil {
		return err
	}

	r.emit(event.ProcessSuspended, root)

	return nil
}

// ActivateProcessInstance reverses SuspendProcessInstance().
func (in *Interpreter) ActivateProcessInstance(
	ctx context.Context,
	sc *pipeline.Scope,
	instanceID string,
) error {
	r := in.newRun(ctx, sc)

	root, err := r.instance(instanceID)
	if err != nil {
		return err
	}

	if !root.IsSuspended {
		return pipeline.Violationf("process instance %s is not suspended", root.ID)
	}

	if err := r.setSuspended(root, false); err != nil {
		return err
	}

	r.emit(event.ProcessActivated, root)

	return nil
}

// ScheduleSuspension creates a job that suspends (or activates, if suspend is
// false) a process instance at the given time.
func (in *Interpreter) ScheduleSuspension(
	ctx context.Context,
	sc *pipeline.Scope,
	instanceID string,
	at time.Time,
	suspend bool,
) (*persistence.Job, error) {
	r := in.newRun(ctx, sc)

	root, err := r.instance(instanceID)
	if err != nil {
		return nil, err
	}

	handler := HandlerActivate
	if suspend {
		handler = HandlerSuspend
	}

	return r.newJob(root, persistence.ScheduleJob, handler, "", at)
}

func (r *run) setSuspended(root *persistence.Execution, suspended bool) error {
	executions, err := r.sc.Cache.FindExecutions(
		r.ctx,
		persistence.ExecutionQuery{ProcessInstanceID: root.ID},
	)
	if err != nil {
		return err
	}

	for _, x := range executions {
		x.IsSuspended = suspended
		if err := r.update(x); err != nil {
			return err
		}
	}

	jobs, err := r.sc.Cache.FindJobs(
		r.ctx,
		persistence.JobQuery{ProcessInstanceID: root.ID},
	)
	if err != nil {
		return err
	}

	for _, j := range jobs {
		if j.Kind != persistence.ScheduleJob && j.IsSuspended != suspended {
			j.IsSuspended = suspended
			if err := r.update(j); err != nil {
				return err
			}
		}
	}

	return nil
}

// instance loads the root execution of a process instance.
func (r *run) instance(id string) (*persistence.Execution, error) {
	x, err := r.execution(id)
	if err != nil {
		return nil, err
	}

	if !x.IsProcessInstance() {
		return nil, pipeline.Violationf("execution %s is not a process instance", id)
	}

	return x, nil
}

// Variables returns the variables visible to an execution.
func (in *Interpreter) Variables(
	ctx context.Context,
	sc *pipeline.Scope,
	executionID string,
) (map[string]any, error) {
	r := in.newRun(ctx, sc)

	x, err := r.execution(executionID)
	if err != nil {
		return nil, err
	}

	return r.visible(x)
}

// SetVariables assigns variables in the nearest scope of an execution.
func (in *Interpreter) SetVariables(
	ctx context.Context,
	sc *pipeline.Scope,
	executionID string,
	vars map[string]any,
) error {
	r := in.newRun(ctx, sc)

	x, err := r.execution(executionID)
	if err != nil {
		return err
	}

	return r.setVariables(x, persistence.CloneVariables(vars))
}
