package interpreter

import (
	"context"
	"errors"
	"fmt"

	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/expression"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
)

// opcode is an instruction on the agenda.
type opcode int

const (
	// opEnter moves an execution into an activity.
	opEnter opcode = iota

	// opProceed runs an activity that the execution has already entered,
	// once any asynchronous continuation has been taken.
	opProceed

	// opExecute runs the behavior of the execution's current activity.
	opExecute

	// opLeave takes the outgoing transitions of the execution's current
	// activity.
	opLeave
)

// step is a unit of work on the agenda.
type step struct {
	op       opcode
	x        *persistence.Execution
	activity *definition.Activity
}

// run is the state of a single interpreter operation.
type run struct {
	*Interpreter

	ctx       context.Context
	sc        *pipeline.Scope
	processes map[string]*definition.Process
	agenda    []step
}

func (in *Interpreter) newRun(ctx context.Context, sc *pipeline.Scope) *run {
	return &run{
		Interpreter: in,
		ctx:         ctx,
		sc:          sc,
	}
}

func (r *run) push(op opcode, x *persistence.Execution, a *definition.Activity) {
	r.agenda = append(r.agenda, step{op, x, a})
}

// drain executes steps until the agenda is empty.
//
// Steps are executed in FIFO order. Behaviors never call one another
// directly, they push further steps instead, so arbitrarily long chains of
// automatic activities do not grow the stack.
func (r *run) drain() error {
	for len(r.agenda) > 0 {
		s := r.agenda[0]
		r.agenda = r.agenda[1:]

		if r.sc.Cache.IsDeleted(s.x) {
			continue
		}

		if err := r.step(s); err != nil {
			if err := r.recover(s.x, err); err != nil {
				r.agenda = nil
				return err
			}
		}
	}

	return nil
}

func (r *run) step(s step) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}

	switch s.op {
	case opEnter:
		return r.enter(s.x, s.activity)
	case opProceed:
		return r.proceed(s.x)
	case opExecute:
		return r.execute(s.x)
	default:
		return r.leave(s.x)
	}
}

// recover handles an error that occurred while executing a step for x.
//
// Business errors and expression errors are routed to the nearest error
// boundary event that catches them. If there is none, the command fails with
// a business rule violation. Any other error is returned unchanged.
func (r *run) recover(x *persistence.Execution, err error) error {
	var be *BPMNError
	if !errors.As(err, &be) && !expression.IsError(err) {
		return err
	}

	if !r.sc.Cache.IsDeleted(x) {
		caught, perr := r.propagate(x, be)
		if perr != nil {
			return perr
		}

		if caught {
			return nil
		}
	}

	return &pipeline.BusinessRuleViolation{
		Cause: fmt.Errorf("activity %s: %w", x.ActivityID, err),
	}
}

// process returns the definition of x's process.
func (r *run) process(x *persistence.Execution) (*definition.Process, error) {
	if p, ok := r.processes[x.ProcessDefinitionID]; ok {
		return p, nil
	}

	p, ok := r.Definitions.Get(x.ProcessDefinitionID)
	if !ok {
		return nil, pipeline.Violationf(
			"process definition %s is not deployed",
			x.ProcessDefinitionID,
		)
	}

	if r.processes == nil {
		r.processes = map[string]*definition.Process{}
	}
	r.processes[p.ID] = p

	return p, nil
}

// activity returns x's current activity.
func (r *run) activity(x *persistence.Execution) (*definition.Activity, error) {
	return r.activityByID(x, x.ActivityID)
}

func (r *run) activityByID(x *persistence.Execution, id string) (*definition.Activity, error) {
	p, err := r.process(x)
	if err != nil {
		return nil, err
	}

	a, ok := p.Activity(id)
	if !ok {
		return nil, fmt.Errorf("process %s has no activity named %s", p.ID, id)
	}

	return a, nil
}

// emit queues a lifecycle event about x.
func (r *run) emit(k event.Kind, x *persistence.Execution) {
	r.sc.Emit(event.Event{
		Kind:                k,
		ProcessInstanceID:   x.ProcessInstanceID,
		ProcessDefinitionID: x.ProcessDefinitionID,
		ExecutionID:         x.ID,
		ActivityID:          x.ActivityID,
	})
}

// update marks x as modified.
func (r *run) update(e persistence.Entity) error {
	return r.sc.Cache.Update(e)
}

// execution loads the execution with the given ID.
func (r *run) execution(id string) (*persistence.Execution, error) {
	x, ok, err := r.sc.Cache.Execution(r.ctx, id)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, &pipeline.BusinessRuleViolation{
			Cause: fmt.Errorf("execution %s: %w", id, ErrExecutionNotFound),
		}
	}

	return x, nil
}
