package interpreter

import (
	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
)

// leave takes the outgoing transitions of x's current activity.
func (r *run) leave(x *persistence.Execution) error {
	a, err := r.activity(x)
	if err != nil {
		return err
	}

	if root, ok, err := r.multiInstanceRoot(x, a); err != nil {
		return err
	} else if ok {
		return r.completeInstance(x, root, a)
	}

	r.emit(event.ActivityCompleted, x)

	if err := r.cancelBoundaryTimers(x, a); err != nil {
		return err
	}

	transitions, err := r.selectTransitions(x, a)
	if err != nil {
		return err
	}

	if len(transitions) == 0 {
		return r.end(x)
	}

	return r.fork(x, transitions)
}

// selectTransitions returns the outgoing transitions of a that x takes when
// it leaves a.
func (r *run) selectTransitions(
	x *persistence.Execution,
	a *definition.Activity,
) ([]*definition.Transition, error) {
	if len(a.Outgoing) == 0 {
		return nil, nil
	}

	if a.Kind == definition.ParallelGateway {
		return a.Outgoing, nil
	}

	var vars map[string]any
	var selected []*definition.Transition

	for _, t := range a.Outgoing {
		if t == a.Default {
			continue
		}

		if t.Condition != "" {
			if vars == nil {
				var err error
				vars, err = r.visible(x)
				if err != nil {
					return nil, err
				}
			}

			ok, err := r.evaluator().Condition(r.ctx, t.Condition, vars)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}
		}

		selected = append(selected, t)

		if a.Kind == definition.ExclusiveGateway {
			break
		}
	}

	if len(selected) == 0 {
		if a.Default == nil {
			return nil, pipeline.Violationf(
				"activity %s: no outgoing flow can be taken",
				a.ID,
			)
		}

		selected = append(selected, a.Default)
	}

	return selected, nil
}

// fork moves x along each of the given transitions, creating concurrent
// executions as necessary.
func (r *run) fork(x *persistence.Execution, transitions []*definition.Transition) error {
	if len(transitions) == 1 {
		r.push(opEnter, x, transitions[0].Destination)
		return nil
	}

	scope := x

	if x.IsConcurrent {
		// x continues along the first transition itself, its siblings share
		// its scope.
		p, err := r.parent(x)
		if err != nil {
			return err
		}

		scope = p
		r.push(opEnter, x, transitions[0].Destination)
		transitions = transitions[1:]
	} else {
		// x is a scope, it waits at the fork while its concurrent children
		// proceed.
		x.IsActive = false
		if err := r.update(x); err != nil {
			return err
		}
	}

	for _, t := range transitions {
		c, err := r.newConcurrent(scope, x.ActivityID)
		if err != nil {
			return err
		}

		r.push(opEnter, c, t.Destination)
	}

	return nil
}

// join records the arrival of x at the parallel gateway g. The gateway fires
// when every incoming flow has been taken.
//
// Arrivals are counted by re-reading the persisted children of the shared
// scope. Each arrival also modifies the scope itself, so that arrivals in
// concurrent commands conflict and the loser re-reads the winner's arrival
// when it is retried.
func (r *run) join(x *persistence.Execution, g *definition.Activity) error {
	if !x.IsConcurrent {
		return r.leave(x)
	}

	scope, err := r.parent(x)
	if err != nil {
		return err
	}

	x.IsActive = false
	x.IsEnded = true
	if err := r.update(x); err != nil {
		return err
	}

	if err := r.update(scope); err != nil {
		return err
	}

	siblings, err := r.children(scope)
	if err != nil {
		return err
	}

	arrived := []*persistence.Execution{x}
	for _, s := range siblings {
		if s != x && s.IsEnded && s.ActivityID == g.ID {
			arrived = append(arrived, s)
		}
	}

	if len(arrived) < len(g.Incoming) {
		return nil
	}

	for _, s := range arrived[:len(g.Incoming)] {
		if err := r.deleteExecution(s); err != nil {
			return err
		}
	}

	remaining, err := r.children(scope)
	if err != nil {
		return err
	}

	if len(remaining) == 0 {
		// Every branch has been joined, control returns to the scope.
		scope.ActivityID = g.ID
		scope.IsActive = true
		return r.leave(scope)
	}

	c, err := r.newConcurrent(scope, g.ID)
	if err != nil {
		return err
	}

	return r.leave(c)
}

// end completes x, which has reached an end event or an activity with no
// outgoing flows.
func (r *run) end(x *persistence.Execution) error {
	a, err := r.activity(x)
	if err != nil {
		return err
	}

	if a.Kind.IsEnd() {
		r.emit(event.ActivityCompleted, x)
	}

	if !x.IsConcurrent {
		return r.completeScope(x)
	}

	scope, err := r.parent(x)
	if err != nil {
		return err
	}

	if err := r.deleteExecution(x); err != nil {
		return err
	}

	// Concurrent branches that end in separate commands conflict on the
	// scope, so exactly one of them observes that no children remain.
	if err := r.update(scope); err != nil {
		return err
	}

	remaining, err := r.children(scope)
	if err != nil {
		return err
	}

	if len(remaining) > 0 {
		return nil
	}

	return r.completeScope(scope)
}

// terminate ends every execution within x's scope, then completes the scope.
func (r *run) terminate(x *persistence.Execution) error {
	r.emit(event.ActivityCompleted, x)
	x.IsEnded = true

	scope := x
	if !x.IsScope {
		p, err := r.parent(x)
		if err != nil {
			return err
		}
		scope = p
	}

	if err := r.deleteDescendants(scope, true); err != nil {
		return err
	}

	return r.completeScope(scope)
}

// newConcurrent creates a concurrent child of scope at the given activity.
func (r *run) newConcurrent(scope *persistence.Execution, activityID string) (*persistence.Execution, error) {
	c := &persistence.Execution{
		ID:                  r.newID(),
		ProcessInstanceID:   scope.ProcessInstanceID,
		ParentID:            scope.ID,
		ProcessDefinitionID: scope.ProcessDefinitionID,
		ActivityID:          activityID,
		IsActive:            true,
		IsConcurrent:        true,
		IsSuspended:         scope.IsSuspended,
	}

	return c, r.sc.Cache.Insert(c)
}
