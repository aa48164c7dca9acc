package interpreter

import (
	"fmt"
	"math"
	"reflect"

	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/expression"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
)

// startBody starts the body of the sub-process a, which x has entered.
//
// x waits at the sub-process while a new scope execution runs its body.
func (r *run) startBody(x *persistence.Execution, a *definition.Activity) error {
	x.IsActive = false
	if err := r.update(x); err != nil {
		return err
	}

	s := &persistence.Execution{
		ID:                  r.newID(),
		ProcessInstanceID:   x.ProcessInstanceID,
		ParentID:            x.ID,
		ProcessDefinitionID: x.ProcessDefinitionID,
		IsScope:             true,
		IsSuspended:         x.IsSuspended,
		Variables:           map[string]any{},
	}

	if err := r.sc.Cache.Insert(s); err != nil {
		return err
	}

	r.push(opEnter, s, a.Initial)

	return nil
}

// completeScope completes the scope execution s once no executions remain
// active within it.
//
// Completing a process instance deletes it. Completing the body of a
// sub-process deletes the body's scope and the execution waiting at the
// sub-process leaves it.
func (r *run) completeScope(s *persistence.Execution) error {
	if s.IsProcessInstance() {
		r.emit(event.ProcessCompleted, s)
		return r.deleteExecution(s)
	}

	p, err := r.parent(s)
	if err != nil {
		return err
	}

	if err := r.deleteExecution(s); err != nil {
		return err
	}

	p.IsActive = true
	if err := r.update(p); err != nil {
		return err
	}

	return r.leave(p)
}

// startMultiInstance starts the instances of the multi-instance activity a,
// which x has entered.
//
// x waits at a while a multi-instance root execution holds the instance
// counters. Each instance is a scope execution beneath the root; parallel
// instances are also concurrent.
func (r *run) startMultiInstance(x *persistence.Execution, a *definition.Activity) error {
	elements, n, err := r.instances(x, a)
	if err != nil {
		return err
	}

	if n == 0 {
		r.push(opLeave, x, nil)
		return nil
	}

	x.IsActive = false
	if err := r.update(x); err != nil {
		return err
	}

	active := n
	if a.MultiInstance.Sequential {
		active = 1
	}

	root := &persistence.Execution{
		ID:                  r.newID(),
		ProcessInstanceID:   x.ProcessInstanceID,
		ParentID:            x.ID,
		ProcessDefinitionID: x.ProcessDefinitionID,
		ActivityID:          a.ID,
		IsScope:             true,
		IsMultiInstanceRoot: true,
		IsSuspended:         x.IsSuspended,
		Variables: map[string]any{
			NrOfInstances:          n,
			NrOfActiveInstances:    active,
			NrOfCompletedInstances: 0,
		},
	}

	if err := r.sc.Cache.Insert(root); err != nil {
		return err
	}

	for i := 0; i < active; i++ {
		if err := r.startInstance(root, a, i, elements); err != nil {
			return err
		}
	}

	return nil
}

// instances returns the number of instances of the multi-instance activity a,
// and the collection elements if the instances are driven by a collection.
func (r *run) instances(x *persistence.Execution, a *definition.Activity) ([]any, int, error) {
	mi := a.MultiInstance

	vars, err := r.visible(x)
	if err != nil {
		return nil, 0, err
	}

	if mi.Collection != "" {
		elements, err := collection(vars, mi.Collection)
		return elements, len(elements), err
	}

	f, err := r.evaluator().Number(r.ctx, mi.Cardinality, vars)
	if err != nil {
		return nil, 0, err
	}

	if f < 0 || f != math.Trunc(f) {
		return nil, 0, &expression.Error{
			Expression: mi.Cardinality,
			Cause:      fmt.Errorf("cardinality must be a non-negative integer, got %v", f),
		}
	}

	return nil, int(f), nil
}

// startInstance starts the i'th instance of the multi-instance activity a.
func (r *run) startInstance(
	root *persistence.Execution,
	a *definition.Activity,
	i int,
	elements []any,
) error {
	mi := a.MultiInstance

	vars := map[string]any{
		LoopCounter: i,
	}

	if mi.ElementVariable != "" && elements != nil {
		vars[mi.ElementVariable] = elements[i]
	}

	inst := &persistence.Execution{
		ID:                  r.newID(),
		ProcessInstanceID:   root.ProcessInstanceID,
		ParentID:            root.ID,
		ProcessDefinitionID: root.ProcessDefinitionID,
		ActivityID:          a.ID,
		IsActive:            true,
		IsScope:             true,
		IsConcurrent:        !mi.Sequential,
		IsSuspended:         root.IsSuspended,
		Variables:           vars,
	}

	if err := r.sc.Cache.Insert(inst); err != nil {
		return err
	}

	r.emit(event.ActivityStarted, inst)
	r.push(opExecute, inst, nil)

	return nil
}

// multiInstanceRoot returns the multi-instance root of x if x is an instance
// of the multi-instance activity a.
func (r *run) multiInstanceRoot(
	x *persistence.Execution,
	a *definition.Activity,
) (*persistence.Execution, bool, error) {
	if a.MultiInstance == nil || x.IsProcessInstance() {
		return nil, false, nil
	}

	p, err := r.parent(x)
	if err != nil {
		return nil, false, err
	}

	if p.IsMultiInstanceRoot && p.ActivityID == a.ID {
		return p, true, nil
	}

	return nil, false, nil
}

// completeInstance completes inst, an instance of the multi-instance activity
// a.
//
// When all instances are complete, or the completion condition is satisfied,
// any remaining instances are cancelled and the execution waiting at a leaves
// it. Otherwise, for sequential activities, the next instance is started.
func (r *run) completeInstance(
	inst, root *persistence.Execution,
	a *definition.Activity,
) error {
	mi := a.MultiInstance

	r.emit(event.ActivityCompleted, inst)

	n := toInt(root.Variables[NrOfInstances])
	completed := toInt(root.Variables[NrOfCompletedInstances]) + 1
	active := toInt(root.Variables[NrOfActiveInstances]) - 1

	root.Variables[NrOfCompletedInstances] = completed
	root.Variables[NrOfActiveInstances] = active
	if err := r.update(root); err != nil {
		return err
	}

	done := completed >= n

	if !done && mi.CompletionCondition != "" {
		vars, err := r.visible(inst)
		if err != nil {
			return err
		}

		done, err = r.evaluator().Condition(r.ctx, mi.CompletionCondition, vars)
		if err != nil {
			return err
		}
	}

	if err := r.deleteExecution(inst); err != nil {
		return err
	}

	if done {
		x, err := r.parent(root)
		if err != nil {
			return err
		}

		if err := r.deleteTree(root, true); err != nil {
			return err
		}

		x.IsActive = true
		if err := r.update(x); err != nil {
			return err
		}

		return r.leave(x)
	}

	if !mi.Sequential {
		return nil
	}

	var elements []any
	if mi.Collection != "" {
		vars, err := r.visible(root)
		if err != nil {
			return err
		}

		elements, err = collection(vars, mi.Collection)
		if err != nil {
			return err
		}

		if completed >= len(elements) {
			return fmt.Errorf("collection %s changed while %s was executing", mi.Collection, a.ID)
		}
	}

	root.Variables[NrOfActiveInstances] = 1

	return r.startInstance(root, a, completed, elements)
}

// collection returns the elements of the list variable with the given name.
func collection(vars map[string]any, name string) ([]any, error) {
	v, ok := vars[name]
	if !ok || v == nil {
		return nil, pipeline.Violationf("collection variable %s is not set", name)
	}

	if s, ok := v.([]any); ok {
		return s, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, pipeline.Violationf("collection variable %s is a %T, not a list", name, v)
	}

	elements := make([]any, rv.Len())
	for i := range elements {
		elements[i] = rv.Index(i).Interface()
	}

	return elements, nil
}

// toInt converts a numeric variable to an int. Durable stores may return
// numbers as float64.
func toInt(v any) int {
	switch v := v.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
