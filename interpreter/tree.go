package interpreter

import (
	"fmt"

	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
)

// parent returns the parent of x.
func (r *run) parent(x *persistence.Execution) (*persistence.Execution, error) {
	p, ok, err := r.sc.Cache.Execution(r.ctx, x.ParentID)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("parent %s of execution %s does not exist", x.ParentID, x.ID)
	}

	return p, nil
}

// children returns the direct children of x.
func (r *run) children(x *persistence.Execution) ([]*persistence.Execution, error) {
	return r.sc.Cache.FindExecutions(
		r.ctx,
		persistence.ExecutionQuery{ParentID: x.ID},
	)
}

// ancestors returns x followed by each of its ancestors, nearest first.
func (r *run) ancestors(x *persistence.Execution) ([]*persistence.Execution, error) {
	chain := []*persistence.Execution{x}

	for !x.IsProcessInstance() {
		p, err := r.parent(x)
		if err != nil {
			return nil, err
		}

		chain = append(chain, p)
		x = p
	}

	return chain, nil
}

// deleteExecution deletes x and everything beneath it without emitting
// cancellation events.
func (r *run) deleteExecution(x *persistence.Execution) error {
	return r.deleteTree(x, false)
}

// deleteDescendants deletes everything beneath x, leaving x itself intact.
func (r *run) deleteDescendants(x *persistence.Execution, cancel bool) error {
	children, err := r.children(x)
	if err != nil {
		return err
	}

	for _, c := range children {
		if err := r.deleteTree(c, cancel); err != nil {
			return err
		}
	}

	return nil
}

// deleteTree deletes x, its descendants and the tasks and jobs bound to any
// of them.
//
// If cancel is true an activity-cancelled event is emitted for each execution
// that is still within an activity.
func (r *run) deleteTree(x *persistence.Execution, cancel bool) error {
	var (
		pending = []*persistence.Execution{x}
		subtree []*persistence.Execution
	)

	for len(pending) > 0 {
		n := len(pending) - 1
		x := pending[n]
		pending = pending[:n]

		children, err := r.children(x)
		if err != nil {
			return err
		}

		subtree = append(subtree, x)
		pending = append(pending, children...)
	}

	// Delete from the leaves upwards, so that events describe the innermost
	// activities first.
	for i := len(subtree) - 1; i >= 0; i-- {
		x := subtree[i]

		if err := r.deleteBound(x); err != nil {
			return err
		}

		if cancel {
			if ok, err := r.isCancellable(x); err != nil {
				return err
			} else if ok {
				r.emit(event.ActivityCancelled, x)
			}
		}

		if err := r.sc.Cache.Delete(x); err != nil {
			return err
		}
	}

	return nil
}

// deleteBound deletes the tasks and jobs bound to x.
func (r *run) deleteBound(x *persistence.Execution) error {
	tasks, err := r.sc.Cache.FindTasks(
		r.ctx,
		persistence.TaskQuery{ExecutionID: x.ID},
	)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		if err := r.sc.Cache.Delete(t); err != nil {
			return err
		}
	}

	jobs, err := r.sc.Cache.FindJobs(
		r.ctx,
		persistence.JobQuery{ExecutionID: x.ID},
	)
	if err != nil {
		return err
	}

	for _, j := range jobs {
		if err := r.sc.Cache.Delete(j); err != nil {
			return err
		}
	}

	return nil
}

// isCancellable returns true if deleting x interrupts an activity.
func (r *run) isCancellable(x *persistence.Execution) (bool, error) {
	if x.IsEnded || x.IsMultiInstanceRoot || x.ActivityID == "" {
		return false, nil
	}

	a, err := r.activity(x)
	if err != nil {
		return false, err
	}

	switch a.Kind {
	case definition.ExclusiveGateway, definition.ParallelGateway:
		return false, nil
	default:
		return true, nil
	}
}
