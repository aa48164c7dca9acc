package memorystore

import (
	"context"

	"github.com/dogmatiq/flowstate/persistence"
)

// transaction is an implementation of persistence.Transaction for the
// in-memory store.
//
// Reads observe the committed state of the store. Operations are staged by
// Persist() and validated and applied together by Commit().
type transaction struct {
	store  *Store
	batch  persistence.Batch
	closed bool
}

// Load returns the entity of type t with the given ID.
func (tx *transaction) Load(
	ctx context.Context,
	t persistence.Type,
	id string,
) (persistence.Entity, bool, error) {
	if err := tx.checkRead(ctx); err != nil {
		return nil, false, err
	}
	defer tx.store.m.RUnlock()

	e, ok := tx.store.db.get(persistence.Ref{Type: t, ID: id})
	if !ok {
		return nil, false, nil
	}

	return e.CloneEntity(), true, nil
}

// FindExecutions returns the executions that match q.
func (tx *transaction) FindExecutions(
	ctx context.Context,
	q persistence.ExecutionQuery,
) ([]*persistence.Execution, error) {
	if err := tx.checkRead(ctx); err != nil {
		return nil, err
	}
	defer tx.store.m.RUnlock()

	var result []*persistence.Execution
	for _, x := range tx.store.db.executions {
		if q.Matches(x) {
			result = append(result, x.Clone())
		}
	}

	persistence.SortExecutions(result)

	return result, nil
}

// FindJobs returns the jobs that match q.
func (tx *transaction) FindJobs(
	ctx context.Context,
	q persistence.JobQuery,
) ([]*persistence.Job, error) {
	if err := tx.checkRead(ctx); err != nil {
		return nil, err
	}
	defer tx.store.m.RUnlock()

	var result []*persistence.Job
	for _, j := range tx.store.db.jobs {
		if q.Matches(j) {
			result = append(result, j.Clone())
		}
	}

	persistence.SortJobs(result)

	return q.LimitJobs(result), nil
}

// FindTasks returns the tasks that match q.
func (tx *transaction) FindTasks(
	ctx context.Context,
	q persistence.TaskQuery,
) ([]*persistence.Task, error) {
	if err := tx.checkRead(ctx); err != nil {
		return nil, err
	}
	defer tx.store.m.RUnlock()

	var result []*persistence.Task
	for _, t := range tx.store.db.tasks {
		if q.Matches(t) {
			result = append(result, t.Clone())
		}
	}

	persistence.SortTasks(result)

	return result, nil
}

// Persist stages a batch of operations.
func (tx *transaction) Persist(ctx context.Context, b persistence.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if tx.closed {
		return persistence.ErrTransactionClosed
	}

	b.MustValidate()

	for _, op := range b {
		tx.batch = append(tx.batch, cloneOperation(op))
	}

	return nil
}

// Commit validates the staged operations against the current state of the
// store and applies them atomically.
func (tx *transaction) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if tx.closed {
		return persistence.ErrTransactionClosed
	}

	tx.closed = true

	s := tx.store
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}

	v := &validator{&s.db, map[persistence.Ref]bool{}}
	if err := tx.batch.AcceptVisitor(ctx, v); err != nil {
		return err
	}

	return tx.batch.AcceptVisitor(ctx, &committer{&s.db})
}

// Rollback discards the staged operations.
func (tx *transaction) Rollback() error {
	if tx.closed {
		return persistence.ErrTransactionClosed
	}

	tx.closed = true
	tx.batch = nil

	return nil
}

// checkRead acquires a read lock on the store if the transaction is usable.
// The caller must release the lock if no error is returned.
func (tx *transaction) checkRead(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if tx.closed {
		return persistence.ErrTransactionClosed
	}

	tx.store.m.RLock()

	if tx.store.closed {
		tx.store.m.RUnlock()
		return persistence.ErrStoreClosed
	}

	return nil
}

func cloneOperation(op persistence.Operation) persistence.Operation {
	switch op := op.(type) {
	case persistence.Insert:
		return persistence.Insert{Entity: op.Entity.CloneEntity()}
	case persistence.Update:
		return persistence.Update{Entity: op.Entity.CloneEntity()}
	default:
		return persistence.Delete{Entity: op.Subject().CloneEntity()}
	}
}
