package boltstore

import (
	"context"
	"time"

	"github.com/dogmatiq/flowstate/internal/x/bboltx"
	"github.com/dogmatiq/flowstate/persistence"
	"go.etcd.io/bbolt"
)

// transaction is an implementation of persistence.Transaction for BoltDB.
//
// Reads are performed in their own read-only BoltDB transactions. Operations
// are staged by Persist() and applied within a single read-write BoltDB
// transaction by Commit().
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
) (e persistence.Entity, ok bool, err error) {
	if err := tx.check(ctx); err != nil {
		return nil, false, err
	}

	err = tx.store.view(func(btx *bbolt.Tx) {
		e, ok = load(btx, t, id)
	})

	return e, ok, err
}

// FindExecutions returns the executions that match q.
func (tx *transaction) FindExecutions(
	ctx context.Context,
	q persistence.ExecutionQuery,
) (result []*persistence.Execution, err error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	err = tx.store.view(func(btx *bbolt.Tx) {
		visit := func(id string) {
			if e, ok := load(btx, persistence.ExecutionType, id); ok {
				if x := e.(*persistence.Execution); q.Matches(x) {
					result = append(result, x)
				}
			}
		}

		switch {
		case q.ParentID != "":
			scanIndex(btx, executionParentIndex, []byte(q.ParentID), visit)
		case q.ProcessInstanceID != "":
			scanIndex(btx, executionInstanceIndex, []byte(q.ProcessInstanceID), visit)
		default:
			scanRecords(btx, persistence.ExecutionType, visit)
		}
	})

	persistence.SortExecutions(result)

	return result, err
}

// FindJobs returns the jobs that match q.
func (tx *transaction) FindJobs(
	ctx context.Context,
	q persistence.JobQuery,
) (result []*persistence.Job, err error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	err = tx.store.view(func(btx *bbolt.Tx) {
		visit := func(id string) {
			if e, ok := load(btx, persistence.JobType, id); ok {
				if j := e.(*persistence.Job); q.Matches(j) {
					result = append(result, j)
				}
			}
		}

		switch {
		case q.ExecutionID != "":
			scanIndex(btx, jobExecutionIndex, []byte(q.ExecutionID), visit)
		case q.ProcessInstanceID != "":
			scanIndex(btx, jobInstanceIndex, []byte(q.ProcessInstanceID), visit)
		case !q.AcquirableAt.IsZero():
			scanDue(btx, q.AcquirableAt, visit)
		default:
			scanRecords(btx, persistence.JobType, visit)
		}
	})

	persistence.SortJobs(result)

	return q.LimitJobs(result), err
}

// FindTasks returns the tasks that match q.
func (tx *transaction) FindTasks(
	ctx context.Context,
	q persistence.TaskQuery,
) (result []*persistence.Task, err error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	err = tx.store.view(func(btx *bbolt.Tx) {
		visit := func(id string) {
			if e, ok := load(btx, persistence.TaskType, id); ok {
				if t := e.(*persistence.Task); q.Matches(t) {
					result = append(result, t)
				}
			}
		}

		switch {
		case q.ExecutionID != "":
			scanIndex(btx, taskExecutionIndex, []byte(q.ExecutionID), visit)
		case q.ProcessInstanceID != "":
			scanIndex(btx, taskInstanceIndex, []byte(q.ProcessInstanceID), visit)
		default:
			scanRecords(btx, persistence.TaskType, visit)
		}
	})

	persistence.SortTasks(result)

	return result, err
}

// Persist stages a batch of operations.
func (tx *transaction) Persist(ctx context.Context, b persistence.Batch) error {
	if err := tx.check(ctx); err != nil {
		return err
	}

	b.MustValidate()
	tx.batch = append(tx.batch, b...)

	return nil
}

// Commit applies the staged operations within a single BoltDB transaction.
//
// If any one of the operations causes an optimistic concurrency conflict
// the entire batch is aborted and a ConflictError is returned.
func (tx *transaction) Commit(ctx context.Context) error {
	if err := tx.check(ctx); err != nil {
		return err
	}

	tx.closed = true

	if len(tx.batch) == 0 {
		return nil
	}

	return tx.store.update(func(btx *bbolt.Tx) {
		bboltx.Must(tx.batch.AcceptVisitor(ctx, &committer{btx}))
	})
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

func (tx *transaction) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if tx.closed {
		return persistence.ErrTransactionClosed
	}

	return nil
}

// load reads an entity from the records bucket.
func load(btx *bbolt.Tx, t persistence.Type, id string) (persistence.Entity, bool) {
	b := recordBucket(btx, t)
	if b == nil {
		return nil, false
	}

	data := b.Get([]byte(id))
	if data == nil {
		return nil, false
	}

	e, err := unmarshal(t, data)
	bboltx.Must(err)

	return e, true
}

// scanRecords calls fn for the ID of every record of type t.
func scanRecords(btx *bbolt.Tx, t persistence.Type, fn func(id string)) {
	b := recordBucket(btx, t)
	if b == nil {
		return
	}

	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		fn(string(k))
	}
}

// scanDue calls fn for the ID of every job due at or before t.
func scanDue(btx *bbolt.Tx, t time.Time, fn func(id string)) {
	order := bboltx.Bucket(btx, indexBucketKey, jobDueIndex)
	if order == nil {
		return
	}

	limit := string(dueKey(t))

	c := order.Cursor()
	for k, _ := c.First(); k != nil && string(k) <= limit; k, _ = c.Next() {
		scanIndex(btx, jobDueIndex, k, fn)
	}
}
