package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dogmatiq/flowstate/persistence"
	"go.uber.org/multierr"
)

// queryer is the subset of *sql.DB and *sql.Tx used for reads.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// transaction is an implementation of persistence.Transaction for SQLite.
//
// The underlying SQL transaction is started by the first call to Persist().
// Reads before that point observe the committed state of the database.
type transaction struct {
	db     *sql.DB
	tx     *sql.Tx
	closed bool
}

// Load returns the entity of type t with the given ID.
func (tx *transaction) Load(
	ctx context.Context,
	t persistence.Type,
	id string,
) (persistence.Entity, bool, error) {
	if err := tx.check(ctx); err != nil {
		return nil, false, err
	}

	var (
		entities []persistence.Entity
		err      error
	)

	switch t {
	case persistence.ExecutionType:
		entities, err = selectEntities(ctx, tx.queryer(), t, executionColumns, []string{"id = ?"}, []any{id}, "")
	case persistence.JobType:
		entities, err = selectEntities(ctx, tx.queryer(), t, jobColumns, []string{"id = ?"}, []any{id}, "")
	default:
		entities, err = selectEntities(ctx, tx.queryer(), t, taskColumns, []string{"id = ?"}, []any{id}, "")
	}

	if err != nil || len(entities) == 0 {
		return nil, false, err
	}

	return entities[0], true, nil
}

// FindExecutions returns the executions that match q.
func (tx *transaction) FindExecutions(
	ctx context.Context,
	q persistence.ExecutionQuery,
) ([]*persistence.Execution, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)

	if q.ParentID != "" {
		where = append(where, "parent_id = ?")
		args = append(args, q.ParentID)
	}

	if q.ProcessInstanceID != "" {
		where = append(where, "process_instance_id = ?")
		args = append(args, q.ProcessInstanceID)
	}

	entities, err := selectEntities(ctx, tx.queryer(), persistence.ExecutionType, executionColumns, where, args, "ORDER BY id")
	if err != nil {
		return nil, err
	}

	result := make([]*persistence.Execution, len(entities))
	for i, e := range entities {
		result[i] = e.(*persistence.Execution)
	}

	return result, nil
}

// FindJobs returns the jobs that match q.
func (tx *transaction) FindJobs(
	ctx context.Context,
	q persistence.JobQuery,
) ([]*persistence.Job, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)

	if q.ExecutionID != "" {
		where = append(where, "execution_id = ?")
		args = append(args, q.ExecutionID)
	}

	if q.ProcessInstanceID != "" {
		where = append(where, "process_instance_id = ?")
		args = append(args, q.ProcessInstanceID)
	}

	if !q.AcquirableAt.IsZero() {
		at := q.AcquirableAt.UnixNano()
		where = append(
			where,
			"retries > 0",
			"is_suspended = 0",
			"due_date <= ?",
			"(lock_owner = '' OR lock_expiration_time IS NULL OR lock_expiration_time <= ?)",
		)
		args = append(args, at, at)
	}

	if q.Dead {
		where = append(where, "retries <= 0")
	}

	suffix := "ORDER BY due_date, id"
	if q.Limit > 0 {
		suffix += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	entities, err := selectEntities(ctx, tx.queryer(), persistence.JobType, jobColumns, where, args, suffix)
	if err != nil {
		return nil, err
	}

	result := make([]*persistence.Job, len(entities))
	for i, e := range entities {
		result[i] = e.(*persistence.Job)
	}

	return result, nil
}

// FindTasks returns the tasks that match q.
func (tx *transaction) FindTasks(
	ctx context.Context,
	q persistence.TaskQuery,
) ([]*persistence.Task, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)

	if q.ExecutionID != "" {
		where = append(where, "execution_id = ?")
		args = append(args, q.ExecutionID)
	}

	if q.ProcessInstanceID != "" {
		where = append(where, "process_instance_id = ?")
		args = append(args, q.ProcessInstanceID)
	}

	entities, err := selectEntities(ctx, tx.queryer(), persistence.TaskType, taskColumns, where, args, "ORDER BY id")
	if err != nil {
		return nil, err
	}

	result := make([]*persistence.Task, len(entities))
	for i, e := range entities {
		result[i] = e.(*persistence.Task)
	}

	return result, nil
}

// Persist applies a batch of operations within the SQL transaction.
//
// If any one of the operations causes an optimistic concurrency conflict a
// ConflictError is returned and the transaction must be rolled back.
func (tx *transaction) Persist(ctx context.Context, b persistence.Batch) error {
	if err := tx.check(ctx); err != nil {
		return err
	}

	b.MustValidate()

	if tx.tx == nil {
		t, err := tx.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		tx.tx = t
	}

	return b.AcceptVisitor(ctx, &writer{tx.tx})
}

// Commit commits the SQL transaction, if one was started.
func (tx *transaction) Commit(ctx context.Context) error {
	if err := tx.check(ctx); err != nil {
		return err
	}

	tx.closed = true

	if tx.tx == nil {
		return nil
	}

	return tx.tx.Commit()
}

// Rollback aborts the SQL transaction, if one was started.
func (tx *transaction) Rollback() error {
	if tx.closed {
		return persistence.ErrTransactionClosed
	}

	tx.closed = true

	if tx.tx == nil {
		return nil
	}

	return tx.tx.Rollback()
}

func (tx *transaction) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if tx.tx != nil && !tx.closed {
			tx.closed = true
			return multierr.Append(err, tx.tx.Rollback())
		}
		return err
	}

	if tx.closed {
		return persistence.ErrTransactionClosed
	}

	return nil
}

func (tx *transaction) queryer() queryer {
	if tx.tx != nil {
		return tx.tx
	}

	return tx.db
}

// selectEntities selects the rows of the table for type t that satisfy all of
// the where conditions.
func selectEntities(
	ctx context.Context,
	q queryer,
	t persistence.Type,
	columns []string,
	where []string,
	args []any,
	suffix string,
) ([]persistence.Entity, error) {
	query := "SELECT " + strings.Join(columns, ", ") + " FROM " + t.String()

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	if suffix != "" {
		query += " " + suffix
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []persistence.Entity

	for rows.Next() {
		e, err := scan(t, rows)
		if err != nil {
			return nil, err
		}

		result = append(result, e)
	}

	return result, rows.Err()
}
