package sqlitestore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dogmatiq/flowstate/persistence"
)

// writer is an implementation of persistence.OperationVisitor that applies
// operations within a SQL transaction.
//
// Updates and deletes are conditional on the revision; a statement that
// affects no rows is an optimistic concurrency conflict.
type writer struct {
	tx *sql.Tx
}

// VisitInsert inserts a new row at revision 1.
func (w *writer) VisitInsert(ctx context.Context, op persistence.Insert) error {
	e := op.Entity
	table := e.EntityType().String()

	var n int
	if err := w.tx.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE id = ?`,
		e.EntityID(),
	).Scan(&n); err != nil {
		return err
	}

	if n > 0 {
		return persistence.ConflictError{Cause: op}
	}

	vals, err := values(e)
	if err != nil {
		return err
	}

	columns := columnsOf(e.EntityType())
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	_, err = w.tx.ExecContext(
		ctx,
		`INSERT INTO `+table+` (`+strings.Join(columns, ", ")+`) VALUES (`+placeholders+`)`,
		append([]any{e.EntityID(), 1}, vals...)...,
	)

	return err
}

// VisitUpdate updates the row if its revision matches.
func (w *writer) VisitUpdate(ctx context.Context, op persistence.Update) error {
	e := op.Entity

	vals, err := values(e)
	if err != nil {
		return err
	}

	var assignments []string
	for _, c := range columnsOf(e.EntityType())[2:] {
		assignments = append(assignments, c+" = ?")
	}

	args := append(vals, e.EntityID(), e.EntityRevision())

	res, err := w.tx.ExecContext(
		ctx,
		`UPDATE `+e.EntityType().String()+
			` SET revision = revision + 1, `+strings.Join(assignments, ", ")+
			` WHERE id = ? AND revision = ?`,
		args...,
	)
	if err != nil {
		return err
	}

	return checkAffected(op, res)
}

// VisitDelete deletes the row if its revision matches.
func (w *writer) VisitDelete(ctx context.Context, op persistence.Delete) error {
	e := op.Entity

	res, err := w.tx.ExecContext(
		ctx,
		`DELETE FROM `+e.EntityType().String()+` WHERE id = ? AND revision = ?`,
		e.EntityID(),
		e.EntityRevision(),
	)
	if err != nil {
		return err
	}

	return checkAffected(op, res)
}

func checkAffected(op persistence.Operation, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return persistence.ConflictError{Cause: op}
	}

	return nil
}
