package memorystore

import (
	"context"

	"github.com/dogmatiq/flowstate/persistence"
)

// validator is an implementation of persistence.OperationVisitor that returns
// a ConflictError if an operation can not be applied to the database.
//
// It tracks the entities created and removed by earlier operations in the same
// commit so that a batch staged by several Persist() calls is validated as a
// whole.
type validator struct {
	db      *database
	pending map[persistence.Ref]bool // true = exists after earlier ops
}

// VisitInsert returns an error if the entity already exists.
func (v *validator) VisitInsert(_ context.Context, op persistence.Insert) error {
	r := persistence.RefOf(op.Entity)

	if v.exists(r) {
		return persistence.ConflictError{Cause: op}
	}

	v.pending[r] = true

	return nil
}

// VisitUpdate returns an error if the entity does not exist or its revision
// differs from the persisted revision.
func (v *validator) VisitUpdate(_ context.Context, op persistence.Update) error {
	return v.checkRevision(op, op.Entity)
}

// VisitDelete returns an error if the entity does not exist or its revision
// differs from the persisted revision.
func (v *validator) VisitDelete(_ context.Context, op persistence.Delete) error {
	if err := v.checkRevision(op, op.Entity); err != nil {
		return err
	}

	v.pending[persistence.RefOf(op.Entity)] = false

	return nil
}

func (v *validator) exists(r persistence.Ref) bool {
	if x, ok := v.pending[r]; ok {
		return x
	}

	_, ok := v.db.get(r)
	return ok
}

func (v *validator) checkRevision(op persistence.Operation, e persistence.Entity) error {
	r := persistence.RefOf(e)

	if x, ok := v.pending[r]; ok && !x {
		return persistence.ConflictError{Cause: op}
	}

	current, ok := v.db.get(r)
	if !ok || current.EntityRevision() != e.EntityRevision() {
		return persistence.ConflictError{Cause: op}
	}

	return nil
}

// committer is an implementation of persistence.OperationVisitor that
// applies operations to the database.
//
// It is expected that the operations have already been validated using
// validator.
type committer struct {
	db *database
}

// VisitInsert stores the new entity at revision 1.
func (c *committer) VisitInsert(_ context.Context, op persistence.Insert) error {
	c.db.put(withRevision(op.Entity, 1))
	return nil
}

// VisitUpdate stores the entity with its revision incremented.
func (c *committer) VisitUpdate(_ context.Context, op persistence.Update) error {
	c.db.put(withRevision(op.Entity, op.Entity.EntityRevision()+1))
	return nil
}

// VisitDelete removes the entity.
func (c *committer) VisitDelete(_ context.Context, op persistence.Delete) error {
	c.db.remove(persistence.RefOf(op.Entity))
	return nil
}

// withRevision returns a copy of e with its revision set to rev.
func withRevision(e persistence.Entity, rev uint64) persistence.Entity {
	switch e := e.(type) {
	case *persistence.Execution:
		c := e.Clone()
		c.Revision = rev
		return c
	case *persistence.Job:
		c := e.Clone()
		c.Revision = rev
		return c
	default:
		c := e.(*persistence.Task).Clone()
		c.Revision = rev
		return c
	}
}
