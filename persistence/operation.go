package persistence

import "context"

// Operation is a persistence operation that can be performed as part of an
// atomic batch.
type Operation interface {
	// AcceptVisitor calls the appropriate visit method on the given visitor.
	AcceptVisitor(context.Context, OperationVisitor) error

	// Subject returns the entity the operation applies to.
	Subject() Entity
}

// Insert is a persistence operation that creates a new entity.
//
// The operation causes a conflict if an entity with the same type and ID
// already exists.
type Insert struct {
	Entity Entity
}

// Update is a persistence operation that modifies an existing entity.
//
// Entity.EntityRevision() must be the revision of the entity as currently
// persisted, otherwise an optimistic concurrency conflict occurs and the entire
// batch of operations is rejected.
type Update struct {
	Entity Entity
}

// Delete is a persistence operation that removes an existing entity.
//
// Entity.EntityRevision() must be the revision of the entity as currently
// persisted, otherwise an optimistic concurrency conflict occurs and the entire
// batch of operations is rejected.
type Delete struct {
	Entity Entity
}

// OperationVisitor visits persistence operations.
type OperationVisitor interface {
	VisitInsert(context.Context, Insert) error
	VisitUpdate(context.Context, Update) error
	VisitDelete(context.Context, Delete) error
}

// AcceptVisitor calls v.VisitInsert().
func (op Insert) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitInsert(ctx, op)
}

// Subject returns op.Entity.
func (op Insert) Subject() Entity { return op.Entity }

// AcceptVisitor calls v.VisitUpdate().
func (op Update) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitUpdate(ctx, op)
}

// Subject returns op.Entity.
func (op Update) Subject() Entity { return op.Entity }

// AcceptVisitor calls v.VisitDelete().
func (op Delete) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitDelete(ctx, op)
}

// Subject returns op.Entity.
func (op Delete) Subject() Entity { return op.Entity }
