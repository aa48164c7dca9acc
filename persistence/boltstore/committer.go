package boltstore

import (
	"context"

	"github.com/dogmatiq/flowstate/internal/x/bboltx"
	"github.com/dogmatiq/flowstate/persistence"
	"go.etcd.io/bbolt"
)

// committer is an implementation of persistence.OperationVisitor that
// validates each operation against the stored revision and applies it.
//
// Returning an error from any visit method causes the enclosing BoltDB
// transaction to be rolled back, discarding all prior operations.
type committer struct {
	tx *bbolt.Tx
}

// VisitInsert stores a new entity at revision 1.
func (c *committer) VisitInsert(_ context.Context, op persistence.Insert) error {
	if _, ok := load(c.tx, op.Entity.EntityType(), op.Entity.EntityID()); ok {
		return persistence.ConflictError{Cause: op}
	}

	c.save(nil, op.Entity, 1)

	return nil
}

// VisitUpdate stores the entity with its revision incremented.
func (c *committer) VisitUpdate(_ context.Context, op persistence.Update) error {
	old, ok := load(c.tx, op.Entity.EntityType(), op.Entity.EntityID())
	if !ok || old.EntityRevision() != op.Entity.EntityRevision() {
		return persistence.ConflictError{Cause: op}
	}

	c.save(old, op.Entity, op.Entity.EntityRevision()+1)

	return nil
}

// VisitDelete removes the entity.
func (c *committer) VisitDelete(_ context.Context, op persistence.Delete) error {
	old, ok := load(c.tx, op.Entity.EntityType(), op.Entity.EntityID())
	if !ok || old.EntityRevision() != op.Entity.EntityRevision() {
		return persistence.ConflictError{Cause: op}
	}

	unindex(c.tx, old)
	bboltx.Delete(recordBucket(c.tx, old.EntityType()), []byte(old.EntityID()))

	return nil
}

// save writes e at the given revision, replacing the index entries of old.
func (c *committer) save(old, e persistence.Entity, rev uint64) {
	e = e.CloneEntity()
	setRevision(e, rev)

	data, err := marshal(e)
	bboltx.Must(err)

	b := bboltx.CreateBucketIfNotExists(c.tx, recordsBucketKey, typeBucketKey(e.EntityType()))
	bboltx.Put(b, []byte(e.EntityID()), data)

	if old != nil {
		unindex(c.tx, old)
	}

	index(c.tx, e)
}

func setRevision(e persistence.Entity, rev uint64) {
	switch e := e.(type) {
	case *persistence.Execution:
		e.Revision = rev
	case *persistence.Job:
		e.Revision = rev
	case *persistence.Task:
		e.Revision = rev
	}
}

// index adds e to the secondary indexes.
func index(tx *bbolt.Tx, e persistence.Entity) {
	switch e := e.(type) {
	case *persistence.Execution:
		addToIndex(tx, executionParentIndex, []byte(e.ParentID), e.ID)
		addToIndex(tx, executionInstanceIndex, []byte(e.ProcessInstanceID), e.ID)
	case *persistence.Job:
		addToIndex(tx, jobExecutionIndex, []byte(e.ExecutionID), e.ID)
		addToIndex(tx, jobInstanceIndex, []byte(e.ProcessInstanceID), e.ID)
		addToIndex(tx, jobDueIndex, dueKey(e.DueDate), e.ID)
	case *persistence.Task:
		addToIndex(tx, taskExecutionIndex, []byte(e.ExecutionID), e.ID)
		addToIndex(tx, taskInstanceIndex, []byte(e.ProcessInstanceID), e.ID)
	}
}

// unindex removes e from the secondary indexes.
func unindex(tx *bbolt.Tx, e persistence.Entity) {
	switch e := e.(type) {
	case *persistence.Execution:
		removeFromIndex(tx, executionParentIndex, []byte(e.ParentID), e.ID)
		removeFromIndex(tx, executionInstanceIndex, []byte(e.ProcessInstanceID), e.ID)
	case *persistence.Job:
		removeFromIndex(tx, jobExecutionIndex, []byte(e.ExecutionID), e.ID)
		removeFromIndex(tx, jobInstanceIndex, []byte(e.ProcessInstanceID), e.ID)
		removeFromIndex(tx, jobDueIndex, dueKey(e.DueDate), e.ID)
	case *persistence.Task:
		removeFromIndex(tx, taskExecutionIndex, []byte(e.ExecutionID), e.ID)
		removeFromIndex(tx, taskInstanceIndex, []byte(e.ProcessInstanceID), e.ID)
	}
}
