package persistence

import "context"

// Reader loads entities from a store.
//
// Entities returned by a Reader are owned by the caller; modifying them has no
// effect on the store until they are persisted by an Update operation.
type Reader interface {
	// Load returns the entity of type t with the given ID.
	//
	// ok is false if the entity does not exist.
	Load(ctx context.Context, t Type, id string) (e Entity, ok bool, err error)

	// FindExecutions returns the executions that match q, sorted by ID.
	FindExecutions(ctx context.Context, q ExecutionQuery) ([]*Execution, error)

	// FindJobs returns the jobs that match q, sorted by due date.
	FindJobs(ctx context.Context, q JobQuery) ([]*Job, error)

	// FindTasks returns the tasks that match q, sorted by ID.
	FindTasks(ctx context.Context, q TaskQuery) ([]*Task, error)
}

// Transaction exposes persistence operations that are applied atomically.
// Transactions are not safe for concurrent use.
type Transaction interface {
	Reader

	// Persist stages a batch of operations within the transaction.
	//
	// If any one of the operations causes an optimistic concurrency conflict
	// a ConflictError is returned, either by Persist() or by Commit().
	Persist(ctx context.Context, b Batch) error

	// Commit applies the changes from the transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the transaction.
	Rollback() error
}

// Store is an interface for storing and retrieving engine state.
type Store interface {
	// Begin starts a new transaction.
	Begin(ctx context.Context) (Transaction, error)

	// Close closes the store.
	//
	// Closing a store causes any future calls to Begin() to return
	// ErrStoreClosed.
	Close() error
}
