package fixtures

import (
	"context"

	"github.com/dogmatiq/flowstate/persistence"
)

// StoreStub is a test implementation of the persistence.Store interface.
type StoreStub struct {
	persistence.Store

	BeginFunc func(context.Context) (persistence.Transaction, error)
	CloseFunc func() error
}

// Begin starts a new transaction.
//
// If the stub wraps a store, the transactions it returns are wrapped in a
// TransactionStub.
func (s *StoreStub) Begin(ctx context.Context) (persistence.Transaction, error) {
	if s.BeginFunc != nil {
		return s.BeginFunc(ctx)
	}

	if s.Store != nil {
		tx, err := s.Store.Begin(ctx)
		if tx != nil {
			tx = &TransactionStub{Transaction: tx}
		}
		return tx, err
	}

	return nil, nil
}

// Close closes the store.
func (s *StoreStub) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}

	if s.Store != nil {
		return s.Store.Close()
	}

	return nil
}

// TransactionStub is a test implementation of the persistence.Transaction
// interface.
type TransactionStub struct {
	persistence.Transaction

	PersistFunc  func(context.Context, persistence.Batch) error
	CommitFunc   func(context.Context) error
	RollbackFunc func() error
}

// Persist stages a batch of operations within the transaction.
func (t *TransactionStub) Persist(ctx context.Context, b persistence.Batch) error {
	if t.PersistFunc != nil {
		return t.PersistFunc(ctx, b)
	}

	if t.Transaction != nil {
		return t.Transaction.Persist(ctx, b)
	}

	return nil
}

// Commit applies the changes from the transaction.
func (t *TransactionStub) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		return t.CommitFunc(ctx)
	}

	if t.Transaction != nil {
		return t.Transaction.Commit(ctx)
	}

	return nil
}

// Rollback aborts the transaction.
func (t *TransactionStub) Rollback() error {
	if t.RollbackFunc != nil {
		return t.RollbackFunc()
	}

	if t.Transaction != nil {
		return t.Transaction.Rollback()
	}

	return nil
}

// Executions returns the persisted executions of a process instance.
func Executions(ctx context.Context, s persistence.Store, instanceID string) []*persistence.Execution {
	var result []*persistence.Execution

	must(persistence.WithTransaction(ctx, s, func(tx persistence.Transaction) error {
		var err error
		result, err = tx.FindExecutions(ctx, persistence.ExecutionQuery{ProcessInstanceID: instanceID})
		return err
	}))

	return result
}

// Tasks returns the persisted tasks of a process instance.
func Tasks(ctx context.Context, s persistence.Store, instanceID string) []*persistence.Task {
	var result []*persistence.Task

	must(persistence.WithTransaction(ctx, s, func(tx persistence.Transaction) error {
		var err error
		result, err = tx.FindTasks(ctx, persistence.TaskQuery{ProcessInstanceID: instanceID})
		return err
	}))

	return result
}

// Jobs returns the persisted jobs that match q.
func Jobs(ctx context.Context, s persistence.Store, q persistence.JobQuery) []*persistence.Job {
	var result []*persistence.Job

	must(persistence.WithTransaction(ctx, s, func(tx persistence.Transaction) error {
		var err error
		result, err = tx.FindJobs(ctx, q)
		return err
	}))

	return result
}

// Load returns a persisted entity, or nil if it does not exist.
func Load(ctx context.Context, s persistence.Store, t persistence.Type, id string) persistence.Entity {
	var result persistence.Entity

	must(persistence.WithTransaction(ctx, s, func(tx persistence.Transaction) error {
		e, ok, err := tx.Load(ctx, t, id)
		if ok {
			result = e
		}
		return err
	}))

	return result
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
