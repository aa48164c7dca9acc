package memorystore

import (
	"context"
	"sync"

	"github.com/dogmatiq/flowstate/persistence"
)

// Store is an implementation of persistence.Store that keeps all engine state
// in memory.
//
// The zero-value is ready to use.
type Store struct {
	m      sync.RWMutex
	closed bool
	db     database
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (persistence.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.m.RLock()
	defer s.m.RUnlock()

	if s.closed {
		return nil, persistence.ErrStoreClosed
	}

	return &transaction{store: s}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}

	s.closed = true

	return nil
}

// database is the in-memory state of a store.
type database struct {
	executions map[string]*persistence.Execution
	jobs       map[string]*persistence.Job
	tasks      map[string]*persistence.Task
}

// get returns the persisted entity with the given reference.
func (db *database) get(r persistence.Ref) (persistence.Entity, bool) {
	switch r.Type {
	case persistence.ExecutionType:
		x, ok := db.executions[r.ID]
		return x, ok
	case persistence.JobType:
		j, ok := db.jobs[r.ID]
		return j, ok
	default:
		t, ok := db.tasks[r.ID]
		return t, ok
	}
}

// put stores e in the database.
func (db *database) put(e persistence.Entity) {
	switch e := e.(type) {
	case *persistence.Execution:
		if db.executions == nil {
			db.executions = map[string]*persistence.Execution{}
		}
		db.executions[e.ID] = e
	case *persistence.Job:
		if db.jobs == nil {
			db.jobs = map[string]*persistence.Job{}
		}
		db.jobs[e.ID] = e
	case *persistence.Task:
		if db.tasks == nil {
			db.tasks = map[string]*persistence.Task{}
		}
		db.tasks[e.ID] = e
	}
}

// remove removes the entity with the given reference.
func (db *database) remove(r persistence.Ref) {
	switch r.Type {
	case persistence.ExecutionType:
		delete(db.executions, r.ID)
	case persistence.JobType:
		delete(db.jobs, r.ID)
	default:
		delete(db.tasks, r.ID)
	}
}
