package boltstore

import (
	"context"
	"os"
	"sync"

	"github.com/dogmatiq/flowstate/internal/x/bboltx"
	"github.com/dogmatiq/flowstate/persistence"
	"go.etcd.io/bbolt"
)

// Store is an implementation of persistence.Store that stores engine state in
// a BoltDB database.
type Store struct {
	m     sync.RWMutex
	db    *bbolt.DB
	close func(*bbolt.DB) error
}

// New returns a store that uses an existing open database.
//
// Closing the store does not close db.
func New(db *bbolt.DB) *Store {
	return &Store{
		db: db,
		close: func(*bbolt.DB) error {
			// Don't actually close the database, since we didn't open it.
			return nil
		},
	}
}

// Open opens (or creates) a BoltDB database file at the given path and returns
// a store that uses it.
//
// If mode is zero, 0600 (owner read/write only) is used. If opts is nil,
// bbolt.DefaultOptions is used.
func Open(
	ctx context.Context,
	path string,
	mode os.FileMode,
	opts *bbolt.Options,
) (*Store, error) {
	db, err := bboltx.Open(ctx, path, mode, opts)
	if err != nil {
		return nil, err
	}

	return &Store{
		db: db,
		close: func(db *bbolt.DB) error {
			return db.Close()
		},
	}, nil
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (persistence.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.m.RLock()
	defer s.m.RUnlock()

	if s.db == nil {
		return nil, persistence.ErrStoreClosed
	}

	return &transaction{store: s}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.db == nil {
		return persistence.ErrStoreClosed
	}

	db := s.db
	s.db = nil

	return s.close(db)
}

// view executes fn within a read-only BoltDB transaction.
func (s *Store) view(fn func(tx *bbolt.Tx)) (err error) {
	defer bboltx.Recover(&err)

	s.m.RLock()
	defer s.m.RUnlock()

	if s.db == nil {
		return persistence.ErrStoreClosed
	}

	bboltx.View(s.db, fn)

	return nil
}

// update executes fn within a read-write BoltDB transaction.
func (s *Store) update(fn func(tx *bbolt.Tx)) (err error) {
	defer bboltx.Recover(&err)

	s.m.RLock()
	defer s.m.RUnlock()

	if s.db == nil {
		return persistence.ErrStoreClosed
	}

	bboltx.Update(s.db, fn)

	return nil
}
