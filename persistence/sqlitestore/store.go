package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/persistence/sqlitestore/migrations"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // register the "sqlite" driver
)

// Store is an implementation of persistence.Store backed by SQLite.
type Store struct {
	m  sync.RWMutex
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path, applies the
// embedded schema migrations and returns a store that uses it.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// SQLite permits a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, multierr.Append(
			fmt.Errorf("ping sqlite db: %w", err),
			db.Close(),
		)
	}

	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		return nil, multierr.Append(
			fmt.Errorf("run migrations: %w", err),
			db.Close(),
		)
	}

	return &Store{db: db}, nil
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

	return &transaction{db: s.db}, nil
}

// Close closes the store and the underlying database.
func (s *Store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.db == nil {
		return persistence.ErrStoreClosed
	}

	db := s.db
	s.db = nil

	return db.Close()
}
