// Package sqlite is the relational storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/keel/internal/logger"
	"github.com/julianstephens/keel/internal/migration"
	"github.com/julianstephens/keel/internal/storage"
	"github.com/julianstephens/keel/migrations"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type initCall struct {
	done chan struct{}
	err  error
}

type Store struct {
	path string

	mu      sync.Mutex
	db      *sql.DB
	pending *initCall
	// opener replaces open in tests.
	opener func(ctx context.Context) (*sql.DB, error)

	// set on the view handed to Atomic callbacks
	tx *sql.Tx
}

var _ storage.Provider = (*Store)(nil)

func NewStore(path string) *Store {
	return &Store{
		path: path,
	}
}

func (s *Store) Backend() storage.Backend {
	return storage.BackendSQLite
}

func (s *Store) Path() string {
	return s.path
}

// Init opens the database and runs migrations. Concurrent callers share a
// single in-flight open; once open, Init returns immediately until Close.
func (s *Store) Init(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}

	s.mu.Lock()
	if s.db != nil {
		s.mu.Unlock()
		return nil
	}
	if call := s.pending; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &initCall{done: make(chan struct{})}
	s.pending = call
	s.mu.Unlock()

	open := s.opener
	if open == nil {
		open = s.open
	}
	db, err := open(ctx)

	s.mu.Lock()
	if err == nil {
		s.db = db
	}
	call.err = err
	s.pending = nil
	s.mu.Unlock()
	close(call.done)

	return err
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, &storage.MigrationError{Err: err}
	}
	return db, nil
}

// Close releases the handle. A later Init reopens the file, which lets a
// downloaded replacement take effect.
func (s *Store) Close() error {
	if s.tx != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying handle, or nil before Init.
func (s *Store) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

func (s *Store) conn() (querier, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	if db := s.DB(); db != nil {
		return db, nil
	}
	return nil, fmt.Errorf("storage not initialized")
}

// Atomic runs fn inside a transaction. Nested calls join the outer one.
func (s *Store) Atomic(ctx context.Context, fn func(storage.Provider) error) error {
	if s.tx != nil {
		return fn(s)
	}
	db := s.DB()
	if db == nil {
		return fmt.Errorf("storage not initialized")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	view := &Store{path: s.path, tx: tx}
	if err := fn(view); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ClearAll deletes every domain row. The migration ledger is kept.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.Atomic(ctx, func(p storage.Provider) error {
		q, err := p.(*Store).conn()
		if err != nil {
			return err
		}
		for _, table := range []string{"counter_history", "counters", "sessions", "entries", "practice_entries", "settings"} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Migrations returns the embedded SQLite migrations.
func Migrations() ([]migration.Migration, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.Load(subFS)
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	ms, err := Migrations()
	if err != nil {
		return err
	}
	runner := migration.NewRunner(db, ms).WithLogger(func(msg string) {
		logger.Debug(msg)
	})
	_, err = runner.Run(ctx)
	return err
}

// MigrationStatus reports the ledger of an open store.
func (s *Store) MigrationStatus(ctx context.Context) (migration.Status, error) {
	db := s.DB()
	if db == nil {
		return migration.Status{}, fmt.Errorf("storage not initialized")
	}
	ms, err := Migrations()
	if err != nil {
		return migration.Status{}, err
	}
	return migration.NewRunner(db, ms).Status(ctx)
}
