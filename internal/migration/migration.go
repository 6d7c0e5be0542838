// Package migration applies versioned schema changes to a SQLite database
// and records each applied version in a ledger table.
package migration

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"
)

const ledgerTable = "schema_migrations"

const createsDirective = "-- creates:"

// Migration is a single schema step. A step runs either its SQL or its Up
// func. Creates names a table whose presence proves the step took effect;
// when the table is missing the ledger row is discarded and the step runs
// again.
type Migration struct {
	Version int
	Name    string
	SQL     string
	Up      func(ctx context.Context, tx *sql.Tx) error
	Creates string
}

func (m Migration) apply(ctx context.Context, tx *sql.Tx) error {
	if m.Up != nil {
		return m.Up(ctx, tx)
	}
	_, err := tx.ExecContext(ctx, m.SQL)
	return err
}

// Status describes the ledger against the known migrations.
type Status struct {
	Applied []int
	Pending []int
	Latest  int
}

// Current returns the highest applied version, or 0 for a fresh database.
func (s Status) Current() int {
	if len(s.Applied) == 0 {
		return 0
	}
	return s.Applied[len(s.Applied)-1]
}

// Runner manages database schema migrations
type Runner struct {
	db         *sql.DB
	migrations []Migration
	logFn      func(string)
	now        func() time.Time
}

// NewRunner creates a runner over an ordered set of migrations. Use Load to
// build the set from SQL files.
func NewRunner(db *sql.DB, migrations []Migration) *Runner {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Runner{
		db:         db,
		migrations: sorted,
		logFn:      func(string) {},
		now:        time.Now,
	}
}

// WithLogger sets a progress callback.
func (r *Runner) WithLogger(fn func(string)) *Runner {
	if fn != nil {
		r.logFn = fn
	}
	return r
}

// Latest returns the highest known migration version.
func (r *Runner) Latest() int {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}

func (r *Runner) validate() error {
	for i, m := range r.migrations {
		if m.Version != i+1 {
			if i > 0 && m.Version == r.migrations[i-1].Version {
				return fmt.Errorf("duplicate migration version %d", m.Version)
			}
			return fmt.Errorf("migration versions must be contiguous from 1: expected %d, found %d", i+1, m.Version)
		}
		if m.SQL == "" && m.Up == nil {
			return fmt.Errorf("migration %d (%s) has no steps", m.Version, m.Name)
		}
	}
	return nil
}

func (r *Runner) ensureLedger(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+ledgerTable+` (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure %s table: %w", ledgerTable, err)
	}
	return nil
}

func (r *Runner) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM "+ledgerTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan applied migration: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (r *Runner) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type='table' AND name COLLATE NOCASE = ?", name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// repair drops ledger rows for migrations whose table no longer exists.
func (r *Runner) repair(ctx context.Context, applied map[int]bool) error {
	for _, m := range r.migrations {
		if !applied[m.Version] || m.Creates == "" {
			continue
		}
		ok, err := r.tableExists(ctx, m.Creates)
		if err != nil {
			return fmt.Errorf("failed to verify migration %d: %w", m.Version, err)
		}
		if ok {
			continue
		}
		r.logFn(fmt.Sprintf("  Migration %d recorded but table %q is missing, re-applying", m.Version, m.Creates))
		if _, err := r.db.ExecContext(ctx, "DELETE FROM "+ledgerTable+" WHERE version = ?", m.Version); err != nil {
			return fmt.Errorf("failed to repair ledger for migration %d: %w", m.Version, err)
		}
		delete(applied, m.Version)
	}
	return nil
}

func (r *Runner) checkNotNewer(applied map[int]bool) error {
	latest := r.Latest()
	for v := range applied {
		if v > latest {
			return fmt.Errorf("database schema version (%d) is newer than supported version (%d) - please upgrade the application", v, latest)
		}
	}
	return nil
}

// Run brings the database up to date and returns the number of migrations
// applied. It is safe to call on every open.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if err := r.validate(); err != nil {
		return 0, err
	}
	if err := r.ensureLedger(ctx); err != nil {
		return 0, err
	}

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	if err := r.checkNotNewer(applied); err != nil {
		return 0, err
	}
	if err := r.repair(ctx, applied); err != nil {
		return 0, err
	}

	var pending []Migration
	for _, m := range r.migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		r.logFn(fmt.Sprintf("Database schema is up to date (version %d)", r.Latest()))
		return 0, nil
	}

	r.logFn(fmt.Sprintf("Applying %d migration(s)...", len(pending)))
	startTime := time.Now()
	appliedCount := 0

	for _, m := range pending {
		r.logFn(fmt.Sprintf("  Applying migration %d: %s", m.Version, m.Name))
		if err := r.applyOne(ctx, m); err != nil {
			return appliedCount, err
		}
		appliedCount++
	}

	r.logFn(fmt.Sprintf("Applied %d migration(s) in %v", appliedCount, time.Since(startTime)))
	return appliedCount, nil
}

func (r *Runner) applyOne(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", m.Version, err)
	}

	if err := m.apply(ctx, tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+ledgerTable+" (version, applied_at) VALUES (?, ?)",
		m.Version, r.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}

// Status reports which known migrations are applied and which are pending.
// It does not modify the database beyond creating the ledger table.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	st := Status{Latest: r.Latest()}
	if err := r.ensureLedger(ctx); err != nil {
		return st, err
	}
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return st, err
	}
	for v := range applied {
		st.Applied = append(st.Applied, v)
	}
	sort.Ints(st.Applied)
	for _, m := range r.migrations {
		if !applied[m.Version] {
			st.Pending = append(st.Pending, m.Version)
		}
	}
	return st, r.checkNotNewer(applied)
}

// Load reads NNN_name.sql files from the root of fsys. A line of the form
// "-- creates: <table>" sets the migration's verifiable table.
func Load(fsys fs.FS) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		// "001_init.sql" -> 1, "init"
		parts := strings.SplitN(file.Name(), "_", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid migration filename format: %s (expected NNN_name.sql)", file.Name())
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in filename %s: %w", file.Name(), err)
		}
		if version < 1 {
			return nil, fmt.Errorf("invalid version number in filename %s: version must be at least 1", file.Name())
		}

		content, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(parts[1], ".sql"),
			SQL:     string(content),
			Creates: parseCreates(string(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", migrations[i].Version)
		}
	}

	return migrations, nil
}

func parseCreates(content string) string {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, createsDirective); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
