package storage

import (
	"context"
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/keel/internal/logger"
)

// Opener opens a throwaway handle of the relational engine.
type Opener func(ctx context.Context) (*sql.DB, error)

// OpenMemory opens an in-memory SQLite database.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	return sql.Open("sqlite", ":memory:")
}

// Probe answers whether the relational engine works in this process. The
// first answer is kept for the life of the Probe.
type Probe struct {
	open      Opener
	once      sync.Once
	available bool
}

// NewProbe returns a probe that uses open, or OpenMemory when open is nil.
func NewProbe(open Opener) *Probe {
	if open == nil {
		open = OpenMemory
	}
	return &Probe{open: open}
}

// Available opens and pings a handle on first use and reports the outcome.
func (p *Probe) Available(ctx context.Context) bool {
	p.once.Do(func() {
		p.available = p.check(ctx)
	})
	return p.available
}

func (p *Probe) check(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Relational storage probe panicked", "panic", r)
			ok = false
		}
	}()

	db, err := p.open(ctx)
	if err != nil {
		logger.Warn("Relational storage unavailable", "error", err)
		return false
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Warn("Relational storage unavailable", "error", err)
		return false
	}
	return true
}

// Select initializes primary when the probe reports the relational engine
// available, and falls back to fallback otherwise or when primary fails to
// initialize with anything but a migration error.
func Select(ctx context.Context, probe *Probe, primary, fallback Provider) (Provider, error) {
	if probe.Available(ctx) {
		err := primary.Init(ctx)
		if err == nil {
			logger.Debug("Using relational storage", "path", primary.Path())
			return primary, nil
		}
		if IsMigrationError(err) {
			return nil, err
		}
		logger.Warn("Relational storage failed to open, using fallback", "error", err)
	}

	if err := fallback.Init(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Using key-value fallback storage", "path", fallback.Path())
	return fallback, nil
}
