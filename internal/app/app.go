// Package app wires storage, sync and repositories together for one process.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/julianstephens/keel/internal/backup"
	"github.com/julianstephens/keel/internal/cloud"
	"github.com/julianstephens/keel/internal/cloudsync"
	"github.com/julianstephens/keel/internal/config"
	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/logger"
	"github.com/julianstephens/keel/internal/repository"
	"github.com/julianstephens/keel/internal/storage"
	"github.com/julianstephens/keel/internal/storage/kv"
	"github.com/julianstephens/keel/internal/storage/sqlite"
)

// App owns the storage context and everything built on it.
type App struct {
	Config   *config.Config
	Probe    *storage.Probe
	SQLite   *sqlite.Store
	KV       *kv.Store
	Fallback *kv.Provider
	Provider storage.Provider
	Engine   *cloudsync.Engine
	Backups  *backup.Manager
	Repos    *repository.Set

	now func() time.Time
}

// Options adjusts Start for tests.
type Options struct {
	// Opener replaces the probe's in-memory open.
	Opener storage.Opener
	Now    func() time.Time
}

// Start opens storage for cfg. A newer remote copy is pulled before the
// database opens. A migration failure is returned; any other relational
// failure falls back to the key-value store for the life of the process.
func Start(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	a := &App{
		Config:  cfg,
		Probe:   storage.NewProbe(opts.Opener),
		SQLite:  sqlite.NewStore(cfg.DBPath()),
		KV:      kv.NewStore(cfg.FallbackPath()),
		Backups: backup.NewManager(cfg.DBPath()),
		now:     opts.Now,
	}
	a.Fallback = kv.NewProvider(a.KV)
	if err := a.KV.Load(); err != nil {
		return nil, err
	}

	transport, err := cloud.New(cfg.Sync.Provider, cfg.Sync.Container, a.KV, kv.FolderHandleKey)
	if err != nil {
		return nil, err
	}

	relational := !cfg.Storage.ForceFallback && a.Probe.Available(ctx)
	engineOpts := cloudsync.Options{
		DBPath:    cfg.DBPath(),
		Transport: transport,
		Backups:   a.Backups,
		Debounce:  cfg.Sync.Debounce,
	}
	if relational {
		engineOpts.Suspend = a.SQLite.Close
		engineOpts.Resume = a.SQLite.Init
	}
	a.Engine = cloudsync.NewEngine(ctx, engineOpts)

	if relational && a.Engine.PullOnStart(ctx) {
		logger.Info("Pulled newer database from sync", "provider", transport.Name())
	}

	if cfg.Storage.ForceFallback {
		logger.Debug("Relational storage disabled by configuration")
		if err := a.Fallback.Init(ctx); err != nil {
			return nil, err
		}
		a.Provider = a.Fallback
	} else {
		a.Provider, err = storage.Select(ctx, a.Probe, a.SQLite, a.Fallback)
		if err != nil {
			return nil, err
		}
	}

	var notifier repository.Notifier
	if a.Relational() {
		a.adoptFallbackData(ctx)
		notifier = a.Engine
	}

	a.Repos = repository.New(a.Provider, repository.Options{
		Notifier:  notifier,
		Now:       opts.Now,
		Location:  cfg.Location(),
		Handles:   a.KV,
		HandleKey: kv.FolderHandleKey,
	})
	return a, nil
}

// Relational reports whether the relational backend was selected.
func (a *App) Relational() bool {
	return a.Provider != nil && a.Provider.Backend() == storage.BackendSQLite
}

// adoptFallbackData moves records written by an earlier fallback run into
// the relational store. Failures leave them in place for the next start.
func (a *App) adoptFallbackData(ctx context.Context) {
	has, err := storage.HasData(ctx, a.Fallback, constants.SettingSyncFolderHandle)
	if err != nil {
		logger.Warn("Failed to inspect fallback store", "error", err)
		return
	}
	if !has {
		return
	}
	res, err := storage.Transfer(ctx, a.Fallback, a.SQLite, constants.SettingSyncFolderHandle)
	if err != nil {
		logger.Warn("Failed to move fallback records into the database", "error", err)
		return
	}
	if res.Total() > 0 {
		a.Engine.Notify()
	}
}

// ClearAll deletes every domain record from both backends. The ledger and
// the sync folder handle survive, and nothing is uploaded until the next
// change.
func (a *App) ClearAll(ctx context.Context) error {
	if err := a.Provider.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear data: %w", err)
	}
	if a.Provider != storage.Provider(a.Fallback) {
		if err := a.Fallback.ClearAll(ctx); err != nil {
			return fmt.Errorf("failed to clear fallback data: %w", err)
		}
	}
	return nil
}

// RestoreBackup replaces the database with a backup while it is closed.
func (a *App) RestoreBackup(ctx context.Context, path string) error {
	if !a.Relational() {
		return fmt.Errorf("cannot restore a backup while using the fallback store")
	}
	if err := a.SQLite.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	restoreErr := a.Backups.Restore(ctx, path)
	if err := a.SQLite.Init(ctx); err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	if restoreErr != nil {
		return restoreErr
	}
	a.Engine.Notify()
	return nil
}

// Watch runs the sync watcher until ctx is cancelled.
func (a *App) Watch(ctx context.Context) error {
	return cloudsync.NewWatcher(a.Engine, a.Config.DBPath(), a.Config.WatcherLockPath()).Run(ctx)
}

// WatcherRunning reports whether a sync watcher is alive for this data dir.
func (a *App) WatcherRunning() bool {
	return cloudsync.WatcherRunning(a.Config.WatcherLockPath())
}

// Shutdown flushes a pending upload, unless a watcher will notice the write
// itself, and closes storage.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Engine != nil {
		switch {
		case a.Engine.State() == cloudsync.Idle:
		case a.WatcherRunning():
			logger.Debug("Leaving upload to the running watcher")
		default:
			if err := a.Engine.Flush(ctx); err != nil {
				logger.Warn("Sync did not finish before exit", "error", err)
			}
		}
		a.Engine.Close()
	}
	if a.Provider != nil {
		return a.Provider.Close()
	}
	return nil
}
