package cloudsync

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/julianstephens/keel/internal/logger"
)

// Watcher turns writes to the database file made by any process into sync
// requests. It runs until its context is cancelled, then flushes.
type Watcher struct {
	engine   *Engine
	dbPath   string
	lockPath string

	// ready, when set, is closed once the file watch is in place.
	ready chan struct{}
}

func NewWatcher(engine *Engine, dbPath, lockPath string) *Watcher {
	return &Watcher{engine: engine, dbPath: dbPath, lockPath: lockPath}
}

// Run holds the watcher lock and watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	lock, err := AcquireLock(w.lockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release watcher lock", "error", err)
		}
	}()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer fw.Close()

	// Watch the directory: SQLite and downloads replace the file, which
	// would drop a watch on the file itself.
	if err := fw.Add(filepath.Dir(w.dbPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.dbPath), err)
	}
	if w.ready != nil {
		close(w.ready)
	}
	logger.Info("Watching database for changes", "path", w.dbPath)

	name := filepath.Base(w.dbPath)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Watcher stopping, flushing pending sync")
			w.engine.Background()
			return w.engine.Wait(context.WithoutCancel(ctx))
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				logger.Debug("Database changed", "op", ev.Op.String())
				w.engine.Notify()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error", "error", err)
		}
	}
}
