package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/julianstephens/keel/internal/backup"
	"github.com/julianstephens/keel/internal/cloud"
	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/logger"
)

// Options configures an Engine.
type Options struct {
	DBPath    string
	Transport cloud.Transport
	Backups   *backup.Manager
	Debounce  time.Duration

	// Suspend and Resume close and reopen the database around a download
	// that replaces the file. Either may be nil.
	Suspend func() error
	Resume  func(ctx context.Context) error
}

// Engine replicates the database file through a transport.
type Engine struct {
	opts    Options
	policy  cloud.Policy
	trigger *Trigger

	// serializes transfers started by the trigger with Export and Import
	mu sync.Mutex
}

func NewEngine(ctx context.Context, opts Options) *Engine {
	if opts.Transport == nil {
		opts.Transport = cloud.None{}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = constants.DefaultSyncDebounce
	}
	if opts.Backups == nil {
		opts.Backups = backup.NewManager(opts.DBPath)
	}
	e := &Engine{opts: opts}
	e.trigger = NewTrigger(ctx, opts.Debounce, e.upload)
	return e
}

// Transport returns the configured transport.
func (e *Engine) Transport() cloud.Transport {
	return e.opts.Transport
}

// Notify records that local data changed. The upload happens after the
// quiet period.
func (e *Engine) Notify() {
	e.trigger.Request(false)
}

// Background uploads immediately, as when the process is about to exit.
func (e *Engine) Background() {
	e.trigger.Background()
}

// Wait blocks until pending uploads have finished.
func (e *Engine) Wait(ctx context.Context) error {
	return e.trigger.Wait(ctx)
}

// Flush starts an immediate upload and waits for it.
func (e *Engine) Flush(ctx context.Context) error {
	e.Background()
	return e.Wait(ctx)
}

// Close cancels any pending upload.
func (e *Engine) Close() {
	e.trigger.Stop()
}

// State exposes the trigger state.
func (e *Engine) State() State {
	return e.trigger.State()
}

// upload is the trigger's transfer. It is a no-op when sync is off or there
// is no database file yet.
func (e *Engine) upload(ctx context.Context) error {
	if !e.opts.Transport.IsConfigured(ctx) {
		logger.Debug("Skipping upload, sync not configured", "provider", e.opts.Transport.Name())
		return nil
	}
	if _, err := os.Stat(e.opts.DBPath); os.IsNotExist(err) {
		logger.Debug("Skipping upload, no database file", "path", e.opts.DBPath)
		return nil
	}
	return e.Export(ctx)
}

// Export uploads the database now and reports any failure.
func (e *Engine) Export(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opts.Transport.IsConfigured(ctx) {
		return cloud.ErrNotConfigured
	}

	info, err := os.Stat(e.opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to read local database: %w", err)
	}

	// Upload a consistent snapshot stamped with the live file's mtime.
	tmpDir, err := os.MkdirTemp(filepath.Dir(e.opts.DBPath), ".keel-upload-*")
	if err != nil {
		return fmt.Errorf("failed to create upload staging directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	staged := filepath.Join(tmpDir, constants.DatabaseFileName)
	if err := backup.Snapshot(ctx, e.opts.DBPath, staged); err != nil {
		return err
	}
	if err := os.Chtimes(staged, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to stamp staged database: %w", err)
	}

	if err := e.opts.Transport.Upload(ctx, staged); err != nil {
		return err
	}
	logger.Debug("Uploaded database", "provider", e.opts.Transport.Name())
	return nil
}

// Import replaces the local database with the remote copy when the remote
// copy is strictly newer and reports whether it did. The local file is
// backed up first.
func (e *Engine) Import(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.opts.Transport
	if !t.IsConfigured(ctx) {
		return false, cloud.ErrNotConfigured
	}

	remote, ok, err := t.RemoteModTime(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	local, err := cloud.LocalModTime(e.opts.DBPath)
	if err != nil {
		return false, err
	}
	if !e.policy.ShouldDownload(remote, local) {
		return false, nil
	}

	if !local.IsZero() {
		if _, err := e.opts.Backups.Create(ctx); err != nil {
			return false, fmt.Errorf("failed to back up before download: %w", err)
		}
	}

	if e.opts.Suspend != nil {
		if err := e.opts.Suspend(); err != nil {
			return false, fmt.Errorf("failed to close database before download: %w", err)
		}
	}
	replaced, err := t.Download(ctx, e.opts.DBPath)
	if e.opts.Resume != nil {
		if rerr := e.opts.Resume(ctx); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to reopen database: %w", rerr))
		}
	}
	if err != nil {
		return replaced, err
	}
	if replaced {
		logger.Info("Replaced local database with newer remote copy", "provider", t.Name())
	}
	return replaced, nil
}

// PullOnStart downloads a newer remote copy before the database is opened.
// Failures are logged and never stop start-up.
func (e *Engine) PullOnStart(ctx context.Context) bool {
	if !e.opts.Transport.IsConfigured(ctx) {
		return false
	}
	replaced, err := e.Import(ctx)
	if err != nil {
		logger.Warn("Start-up sync failed", "error", err)
		return false
	}
	return replaced
}

// Status summarizes the sync situation.
type Status struct {
	Provider    string
	Configured  bool
	LocalTime   time.Time
	RemoteTime  time.Time
	HasRemote   bool
	RemoteNewer bool
	State       State
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	t := e.opts.Transport
	st := Status{
		Provider:   t.Name(),
		Configured: t.IsConfigured(ctx),
		State:      e.State(),
	}

	local, err := cloud.LocalModTime(e.opts.DBPath)
	if err != nil {
		return st, err
	}
	st.LocalTime = local

	if !st.Configured {
		return st, nil
	}
	remote, ok, err := t.RemoteModTime(ctx)
	if err != nil {
		return st, err
	}
	st.RemoteTime = remote
	st.HasRemote = ok
	st.RemoteNewer = ok && e.policy.ShouldDownload(remote, local)
	return st, nil
}
