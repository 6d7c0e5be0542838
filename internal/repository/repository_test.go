package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/julianstephens/keel/internal/storage"
	"github.com/julianstephens/keel/internal/storage/kv"
	"github.com/julianstephens/keel/internal/storage/sqlite"
)

// now carries sub-millisecond noise so normalization is exercised.
var now = time.Date(2026, time.October, 15, 14, 30, 0, 123456789, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

func (n *countingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type fixture struct {
	*Set
	clock    *clock
	notifier *countingNotifier
	handles  *kv.Store
}

func newFixture(t *testing.T, p storage.Provider) *fixture {
	t.Helper()
	f := &fixture{
		clock:    &clock{t: now},
		notifier: &countingNotifier{},
		handles:  kv.NewStore(filepath.Join(t.TempDir(), "handles.json")),
	}
	// On the fallback backend the handle shares the provider's file, as in
	// the application.
	if kp, ok := p.(*kv.Provider); ok {
		f.handles = kp.Store()
	}
	f.Set = New(p, Options{
		Notifier:  f.notifier,
		Now:       f.clock.Now,
		Location:  time.UTC,
		Handles:   f.handles,
		HandleKey: kv.FolderHandleKey,
	})
	return f
}

func newSQLite(t *testing.T) storage.Provider {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "keel.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func newKV(t *testing.T) storage.Provider {
	t.Helper()
	p := kv.NewProvider(kv.NewStore(filepath.Join(t.TempDir(), "keel.kv.json")))
	require.NoError(t, p.Init(context.Background()))
	return p
}

// forEachBackend runs fn against both backends so the repositories behave
// the same whichever one was selected.
func forEachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	backends := []struct {
		name string
		open func(t *testing.T) storage.Provider
	}{
		{"sqlite", newSQLite},
		{"kv", newKV},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, newFixture(t, b.open(t)))
		})
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
