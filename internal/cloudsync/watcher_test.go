package cloudsync

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	ps "github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func withProcess(t *testing.T, executable string) {
	t.Helper()
	old := findProcessFunc
	t.Cleanup(func() { findProcessFunc = old })
	findProcessFunc = func(pid int) (ps.Process, error) {
		if executable == "" {
			return nil, nil
		}
		return &mockProcess{pid: pid, executable: executable}, nil
	}
}

func writeLock(t *testing.T, path string, pid int) {
	t.Helper()
	content := strconv.Itoa(pid) + "|" + time.Now().UTC().Format(time.RFC3339)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keel-watch.lock")

	lock, err := AcquireLock(path)
	require.NoError(t, err)
	assert.True(t, WatcherRunning(path), "the current process holds it")

	_, err = AcquireLock(path)
	assert.ErrorIs(t, err, ErrWatcherRunning)

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, path)
	assert.False(t, WatcherRunning(path))
}

func TestAcquireLockReplacesStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keel-watch.lock")

	t.Run("process gone", func(t *testing.T) {
		withProcess(t, "")
		writeLock(t, path, 999999)
		assert.False(t, WatcherRunning(path))

		lock, err := AcquireLock(path)
		require.NoError(t, err)
		require.NoError(t, lock.Release())
	})

	t.Run("pid reused by another program", func(t *testing.T) {
		withProcess(t, "bash")
		writeLock(t, path, 999999)

		lock, err := AcquireLock(path)
		require.NoError(t, err)
		require.NoError(t, lock.Release())
	})

	t.Run("malformed", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))
		lock, err := AcquireLock(path)
		require.NoError(t, err)
		require.NoError(t, lock.Release())
	})
}

func TestAcquireLockRespectsLiveWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keel-watch.lock")
	withProcess(t, "keel")
	writeLock(t, path, 999999)

	assert.True(t, WatcherRunning(path))
	_, err := AcquireLock(path)
	assert.ErrorIs(t, err, ErrWatcherRunning)
}

func TestReleaseLeavesForeignLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keel-watch.lock")
	lock, err := AcquireLock(path)
	require.NoError(t, err)

	writeLock(t, path, 999999)
	require.NoError(t, lock.Release())
	assert.FileExists(t, path)
}

func TestWatcherUploadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "keel.db")
	makeDB(t, dbPath, "local", t0)

	tr := &fakeTransport{configured: true}
	e := NewEngine(context.Background(), Options{DBPath: dbPath, Transport: tr, Debounce: 20 * time.Millisecond})
	w := NewWatcher(e, dbPath, filepath.Join(dir, "keel-watch.lock"))
	w.ready = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.ready:
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}
	assert.True(t, WatcherRunning(filepath.Join(dir, "keel-watch.lock")))

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))
	makeDB(t, dbPath, "changed", t0.Add(time.Minute))

	require.Eventually(t, func() bool { return tr.uploadCount() >= 1 }, 5*time.Second, 10*time.Millisecond)
	waitEngine(t, e)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.NoFileExists(t, filepath.Join(dir, "keel-watch.lock"))
	assert.GreaterOrEqual(t, tr.uploadCount(), 2, "stopping flushes immediately")
}
