package cloudsync

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/keel/internal/backup"
	"github.com/julianstephens/keel/internal/cloud"
)

// fakeTransport records uploads instead of copying files anywhere.
type fakeTransport struct {
	mu         sync.Mutex
	configured bool
	uploads    int
	uploadErr  error
	lastUpload []byte
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) IsConfigured(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configured
}

func (f *fakeTransport) RemoteModTime(context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (f *fakeTransport) Upload(_ context.Context, local string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	f.lastUpload = data
	return f.uploadErr
}

func (f *fakeTransport) Download(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeTransport) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

func makeDB(t *testing.T, path, marker string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.RemoveAll(path))
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE marker (value TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO marker (value) VALUES (?)", marker)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func readMarker(t *testing.T, path string) string {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var v string
	require.NoError(t, db.QueryRow("SELECT value FROM marker").Scan(&v))
	return v
}

var t0 = time.Date(2026, time.October, 10, 12, 0, 0, 0, time.UTC)

func waitEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx))
}

func TestEngineDebouncesWrites(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "keel.db")
	makeDB(t, dbPath, "local", t0)
	tr := &fakeTransport{configured: true}
	e := NewEngine(context.Background(), Options{DBPath: dbPath, Transport: tr, Debounce: 40 * time.Millisecond})
	defer e.Close()

	for i := 0; i < 5; i++ {
		e.Notify()
	}
	waitEngine(t, e)
	assert.Equal(t, 1, tr.uploadCount())
	assert.NotEmpty(t, tr.lastUpload)
}

func TestEngineUploadSkippedWhenUnconfigured(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "keel.db")
	makeDB(t, dbPath, "local", t0)
	tr := &fakeTransport{}
	e := NewEngine(context.Background(), Options{DBPath: dbPath, Transport: tr, Debounce: time.Millisecond})

	e.Background()
	waitEngine(t, e)
	assert.Zero(t, tr.uploadCount())

	assert.ErrorIs(t, e.Export(context.Background()), cloud.ErrNotConfigured)
	_, err := e.Import(context.Background())
	assert.ErrorIs(t, err, cloud.ErrNotConfigured)
}

func TestEngineUploadSkippedWithoutDatabase(t *testing.T) {
	tr := &fakeTransport{configured: true}
	e := NewEngine(context.Background(), Options{DBPath: filepath.Join(t.TempDir(), "keel.db"), Transport: tr})

	e.Background()
	waitEngine(t, e)
	assert.Zero(t, tr.uploadCount())
}

func TestEngineExportReportsErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "keel.db")
	makeDB(t, dbPath, "local", t0)
	boom := errors.New("quota exceeded")
	tr := &fakeTransport{configured: true, uploadErr: boom}
	e := NewEngine(context.Background(), Options{DBPath: dbPath, Transport: tr})

	assert.ErrorIs(t, e.Export(context.Background()), boom)

	// The background path swallows the same failure.
	e.Background()
	waitEngine(t, e)
	assert.Equal(t, Idle, e.State())
}

func TestEngineExportKeepsLocalModTime(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "keel.db")
	makeDB(t, dbPath, "local", t0)
	root := t.TempDir()
	e := NewEngine(context.Background(), Options{DBPath: dbPath, Transport: cloud.NewManaged(root)})

	require.NoError(t, e.Export(context.Background()))
	info, err := os.Stat(filepath.Join(root, "keel", "keel.db"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(t0))

	st, err := e.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.HasRemote)
	assert.False(t, st.RemoteNewer, "a round trip never looks newer")

	entries, err := os.ReadDir(filepath.Dir(dbPath))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".keel-upload-"), "staging dir %s left behind", entry.Name())
	}
}

func TestEngineImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "keel.db")
	makeDB(t, dbPath, "local", t0)
	root := t.TempDir()
	makeDB(t, filepath.Join(root, "keel", "keel.db"), "remote", t0.Add(time.Hour))

	var calls []string
	e := NewEngine(ctx, Options{
		DBPath:    dbPath,
		Transport: cloud.NewManaged(root),
		Suspend:   func() error { calls = append(calls, "suspend"); return nil },
		Resume:    func(context.Context) error { calls = append(calls, "resume"); return nil },
	})

	replaced, err := e.Import(ctx)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, "remote", readMarker(t, dbPath))
	assert.Equal(t, []string{"suspend", "resume"}, calls)

	backups, err := backup.NewManager(dbPath).List()
	require.NoError(t, err)
	require.Len(t, backups, 1, "the replaced file is backed up")
	assert.Equal(t, "local", readMarker(t, backups[0].Path))

	replaced, err = e.Import(ctx)
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Len(t, calls, 2, "nothing newer, database stays open")
}

func TestEnginePullOnStart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "keel.db")
	root := t.TempDir()
	makeDB(t, filepath.Join(root, "keel", "keel.db"), "remote", t0)

	e := NewEngine(ctx, Options{DBPath: dbPath, Transport: cloud.NewManaged(root)})
	assert.True(t, e.PullOnStart(ctx), "a fresh install takes the remote copy")
	assert.Equal(t, "remote", readMarker(t, dbPath))

	off := NewEngine(ctx, Options{DBPath: dbPath})
	assert.False(t, off.PullOnStart(ctx))
}
