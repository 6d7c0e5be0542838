package cloud

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/logger"
)

// HandleStore persists the folder handle. kv.Store satisfies it.
type HandleStore interface {
	Get(key string) (json.RawMessage, bool, error)
	Set(key string, value json.RawMessage) error
	Remove(key string) error
}

// FolderHandle identifies a folder the user granted access to. It is
// persisted as an opaque token.
type FolderHandle struct {
	Path      string    `json:"path"`
	GrantedAt time.Time `json:"granted_at"`
}

// EncodeHandle turns h into an opaque token.
func EncodeHandle(h FolderHandle) (string, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeHandle parses a token produced by EncodeHandle.
func DecodeHandle(token string) (FolderHandle, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return FolderHandle{}, fmt.Errorf("invalid folder handle: %w", err)
	}
	var h FolderHandle
	if err := json.Unmarshal(data, &h); err != nil {
		return FolderHandle{}, fmt.Errorf("invalid folder handle: %w", err)
	}
	if h.Path == "" {
		return FolderHandle{}, fmt.Errorf("invalid folder handle: empty path")
	}
	return h, nil
}

// Folder syncs into a folder the user picked. The folder is re-resolved
// from the stored handle on every call; a folder that no longer exists or
// cannot be listed counts as revoked access and leaves sync unconfigured.
type Folder struct {
	store HandleStore
	key   string
	now   func() time.Time
	sync  fileSync
}

// NewFolder returns a transport whose handle is stored under key.
func NewFolder(store HandleStore, key string) *Folder {
	f := &Folder{store: store, key: key, now: time.Now}
	f.sync = fileSync{fileName: constants.DatabaseFileName, resolve: f.resolve}
	return f
}

func (f *Folder) Name() string {
	return constants.SyncProviderFolder
}

// Handle returns the stored handle, if any.
func (f *Folder) Handle() (FolderHandle, bool, error) {
	raw, ok, err := f.store.Get(f.key)
	if err != nil || !ok {
		return FolderHandle{}, false, err
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return FolderHandle{}, false, fmt.Errorf("invalid folder handle: %w", err)
	}
	h, err := DecodeHandle(token)
	if err != nil {
		return FolderHandle{}, false, err
	}
	return h, true, nil
}

// Pick validates dir and stores a handle for it.
func (f *Folder) Pick(dir string) (FolderHandle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return FolderHandle{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FolderHandle{}, fmt.Errorf("cannot use folder %s: %w", abs, err)
	}
	if !info.IsDir() {
		return FolderHandle{}, fmt.Errorf("cannot use folder %s: not a directory", abs)
	}

	h := FolderHandle{Path: abs, GrantedAt: f.now().UTC()}
	token, err := EncodeHandle(h)
	if err != nil {
		return FolderHandle{}, err
	}
	value, err := json.Marshal(token)
	if err != nil {
		return FolderHandle{}, err
	}
	if err := f.store.Set(f.key, value); err != nil {
		return FolderHandle{}, fmt.Errorf("failed to save folder handle: %w", err)
	}
	return h, nil
}

// Forget removes the stored handle.
func (f *Folder) Forget() error {
	return f.store.Remove(f.key)
}

func (f *Folder) IsConfigured(ctx context.Context) bool {
	_, ok, err := f.resolve(ctx, false)
	return err == nil && ok
}

// resolve lists the granted folder and looks for the database file by name.
func (f *Folder) resolve(ctx context.Context, create bool) (location, bool, error) {
	h, ok, err := f.Handle()
	if err != nil {
		logger.Warn("Ignoring unreadable sync folder handle", "error", err)
		return location{}, false, nil
	}
	if !ok {
		return location{}, false, nil
	}

	entries, err := os.ReadDir(h.Path)
	if err != nil {
		logger.Debug("Sync folder not accessible", "path", h.Path, "error", err)
		return location{}, false, nil
	}

	loc := location{dir: h.Path}
	for _, e := range entries {
		if e.Name() == constants.DatabaseFileName && e.Type().IsRegular() {
			loc.remote = filepath.Join(h.Path, e.Name())
			break
		}
	}
	return loc, true, nil
}

func (f *Folder) RemoteModTime(ctx context.Context) (time.Time, bool, error) {
	return f.sync.remoteModTime(ctx)
}

func (f *Folder) Upload(ctx context.Context, localPath string) error {
	return f.sync.upload(ctx, localPath)
}

func (f *Folder) Download(ctx context.Context, localPath string) (bool, error) {
	return f.sync.download(ctx, localPath)
}
