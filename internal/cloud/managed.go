package cloud

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/julianstephens/keel/internal/constants"
)

// Managed syncs into an app-owned folder inside a managed cloud container
// such as an iCloud Drive or Dropbox root. The container is checked on every
// call since it can disappear while the process runs.
type Managed struct {
	root string
	sync fileSync
}

// NewManaged returns a transport that stores the database under
// <root>/keel/keel.db.
func NewManaged(root string) *Managed {
	m := &Managed{root: root}
	m.sync = fileSync{fileName: constants.DatabaseFileName, resolve: m.resolve}
	return m
}

func (m *Managed) Name() string {
	return constants.SyncProviderManaged
}

func (m *Managed) containerAvailable() bool {
	if m.root == "" {
		return false
	}
	info, err := os.Stat(m.root)
	return err == nil && info.IsDir()
}

func (m *Managed) IsConfigured(ctx context.Context) bool {
	return m.containerAvailable()
}

func (m *Managed) resolve(ctx context.Context, create bool) (location, bool, error) {
	if !m.containerAvailable() {
		return location{}, false, nil
	}
	dir := filepath.Join(m.root, constants.ManagedFolderName)
	if create {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return location{}, false, err
		}
	}
	return location{dir: dir, remote: filepath.Join(dir, constants.DatabaseFileName)}, true, nil
}

func (m *Managed) RemoteModTime(ctx context.Context) (time.Time, bool, error) {
	return m.sync.remoteModTime(ctx)
}

func (m *Managed) Upload(ctx context.Context, localPath string) error {
	return m.sync.upload(ctx, localPath)
}

func (m *Managed) Download(ctx context.Context, localPath string) (bool, error) {
	return m.sync.download(ctx, localPath)
}

// None is the transport used when sync is disabled.
type None struct{}

func (None) Name() string                      { return constants.SyncProviderNone }
func (None) IsConfigured(context.Context) bool { return false }

func (None) RemoteModTime(context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (None) Upload(context.Context, string) error { return ErrNotConfigured }

func (None) Download(context.Context, string) (bool, error) { return false, ErrNotConfigured }
