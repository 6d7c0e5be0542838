// Package cloud moves the database file to and from a cloud-backed folder.
// Sync is whole-file and last-modified-wins: uploads always overwrite the
// remote copy, downloads happen only when the remote copy is strictly newer.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/julianstephens/keel/internal/backup"
	"github.com/julianstephens/keel/internal/logger"
)

// ErrNotConfigured is returned by Upload and Download when the transport has
// no usable destination.
var ErrNotConfigured = errors.New("cloud sync is not configured")

// Transport is implemented by each sync destination.
type Transport interface {
	Name() string
	// IsConfigured reports whether the destination is reachable right now.
	IsConfigured(ctx context.Context) bool
	// RemoteModTime returns the remote file's modification time; ok is false
	// when there is no remote file.
	RemoteModTime(ctx context.Context) (modTime time.Time, ok bool, err error)
	// Upload overwrites the remote file with localPath.
	Upload(ctx context.Context, localPath string) error
	// Download replaces localPath with the remote file when the remote copy
	// is strictly newer and reports whether it did.
	Download(ctx context.Context, localPath string) (bool, error)
}

// Policy decides when a remote file wins over the local one.
type Policy struct{}

// ShouldDownload reports whether remote is strictly newer than local, at
// full precision. Transfers stamp the destination with the source mtime, so
// a round trip compares equal.
func (Policy) ShouldDownload(remote, local time.Time) bool {
	return remote.After(local)
}

// LocalModTime returns the modification time of path, or the zero time when
// it does not exist.
func LocalModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// placeFile copies src into dir/name through a temporary file in dir and
// stamps the result with modTime.
func placeFile(src, dir, name string, modTime time.Time) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	cleanup := func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove temporary file", "path", tmpName, "error", err)
		}
	}

	if err := backup.CopyFile(src, tmpName); err != nil {
		cleanup()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := os.Chtimes(tmpName, modTime, modTime); err != nil {
		cleanup()
		return fmt.Errorf("failed to set modification time: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		cleanup()
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// location resolves where the remote file lives for one call.
type location struct {
	dir    string
	remote string // empty when no remote file exists yet
}

// fileSync holds the upload and download logic shared by folder-backed
// transports.
type fileSync struct {
	policy   Policy
	fileName string
	resolve  func(ctx context.Context, create bool) (location, bool, error)
}

func (f fileSync) remoteModTime(ctx context.Context) (time.Time, bool, error) {
	loc, ok, err := f.resolve(ctx, false)
	if err != nil || !ok || loc.remote == "" {
		return time.Time{}, false, err
	}
	info, err := os.Stat(loc.remote)
	if os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return info.ModTime(), true, nil
}

func (f fileSync) upload(ctx context.Context, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc, ok, err := f.resolve(ctx, true)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfigured
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to read local database: %w", err)
	}
	// The remote copy carries the local mtime, so the next comparison sees
	// equal times rather than a newer remote.
	if err := placeFile(localPath, loc.dir, f.fileName, info.ModTime()); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

func (f fileSync) download(ctx context.Context, localPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	loc, ok, err := f.resolve(ctx, false)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotConfigured
	}

	remoteTime, found, err := f.remoteModTime(ctx)
	if err != nil || !found {
		return false, err
	}
	localTime, err := LocalModTime(localPath)
	if err != nil {
		return false, err
	}
	if !f.policy.ShouldDownload(remoteTime, localTime) {
		return false, nil
	}

	if err := backup.Verify(ctx, loc.remote); err != nil {
		return false, fmt.Errorf("remote database is not valid: %w", err)
	}

	localDir := filepath.Dir(localPath)
	if err := os.MkdirAll(localDir, 0700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := placeFile(loc.remote, localDir, filepath.Base(localPath), remoteTime); err != nil {
		return false, fmt.Errorf("download failed: %w", err)
	}
	return true, nil
}
