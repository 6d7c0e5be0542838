package cloudsync

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/keel/internal/constants"
)

var findProcessFunc = ps.FindProcess

// ErrWatcherRunning is returned when another watcher holds the lock.
var ErrWatcherRunning = errors.New("a sync watcher is already running")

// Lock is the watcher's lockfile. It holds "<pid>|<started at>".
type Lock struct {
	path string
}

func readLock(path string) (int, time.Time, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, time.Time{}, err
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 2 {
		return 0, time.Time{}, errors.New("lockfile is malformed")
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		return 0, time.Time{}, errors.New("invalid process ID in lockfile")
	}
	started, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return 0, time.Time{}, errors.New("invalid start time in lockfile")
	}
	return pid, started, nil
}

// holderAlive reports whether pid is a running keel process.
func holderAlive(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return false
	}
	return strings.HasPrefix(process.Executable(), constants.AppName)
}

// WatcherRunning reports whether a live watcher holds the lock at path.
func WatcherRunning(path string) bool {
	pid, _, err := readLock(path)
	if err != nil {
		return false
	}
	return holderAlive(pid)
}

// AcquireLock takes the watcher lock, replacing a stale one.
func AcquireLock(path string) (*Lock, error) {
	if pid, _, err := readLock(path); err == nil && holderAlive(pid) {
		return nil, fmt.Errorf("%w (pid %d)", ErrWatcherRunning, pid)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale lockfile: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrWatcherRunning
		}
		return nil, fmt.Errorf("failed to create lockfile: %w", err)
	}
	content := fmt.Sprintf("%d|%s", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lockfile if this process still owns it.
func (l *Lock) Release() error {
	pid, _, err := readLock(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return os.Remove(l.path)
}
