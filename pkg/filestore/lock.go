package filestore

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/tus/lockfile"
)

// ErrLockTimeout is returned when a lock for an upload id could not be
// acquired before the context passed to Lock was done.
var ErrLockTimeout = errors.New("filestore: could not acquire lock before deadline")

// acquirerPollInterval is how often a blocked Lock call retries TryLock
// while another request holds the advisory lock for the same id.
const acquirerPollInterval = 5 * time.Millisecond

// Lock serializes operations against a single upload id across concurrent
// PATCHes (and the sidecar reads/writes they trigger), as required by the
// per-upload serialization rule. It is backed by an OS-level advisory lock
// file rather than an in-process mutex so that it also protects against a
// second tusgo process pointed at the same files_dir.
type Lock struct {
	file lockfile.Lockfile
}

// NewLock returns an (unacquired) lock object for the given upload id. The
// lock file lives alongside the payload and sidecar as <id>.lock.
func (s *Store) NewLock(id string) (*Lock, error) {
	path, err := filepath.Abs(filepath.Join(s.Path, id+".lock"))
	if err != nil {
		return nil, err
	}
	return &Lock{file: lockfile.Lockfile(path)}, nil
}

// Acquire blocks until the lock is obtained or ctx is done, whichever comes
// first.
func (l *Lock) Acquire(ctx context.Context) error {
	for {
		err := l.file.TryLock()
		if err == nil {
			return nil
		}
		if !errors.Is(err, lockfile.ErrBusy) && !errors.Is(err, lockfile.ErrNotExist) {
			return err
		}
		select {
		case <-ctx.Done():
			return ErrLockTimeout
		case <-time.After(acquirerPollInterval):
		}
	}
}

// Release frees the lock. It is a no-op error to call Release without a
// prior successful Acquire, mirroring lockfile's own semantics.
func (l *Lock) Release() error {
	return l.file.Unlock()
}
