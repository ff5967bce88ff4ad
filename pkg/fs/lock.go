package fs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock represents a held advisory lock on a file, acquired via flock(2).
//
// It exists so callers (e.g. a single flash image file shared by at most
// one process at a time) can coordinate without a separate lock manager
// process; the convention is an advisory lock file at Path+".lock".
type Lock struct {
	file *os.File
}

// Locker acquires and releases advisory locks on files.
type Locker struct {
	fs FS
}

// NewLocker returns a Locker backed by fs. fs is currently unused for
// locking itself (flock requires a real OS file descriptor) but is kept so
// Locker composes with the rest of the package's FS abstraction and so a
// future test double can intercept lock-file creation.
func NewLocker(fsys FS) *Locker {
	return &Locker{fs: fsys}
}

// TryLock attempts to acquire an exclusive, non-blocking advisory lock on
// path, creating the file if it does not exist. Returns (nil, false, nil)
// if the lock is already held by someone else.
func (l *Locker) TryLock(path string) (*Lock, bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("fs: open lock file %q: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fs: flock %q: %w", path, err)
	}

	return &Lock{file: f}, true, nil
}

// Unlock releases the lock and closes its underlying file descriptor.
func (l *Lock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("fs: unflock: %w", err)
	}
	return closeErr
}
