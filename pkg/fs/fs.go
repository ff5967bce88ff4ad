// Package fs provides the small filesystem abstraction the file-backed
// flash image persists through: an [FS] interface over the handful of
// operations the image backend needs, a production [Real] implementation,
// an [AtomicWriter] for whole-image snapshots, and an advisory [Lock] so
// only one process opens an image at a time.
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader], [io.Writer],
// [io.Seeker], or [io.Closer].
//
// The intent is os-like behavior: implementations must behave like [os.File],
// including that [File.Fd] returns a valid OS file descriptor usable with
// syscalls (for example flock) until the file is closed.
//
// Note: [File] includes [io.Writer] even for read-only handles. Like [os.File],
// implementations should return an error from Write when the file wasn't opened
// for writing.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS defines the filesystem operations the flash image backend and the
// atomic writer need.
//
// All methods mirror their [os] package equivalents but can be intercepted
// by a test double. Paths use OS semantics (like the os package and
// path/filepath), not the slash-separated paths of io/fs.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// Create creates or truncates a file for writing. See [os.Create].
	// The file is created with mode 0666 (before umask).
	Create(path string) (File, error)

	// OpenFile opens a file with the given flags and permissions. See
	// [os.OpenFile]. Use this for fine-grained control (append,
	// exclusive create, etc).
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary. See
	// [os.WriteFile].
	//
	// Note: WriteFile is not atomic or durable. Errors or crashes can
	// leave a partially written or empty file. For an atomic replacement
	// use [AtomicWriter].
	WriteFile(path string, data []byte, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if the file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename moves/renames a file or directory. See [os.Rename].
	// Atomic on the same filesystem.
	Rename(oldpath, newpath string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
