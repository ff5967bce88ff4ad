package flash

import (
	"bytes"
	"fmt"
	"os"

	"github.com/calvinalkan/lpcnor/pkg/fs"
)

// FileBacked is a Device whose image lives in a single file, snapshotted
// atomically on every mutating call via fs.AtomicWriter and guarded by
// an advisory fs.Lock so only one process touches the image at a time.
//
// It wraps a Memory for the in-process bit-flip semantics and persists the
// full image after every Erase/Program, which is simple and correct but not
// performance-sensitive - appropriate for the norctl CLI and for crash
// recovery tests, not for a hot write path.
type FileBacked struct {
	*Memory
	path   string
	fs     fs.FS
	writer *fs.AtomicWriter
	lock   *fs.Lock
}

// OpenFileBacked opens or creates a file-backed flash image at path with
// npeb PEBs of pebSize bytes each. If the file exists, its contents become
// the initial image (it must be exactly npeb*pebSize bytes); otherwise a
// blank image is created and persisted.
//
// The returned FileBacked holds an exclusive lock on path+".lock" until
// Close is called.
func OpenFileBacked(fsys fs.FS, path string, npeb, pebSize int) (*FileBacked, error) {
	locker := fs.NewLocker(fsys)
	lock, ok, err := locker.TryLock(path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("flash: lock %q: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("flash: image %q is locked by another process", path)
	}

	mem := NewMemory(npeb, pebSize)

	data, err := fsys.ReadFile(path)
	switch {
	case err == nil:
		if len(data) != npeb*pebSize {
			lock.Unlock()
			return nil, fmt.Errorf("flash: image %q has %d bytes, want %d", path, len(data), npeb*pebSize)
		}
		for i := 0; i < npeb; i++ {
			copy(mem.Address(i), data[i*pebSize:(i+1)*pebSize])
		}
	case os.IsNotExist(err):
		// Leave mem blank; persist it below so the file always exists
		// once OpenFileBacked returns successfully.
	default:
		lock.Unlock()
		return nil, fmt.Errorf("flash: read image %q: %w", path, err)
	}

	fb := &FileBacked{
		Memory: mem,
		path:   path,
		fs:     fsys,
		writer: fs.NewAtomicWriter(fsys),
		lock:   lock,
	}
	if err := fb.persist(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return fb, nil
}

func (fb *FileBacked) persist() error {
	buf := &bytes.Buffer{}
	for i := 0; i < fb.NPEB(); i++ {
		buf.Write(fb.Memory.Address(i))
	}
	return fb.writer.Write(fb.path, buf, fb.writer.DefaultOptions())
}

func (fb *FileBacked) Erase(peb int) bool {
	if !fb.Memory.Erase(peb) {
		return false
	}
	return fb.persist() == nil
}

func (fb *FileBacked) Program(peb int, offset int, data []byte) bool {
	if !fb.Memory.Program(peb, offset, data) {
		return false
	}
	return fb.persist() == nil
}

// Close releases the advisory lock on the image file.
func (fb *FileBacked) Close() error {
	return fb.lock.Unlock()
}
