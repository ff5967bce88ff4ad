package fs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/lpcnor/pkg/fs"
)

// plainFS hides Real's native WriteFileAtomic so the writer is forced
// down its manual temp-file-plus-rename path.
type plainFS struct {
	fs.FS
}

func Test_AtomicWrite_Native_Path_Replaces_File_In_One_Step(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "image.nor")

	writer := fs.NewAtomicWriter(fs.NewReal())

	if err := writer.WriteWithDefaults(path, strings.NewReader("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := writer.WriteWithDefaults(path, strings.NewReader("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("content=%q, want %q", got, "second")
	}
}

func Test_AtomicWrite_Manual_Path_Leaves_No_Temp_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "image.nor")

	writer := fs.NewAtomicWriter(plainFS{fs.NewReal()})

	if err := writer.WriteWithDefaults(path, strings.NewReader("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("content=%q, want %q", got, "payload")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory has %d entries, want only the image file", len(entries))
	}
}

func Test_AtomicWrite_Rejects_Zero_Perm(t *testing.T) {
	t.Parallel()

	writer := fs.NewAtomicWriter(fs.NewReal())
	err := writer.Write(filepath.Join(t.TempDir(), "x"), strings.NewReader("x"), fs.AtomicWriteOptions{SyncDir: true})
	if err == nil {
		t.Fatal("want error for zero Perm")
	}
}
