// Package fs provides filesystem operations that respect sandbox boundaries.
// Components of the engine use this package instead of direct os calls so
// that every touched path passes through the capability sandbox.
package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/InkyQuill/sedx/pkg/sandbox"
)

// Open opens a file for reading.
func Open(path string) (*os.File, error) {
	return sandbox.Open(path)
}

// Create creates a file for writing.
func Create(path string) (*os.File, error) {
	return sandbox.Create(path)
}

// OpenFile opens a file with flags.
func OpenFile(path string, flag int, perm os.FileMode) (*os.File, error) {
	return sandbox.OpenFile(path, flag, perm)
}

// ReadFile reads an entire file.
func ReadFile(path string) ([]byte, error) {
	return sandbox.ReadFile(path)
}

// WriteFile writes data to a file.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return sandbox.WriteFile(path, data, perm)
}

// Stat returns file info.
func Stat(path string) (os.FileInfo, error) {
	return sandbox.Stat(path)
}

// Lstat returns file info without following symlinks.
func Lstat(path string) (os.FileInfo, error) {
	return sandbox.Lstat(path)
}

// ReadDir reads directory contents.
func ReadDir(path string) ([]fs.DirEntry, error) {
	return sandbox.ReadDir(path)
}

// Mkdir creates a directory.
func Mkdir(path string, perm os.FileMode) error {
	return sandbox.Mkdir(path, perm)
}

// MkdirAll creates a directory and parents.
func MkdirAll(path string, perm os.FileMode) error {
	return sandbox.MkdirAll(path, perm)
}

// Remove removes a file or empty directory.
func Remove(path string) error {
	return sandbox.Remove(path)
}

// RemoveAll removes a path recursively.
func RemoveAll(path string) error {
	return sandbox.RemoveAll(path)
}

// Rename renames a file.
func Rename(oldpath, newpath string) error {
	return sandbox.Rename(oldpath, newpath)
}

// Copy copies a file.
func Copy(src, dst string) error {
	return sandbox.Copy(src, dst)
}

// Getwd returns current working directory.
func Getwd() (string, error) {
	return sandbox.Getwd()
}

// Chdir changes directory.
func Chdir(path string) error {
	return sandbox.Chdir(path)
}

// CopyFile copies a file with mode preservation option.
func CopyFile(src, dst string, preserveMode bool) error {
	srcFile, err := Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	mode := os.FileMode(0644)
	if preserveMode {
		mode = srcInfo.Mode()
	}

	dstFile, err := OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// WriteFileAtomic writes data to a temp sibling of path, fsyncs it, and
// renames it over path. On any failure the temp file is removed and path
// is left untouched. This is the single commit primitive used by the
// streaming processor, the in-memory processor, and the backup store.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = Rename(tmpName, path); err != nil {
		return err
	}
	return nil
}

// DiskUsage reports the free and total bytes of the volume containing path.
// It is the concrete default for the disk-space probe the backup store
// consumes; callers needing a different source (quota API, mocked probe)
// may substitute their own function matching this signature.
func DiskUsage(path string) (freeBytes, totalBytes uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	// #nosec G115 -- Bsize is always small and positive on supported platforms
	bsize := uint64(st.Bsize)
	return st.Bavail * bsize, st.Blocks * bsize, nil
}
