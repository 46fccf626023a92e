// Package platform declares the external filesystem contract FileStorage
// builds on, grounded on the FS abstraction in the example pack
// (calvinalkan-agent-task/pkg/fs): a passthrough-shaped interface over a
// concrete filesystem, narrow enough to fake in tests, rich enough that a
// production implementation (localfs) is a thin os-package wrapper.
package platform

import (
	"io"
	"os"
	"time"
)

// File is an open file handle. It composes with stream.NewIOReader /
// stream.NewIOWriter directly: both only need an io.Reader/io.Writer plus
// a close callback.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// FileInfo mirrors the subset of os.FileInfo FileStorage needs, avoiding a
// hard dependency on concrete os types in the contract itself.
type FileInfo struct {
	Name    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// Usage reports coarse filesystem capacity, as returned by statfs(2) or its
// platform equivalent.
type Usage struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// FileSystem is the contract FileStorage drives; every path it receives is
// already a validated, slash-joined relative path under some root the
// implementation owns.
type FileSystem interface {
	// Open opens an existing file for reading.
	Open(path string) (File, error)
	// Create opens path for writing. If the file exists and overwrite is
	// false, it returns an error satisfying errors.Is(err, os.ErrExist).
	Create(path string, overwrite bool) (File, error)
	// Remove deletes a single file.
	Remove(path string) error
	// Rename moves oldPath to newPath, both relative to the same root.
	Rename(oldPath, newPath string) error
	// Mkdir creates exactly one directory level; it does not create
	// missing parents (mirroring os.Mkdir, not os.MkdirAll), since the
	// façade's hierarchy is meant to be built one CreateDirectory call at
	// a time.
	Mkdir(path string) error
	// Rmdir removes an empty directory.
	Rmdir(path string) error
	// Stat returns metadata for path.
	Stat(path string) (FileInfo, error)
	// ReadDir lists path's immediate children.
	ReadDir(path string) ([]FileInfo, error)
	// Usage reports capacity for the filesystem backing the root.
	Usage() (Usage, error)
}

// IsNotExist reports whether err indicates the target path is missing,
// regardless of which FileSystem implementation produced it.
func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

// IsExist reports whether err indicates the target path already exists.
func IsExist(err error) bool {
	return os.IsExist(err)
}
