// Package localfs implements platform.FileSystem over the real operating
// system filesystem, grounded on the Real implementation in the example
// pack (calvinalkan-agent-task/internal/fs/real.go): thin passthroughs to
// the os package, golang.org/x/sys/unix for capacity reporting that os
// itself doesn't expose, and github.com/natefinch/atomic for the
// overwrite path so a crash mid-write never leaves a torn file behind.
package localfs

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"

	"github.com/hollowgrove/gocood/pkg/platform"
)

// LocalFS roots every relative path it's given at Root before touching the
// operating system.
type LocalFS struct {
	Root string
}

// New constructs a LocalFS rooted at root. The directory is not created;
// callers are expected to have provisioned it.
func New(root string) *LocalFS {
	return &LocalFS{Root: root}
}

func (l *LocalFS) abs(path string) string {
	return filepath.Join(l.Root, filepath.FromSlash(path))
}

// Open opens an existing file for reading.
func (l *LocalFS) Open(path string) (platform.File, error) {
	return os.Open(l.abs(path))
}

// Create opens path for writing, failing with an os.ErrExist-satisfying
// error if the file exists and overwrite is false. The overwrite case is
// staged in memory and only committed via atomic.WriteFile on Close, so a
// process that dies mid-write leaves the previous contents intact instead
// of a truncated file.
func (l *LocalFS) Create(path string, overwrite bool) (platform.File, error) {
	full := l.abs(path)
	if !overwrite {
		return os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	return &atomicFile{path: full}, nil
}

// Remove deletes a single file.
func (l *LocalFS) Remove(path string) error {
	return os.Remove(l.abs(path))
}

// Rename moves oldPath to newPath.
func (l *LocalFS) Rename(oldPath, newPath string) error {
	return os.Rename(l.abs(oldPath), l.abs(newPath))
}

// Mkdir creates exactly one directory level.
func (l *LocalFS) Mkdir(path string) error {
	return os.Mkdir(l.abs(path), 0o755)
}

// Rmdir removes an empty directory.
func (l *LocalFS) Rmdir(path string) error {
	return os.Remove(l.abs(path))
}

// Stat returns metadata for path.
func (l *LocalFS) Stat(path string) (platform.FileInfo, error) {
	info, err := os.Stat(l.abs(path))
	if err != nil {
		return platform.FileInfo{}, err
	}
	return toFileInfo(info), nil
}

// ReadDir lists path's immediate children, sorted by name (os.ReadDir's
// guarantee).
func (l *LocalFS) ReadDir(path string) ([]platform.FileInfo, error) {
	entries, err := os.ReadDir(l.abs(path))
	if err != nil {
		return nil, err
	}
	out := make([]platform.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, toFileInfo(info))
	}
	return out, nil
}

// Usage reports capacity for the filesystem backing Root via statfs(2).
func (l *LocalFS) Usage() (platform.Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(l.Root, &st); err != nil {
		return platform.Usage{}, err
	}
	blockSize := uint64(st.Bsize)
	return platform.Usage{
		TotalBytes: st.Blocks * blockSize,
		FreeBytes:  st.Bavail * blockSize,
	}, nil
}

func toFileInfo(info fs.FileInfo) platform.FileInfo {
	return platform.FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}
}

// atomicFile buffers writes in memory and commits them to path as a unit
// via atomic.WriteFile (write-temp-then-rename) on Close, so concurrent
// readers never observe a partially overwritten file.
type atomicFile struct {
	path string
	buf  bytes.Buffer
}

func (f *atomicFile) Read(p []byte) (int, error)  { return f.buf.Read(p) }
func (f *atomicFile) Write(p []byte) (int, error) { return f.buf.Write(p) }

func (f *atomicFile) Close() error {
	return atomic.WriteFile(f.path, bytes.NewReader(f.buf.Bytes()))
}

var _ platform.FileSystem = (*LocalFS)(nil)
var _ platform.File = (*atomicFile)(nil)
