package filestorage

import (
	"errors"
	"path"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/hollowgrove/gocood/pkg/platform"
	"github.com/hollowgrove/gocood/pkg/stream"
)

// Sentinel errors surfaced by the façade, named directly after the GLOSSARY
// entries this core specifies.
var (
	ErrFileAlreadyAccessed      = errors.New("filestorage: file already accessed")
	ErrFileAlreadyExisting      = errors.New("filestorage: file already exists")
	ErrNoSuchFile               = errors.New("filestorage: no such file")
	ErrDirectoryAlreadyAccessed = errors.New("filestorage: directory already accessed")
	ErrDirectoryAlreadyExisting = errors.New("filestorage: directory already exists")
	ErrNoSuchDirectory          = errors.New("filestorage: no such directory")
	ErrDirectoryNotEmpty        = errors.New("filestorage: directory not empty")
)

// FileStorage arbitrates concurrent access to a directory tree rooted at a
// platform.FileSystem, serializing overlapping operations through a
// HierarchicalLock rather than blocking callers.
type FileStorage struct {
	fs     platform.FileSystem
	locks  *HierarchicalLock
	endian stream.Endian
}

// New constructs a façade over fs using endian for every stream it opens.
func New(fs platform.FileSystem, endian stream.Endian) *FileStorage {
	return &FileStorage{fs: fs, locks: NewHierarchicalLock(), endian: endian}
}

func parentDir(name string) string {
	dir := path.Dir(name)
	if dir == "." {
		return ""
	}
	return dir
}

// Open acquires a read-lock on name and returns a stream.Reader that holds
// it until Close.
func (s *FileStorage) Open(name string) (stream.Reader, error) {
	if err := validateBasic(name); err != nil || name == "" {
		return nil, ErrInvalidFileName
	}

	release, ok := s.locks.TryReadLock(name)
	if !ok {
		log.WithField("name", name).Debug("[STORAGE][OPEN] already accessed")
		return nil, ErrFileAlreadyAccessed
	}

	f, err := s.fs.Open(name)
	if err != nil {
		release()
		if platform.IsNotExist(err) {
			return nil, ErrNoSuchFile
		}
		return nil, err
	}

	return stream.NewIOReader(f, s.endian, func() error {
		defer release()
		return f.Close()
	}), nil
}

// Create validates name against the portable rules, acquires a write-lock,
// and returns a stream.Writer that holds it until Close. overwrite==false
// fails with ErrFileAlreadyExisting if name already exists.
func (s *FileStorage) Create(name string, overwrite bool) (stream.Writer, error) {
	if err := validatePortable(name); err != nil || name == "" {
		return nil, ErrInvalidFileName
	}

	if dir := parentDir(name); dir != "" {
		if _, err := s.fs.Stat(dir); err != nil {
			if platform.IsNotExist(err) {
				return nil, ErrNoSuchDirectory
			}
			return nil, err
		}
	}

	release, ok := s.locks.TryWriteLock(name)
	if !ok {
		log.WithField("name", name).Debug("[STORAGE][CREATE] already accessed")
		return nil, ErrFileAlreadyAccessed
	}

	f, err := s.fs.Create(name, overwrite)
	if err != nil {
		release()
		if platform.IsExist(err) {
			return nil, ErrFileAlreadyExisting
		}
		if platform.IsNotExist(err) {
			return nil, ErrNoSuchDirectory
		}
		return nil, err
	}

	return stream.NewIOWriter(f, s.endian, func() error {
		defer release()
		return f.Close()
	}), nil
}

// Delete removes name after acquiring a write-lock on it.
func (s *FileStorage) Delete(name string) error {
	if err := validateBasic(name); err != nil || name == "" {
		return ErrInvalidFileName
	}

	release, ok := s.locks.TryWriteLock(name)
	if !ok {
		return ErrFileAlreadyAccessed
	}
	defer release()

	if err := s.fs.Remove(name); err != nil {
		if platform.IsNotExist(err) {
			return ErrNoSuchFile
		}
		return err
	}
	return nil
}

// Rename moves oldName to newName, holding write-locks on both names for
// the duration of the move. oldName follows the basic name rules;
// newName must additionally be portable.
func (s *FileStorage) Rename(oldName, newName string) error {
	if err := validateBasic(oldName); err != nil || oldName == "" {
		return ErrInvalidFileName
	}
	if err := validatePortable(newName); err != nil || newName == "" {
		return ErrInvalidFileName
	}

	releaseOld, ok := s.locks.TryWriteLock(oldName)
	if !ok {
		return ErrFileAlreadyAccessed
	}
	defer releaseOld()

	releaseNew, ok := s.locks.TryWriteLock(newName)
	if !ok {
		return ErrFileAlreadyAccessed
	}
	defer releaseNew()

	if err := s.fs.Rename(oldName, newName); err != nil {
		if platform.IsNotExist(err) {
			return ErrNoSuchFile
		}
		return err
	}
	return nil
}

// CreateDirectory creates a single directory level under an existing
// parent, requiring a portable name.
func (s *FileStorage) CreateDirectory(name string) error {
	if err := validatePortable(name); err != nil || name == "" {
		return ErrInvalidFileName
	}

	release, ok := s.locks.TryWriteLock(name)
	if !ok {
		return ErrDirectoryAlreadyAccessed
	}
	defer release()

	if err := s.fs.Mkdir(name); err != nil {
		if platform.IsExist(err) {
			return ErrDirectoryAlreadyExisting
		}
		if platform.IsNotExist(err) {
			return ErrNoSuchDirectory
		}
		return err
	}
	return nil
}

// EnumerateFiles lists dirName's immediate children. dirName=="" refers to
// the base directory.
func (s *FileStorage) EnumerateFiles(dirName string) ([]string, error) {
	if err := validateBasic(dirName); err != nil {
		return nil, ErrInvalidFileName
	}

	release, ok := s.locks.TryReadLock(dirName)
	if !ok {
		return nil, ErrDirectoryAlreadyAccessed
	}
	defer release()

	entries, err := s.fs.ReadDir(dirName)
	if err != nil {
		if platform.IsNotExist(err) {
			return nil, ErrNoSuchDirectory
		}
		return nil, err
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	sort.Strings(names)
	return names, nil
}

// DeleteDirectoryContent removes every entry directly under dirName,
// recursively, without removing dirName itself. dirName=="" refers to the
// base directory.
func (s *FileStorage) DeleteDirectoryContent(dirName string) error {
	if err := validateBasic(dirName); err != nil {
		return ErrInvalidFileName
	}

	release, ok := s.locks.TryWriteLock(dirName)
	if !ok {
		return ErrDirectoryAlreadyAccessed
	}
	defer release()

	entries, err := s.fs.ReadDir(dirName)
	if err != nil {
		if platform.IsNotExist(err) {
			return ErrNoSuchDirectory
		}
		return err
	}

	for _, e := range entries {
		child := path.Join(dirName, e.Name)
		if e.IsDir {
			if err := s.deleteDirectoryContentLocked(child); err != nil {
				return err
			}
			if err := s.fs.Rmdir(child); err != nil {
				return err
			}
			continue
		}
		if err := s.fs.Remove(child); err != nil {
			return err
		}
	}
	return nil
}

// deleteDirectoryContentLocked recurses into child without re-acquiring a
// lock on it: the caller already holds dirName's write-lock, which
// (per the hierarchical conflict rule) excludes any concurrent locker from
// child for the duration.
func (s *FileStorage) deleteDirectoryContentLocked(dir string) error {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := path.Join(dir, e.Name)
		if e.IsDir {
			if err := s.deleteDirectoryContentLocked(child); err != nil {
				return err
			}
			if err := s.fs.Rmdir(child); err != nil {
				return err
			}
			continue
		}
		if err := s.fs.Remove(child); err != nil {
			return err
		}
	}
	return nil
}
