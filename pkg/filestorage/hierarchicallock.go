// Package filestorage provides a hierarchical path lock table and a
// FileStorage façade built on top of it. The lock table is grounded on the
// in-process lock registry pattern used for cross-handle coordination in
// the example pack (see pkg/slotcache/lock.go's fileRegistry), generalized
// from "lock by file identity" to "lock by path, with prefix/descendant
// conflict detection" since this façade arbitrates whole directory
// subtrees rather than individual inodes.
package filestorage

import (
	"strings"
	"sync"
)

// lockMode distinguishes a held path lock's mode.
type lockMode int

const (
	modeRead lockMode = iota
	modeWrite
)

// heldLock records one outstanding lock in the table.
type heldLock struct {
	path string // always "/"-rooted, trailing-separator terminated
	mode lockMode
}

// HierarchicalLock arbitrates read/write access to a directory tree by
// path. A write-lock on P excludes any lock (read or write) on P, any
// prefix of P, or any descendant of P; a read-lock on P excludes only a
// write-lock on P, a prefix of P, or a descendant of P. Acquisition is
// always non-blocking: callers that fail must retry or fail the operation
// they were attempting.
type HierarchicalLock struct {
	mu   sync.Mutex
	held []heldLock
}

// NewHierarchicalLock constructs an empty lock table.
func NewHierarchicalLock() *HierarchicalLock {
	return &HierarchicalLock{}
}

// normalize turns a slash-separated path (no leading separator, components
// joined by "/") into the trailing-separator lock identifier, e.g. "a/b"
// becomes "/a/b/". The empty string is the root, "/".
func normalize(path string) string {
	if path == "" {
		return "/"
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed + "/"
}

// isPrefixOrDescendant reports whether a and b are the same path, or one is
// an ancestor directory of the other, under the trailing-separator
// convention (so "/a/" is a prefix of "/a/b/" but not of "/ab/").
func isPrefixOrDescendant(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < len(b) {
		return strings.HasPrefix(b, a)
	}
	return strings.HasPrefix(a, b)
}

// conflicts reports whether acquiring mode on path would conflict with an
// already-held lock.
func conflicts(path string, mode lockMode, existing heldLock) bool {
	if !isPrefixOrDescendant(path, existing.path) {
		return false
	}
	if mode == modeWrite || existing.mode == modeWrite {
		return true
	}
	return false
}

// TryReadLock attempts to acquire a non-exclusive lock on path (a
// slash-separated name, without leading/trailing separators; "" is the
// root). It returns a release function on success, or ok=false if any
// write-lock is held on path, a prefix of path, or a descendant of path.
func (h *HierarchicalLock) TryReadLock(path string) (release func(), ok bool) {
	id := normalize(path)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.held {
		if conflicts(id, modeRead, e) {
			return nil, false
		}
	}

	h.held = append(h.held, heldLock{path: id, mode: modeRead})
	return h.releaseFunc(id, modeRead), true
}

// TryWriteLock attempts to acquire an exclusive lock on path. It returns a
// release function on success, or ok=false if any lock of either mode is
// held on path, a prefix of path, or a descendant of path.
func (h *HierarchicalLock) TryWriteLock(path string) (release func(), ok bool) {
	id := normalize(path)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.held {
		if conflicts(id, modeWrite, e) {
			return nil, false
		}
	}

	h.held = append(h.held, heldLock{path: id, mode: modeWrite})
	return h.releaseFunc(id, modeWrite), true
}

// releaseFunc returns a closure that removes exactly one matching entry
// from the table. It is idempotent beyond its first call: once it has
// removed its entry, later calls do nothing, so invoking the returned
// function twice never removes another holder's identical entry.
func (h *HierarchicalLock) releaseFunc(id string, mode lockMode) func() {
	released := false
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if released {
			return
		}
		for i, e := range h.held {
			if e.path == id && e.mode == mode {
				h.held = append(h.held[:i], h.held[i+1:]...)
				released = true
				return
			}
		}
	}
}
