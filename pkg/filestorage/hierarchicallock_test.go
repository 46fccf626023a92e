package filestorage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLocksCanCoexist(t *testing.T) {
	h := NewHierarchicalLock()
	r1, ok := h.TryReadLock("a/b")
	require.True(t, ok)
	defer r1()

	r2, ok := h.TryReadLock("a/b")
	require.True(t, ok)
	defer r2()
}

func TestWriteLockExcludesEverything(t *testing.T) {
	h := NewHierarchicalLock()
	release, ok := h.TryWriteLock("a/b")
	require.True(t, ok)
	defer release()

	_, ok = h.TryReadLock("a/b")
	assert.False(t, ok)
	_, ok = h.TryWriteLock("a/b")
	assert.False(t, ok)
}

// TestPrefixAndDescendantConflicts reproduces property 13: no write-lock on
// /a/b/ coexists with a read-lock on /a/, /a/b/, /a/b/c/, or /a/b/c/x/.
func TestPrefixAndDescendantConflicts(t *testing.T) {
	h := NewHierarchicalLock()
	release, ok := h.TryWriteLock("a/b")
	require.True(t, ok)
	defer release()

	for _, p := range []string{"a", "a/b", "a/b/c", "a/b/c/x"} {
		_, ok := h.TryReadLock(p)
		assert.False(t, ok, "expected conflict for %q", p)
	}
}

func TestDisjointSubtreesProceedInParallel(t *testing.T) {
	h := NewHierarchicalLock()
	releaseB, ok := h.TryWriteLock("a/b")
	require.True(t, ok)
	defer releaseB()

	releaseC, ok := h.TryReadLock("a/c")
	require.True(t, ok)
	defer releaseC()
}

func TestReleaseAllowsReacquisition(t *testing.T) {
	h := NewHierarchicalLock()
	release, ok := h.TryWriteLock("x")
	require.True(t, ok)
	release()

	_, ok = h.TryWriteLock("x")
	assert.True(t, ok)
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := NewHierarchicalLock()
	release, ok := h.TryWriteLock("x")
	require.True(t, ok)
	release()
	release()

	_, ok = h.TryReadLock("x")
	assert.True(t, ok)
}
