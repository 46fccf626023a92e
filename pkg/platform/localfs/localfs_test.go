package localfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWithoutOverwriteRejectsExisting(t *testing.T) {
	fs := New(t.TempDir())

	f, err := fs.Create("a.dat", false)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = fs.Create("a.dat", false)
	assert.True(t, os.IsExist(err))
}

// TestCreateOverwriteStagesUntilClose confirms the overwrite path commits
// atomically: the file on disk keeps its old contents until Close, then
// flips to the new contents in one step rather than being truncated up
// front.
func TestCreateOverwriteStagesUntilClose(t *testing.T) {
	dir := t.TempDir()
	fs := New(dir)

	f1, err := fs.Create("a.dat", false)
	require.NoError(t, err)
	_, err = f1.Write([]byte("old"))
	require.NoError(t, err)
	require.NoError(t, f1.Close())

	f2, err := fs.Create("a.dat", true)
	require.NoError(t, err)
	_, err = f2.Write([]byte("new"))
	require.NoError(t, err)

	onDisk, err := os.ReadFile(filepath.Join(dir, "a.dat"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(onDisk))

	require.NoError(t, f2.Close())

	onDisk, err = os.ReadFile(filepath.Join(dir, "a.dat"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(onDisk))
}

func TestUsageReportsCapacity(t *testing.T) {
	fs := New(t.TempDir())
	u, err := fs.Usage()
	require.NoError(t, err)
	assert.Greater(t, u.TotalBytes, uint64(0))
}
