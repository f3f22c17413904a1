package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise runs the same behaviour checks against any FileSystem rooted at root.
func exercise(t *testing.T, fsys FileSystem, root string) {
	t.Helper()

	seq := filepath.Join(root, "seq", "00")
	require.NoError(t, fsys.MkdirAll(seq, 0o755))
	require.NoError(t, fsys.WriteFile(filepath.Join(seq, "000001.bin"), []byte{1, 2, 3}, 0o644))
	require.NoError(t, fsys.WriteFile(filepath.Join(seq, "000000.BIN"), []byte{4}, 0o644))
	require.NoError(t, fsys.WriteFile(filepath.Join(seq, "notes.txt"), []byte("x"), 0o644))

	w, err := fsys.Create(filepath.Join(root, "top.bin"))
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := fsys.ReadFile(filepath.Join(root, "top.bin"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	f, err := fsys.Open(filepath.Join(seq, "000001.bin"))
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, []byte{1, 2, 3}, got)

	info, err := fsys.Stat(filepath.Join(seq, "000001.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())
	assert.False(t, info.IsDir())

	info, err = fsys.Stat(seq)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.True(t, fsys.Exists(seq))
	assert.False(t, fsys.Exists(filepath.Join(root, "missing")))

	rels, err := FilesWithExt(fsys, root, "bin")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("seq", "00", "000000.BIN"),
		filepath.Join("seq", "00", "000001.bin"),
		"top.bin",
	}, rels)

	all, err := fsys.ListFiles(root)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, fsys.RemoveAll(filepath.Join(root, "seq")))
	assert.False(t, fsys.Exists(seq))
	all, err = fsys.ListFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "top.bin")}, all)

	_, err = fsys.ReadFile(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = fsys.Open(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = fsys.Stat(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOSFileSystem(t *testing.T) {
	exercise(t, OSFileSystem{}, t.TempDir())
}

func TestMemoryFileSystem(t *testing.T) {
	exercise(t, NewMemoryFileSystem(), "/data")
}

func TestMemoryFileSystemImpliedDirs(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/a/b/c.bin", nil, 0o644))

	assert.True(t, mfs.Exists("/a"))
	assert.True(t, mfs.Exists("/a/b/"))
	assert.False(t, mfs.Exists("/a/bc"))

	files, err := mfs.ListFiles("/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/c.bin"}, files)

	_, err = mfs.ListFiles("/nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMemoryFileSystemDataIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()
	data := []byte("original")
	require.NoError(t, mfs.WriteFile("/f", data, 0o644))
	data[0] = 'X'

	got, err := mfs.ReadFile("/f")
	require.NoError(t, err)
	got[1] = 'Y'

	again, err := mfs.ReadFile("/f")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))
}

func TestFilesWithExtNoFilter(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/d/x.ply", nil, 0o644))
	require.NoError(t, mfs.WriteFile("/d/y.bin", nil, 0o644))

	rels, err := FilesWithExt(mfs, "/d", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.ply", "y.bin"}, rels)

	rels, err = FilesWithExt(mfs, "/d", ".PLY")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.ply"}, rels)
}
