package fs_test

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/blockfs/fs"
	"github.com/dargueta/blockfs/internal/dirent"
	"github.com/dargueta/blockfs/internal/layout"
)

func bootTemp(t *testing.T) (*fs.FileSystem, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.img")
	fsys := fs.New()
	require.NoError(t, fsys.Boot(path))
	return fsys, path
}

// E1: booting a nonexistent path formats a fresh image; booting the same
// path again against a different in-memory FileSystem passes the magic
// number check instead of reformatting.
func TestBootFormatsThenReopens(t *testing.T) {
	fsys, path := bootTemp(t)
	require.NoError(t, fsys.FileCreate("/marker"))
	require.NoError(t, fsys.Sync())

	fsys2 := fs.New()
	require.NoError(t, fsys2.Boot(path))

	_, err := fsys2.FileOpen("/marker")
	assert.NoError(t, err, "file created before Sync should still be there after reboot")
}

func TestFileCreateWriteReadRoundTrips(t *testing.T) {
	fsys, _ := bootTemp(t)
	require.NoError(t, fsys.FileCreate("/a"))

	fd, err := fsys.FileOpen("/a")
	require.NoError(t, err)

	payload := []byte("hello, block filesystem")
	require.NoError(t, fsys.FileWrite(fd, payload))
	require.NoError(t, fsys.FileClose(fd))

	fd, err = fsys.FileOpen("/a")
	require.NoError(t, err)
	buf := make([]byte, len(payload))
	n, err := fsys.FileRead(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

func TestSeekIdempotence(t *testing.T) {
	fsys, _ := bootTemp(t)
	require.NoError(t, fsys.FileCreate("/a"))
	fd, err := fsys.FileOpen("/a")
	require.NoError(t, err)
	require.NoError(t, fsys.FileWrite(fd, []byte("0123456789")))

	_, err = fsys.FileSeek(fd, 3)
	require.NoError(t, err)
	first := make([]byte, 4)
	_, err = fsys.FileRead(fd, first)
	require.NoError(t, err)

	_, err = fsys.FileSeek(fd, 3)
	require.NoError(t, err)
	second := make([]byte, 4)
	_, err = fsys.FileRead(fd, second)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSeekOutOfBounds(t *testing.T) {
	fsys, _ := bootTemp(t)
	require.NoError(t, fsys.FileCreate("/a"))
	fd, err := fsys.FileOpen("/a")
	require.NoError(t, err)

	_, err = fsys.FileSeek(fd, -1)
	assert.Error(t, err)
	_, err = fsys.FileSeek(fd, 1)
	assert.Error(t, err)
}

func TestCreateDuplicateFails(t *testing.T) {
	fsys, _ := bootTemp(t)
	require.NoError(t, fsys.FileCreate("/a"))
	assert.Error(t, fsys.FileCreate("/a"))
}

func TestCreateMissingParentFails(t *testing.T) {
	fsys, _ := bootTemp(t)
	assert.Error(t, fsys.FileCreate("/nope/a"))
}

func TestDirCreateAlwaysReturnsNil(t *testing.T) {
	fsys, _ := bootTemp(t)
	require.NoError(t, fsys.DirCreate("/d"))
	// Creating it again collides, but Dir_Create swallows the failure.
	assert.NoError(t, fsys.DirCreate("/d"))
}

func TestUnlinkThenCreateReusesLowestFree(t *testing.T) {
	fsys, _ := bootTemp(t)
	require.NoError(t, fsys.FileCreate("/a"))
	require.NoError(t, fsys.FileCreate("/b"))

	require.NoError(t, fsys.FileUnlink("/a"))
	require.NoError(t, fsys.FileCreate("/c"))

	// /c takes the root-directory slot /a vacated, the lowest free one, so
	// Dir_Read lists it ahead of /b.
	listing := make([]byte, 2*layout.DirRecordSize)
	count, err := fsys.DirRead("/", listing)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	entries, err := dirent.Decode(padTo(listing, layout.SectorSize))
	require.NoError(t, err)
	assert.Equal(t, "c", entries[0].NameString())

	// /c opens and reads back as a fresh, empty file.
	fd, err := fsys.FileOpen("/c")
	require.NoError(t, err)
	buf := make([]byte, 1)
	n, err := fsys.FileRead(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFileInUseCannotBeUnlinked(t *testing.T) {
	fsys, _ := bootTemp(t)
	require.NoError(t, fsys.FileCreate("/a"))
	fd, err := fsys.FileOpen("/a")
	require.NoError(t, err)
	defer fsys.FileClose(fd)

	assert.Error(t, fsys.FileUnlink("/a"))
}

func TestDirReadMatchesCreatedEntries(t *testing.T) {
	fsys, _ := bootTemp(t)
	require.NoError(t, fsys.DirCreate("/d"))
	require.NoError(t, fsys.FileCreate("/d/x"))
	require.NoError(t, fsys.FileCreate("/d/y"))

	size, err := fsys.DirSize("/d")
	require.NoError(t, err)
	assert.EqualValues(t, 2*layout.DirRecordSize, size)

	buf := make([]byte, size)
	n, err := fsys.DirRead("/d/", buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := dirent.Decode(padTo(buf, layout.SectorSize))
	require.NoError(t, err)

	names := map[string]bool{}
	for i := 0; i < n; i++ {
		names[got[i].NameString()] = true
	}
	want := map[string]bool{"x": true, "y": true}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("directory entries mismatch (-want +got):\n%s", diff)
	}
}

func TestDirReadBufferTooSmall(t *testing.T) {
	fsys, _ := bootTemp(t)
	require.NoError(t, fsys.DirCreate("/d"))
	require.NoError(t, fsys.FileCreate("/d/x"))

	buf := make([]byte, 1)
	_, err := fsys.DirRead("/d/", buf)
	assert.Error(t, err)
}

func padTo(buf []byte, n int) []byte {
	if len(buf) >= n {
		return buf
	}
	out := make([]byte, n)
	copy(out, buf)
	return out
}
