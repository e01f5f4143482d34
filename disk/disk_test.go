package disk_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta/blockfs/disk"
)

func TestReadWriteSector(t *testing.T) {
	d := disk.New(16, 512)

	buf := bytes.Repeat([]byte{0xAB}, 512)
	require.NoError(t, d.WriteSector(3, buf))

	out := make([]byte, 512)
	require.NoError(t, d.ReadSector(3, out))
	assert.Equal(t, buf, out)

	// Other sectors are unaffected.
	zero := make([]byte, 512)
	require.NoError(t, d.ReadSector(4, out))
	assert.Equal(t, zero, out)
}

func TestReadSectorOutOfRange(t *testing.T) {
	d := disk.New(4, 512)
	buf := make([]byte, 512)
	assert.Error(t, d.ReadSector(-1, buf))
	assert.Error(t, d.ReadSector(4, buf))
}

func TestWriteSectorWrongSize(t *testing.T) {
	d := disk.New(4, 512)
	assert.Error(t, d.WriteSector(0, make([]byte, 511)))
}

func TestLoadMissingFileReturnsErrNotExist(t *testing.T) {
	d := disk.New(4, 512)
	err := d.Load(filepath.Join(t.TempDir(), "nope.img"))
	assert.ErrorIs(t, err, disk.ErrNotExist)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.img")

	d := disk.New(4, 512)
	payload := bytes.Repeat([]byte{0x42}, 512)
	require.NoError(t, d.WriteSector(2, payload))
	require.NoError(t, d.Save(path))

	d2 := disk.New(4, 512)
	require.NoError(t, d2.Load(path))

	out := make([]byte, 512)
	require.NoError(t, d2.ReadSector(2, out))
	assert.Equal(t, payload, out)
}

// Backs a disk.Device with an in-memory io.ReadWriteSeeker rather than a
// host file, and confirms the stream seam round-trips.
func TestLoadSaveStreamRoundTripsThroughInMemorySeeker(t *testing.T) {
	backing := make([]byte, 4*512)
	seeker := bytesextra.NewReadWriteSeeker(backing)

	d := disk.New(4, 512)
	payload := bytes.Repeat([]byte{0x7A}, 512)
	require.NoError(t, d.WriteSector(1, payload))
	require.NoError(t, d.SaveToStream(seeker))

	seeker2 := bytesextra.NewReadWriteSeeker(backing)
	d2 := disk.New(4, 512)
	require.NoError(t, d2.LoadFromStream(seeker2))

	out := make([]byte, 512)
	require.NoError(t, d2.ReadSector(1, out))
	assert.Equal(t, payload, out)
}

func TestLoadFromStreamShorterThanImageZeroPads(t *testing.T) {
	d := disk.New(4, 512)
	require.NoError(t, d.LoadFromStream(bytes.NewReader([]byte{1, 2, 3})))

	out := make([]byte, 512)
	require.NoError(t, d.ReadSector(0, out))
	assert.Equal(t, byte(1), out[0])
	assert.Equal(t, byte(0), out[510])
}
