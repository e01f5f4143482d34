package alloc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/blockfs/disk"
	"github.com/dargueta/blockfs/internal/alloc"
	"github.com/dargueta/blockfs/internal/layout"
)

func newDevice(t *testing.T) *disk.Device {
	t.Helper()
	return disk.New(layout.TotalSectors, layout.SectorSize)
}

func TestAllocInodeLowestFree(t *testing.T) {
	dev := newDevice(t)

	first, err := alloc.AllocInode(dev)
	require.NoError(t, err)
	assert.Equal(t, 0, first)

	second, err := alloc.AllocInode(dev)
	require.NoError(t, err)
	assert.Equal(t, 1, second)

	ok, err := alloc.TestInode(dev, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFreeInodeThenReallocateReusesLowest(t *testing.T) {
	dev := newDevice(t)

	for i := 0; i < 5; i++ {
		_, err := alloc.AllocInode(dev)
		require.NoError(t, err)
	}
	require.NoError(t, alloc.FreeInode(dev, 2))

	got, err := alloc.AllocInode(dev)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestAllocInodeExhaustion(t *testing.T) {
	dev := newDevice(t)

	for i := 0; i < layout.MaxInodes; i++ {
		_, err := alloc.AllocInode(dev)
		require.NoError(t, err)
	}

	got, err := alloc.AllocInode(dev)
	require.NoError(t, err)
	assert.Equal(t, alloc.NotAllocated, got)
}

func TestAllocBlockSkipsReservedRegion(t *testing.T) {
	dev := newDevice(t)
	require.NoError(t, alloc.MarkReservedRegion(dev))

	// The scan starts at byte 32 (bit 256), so sectors 254 and 255 are
	// never handed out; see layout.DataScanStartByte.
	got, err := alloc.AllocBlock(dev)
	require.NoError(t, err)
	assert.Equal(t, layout.DataScanStartByte*8, got)
}

func TestAllocBlockZeroesReturnedSector(t *testing.T) {
	dev := newDevice(t)
	require.NoError(t, alloc.MarkReservedRegion(dev))

	stale := make([]byte, layout.SectorSize)
	for i := range stale {
		stale[i] = 0xFF
	}
	require.NoError(t, dev.WriteSector(layout.DataScanStartByte*8, stale))

	got, err := alloc.AllocBlock(dev)
	require.NoError(t, err)

	out := make([]byte, layout.SectorSize)
	require.NoError(t, dev.ReadSector(got, out))
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}
}

func TestFreeBlockThenReallocateReusesLowest(t *testing.T) {
	dev := newDevice(t)
	require.NoError(t, alloc.MarkReservedRegion(dev))

	a, err := alloc.AllocBlock(dev)
	require.NoError(t, err)
	b, err := alloc.AllocBlock(dev)
	require.NoError(t, err)
	require.Less(t, a, b)

	require.NoError(t, alloc.FreeBlock(dev, a))

	got, err := alloc.AllocBlock(dev)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestAllocBlockExhaustion(t *testing.T) {
	dev := newDevice(t)
	require.NoError(t, alloc.MarkReservedRegion(dev))

	// Bits 0..255 are never handed out: 254 reserved for the metadata
	// region, plus bits 254-255 themselves, which the scan can never reach
	// because it starts at byte 32 (bit 256). See layout.DataScanStartByte.
	// The bitmap tracks more bits than the image has sectors; the scan
	// stops at the last sector of the image.
	total := layout.TotalSectors - layout.DataScanStartByte*8
	allocated := 0
	for {
		_, err := alloc.AllocBlock(dev)
		require.NoError(t, err)
		allocated++
		if allocated >= total {
			break
		}
	}

	got, err := alloc.AllocBlock(dev)
	require.NoError(t, err)
	assert.Equal(t, alloc.NotAllocated, got)
}
