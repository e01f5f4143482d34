package dirent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/blockfs/internal/dirent"
	"github.com/dargueta/blockfs/internal/layout"
)

func TestNewRecordRoundTripsThroughEncodeDecode(t *testing.T) {
	var block [layout.DirRecordsPerBlock]dirent.Record
	block[0] = dirent.NewRecord("hello", 7)
	block[3] = dirent.NewRecord("salam", 9)

	encoded, err := dirent.Encode(block)
	require.NoError(t, err)
	assert.Len(t, encoded, layout.DirRecordsPerBlock*layout.DirRecordSize)

	decoded, err := dirent.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, "hello", decoded[0].NameString())
	assert.Equal(t, uint32(7), decoded[0].InodeNumber)
	assert.False(t, decoded[0].Free())

	assert.True(t, decoded[1].Free())

	assert.Equal(t, "salam", decoded[3].NameString())
}

func TestFreeSlotHasZeroInode(t *testing.T) {
	var r dirent.Record
	assert.True(t, r.Free())
}

func TestRecordsPerBlockMatchesSpec(t *testing.T) {
	assert.Equal(t, 25, layout.DirRecordsPerBlock)
}
