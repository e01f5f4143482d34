package sectorio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/blockfs/disk"
	"github.com/dargueta/blockfs/internal/sectorio"
)

func TestWritePartialThenReadPartial(t *testing.T) {
	d := disk.New(4, 512)

	require.NoError(t, sectorio.WritePartial(d, 0, 10, []byte("test")))

	got, err := sectorio.ReadPartial(d, 0, 11, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("es"), got)
}

func TestWritePartialPreservesRestOfSector(t *testing.T) {
	d := disk.New(4, 512)

	full := make([]byte, 512)
	for i := range full {
		full[i] = 0xFF
	}
	require.NoError(t, d.WriteSector(1, full))

	require.NoError(t, sectorio.WritePartial(d, 1, 100, []byte{0x00, 0x00}))

	buf := make([]byte, 512)
	require.NoError(t, d.ReadSector(1, buf))
	assert.Equal(t, byte(0xFF), buf[99])
	assert.Equal(t, byte(0x00), buf[100])
	assert.Equal(t, byte(0x00), buf[101])
	assert.Equal(t, byte(0xFF), buf[102])
}

func TestReadPartialRejectsOutOfBoundsRange(t *testing.T) {
	d := disk.New(4, 512)
	_, err := sectorio.ReadPartial(d, 0, 500, 20)
	assert.Error(t, err)
}

func TestWritePartialRejectsNegativeOffset(t *testing.T) {
	d := disk.New(4, 512)
	err := sectorio.WritePartial(d, 0, -1, []byte("x"))
	assert.Error(t, err)
}
