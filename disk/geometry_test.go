package disk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/blockfs/disk"
)

func TestStandardGeometryMatchesSpec(t *testing.T) {
	g := disk.StandardGeometry()
	assert.Equal(t, 512, g.SectorSize)
	assert.Equal(t, 10000, g.TotalSectors)
	assert.Equal(t, int64(5_120_000), g.TotalSizeBytes())
}

func TestLookupGeometryUnknownName(t *testing.T) {
	_, err := disk.LookupGeometry("does-not-exist")
	require.Error(t, err)
}
