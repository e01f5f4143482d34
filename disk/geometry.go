package disk

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Geometry names a pre-defined (sector size, sector count) pair an image
// can be formatted with, the same way the driver this package is derived
// from looked up named floppy geometries from a CSV table instead of
// hard-coding magic numbers at every call site.
type Geometry struct {
	Name         string `csv:"name"`
	SectorSize   int    `csv:"sector_size"`
	TotalSectors int    `csv:"total_sectors"`
	Notes        string `csv:"notes"`
}

// TotalSizeBytes gives the exact size, in bytes, of an image formatted
// with this geometry.
func (g Geometry) TotalSizeBytes() int64 {
	return int64(g.SectorSize) * int64(g.TotalSectors)
}

//go:embed geometries.csv
var rawGeometriesCSV string

var geometries map[string]Geometry

func init() {
	geometries = make(map[string]Geometry)
	reader := strings.NewReader(rawGeometriesCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Geometry) error {
		if _, exists := geometries[row.Name]; exists {
			return fmt.Errorf("duplicate geometry preset %q", row.Name)
		}
		geometries[row.Name] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// LookupGeometry returns a pre-defined geometry by name, e.g. "standard"
// for the 512-byte, 10000-sector layout this file system is specified
// against.
func LookupGeometry(name string) (Geometry, error) {
	g, ok := geometries[name]
	if !ok {
		return Geometry{}, fmt.Errorf("no predefined disk geometry named %q", name)
	}
	return g, nil
}

// StandardGeometry is the geometry the file system core is specified
// against: 512-byte sectors, 10000 sectors per image, 5,120,000 bytes total.
func StandardGeometry() Geometry {
	g, err := LookupGeometry("standard")
	if err != nil {
		panic(err)
	}
	return g
}
