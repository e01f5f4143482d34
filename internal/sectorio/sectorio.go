// Package sectorio implements the byte-granular read/write-modify-write
// helpers every higher layer builds on. Apart from the data-block
// allocator, which zeroes a freshly allocated sector with one whole-sector
// write, these are the only two functions in the module that touch
// [disk.Device]'s whole-sector primitives directly.
package sectorio

import (
	"fmt"
)

// Device is the subset of [disk.Device] sectorio needs. Declaring it
// locally rather than importing disk keeps this package's dependency
// surface to exactly what it uses.
type Device interface {
	SectorSize() int
	ReadSector(sector int, buf []byte) error
	WriteSector(sector int, buf []byte) error
}

func checkBounds(dev Device, offset, n int) error {
	size := dev.SectorSize()
	if offset < 0 || n < 0 || offset+n > size {
		return fmt.Errorf(
			"sectorio: range [%d, %d) out of bounds for a %d-byte sector",
			offset, offset+n, size)
	}
	return nil
}

// ReadPartial reads the full sector into a scratch buffer and returns the
// n bytes starting at offset.
func ReadPartial(dev Device, sector, offset, n int) ([]byte, error) {
	if err := checkBounds(dev, offset, n); err != nil {
		return nil, err
	}

	scratch := make([]byte, dev.SectorSize())
	if err := dev.ReadSector(sector, scratch); err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, scratch[offset:offset+n])
	return out, nil
}

// WritePartial reads the full sector, overwrites the n bytes starting at
// offset with data, and writes the full sector back.
func WritePartial(dev Device, sector, offset int, data []byte) error {
	if err := checkBounds(dev, offset, len(data)); err != nil {
		return err
	}

	scratch := make([]byte, dev.SectorSize())
	if err := dev.ReadSector(sector, scratch); err != nil {
		return err
	}

	copy(scratch[offset:offset+len(data)], data)
	return dev.WriteSector(sector, scratch)
}
