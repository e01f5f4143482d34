// Package disk implements the block device collaborator the file system
// core is built on: a fixed-geometry array of fixed-size sectors, held
// entirely in memory, with whole-sector transfers and a load/save pair
// that maps the array onto a host file. Everything above this package
// talks to sectors only through [Device.ReadSector] and
// [Device.WriteSector]; nothing in this package understands inodes,
// bitmaps, or directories.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotExist is returned by Load when the backing host file does not
// exist. The file system core treats this, and only this, as "format a
// new image" rather than a fatal boot error.
var ErrNotExist = errors.New("disk: image file does not exist")

// Device is an in-memory array of fixed-size sectors that can be loaded
// from, and saved to, a host file.
type Device struct {
	sectorSize  int
	totalSectors int
	image       []byte
}

// New allocates a zeroed Device with the given geometry.
func New(totalSectors, sectorSize int) *Device {
	if totalSectors <= 0 || sectorSize <= 0 {
		panic("disk: totalSectors and sectorSize must be positive")
	}
	return &Device{
		sectorSize:   sectorSize,
		totalSectors: totalSectors,
		image:        make([]byte, totalSectors*sectorSize),
	}
}

// SectorSize returns the number of bytes in one sector.
func (d *Device) SectorSize() int { return d.sectorSize }

// TotalSectors returns the fixed number of sectors in the image.
func (d *Device) TotalSectors() int { return d.totalSectors }

func (d *Device) checkSector(sector int) error {
	if sector < 0 || sector >= d.totalSectors {
		return fmt.Errorf(
			"disk: sector %d out of range [0, %d)", sector, d.totalSectors)
	}
	return nil
}

// ReadSector copies the entirety of the given sector into buf. buf must
// be exactly SectorSize() bytes long.
func (d *Device) ReadSector(sector int, buf []byte) error {
	if err := d.checkSector(sector); err != nil {
		return err
	}
	if len(buf) != d.sectorSize {
		return fmt.Errorf(
			"disk: buffer must be exactly %d bytes, got %d", d.sectorSize, len(buf))
	}
	start := sector * d.sectorSize
	copy(buf, d.image[start:start+d.sectorSize])
	return nil
}

// WriteSector overwrites the entirety of the given sector with buf. buf
// must be exactly SectorSize() bytes long.
func (d *Device) WriteSector(sector int, buf []byte) error {
	if err := d.checkSector(sector); err != nil {
		return err
	}
	if len(buf) != d.sectorSize {
		return fmt.Errorf(
			"disk: buffer must be exactly %d bytes, got %d", d.sectorSize, len(buf))
	}
	start := sector * d.sectorSize
	copy(d.image[start:start+d.sectorSize], buf)
	return nil
}

// Load populates the device's in-memory image from the host file at
// path. If the file does not exist, it returns ErrNotExist so the caller
// can decide to format a fresh image instead of failing outright.
func (d *Device) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExist
		}
		return err
	}
	defer f.Close()

	buf := make([]byte, d.totalSectors*d.sectorSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	// A short read just means the host file is smaller than our fixed
	// geometry (e.g. a freshly truncated file); the remainder stays
	// zeroed, matching a freshly formatted image.
	_ = n
	d.image = buf
	return nil
}

// Save flushes the in-memory image to the host file at path, creating or
// truncating it as needed.
func (d *Device) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(d.image)
	return err
}

// LoadFromStream is a test seam: it populates the device from any
// io.Reader rather than a host file path, mirroring the teacher's pattern
// of backing disk images with an in-memory [io.ReadWriteSeeker] in unit
// tests so they never touch the host file system.
func (d *Device) LoadFromStream(r io.Reader) error {
	buf := make([]byte, d.totalSectors*d.sectorSize)
	_, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	d.image = buf
	return nil
}

// SaveToStream is the write-side counterpart of LoadFromStream.
func (d *Device) SaveToStream(w io.Writer) error {
	_, err := w.Write(d.image)
	return err
}
