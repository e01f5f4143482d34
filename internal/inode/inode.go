// Package inode implements the inode store: translating an inode number
// to its (sector, offset) and (de)serializing the fixed-size inode
// record that lives there. There is no caching; every call is a full
// read-modify-write cycle against a single metadata sector.
package inode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/blockfs/internal/layout"
	"github.com/dargueta/blockfs/internal/sectorio"
)

// Type distinguishes a directory inode from a regular file inode.
type Type uint8

const (
	TypeDir Type = iota
	TypeFile
)

// rawInode is the exact 128-byte on-disk layout of an inode record.
// Directories ignore Size; their occupancy is derived by scanning
// entries, not stored.
type rawInode struct {
	Size       uint32
	Type       uint8
	_          [3]byte // reserved, pads the record to 128 bytes
	DataBlocks [layout.MaxDirectBlocks]uint32
}

// Inode is the in-memory, Go-native view of an inode record.
type Inode struct {
	Size int64
	Type Type
	// DataBlocks holds sector numbers; 0 means the slot is unallocated.
	// For files, meaningful entries are contiguous from index 0. For
	// directories, any non-zero slot may be used; directories may be
	// sparse.
	DataBlocks [layout.MaxDirectBlocks]int
}

// IsDir reports whether the inode describes a directory.
func (n Inode) IsDir() bool { return n.Type == TypeDir }

// IsFile reports whether the inode describes a regular file.
func (n Inode) IsFile() bool { return n.Type == TypeFile }

// Translate returns the sector and byte offset of inode i's record.
func Translate(i int) (sector, offset int) {
	return layout.InodeSector(i), layout.InodeOffset(i)
}

// Read loads inode i's record from disk.
func Read(dev sectorio.Device, i int) (Inode, error) {
	sector, offset := Translate(i)
	raw, err := sectorio.ReadPartial(dev, sector, offset, layout.InodeRecordSize)
	if err != nil {
		return Inode{}, err
	}

	var rec rawInode
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &rec); err != nil {
		return Inode{}, fmt.Errorf("inode: decoding inode %d: %w", i, err)
	}

	out := Inode{
		Size: int64(rec.Size),
		Type: Type(rec.Type),
	}
	for idx, blk := range rec.DataBlocks {
		out.DataBlocks[idx] = int(blk)
	}
	return out, nil
}

// Write persists inode i's record to disk.
func Write(dev sectorio.Device, i int, n Inode) error {
	rec := rawInode{
		Size: uint32(n.Size),
		Type: uint8(n.Type),
	}
	for idx, blk := range n.DataBlocks {
		rec.DataBlocks[idx] = uint32(blk)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, rec); err != nil {
		return fmt.Errorf("inode: encoding inode %d: %w", i, err)
	}

	sector, offset := Translate(i)
	return sectorio.WritePartial(dev, sector, offset, buf.Bytes())
}
