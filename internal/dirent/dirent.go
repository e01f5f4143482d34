// Package dirent implements the fixed-size directory entry ("file
// record") used inside a directory's data blocks, and the scan over a
// block's worth of slots.
package dirent

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/blockfs/internal/layout"
)

// Record is one 20-byte directory entry: a NUL-terminated name and the
// inode it refers to. An InodeNumber of 0 marks a free slot -- the root
// inode is never referenced by a directory entry, so 0 is an unambiguous
// sentinel.
type Record struct {
	Name        [layout.MaxNameLength + 1]byte
	InodeNumber uint32
}

// Free reports whether this slot is unoccupied.
func (r Record) Free() bool { return r.InodeNumber == 0 }

// NameString returns the NUL-terminated name as a Go string.
func (r Record) NameString() string {
	n := bytes.IndexByte(r.Name[:], 0)
	if n < 0 {
		n = len(r.Name)
	}
	return string(r.Name[:n])
}

// NewRecord builds a Record for name pointing at inodeNumber. name must
// be non-empty and at most layout.MaxNameLength bytes; callers validate
// this before calling NewRecord.
func NewRecord(name string, inodeNumber int) Record {
	var r Record
	copy(r.Name[:], name)
	r.InodeNumber = uint32(inodeNumber)
	return r
}

// Decode parses a block's worth of bytes into its directory-entry slots.
func Decode(block []byte) ([layout.DirRecordsPerBlock]Record, error) {
	var out [layout.DirRecordsPerBlock]Record
	r := bytes.NewReader(block)
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return out, fmt.Errorf("dirent: decoding slot %d: %w", i, err)
		}
	}
	return out, nil
}

// Encode serializes a block's worth of directory-entry slots back into
// bytes.
func Encode(records [layout.DirRecordsPerBlock]Record) ([]byte, error) {
	var buf bytes.Buffer
	for i := range records {
		if err := binary.Write(&buf, binary.LittleEndian, records[i]); err != nil {
			return nil, fmt.Errorf("dirent: encoding slot %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
