// Package alloc implements the two bitmap allocators the file system is
// built on: one bit per inode, one bit per data block. Both are scanned
// lowest-free-first so allocation order is deterministic, which the
// exhaustion tests depend on.
package alloc

import (
	"fmt"

	bitmap "github.com/boljen/go-bitmap"

	"github.com/dargueta/blockfs/internal/layout"
	"github.com/dargueta/blockfs/internal/sectorio"
)

// NotAllocated is returned by AllocInode/AllocBlock when every bit in the
// relevant bitmap is already set.
const NotAllocated = -1

// AllocInode returns the lowest-numbered free inode, marking it allocated
// and zeroing its on-disk record. It returns NotAllocated if the inode
// table is full.
func AllocInode(dev sectorio.Device) (int, error) {
	raw, err := sectorio.ReadPartial(dev, layout.SuperblockSector, layout.InodeBitmapOffset, layout.InodeBitmapSize)
	if err != nil {
		return NotAllocated, err
	}
	bm := bitmap.Bitmap(raw)

	for i := 0; i < layout.MaxInodes; i++ {
		if !bm.Get(i) {
			bm.Set(i, true)
			if err := sectorio.WritePartial(dev, layout.SuperblockSector, layout.InodeBitmapOffset, raw); err != nil {
				return NotAllocated, err
			}
			if err := zeroInodeRecord(dev, i); err != nil {
				return NotAllocated, err
			}
			return i, nil
		}
	}
	return NotAllocated, nil
}

// FreeInode clears inode i's allocation bit. It does not touch the
// record itself; callers that want a clean record on reuse get one from
// AllocInode.
func FreeInode(dev sectorio.Device, i int) error {
	if i < 0 || i >= layout.MaxInodes {
		return fmt.Errorf("alloc: inode %d out of range [0, %d)", i, layout.MaxInodes)
	}
	raw, err := sectorio.ReadPartial(dev, layout.SuperblockSector, layout.InodeBitmapOffset, layout.InodeBitmapSize)
	if err != nil {
		return err
	}
	bm := bitmap.Bitmap(raw)
	bm.Set(i, false)
	return sectorio.WritePartial(dev, layout.SuperblockSector, layout.InodeBitmapOffset, raw)
}

// TestInode reports whether inode i is currently allocated.
func TestInode(dev sectorio.Device, i int) (bool, error) {
	if i < 0 || i >= layout.MaxInodes {
		return false, fmt.Errorf("alloc: inode %d out of range [0, %d)", i, layout.MaxInodes)
	}
	raw, err := sectorio.ReadPartial(dev, layout.SuperblockSector, layout.InodeBitmapOffset, layout.InodeBitmapSize)
	if err != nil {
		return false, err
	}
	return bitmap.Bitmap(raw).Get(i), nil
}

func zeroInodeRecord(dev sectorio.Device, i int) error {
	zeros := make([]byte, layout.InodeRecordSize)
	return sectorio.WritePartial(dev, layout.InodeSector(i), layout.InodeOffset(i), zeros)
}

// AllocBlock scans the three data-block bitmap sectors in order, starting
// past the reserved metadata region, and returns the lowest free sector
// number. The corresponding data sector is zeroed before being handed
// back so callers never see stale contents. It returns NotAllocated if
// every bit for a sector inside the image is set; bitmap bits past the
// image's last sector are never handed out.
func AllocBlock(dev sectorio.Device) (int, error) {
	for bitmapIdx := 0; bitmapIdx < layout.DataBitmapSectors; bitmapIdx++ {
		sector := layout.DataBitmapStartSector + bitmapIdx

		raw, err := sectorio.ReadPartial(dev, sector, 0, layout.SectorSize)
		if err != nil {
			return NotAllocated, err
		}
		bm := bitmap.Bitmap(raw)

		startByte := 0
		if bitmapIdx == 0 {
			startByte = layout.DataScanStartByte
		}

		for byteIdx := startByte; byteIdx < layout.SectorSize; byteIdx++ {
			for bit := 0; bit < 8; bit++ {
				localBitIdx := byteIdx*8 + bit
				if bm.Get(localBitIdx) {
					continue
				}

				blockSector := bitmapIdx*layout.BitsPerBitmapSector + localBitIdx
				if blockSector >= layout.TotalSectors {
					return NotAllocated, nil
				}

				bm.Set(localBitIdx, true)
				if err := sectorio.WritePartial(dev, sector, 0, raw); err != nil {
					return NotAllocated, err
				}

				if err := zeroDataSector(dev, blockSector); err != nil {
					return NotAllocated, err
				}
				return blockSector, nil
			}
		}
	}
	return NotAllocated, nil
}

// FreeBlock clears the allocation bit for data sector s.
func FreeBlock(dev sectorio.Device, s int) error {
	bitmapIdx := s / layout.BitsPerBitmapSector
	localBitIdx := s % layout.BitsPerBitmapSector
	if bitmapIdx < 0 || bitmapIdx >= layout.DataBitmapSectors {
		return fmt.Errorf("alloc: data sector %d out of range", s)
	}

	sector := layout.DataBitmapStartSector + bitmapIdx
	raw, err := sectorio.ReadPartial(dev, sector, 0, layout.SectorSize)
	if err != nil {
		return err
	}
	bm := bitmap.Bitmap(raw)
	bm.Set(localBitIdx, false)
	return sectorio.WritePartial(dev, sector, 0, raw)
}

// TestBlock reports whether data sector s is currently allocated.
func TestBlock(dev sectorio.Device, s int) (bool, error) {
	bitmapIdx := s / layout.BitsPerBitmapSector
	localBitIdx := s % layout.BitsPerBitmapSector
	if bitmapIdx < 0 || bitmapIdx >= layout.DataBitmapSectors {
		return false, fmt.Errorf("alloc: data sector %d out of range", s)
	}

	sector := layout.DataBitmapStartSector + bitmapIdx
	raw, err := sectorio.ReadPartial(dev, sector, 0, layout.SectorSize)
	if err != nil {
		return false, err
	}
	return bitmap.Bitmap(raw).Get(localBitIdx), nil
}

func zeroDataSector(dev sectorio.Device, sector int) error {
	zeros := make([]byte, layout.SectorSize)
	return dev.WriteSector(sector, zeros)
}

// MarkReservedRegion sets the bitmap bits for the reserved metadata
// region (sectors 0..253) as allocated. It is called once at format time;
// no other code path ever frees these bits.
func MarkReservedRegion(dev sectorio.Device) error {
	raw, err := sectorio.ReadPartial(dev, layout.DataBitmapStartSector, 0, layout.SectorSize)
	if err != nil {
		return err
	}
	bm := bitmap.Bitmap(raw)
	for i := 0; i < layout.ReservedDataBits; i++ {
		bm.Set(i, true)
	}
	return sectorio.WritePartial(dev, layout.DataBitmapStartSector, 0, raw)
}
