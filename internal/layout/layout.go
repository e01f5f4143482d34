// Package layout centralizes the on-disk geometry constants every other
// internal package is built against, so the superblock, the two
// allocators, the inode store, and the namespace layer all agree on
// where things live without redundantly re-deriving the same arithmetic.
package layout

const (
	// SectorSize is the size, in bytes, of one disk sector.
	SectorSize = 512

	// TotalSectors is the fixed size of a formatted image, in sectors.
	// 254 reserved sectors plus 9746 data sectors, 5,120,000 bytes total.
	TotalSectors = 10000

	// SuperblockSector holds the magic number and the inode bitmap.
	SuperblockSector = 0

	// MagicNumber identifies a formatted image; it is the first 4 bytes
	// of the superblock sector.
	MagicNumber = 241543903

	// InodeBitmapOffset is the byte offset within the superblock sector
	// where the inode bitmap begins.
	InodeBitmapOffset = 4
	// InodeBitmapSize is the length, in bytes, of the inode bitmap: 1000
	// bits, one per inode.
	InodeBitmapSize = 125
	// MaxInodes is the total number of inodes the image can hold. Inode 0
	// is the root directory.
	MaxInodes = 1000
	// RootInode is the inode number of the root directory.
	RootInode = 0

	// DataBitmapStartSector is the first of the three sectors making up
	// the data-block allocation bitmap.
	DataBitmapStartSector = 1
	// DataBitmapSectors is the number of sectors the data-block bitmap
	// spans.
	DataBitmapSectors = 3
	// BitsPerBitmapSector is the number of bits one bitmap sector can
	// track, one per byte-bit.
	BitsPerBitmapSector = SectorSize * 8

	// ReservedDataBits is the number of low bits of the data-block bitmap
	// that must always read as allocated: sectors 0..253, the superblock,
	// the data-block bitmap itself, and the inode table.
	ReservedDataBits = 254
	// DataScanStartByte is the byte offset within the first data-bitmap
	// sector where the allocator begins scanning for a free block. This
	// intentionally leaves bits 254 and 255 permanently unreachable,
	// matching the source this module is specified against.
	DataScanStartByte = 254/8 + 1

	// InodeTableStartSector is the first sector of the inode table.
	InodeTableStartSector = 4
	// InodeTableSectors is the number of sectors the inode table spans.
	InodeTableSectors = 250
	// InodesPerSector is the number of fixed-size inode records that fit
	// in one sector.
	InodesPerSector = 4
	// InodeRecordSize is the on-disk size, in bytes, of one inode record.
	InodeRecordSize = SectorSize / InodesPerSector

	// DataRegionStartSector is the first sector of the data region, which
	// holds directory and file data blocks. The block allocator never
	// returns a sector below DataScanStartByte*8 (256).
	DataRegionStartSector = InodeTableStartSector + InodeTableSectors

	// MaxDirectBlocks is the number of direct block pointers in an inode;
	// this is also the hard cap on file size in sectors.
	MaxDirectBlocks = 30
	// MaxFileSize is the largest a file's size can ever be, in bytes.
	MaxFileSize = MaxDirectBlocks * SectorSize

	// DirRecordSize is the on-disk size, in bytes, of one directory
	// entry (file record).
	DirRecordSize = 20
	// MaxNameLength is the longest a path component may be.
	MaxNameLength = 15
	// DirRecordsPerBlock is the number of file records that fit in one
	// data block.
	DirRecordsPerBlock = SectorSize / DirRecordSize

	// MaxFDs is the size of the file descriptor table.
	MaxFDs = 1000
)

// InodeSector returns the sector holding inode i's record.
func InodeSector(i int) int {
	return InodeTableStartSector + i/InodesPerSector
}

// InodeOffset returns the byte offset within InodeSector(i) of inode i's
// record.
func InodeOffset(i int) int {
	return (i % InodesPerSector) * InodeRecordSize
}
