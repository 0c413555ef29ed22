package addr

import (
	"fmt"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/util"
)

// Addr identifies the start of an on-disk object.
//
// Blkno is the block number containing the object, and Off is the location of
// the object within the block (in bytes). The size of the object is determined
// by the context in which Addr is used.
type Addr struct {
	Blkno common.Bnum
	Off   uint64
}

func MkAddr(blkno common.Bnum, off uint64) Addr {
	return Addr{Blkno: blkno, Off: off}
}

// Flatid is the absolute byte offset of a within the backing store.
func (a Addr) Flatid() uint64 {
	return uint64(a.Blkno)*common.BlockSize + a.Off
}

func (a Addr) String() string {
	return fmt.Sprintf("%d+%d", a.Blkno, a.Off)
}

// FileAddr splits a byte offset within an object into the index of the
// object's block holding it and the offset within that block. Blkno is a
// file-relative index, not an absolute block number.
func FileAddr(off uint64) Addr {
	return MkAddr(off/common.BlockSize, off%common.BlockSize)
}

// NBlocksFor is the number of leading blocks an object needs to hold sz bytes.
func NBlocksFor(sz uint64) uint64 {
	return util.RoundUp(sz, common.BlockSize)
}

// Layout describes where block 0 keeps the block bitmap, the inode bitmap
// and the inode table, and how many blocks after block 0 hold the rest of
// the inode table.
//
//	block 0: [ block bitmap | inode bitmap | inode records ... ]
//	block 1..NInodeBlk: inode records
//	block DataStart()..: directory and file data
//
// Inode records never straddle a block boundary.
type Layout struct {
	NBlocks        uint64
	NInodes        uint64
	InodeBitmapOff uint64
	InodeTableOff  uint64
	NInodeBlk      uint64
	nInodeBlk0     uint64 // inode records that fit in block 0
}

const INODEBLK = common.BlockSize / common.INODESZ

func MkLayout(nblocks uint64, ninodes uint64) (*Layout, error) {
	if nblocks < 2 || ninodes < 1 {
		return nil, fmt.Errorf("layout %d blocks %d inodes: %w",
			nblocks, ninodes, common.ErrInvalid)
	}
	ibmOff := util.RoundUp(nblocks, 8)
	tblOff := util.RoundUp(ibmOff+util.RoundUp(ninodes, 8), 8) * 8
	if tblOff+common.INODESZ > common.BlockSize {
		return nil, fmt.Errorf("bitmaps for %d blocks and %d inodes do not fit in block 0: %w",
			nblocks, ninodes, common.ErrInvalid)
	}
	n0 := (common.BlockSize - tblOff) / common.INODESZ
	var nblk uint64
	if ninodes > n0 {
		nblk = util.RoundUp(ninodes-n0, INODEBLK)
	}
	l := &Layout{
		NBlocks:        nblocks,
		NInodes:        ninodes,
		InodeBitmapOff: ibmOff,
		InodeTableOff:  tblOff,
		NInodeBlk:      nblk,
		nInodeBlk0:     util.Min(n0, ninodes),
	}
	if l.DataStart() >= nblocks {
		return nil, fmt.Errorf("inode table for %d inodes leaves no data blocks in %d: %w",
			ninodes, nblocks, common.ErrInvalid)
	}
	return l, nil
}

func (l *Layout) BlockBitmap() Addr {
	return MkAddr(0, 0)
}

func (l *Layout) BlockBitmapLen() uint64 {
	return l.InodeBitmapOff
}

func (l *Layout) InodeBitmap() Addr {
	return MkAddr(0, l.InodeBitmapOff)
}

func (l *Layout) InodeBitmapLen() uint64 {
	return util.RoundUp(l.NInodes, 8)
}

// DataStart is the first block that is not reserved for metadata.
func (l *Layout) DataStart() common.Bnum {
	return 1 + l.NInodeBlk
}

func (l *Layout) Inum2Addr(inum common.Inum) Addr {
	i := uint64(inum)
	if i < l.nInodeBlk0 {
		return MkAddr(0, l.InodeTableOff+i*common.INODESZ)
	}
	i = i - l.nInodeBlk0
	return MkAddr(1+i/INODEBLK, (i%INODEBLK)*common.INODESZ)
}
