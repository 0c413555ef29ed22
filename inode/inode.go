// Package inode manages the fixed-capacity inode table and the blocks each
// inode owns through its direct and indirect pointers.
package inode

import (
	"fmt"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/alloc"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/disk"
	"github.com/mit-pdos/go-nufs/util"
)

// Table is the inode table of one backing store. An inode is live iff its
// bit is set in the inode bitmap.
type Table struct {
	region disk.Region
	layout *addr.Layout
	inodes *alloc.Alloc
	blocks *alloc.Alloc
}

func MkTable(r disk.Region, l *addr.Layout, inodes *alloc.Alloc, blocks *alloc.Alloc) *Table {
	return &Table{
		region: r,
		layout: l,
		inodes: inodes,
		blocks: blocks,
	}
}

func (t *Table) record(inum common.Inum) ([]byte, error) {
	if uint64(inum) >= t.layout.NInodes {
		return nil, fmt.Errorf("inode %d: %w", inum, common.ErrNotFound)
	}
	a := t.layout.Inum2Addr(inum)
	blk, err := t.region.Block(a.Blkno)
	if err != nil {
		return nil, err
	}
	return blk[a.Off : a.Off+common.INODESZ], nil
}

// Block returns the view of an absolute block number.
func (t *Table) Block(bn common.Bnum) (disk.Block, error) {
	if bn == common.NULLBNUM {
		return nil, fmt.Errorf("null block: %w", common.ErrIO)
	}
	return t.region.Block(bn)
}

func (t *Table) IsLive(inum common.Inum) bool {
	return t.inodes.IsUsed(uint64(inum))
}

func (t *Table) NumFree() uint64 {
	return t.inodes.NumFree()
}

// Get returns a copy of a live inode.
func (t *Table) Get(inum common.Inum) (*Inode, error) {
	if !t.IsLive(inum) {
		return nil, fmt.Errorf("inode %d: %w", inum, common.ErrNotFound)
	}
	rec, err := t.record(inum)
	if err != nil {
		return nil, err
	}
	return decodeInode(inum, rec), nil
}

// Put writes ip back to its slot.
func (t *Table) Put(ip *Inode) error {
	rec, err := t.record(ip.Inum)
	if err != nil {
		return err
	}
	copy(rec, encodeInode(ip))
	return nil
}

func (t *Table) allocBlock() (common.Bnum, error) {
	n, err := t.blocks.AllocNum()
	if err != nil {
		return 0, err
	}
	blk, err := t.region.Block(n)
	if err != nil {
		t.blocks.FreeNum(n)
		return 0, err
	}
	for i := range blk {
		blk[i] = 0
	}
	return n, nil
}

func (t *Table) freeBlock(bn common.Bnum) error {
	return t.blocks.FreeNum(bn)
}

// Alloc claims the lowest free inode: refs 1, mode 0, size 0 and one eagerly
// allocated data block. A failure leaves both bitmaps as they were.
func (t *Table) Alloc() (*Inode, error) {
	n, err := t.inodes.AllocNum()
	if err != nil {
		return nil, err
	}
	bn, err := t.allocBlock()
	if err != nil {
		if ferr := t.inodes.FreeNum(n); ferr != nil {
			util.DPrintf(1, "Alloc: undo inode %d: %v\n", n, ferr)
		}
		return nil, err
	}
	ip := &Inode{Inum: common.Inum(n), Refs: 1}
	ip.Ptrs.Direct[0] = bn
	if err := t.Put(ip); err != nil {
		if ferr := t.freeBlock(bn); ferr != nil {
			util.DPrintf(1, "Alloc: undo block %d: %v\n", bn, ferr)
		}
		if ferr := t.inodes.FreeNum(n); ferr != nil {
			util.DPrintf(1, "Alloc: undo inode %d: %v\n", n, ferr)
		}
		return nil, err
	}
	util.DPrintf(5, "Alloc: %v\n", ip)
	return ip, nil
}

// ensure makes file block fbn present, allocating it (and the indirect block)
// if needed.
func (t *Table) ensure(ip *Inode, fbn uint64) error {
	if fbn < common.NPTRS {
		if ip.Ptrs.Direct[fbn] != common.NULLBNUM {
			return nil
		}
		bn, err := t.allocBlock()
		if err != nil {
			return err
		}
		ip.Ptrs.Direct[fbn] = bn
		return nil
	}
	if ip.Ptrs.Indirect == common.NULLBNUM {
		bn, err := t.allocBlock()
		if err != nil {
			return err
		}
		ip.Ptrs.Indirect = bn
	}
	iblk, err := t.Block(ip.Ptrs.Indirect)
	if err != nil {
		return err
	}
	if getPtr(iblk, fbn-common.NPTRS) != common.NULLBNUM {
		return nil
	}
	bn, err := t.allocBlock()
	if err != nil {
		return err
	}
	putPtr(iblk, fbn-common.NPTRS, bn)
	return nil
}

// Grow extends ip to sz bytes, allocating a block for each block boundary
// crossed. If allocation fails part way, the blocks already added stay
// attached to ip (and are reused by the next Grow) but the size is not
// changed. ip is written back in either case.
func (t *Table) Grow(ip *Inode, sz uint64) error {
	if sz > common.MAXBLOCKS*common.BlockSize {
		return fmt.Errorf("grow inode %d to %d: %w", ip.Inum, sz, common.ErrTooBig)
	}
	need := addr.NBlocksFor(sz)
	for fbn := uint64(0); fbn < need; fbn++ {
		if err := t.ensure(ip, fbn); err != nil {
			util.DPrintf(1, "Grow: inode %d to %d: %v\n", ip.Inum, sz, err)
			if perr := t.Put(ip); perr != nil {
				util.DPrintf(1, "Grow: write back inode %d: %v\n", ip.Inum, perr)
			}
			return fmt.Errorf("grow inode %d to %d: %w", ip.Inum, sz, err)
		}
	}
	if sz > ip.Size {
		ip.Size = sz
	}
	util.DPrintf(5, "Grow: %v\n", ip)
	return t.Put(ip)
}

// Shrink truncates ip to sz bytes, releasing blocks from the highest file
// block down to the new last block, and the indirect block once no file
// block needs it. The unused tail of the new last block is zeroed. Size is
// set to sz unconditionally.
func (t *Table) Shrink(ip *Inode, sz uint64) error {
	var ferr error
	keep := addr.NBlocksFor(sz)
	if ip.Ptrs.Indirect != common.NULLBNUM {
		iblk, err := t.Block(ip.Ptrs.Indirect)
		if err != nil {
			return err
		}
		ptrs := decodeIndirect(iblk)
		for i := len(ptrs) - 1; i >= 0; i-- {
			if uint64(i)+common.NPTRS < keep {
				break
			}
			if ptrs[i] != common.NULLBNUM {
				if err := t.freeBlock(ptrs[i]); err != nil && ferr == nil {
					ferr = err
				}
				ptrs[i] = common.NULLBNUM
			}
		}
		if keep <= common.NPTRS {
			if err := t.freeBlock(ip.Ptrs.Indirect); err != nil && ferr == nil {
				ferr = err
			}
			ip.Ptrs.Indirect = common.NULLBNUM
		} else {
			copy(iblk, encodeIndirect(ptrs))
		}
	}
	for fbn := common.NPTRS; fbn > keep; fbn-- {
		bn := ip.Ptrs.Direct[fbn-1]
		if bn != common.NULLBNUM {
			if err := t.freeBlock(bn); err != nil && ferr == nil {
				ferr = err
			}
			ip.Ptrs.Direct[fbn-1] = common.NULLBNUM
		}
	}
	if boff := sz % common.BlockSize; boff != 0 {
		if bn, err := t.BlockFor(ip, sz); err == nil {
			blk, err := t.Block(bn)
			if err != nil {
				if ferr == nil {
					ferr = err
				}
			} else {
				for i := boff; i < common.BlockSize; i++ {
					blk[i] = 0
				}
			}
		}
	}
	ip.Size = sz
	util.DPrintf(5, "Shrink: %v\n", ip)
	if err := t.Put(ip); err != nil {
		return err
	}
	return ferr
}

// BlockFor resolves a byte offset within ip to the absolute block holding it.
// Fails with common.ErrIO if that block was never allocated.
func (t *Table) BlockFor(ip *Inode, off uint64) (common.Bnum, error) {
	fbn := addr.FileAddr(off).Blkno
	var bn common.Bnum
	if fbn < common.NPTRS {
		bn = ip.Ptrs.Direct[fbn]
	} else if fbn < common.MAXBLOCKS && ip.Ptrs.Indirect != common.NULLBNUM {
		iblk, err := t.Block(ip.Ptrs.Indirect)
		if err != nil {
			return 0, err
		}
		bn = getPtr(iblk, fbn-common.NPTRS)
	}
	if bn == common.NULLBNUM {
		return 0, fmt.Errorf("inode %d offset %d: %w", ip.Inum, off, common.ErrIO)
	}
	return bn, nil
}

// Owned lists every block ip holds, data blocks first, then the indirect
// block if present.
func (t *Table) Owned(ip *Inode) ([]common.Bnum, error) {
	var bns []common.Bnum
	for _, bn := range ip.Ptrs.Direct {
		if bn != common.NULLBNUM {
			bns = append(bns, bn)
		}
	}
	if ip.Ptrs.Indirect != common.NULLBNUM {
		iblk, err := t.Block(ip.Ptrs.Indirect)
		if err != nil {
			return nil, err
		}
		for _, bn := range decodeIndirect(iblk) {
			if bn != common.NULLBNUM {
				bns = append(bns, bn)
			}
		}
		bns = append(bns, ip.Ptrs.Indirect)
	}
	return bns, nil
}

// Release frees every block inum owns and then the inode itself. Releasing a
// free inode does nothing.
func (t *Table) Release(inum common.Inum) error {
	if !t.IsLive(inum) {
		return nil
	}
	ip, err := t.Get(inum)
	if err != nil {
		return err
	}
	serr := t.Shrink(ip, 0)
	ip.Refs = 0
	ip.Mode = 0
	if err := t.Put(ip); err != nil {
		util.DPrintf(1, "Release: clear inode %d: %v\n", inum, err)
	}
	if err := t.inodes.FreeNum(uint64(inum)); err != nil {
		return err
	}
	util.DPrintf(5, "Release: inode %d\n", inum)
	return serr
}

// AdjustRefs adds delta to the reference count of inum and releases the
// inode once no references remain.
func (t *Table) AdjustRefs(inum common.Inum, delta int) error {
	ip, err := t.Get(inum)
	if err != nil {
		return err
	}
	refs := int64(ip.Refs) + int64(delta)
	if refs < 1 {
		return t.Release(inum)
	}
	ip.Refs = uint32(refs)
	return t.Put(ip)
}
