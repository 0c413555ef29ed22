package inode

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-nufs/common"
)

// Pointers locate an inode's data. Direct[i] holds file block i; file blocks
// NPTRS and beyond are listed in the Indirect block. A zero entry is absent.
type Pointers struct {
	Direct   [common.NPTRS]common.Bnum
	Indirect common.Bnum
}

// Inode is the in-memory copy of an on-disk inode record:
//
//	[ refs | mode | size | direct0 | direct1 | indirect ]  (4 bytes each)
//
// Changes take effect once written back with Table.Put.
type Inode struct {
	Inum common.Inum
	Refs uint32
	Mode uint32
	Size uint64
	Ptrs Pointers
}

func (ip *Inode) IsDir() bool {
	return common.IsDir(ip.Mode)
}

func (ip *Inode) String() string {
	return fmt.Sprintf("inode %d: refs %d mode %#o size %d direct %v indirect %d",
		ip.Inum, ip.Refs, ip.Mode, ip.Size, ip.Ptrs.Direct, ip.Ptrs.Indirect)
}

func encodeInode(ip *Inode) []byte {
	enc := marshal.NewEnc(common.INODESZ)
	enc.PutInt32(ip.Refs)
	enc.PutInt32(ip.Mode)
	enc.PutInt32(uint32(ip.Size))
	for _, bn := range ip.Ptrs.Direct {
		enc.PutInt32(uint32(bn))
	}
	enc.PutInt32(uint32(ip.Ptrs.Indirect))
	return enc.Finish()
}

func decodeInode(inum common.Inum, rec []byte) *Inode {
	dec := marshal.NewDec(rec)
	ip := &Inode{Inum: inum}
	ip.Refs = dec.GetInt32()
	ip.Mode = dec.GetInt32()
	ip.Size = uint64(dec.GetInt32())
	for i := range ip.Ptrs.Direct {
		ip.Ptrs.Direct[i] = common.Bnum(dec.GetInt32())
	}
	ip.Ptrs.Indirect = common.Bnum(dec.GetInt32())
	return ip
}

// The indirect block is a packed array of NINDIRECT 4-byte block numbers.

func getPtr(blk []byte, i uint64) common.Bnum {
	off := i * common.BNUMSZ
	dec := marshal.NewDec(blk[off : off+common.BNUMSZ])
	return common.Bnum(dec.GetInt32())
}

func putPtr(blk []byte, i uint64, bn common.Bnum) {
	off := i * common.BNUMSZ
	enc := marshal.NewEnc(common.BNUMSZ)
	enc.PutInt32(uint32(bn))
	copy(blk[off:off+common.BNUMSZ], enc.Finish())
}

func decodeIndirect(blk []byte) []common.Bnum {
	dec := marshal.NewDec(blk)
	ptrs := make([]common.Bnum, common.NINDIRECT)
	for i := range ptrs {
		ptrs[i] = common.Bnum(dec.GetInt32())
	}
	return ptrs
}

func encodeIndirect(ptrs []common.Bnum) []byte {
	enc := marshal.NewEnc(common.BlockSize)
	for _, bn := range ptrs {
		enc.PutInt32(uint32(bn))
	}
	return enc.Finish()
}
