package common

import (
	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"
)

const (
	BlockSize uint64 = disk.BlockSize
	NBITBLOCK uint64 = BlockSize * 8

	NPTRS     uint64 = 2                  // direct pointers per inode
	BNUMSZ    uint64 = 4                  // on-disk size of a block number
	NINDIRECT uint64 = BlockSize / BNUMSZ // pointers in the indirect block
	MAXBLOCKS uint64 = NPTRS + NINDIRECT  // blocks addressable by one inode

	INODESZ  uint64 = 24 // on-disk size
	DIRENTSZ uint64 = 64 // on-disk size
	NAMELEN  uint64 = 48 // max bytes in a directory entry name

	DefaultCapacity  uint64 = 1 << 20
	DefaultMaxInodes uint64 = 256
)

type Inum uint64
type Bnum = uint64

const (
	ROOTINUM Inum = 0
	NULLBNUM Bnum = 0
)

// Object type and permission bits, as stored in Inode.Mode.
const (
	S_IFMT  uint32 = unix.S_IFMT
	S_IFDIR uint32 = unix.S_IFDIR
	S_IFREG uint32 = unix.S_IFREG
	S_PERM  uint32 = 0o7777

	ROOTMODE uint32 = S_IFDIR | 0o755
)

func IsDir(mode uint32) bool {
	return mode&S_IFMT == S_IFDIR
}
