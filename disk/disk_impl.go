package disk

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/util"
)

func blockOf(mem []byte, a common.Bnum) (Block, error) {
	n := uint64(len(mem)) / common.BlockSize
	if a >= n {
		return nil, fmt.Errorf("block %d of %d: %w", a, n, common.ErrIO)
	}
	off := a * common.BlockSize
	return mem[off : off+common.BlockSize : off+common.BlockSize], nil
}

var _ Region = (*FileRegion)(nil)

// FileRegion maps a backing file into memory.
type FileRegion struct {
	fd        int
	numBlocks uint64
	mem       []byte
}

// NewFileRegion opens (creating if needed) the file at path and maps exactly
// numBlocks blocks of it. A new or empty file is extended with zeros; an
// existing file of any other size is rejected.
func NewFileRegion(path string, numBlocks uint64) (*FileRegion, error) {
	sz := numBlocks * common.BlockSize
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0644)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, &os.PathError{Op: "fstat", Path: path, Err: err}
	}
	if stat.Mode&unix.S_IFMT == unix.S_IFREG && uint64(stat.Size) != sz {
		if stat.Size != 0 {
			unix.Close(fd)
			return nil, fmt.Errorf("%s: image is %d bytes, want %d: %w",
				path, stat.Size, sz, common.ErrInvalid)
		}
		if err := unix.Ftruncate(fd, int64(sz)); err != nil {
			unix.Close(fd)
			return nil, &os.PathError{Op: "ftruncate", Path: path, Err: err}
		}
	}
	mem, err := unix.Mmap(fd, 0, int(sz), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, &os.PathError{Op: "mmap", Path: path, Err: err}
	}
	util.DPrintf(1, "NewFileRegion: %s %d blocks\n", path, numBlocks)
	return &FileRegion{fd: fd, numBlocks: numBlocks, mem: mem}, nil
}

func (r *FileRegion) Block(a common.Bnum) (Block, error) {
	return blockOf(r.mem, a)
}

func (r *FileRegion) Size() uint64 {
	return r.numBlocks
}

func (r *FileRegion) Barrier() error {
	return unix.Msync(r.mem, unix.MS_SYNC)
}

func (r *FileRegion) Close() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	if cerr := unix.Close(r.fd); err == nil {
		err = cerr
	}
	return err
}

var _ Region = (*MemRegion)(nil)

// MemRegion is a Region held entirely in process memory.
type MemRegion struct {
	mem []byte
}

func NewMemRegion(numBlocks uint64) *MemRegion {
	return &MemRegion{mem: make([]byte, numBlocks*common.BlockSize)}
}

func (r *MemRegion) Block(a common.Bnum) (Block, error) {
	return blockOf(r.mem, a)
}

func (r *MemRegion) Size() uint64 {
	return uint64(len(r.mem)) / common.BlockSize
}

func (r *MemRegion) Barrier() error { return nil }

func (r *MemRegion) Close() error { return nil }
