package storage

import (
	"fmt"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/inode"
	"github.com/mit-pdos/go-nufs/util"
)

// Read copies up to len(buf) bytes of path starting at off into buf. Reads
// stop at the end of the file; the count of bytes copied is returned.
func (st *Storage) Read(path string, buf []byte, off uint64) (uint64, error) {
	ip, err := st.resolve(path)
	if err != nil {
		return 0, err
	}
	if ip.IsDir() {
		return 0, fmt.Errorf("read %s: %w", path, common.ErrIsDir)
	}
	if off >= ip.Size {
		return 0, nil
	}
	n := util.Min(uint64(len(buf)), ip.Size-off)
	err = st.copyBlocks(ip, off, buf[:n], false)
	util.DPrintf(1, "read(%s, %d, %d) -> %d %v\n", path, len(buf), off, n, err)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Write copies buf into path at off, growing the file first if the write
// extends past its end.
func (st *Storage) Write(path string, buf []byte, off uint64) (uint64, error) {
	ip, err := st.resolve(path)
	if err != nil {
		return 0, err
	}
	if ip.IsDir() {
		return 0, fmt.Errorf("write %s: %w", path, common.ErrIsDir)
	}
	n := uint64(len(buf))
	if util.SumOverflows(off, n) {
		return 0, fmt.Errorf("write %s at %d: %w", path, off, common.ErrTooBig)
	}
	if off+n > ip.Size {
		if err := st.tbl.Grow(ip, off+n); err != nil {
			return 0, err
		}
	}
	err = st.copyBlocks(ip, off, buf, true)
	util.DPrintf(1, "write(%s, %d, %d) -> %v\n", path, n, off, err)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// copyBlocks moves data between buf and the bytes of ip at off, one block
// piece at a time. The range must lie within the file.
func (st *Storage) copyBlocks(ip *inode.Inode, off uint64, buf []byte, write bool) error {
	var done uint64
	for done < uint64(len(buf)) {
		a := addr.FileAddr(off + done)
		bn, err := st.tbl.BlockFor(ip, off+done)
		if err != nil {
			return err
		}
		blk, err := st.tbl.Block(bn)
		if err != nil {
			return err
		}
		n := util.Min(uint64(len(buf))-done, common.BlockSize-a.Off)
		if write {
			copy(blk[a.Off:a.Off+n], buf[done:done+n])
		} else {
			copy(buf[done:done+n], blk[a.Off:a.Off+n])
		}
		done += n
	}
	return nil
}

// FSStat summarizes capacity and usage of a Storage.
type FSStat struct {
	BlockSize  uint64
	Blocks     uint64
	FreeBlocks uint64
	Inodes     uint64
	FreeInodes uint64
}

func (st *Storage) StatFS() *FSStat {
	return &FSStat{
		BlockSize:  common.BlockSize,
		Blocks:     st.layout.NBlocks,
		FreeBlocks: st.blocks.NumFree(),
		Inodes:     st.layout.NInodes,
		FreeInodes: st.tbl.NumFree(),
	}
}
