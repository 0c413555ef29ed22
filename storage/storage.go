// Package storage is the filesystem engine: it owns one backing region and
// the bitmaps, inode table and directories stored in it, and implements the
// path-based operations a filesystem adapter calls.
//
// A Storage does no locking. Each operation runs to completion before the
// next starts, and a failure part way through an operation is not rolled
// back.
package storage

import (
	"fmt"
	"strings"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/alloc"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/dir"
	"github.com/mit-pdos/go-nufs/disk"
	"github.com/mit-pdos/go-nufs/inode"
	"github.com/mit-pdos/go-nufs/namei"
	"github.com/mit-pdos/go-nufs/util"
)

type Storage struct {
	region disk.Region
	layout *addr.Layout
	blocks *alloc.Alloc
	inodes *alloc.Alloc
	tbl    *inode.Table
}

// Attr is what stat reports about an object.
type Attr struct {
	Ino   common.Inum
	Mode  uint32
	Size  uint64
	Nlink uint32
}

// Init opens the backing file at path with the default geometry.
func Init(path string) (*Storage, error) {
	return OpenFile(path, common.DefaultCapacity, common.DefaultMaxInodes)
}

// OpenFile maps capacity bytes of the file at path and mounts it, formatting
// it first if it is new.
func OpenFile(path string, capacity uint64, maxInodes uint64) (*Storage, error) {
	if capacity%common.BlockSize != 0 {
		return nil, fmt.Errorf("capacity %d is not a multiple of %d: %w",
			capacity, common.BlockSize, common.ErrInvalid)
	}
	r, err := disk.NewFileRegion(path, capacity/common.BlockSize)
	if err != nil {
		return nil, err
	}
	st, err := Open(r, maxInodes)
	if err != nil {
		r.Close()
		return nil, err
	}
	return st, nil
}

// Open mounts r. A region whose root inode is not allocated is formatted:
// block 0 and the inode-table blocks are marked in use and the root
// directory is created as inode 0.
func Open(r disk.Region, maxInodes uint64) (*Storage, error) {
	l, err := addr.MkLayout(r.Size(), maxInodes)
	if err != nil {
		return nil, err
	}
	blk0, err := r.Block(0)
	if err != nil {
		return nil, err
	}
	bbm := l.BlockBitmap().Off
	ibm := l.InodeBitmap().Off
	st := &Storage{
		region: r,
		layout: l,
		blocks: alloc.MkAlloc("block", blk0[bbm:bbm+l.BlockBitmapLen()], 1, l.NBlocks),
		inodes: alloc.MkAlloc("inode", blk0[ibm:ibm+l.InodeBitmapLen()], 0, l.NInodes),
	}
	st.tbl = inode.MkTable(r, l, st.inodes, st.blocks)

	if !st.tbl.IsLive(common.ROOTINUM) {
		if err := st.format(); err != nil {
			return nil, err
		}
		return st, nil
	}
	root, err := st.tbl.Get(common.ROOTINUM)
	if err != nil {
		return nil, err
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("root inode mode %#o: %w", root.Mode, common.ErrNotDir)
	}
	util.DPrintf(1, "Open: %d blocks, %d inodes\n", l.NBlocks, l.NInodes)
	return st, nil
}

func (st *Storage) format() error {
	for bn := common.Bnum(0); bn < st.layout.DataStart(); bn++ {
		st.blocks.MarkUsed(bn)
	}
	if _, err := dir.Init(st.tbl); err != nil {
		return err
	}
	util.DPrintf(1, "format: %d blocks (%d reserved), %d inodes\n",
		st.layout.NBlocks, st.layout.DataStart(), st.layout.NInodes)
	return nil
}

func (st *Storage) Sync() error {
	return st.region.Barrier()
}

func (st *Storage) Close() error {
	if err := st.region.Barrier(); err != nil {
		st.region.Close()
		return err
	}
	return st.region.Close()
}

func (st *Storage) resolve(path string) (*inode.Inode, error) {
	return namei.ResolveInode(st.tbl, path)
}

// parentOf resolves the directory that holds the last component of path.
func (st *Storage) parentOf(path string) (*inode.Inode, string, error) {
	ppath, name, err := namei.SplitParent(path)
	if err != nil {
		return nil, "", err
	}
	dp, err := st.resolve(ppath)
	if err != nil {
		return nil, "", err
	}
	if !dp.IsDir() {
		return nil, "", fmt.Errorf("%s: %w", ppath, common.ErrNotDir)
	}
	return dp, name, nil
}

func (st *Storage) Access(path string) error {
	_, err := namei.Resolve(st.tbl, path)
	util.DPrintf(1, "access(%s) -> %v\n", path, err)
	return err
}

func (st *Storage) Stat(path string) (*Attr, error) {
	ip, err := st.resolve(path)
	if err != nil {
		return nil, err
	}
	return &Attr{Ino: ip.Inum, Mode: ip.Mode, Size: ip.Size, Nlink: ip.Refs}, nil
}

func (st *Storage) List(path string) ([]string, error) {
	dp, err := st.resolve(path)
	if err != nil {
		return nil, err
	}
	return dir.List(st.tbl, dp)
}

// Mknod creates an object at path. A mode without type bits makes a
// regular file.
func (st *Storage) Mknod(path string, mode uint32) error {
	err := st.mknod(path, mode)
	util.DPrintf(1, "mknod(%s, %#o) -> %v\n", path, mode, err)
	return err
}

func (st *Storage) mknod(path string, mode uint32) error {
	if _, err := namei.Resolve(st.tbl, path); err == nil {
		return fmt.Errorf("%s: %w", path, common.ErrExists)
	}
	dp, name, err := st.parentOf(path)
	if err != nil {
		return err
	}
	if _, err := dir.MkName(name); err != nil {
		return err
	}
	if mode&common.S_IFMT == 0 {
		mode |= common.S_IFREG
	}
	ip, err := st.tbl.Alloc()
	if err != nil {
		return err
	}
	ip.Mode = mode
	err = st.tbl.Put(ip)
	if err == nil {
		err = dir.Insert(st.tbl, dp, name, ip.Inum)
	}
	if err != nil {
		if rerr := st.tbl.Release(ip.Inum); rerr != nil {
			util.DPrintf(1, "mknod(%s): release inode %d: %v\n", path, ip.Inum, rerr)
		}
		return err
	}
	return nil
}

func (st *Storage) Mkdir(path string, mode uint32) error {
	return st.Mknod(path, (mode&common.S_PERM)|common.S_IFDIR)
}

// Unlink removes the entry at path, releasing the object when it was the
// last link.
func (st *Storage) Unlink(path string) error {
	err := st.unlink(path)
	util.DPrintf(1, "unlink(%s) -> %v\n", path, err)
	return err
}

func (st *Storage) unlink(path string) error {
	dp, name, err := st.parentOf(path)
	if err != nil {
		return err
	}
	ip, err := st.resolve(path)
	if err != nil {
		return err
	}
	if ip.IsDir() {
		return fmt.Errorf("%s: %w", path, common.ErrIsDir)
	}
	return dir.Delete(st.tbl, dp, name)
}

func (st *Storage) Rmdir(path string) error {
	err := st.rmdir(path)
	util.DPrintf(1, "rmdir(%s) -> %v\n", path, err)
	return err
}

func (st *Storage) rmdir(path string) error {
	ip, err := st.resolve(path)
	if err != nil {
		return err
	}
	if ip.Inum == common.ROOTINUM {
		return fmt.Errorf("rmdir root: %w", common.ErrInvalid)
	}
	if !ip.IsDir() {
		return fmt.Errorf("%s: %w", path, common.ErrNotDir)
	}
	names, err := dir.List(st.tbl, ip)
	if err != nil {
		return err
	}
	if len(names) != 0 {
		return fmt.Errorf("%s: %w", path, common.ErrNotEmpty)
	}
	dp, name, err := st.parentOf(path)
	if err != nil {
		return err
	}
	return dir.Delete(st.tbl, dp, name)
}

// Link adds a second name, to, for the file at from.
func (st *Storage) Link(from string, to string) error {
	err := st.link(from, to)
	util.DPrintf(1, "link(%s => %s) -> %v\n", from, to, err)
	return err
}

func (st *Storage) link(from string, to string) error {
	ip, err := st.resolve(from)
	if err != nil {
		return err
	}
	if ip.IsDir() {
		return fmt.Errorf("link %s: %w", from, common.ErrIsDir)
	}
	return st.linkInum(ip.Inum, to)
}

func (st *Storage) linkInum(inum common.Inum, to string) error {
	dp, name, err := st.parentOf(to)
	if err != nil {
		return err
	}
	if err := dir.Insert(st.tbl, dp, name, inum); err != nil {
		return err
	}
	return st.tbl.AdjustRefs(inum, 1)
}

func cleanPath(path string) string {
	return "/" + strings.Join(namei.Split(path), "/")
}

// Rename moves from to to by linking the object at to and then unlinking
// from. The two steps are not atomic: if the second fails the object keeps
// both names. An existing file at to is replaced by a file; a directory
// replaces nothing.
func (st *Storage) Rename(from string, to string) error {
	err := st.rename(from, to)
	util.DPrintf(1, "rename(%s => %s) -> %v\n", from, to, err)
	return err
}

func (st *Storage) rename(from string, to string) error {
	ip, err := st.resolve(from)
	if err != nil {
		return err
	}
	if ip.Inum == common.ROOTINUM {
		return fmt.Errorf("rename root: %w", common.ErrInvalid)
	}
	cfrom, cto := cleanPath(from), cleanPath(to)
	if cfrom == cto {
		return nil
	}
	if ip.IsDir() && strings.HasPrefix(cto, cfrom+"/") {
		return fmt.Errorf("rename %s beneath itself: %w", from, common.ErrInvalid)
	}
	if dst, err := st.resolve(to); err == nil {
		if dst.Inum == ip.Inum {
			return nil
		}
		if dst.IsDir() {
			return fmt.Errorf("%s: %w", to, common.ErrExists)
		}
		if ip.IsDir() {
			return fmt.Errorf("rename directory %s onto %s: %w", from, to, common.ErrNotDir)
		}
		if err := st.unlink(to); err != nil {
			return err
		}
	}
	if err := st.linkInum(ip.Inum, to); err != nil {
		return err
	}
	return st.removeEntry(from)
}

func (st *Storage) removeEntry(path string) error {
	dp, name, err := st.parentOf(path)
	if err != nil {
		return err
	}
	return dir.Delete(st.tbl, dp, name)
}

// Chmod replaces the permission bits of path, keeping its type.
func (st *Storage) Chmod(path string, mode uint32) error {
	ip, err := st.resolve(path)
	if err != nil {
		return err
	}
	ip.Mode = (ip.Mode & common.S_IFMT) | (mode & common.S_PERM)
	util.DPrintf(1, "chmod(%s, %#o)\n", path, mode)
	return st.tbl.Put(ip)
}

func (st *Storage) Truncate(path string, size uint64) error {
	ip, err := st.resolve(path)
	if err != nil {
		return err
	}
	if ip.IsDir() {
		return fmt.Errorf("truncate %s: %w", path, common.ErrIsDir)
	}
	if size > ip.Size {
		err = st.tbl.Grow(ip, size)
	} else {
		err = st.tbl.Shrink(ip, size)
	}
	util.DPrintf(1, "truncate(%s, %d) -> %v\n", path, size, err)
	return err
}
