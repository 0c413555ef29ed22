// Package dir stores directories as packed arrays of Dirent records in the
// data blocks of a directory inode. The number of records is Size/DIRENTSZ;
// unused records are reused before the directory grows.
package dir

import (
	"fmt"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/inode"
	"github.com/mit-pdos/go-nufs/util"
)

func nentries(dp *inode.Inode) uint64 {
	return dp.Size / common.DIRENTSZ
}

// record returns the view of slot i of dp.
func record(t *inode.Table, dp *inode.Inode, i uint64) ([]byte, error) {
	off := i * common.DIRENTSZ
	bn, err := t.BlockFor(dp, off)
	if err != nil {
		return nil, err
	}
	blk, err := t.Block(bn)
	if err != nil {
		return nil, err
	}
	boff := off % common.BlockSize
	return blk[boff : boff+common.DIRENTSZ], nil
}

// scan calls f on every used entry of dp until f returns true, and reports
// the slot where it stopped.
func scan(t *inode.Table, dp *inode.Inode, f func(uint64, Dirent) bool) (uint64, bool, error) {
	if !dp.IsDir() {
		return 0, false, fmt.Errorf("inode %d: %w", dp.Inum, common.ErrNotDir)
	}
	for i := uint64(0); i < nentries(dp); i++ {
		rec, err := record(t, dp, i)
		if err != nil {
			return 0, false, err
		}
		de := decodeDirent(rec)
		if de.Used && f(i, de) {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// Lookup finds name in dp. The empty name is dp itself.
func Lookup(t *inode.Table, dp *inode.Inode, name string) (common.Inum, error) {
	if name == "" {
		return dp.Inum, nil
	}
	var inum common.Inum
	_, found, err := scan(t, dp, func(_ uint64, de Dirent) bool {
		if string(de.Name) == name {
			inum = de.Inum
			return true
		}
		return false
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%q in directory %d: %w", name, dp.Inum, common.ErrNotFound)
	}
	return inum, nil
}

// Insert adds an entry name -> inum to dp, reusing the first unused slot or
// else appending one. It does not touch inum's reference count.
func Insert(t *inode.Table, dp *inode.Inode, name string, inum common.Inum) error {
	n, err := MkName(name)
	if err != nil {
		return err
	}
	if _, err := Lookup(t, dp, name); err == nil {
		return fmt.Errorf("%q in directory %d: %w", name, dp.Inum, common.ErrExists)
	}
	rec := encodeDirent(Dirent{Name: n, Inum: inum, Used: true})

	for i := uint64(0); i < nentries(dp); i++ {
		slot, err := record(t, dp, i)
		if err != nil {
			return err
		}
		if !decodeDirent(slot).Used {
			copy(slot, rec)
			util.DPrintf(5, "dir.Insert: %q -> %d in %d slot %d\n", name, inum, dp.Inum, i)
			return nil
		}
	}

	i := nentries(dp)
	if err := t.Grow(dp, (i+1)*common.DIRENTSZ); err != nil {
		return err
	}
	slot, err := record(t, dp, i)
	if err != nil {
		return err
	}
	copy(slot, rec)
	util.DPrintf(5, "dir.Insert: %q -> %d in %d new slot %d\n", name, inum, dp.Inum, i)
	return nil
}

// Delete removes name from dp and drops one reference to its inode.
func Delete(t *inode.Table, dp *inode.Inode, name string) error {
	var inum common.Inum
	i, found, err := scan(t, dp, func(_ uint64, de Dirent) bool {
		if string(de.Name) == name {
			inum = de.Inum
			return true
		}
		return false
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%q in directory %d: %w", name, dp.Inum, common.ErrNotFound)
	}
	slot, err := record(t, dp, i)
	if err != nil {
		return err
	}
	copy(slot, encodeDirent(Dirent{}))
	util.DPrintf(5, "dir.Delete: %q -> %d in %d slot %d\n", name, inum, dp.Inum, i)
	return t.AdjustRefs(inum, -1)
}

// Entries returns the used entries of dp in slot order.
func Entries(t *inode.Table, dp *inode.Inode) ([]Dirent, error) {
	var des []Dirent
	_, _, err := scan(t, dp, func(_ uint64, de Dirent) bool {
		des = append(des, de)
		return false
	})
	return des, err
}

// List returns the names of the used entries of dp in slot order, which
// is not insertion order once slots have been reused.
func List(t *inode.Table, dp *inode.Inode) ([]string, error) {
	des, err := Entries(t, dp)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(des))
	for _, de := range des {
		names = append(names, string(de.Name))
	}
	return names, nil
}

// Init creates the root directory, which must come out as inode ROOTINUM.
func Init(t *inode.Table) (*inode.Inode, error) {
	dp, err := t.Alloc()
	if err != nil {
		return nil, err
	}
	if dp.Inum != common.ROOTINUM {
		if err := t.Release(dp.Inum); err != nil {
			util.DPrintf(1, "dir.Init: release inode %d: %v\n", dp.Inum, err)
		}
		return nil, fmt.Errorf("root allocated as inode %d: %w", dp.Inum, common.ErrInvalid)
	}
	dp.Mode = common.ROOTMODE
	if err := t.Put(dp); err != nil {
		return nil, err
	}
	util.DPrintf(1, "dir.Init: root %v\n", dp)
	return dp, nil
}
