package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/dir"
	"github.com/mit-pdos/go-nufs/util"
)

// Report lists the inconsistencies found by Check.
type Report struct {
	// Shared blocks are held by more than one inode.
	Shared []common.Bnum
	// Unmarked blocks are held by an inode but free in the block bitmap.
	Unmarked []common.Bnum
	// Leaked blocks are in use in the bitmap but held by no inode.
	Leaked []common.Bnum
	// Dangling entries name an inode that is not allocated.
	Dangling []string
	// Unreachable inodes are allocated but named by no entry.
	Unreachable []common.Inum
	// BadRefs are inodes whose reference count differs from the number of
	// entries naming them.
	BadRefs []common.Inum
}

func (r *Report) OK() bool {
	return len(r.Shared) == 0 && len(r.Unmarked) == 0 && len(r.Leaked) == 0 &&
		len(r.Dangling) == 0 && len(r.Unreachable) == 0 && len(r.BadRefs) == 0
}

func (r *Report) String() string {
	if r.OK() {
		return "clean"
	}
	var b strings.Builder
	if len(r.Shared) > 0 {
		fmt.Fprintf(&b, "shared blocks: %v\n", r.Shared)
	}
	if len(r.Unmarked) > 0 {
		fmt.Fprintf(&b, "unmarked blocks: %v\n", r.Unmarked)
	}
	if len(r.Leaked) > 0 {
		fmt.Fprintf(&b, "leaked blocks: %v\n", r.Leaked)
	}
	if len(r.Dangling) > 0 {
		fmt.Fprintf(&b, "dangling entries: %v\n", r.Dangling)
	}
	if len(r.Unreachable) > 0 {
		fmt.Fprintf(&b, "unreachable inodes: %v\n", r.Unreachable)
	}
	if len(r.BadRefs) > 0 {
		fmt.Fprintf(&b, "bad reference counts: %v\n", r.BadRefs)
	}
	return b.String()
}

// Check scans the whole image without modifying it. Block ownership is
// taken from every allocated inode; reference counts are compared with the
// entries found by walking the tree from the root, which counts as one
// reference to itself.
func (st *Storage) Check() (*Report, error) {
	r := &Report{}

	owner := make(map[common.Bnum]common.Inum)
	shared := make(map[common.Bnum]bool)
	for i := uint64(0); i < st.layout.NInodes; i++ {
		inum := common.Inum(i)
		if !st.tbl.IsLive(inum) {
			continue
		}
		ip, err := st.tbl.Get(inum)
		if err != nil {
			return nil, err
		}
		bns, err := st.tbl.Owned(ip)
		if err != nil {
			return nil, err
		}
		for _, bn := range bns {
			if _, ok := owner[bn]; ok {
				shared[bn] = true
			}
			owner[bn] = inum
		}
	}
	for bn := range shared {
		r.Shared = append(r.Shared, bn)
	}
	for bn := range owner {
		if !st.blocks.IsUsed(bn) {
			r.Unmarked = append(r.Unmarked, bn)
		}
	}
	for bn := st.layout.DataStart(); bn < st.layout.NBlocks; bn++ {
		if _, ok := owner[bn]; !ok && st.blocks.IsUsed(bn) {
			r.Leaked = append(r.Leaked, bn)
		}
	}

	count := map[common.Inum]uint32{common.ROOTINUM: 1}
	if err := st.walk("/", common.ROOTINUM, count, r, map[common.Inum]bool{}); err != nil {
		return nil, err
	}
	for i := uint64(0); i < st.layout.NInodes; i++ {
		inum := common.Inum(i)
		if !st.tbl.IsLive(inum) {
			continue
		}
		n, ok := count[inum]
		if !ok {
			r.Unreachable = append(r.Unreachable, inum)
			continue
		}
		ip, err := st.tbl.Get(inum)
		if err != nil {
			return nil, err
		}
		if ip.Refs != n {
			r.BadRefs = append(r.BadRefs, inum)
		}
	}

	sortBnums(r.Shared)
	sortBnums(r.Unmarked)
	sortBnums(r.Leaked)
	sort.Strings(r.Dangling)
	util.DPrintf(1, "check: %v", r)
	return r, nil
}

func (st *Storage) walk(path string, inum common.Inum, count map[common.Inum]uint32,
	r *Report, seen map[common.Inum]bool) error {
	if seen[inum] {
		return nil
	}
	seen[inum] = true
	dp, err := st.tbl.Get(inum)
	if err != nil {
		return err
	}
	des, err := dir.Entries(st.tbl, dp)
	if err != nil {
		return err
	}
	for _, de := range des {
		child := strings.TrimSuffix(path, "/") + "/" + string(de.Name)
		if !st.tbl.IsLive(de.Inum) {
			r.Dangling = append(r.Dangling, child)
			continue
		}
		count[de.Inum]++
		cp, err := st.tbl.Get(de.Inum)
		if err != nil {
			return err
		}
		if cp.IsDir() {
			if err := st.walk(child, de.Inum, count, r, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortBnums(bns []common.Bnum) {
	sort.Slice(bns, func(i, j int) bool { return bns[i] < bns[j] })
}
