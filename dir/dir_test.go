package dir

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/alloc"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/disk"
	"github.com/mit-pdos/go-nufs/inode"
)

func mkTable(t *testing.T, nblocks uint64, ninodes uint64) (*inode.Table, *alloc.Alloc) {
	l, err := addr.MkLayout(nblocks, ninodes)
	require.NoError(t, err)
	r := disk.NewMemRegion(nblocks)
	blk0, _ := r.Block(0)
	blocks := alloc.MkAlloc("block", blk0[:l.BlockBitmapLen()], 1, nblocks)
	for bn := uint64(0); bn < l.DataStart(); bn++ {
		blocks.MarkUsed(bn)
	}
	ibm := l.InodeBitmap().Off
	inodes := alloc.MkAlloc("inode", blk0[ibm:ibm+l.InodeBitmapLen()], 0, ninodes)
	return inode.MkTable(r, l, inodes, blocks), blocks
}

func mkRoot(t *testing.T) (*inode.Table, *inode.Inode) {
	tbl, _ := mkTable(t, 256, 256)
	root, err := Init(tbl)
	require.NoError(t, err)
	return tbl, root
}

func mkFile(t *testing.T, tbl *inode.Table) common.Inum {
	ip, err := tbl.Alloc()
	require.NoError(t, err)
	ip.Mode = common.S_IFREG | 0o644
	require.NoError(t, tbl.Put(ip))
	return ip.Inum
}

func TestName(t *testing.T) {
	_, err := MkName(strings.Repeat("a", 48))
	assert.NoError(t, err)
	_, err = MkName(strings.Repeat("a", 49))
	assert.True(t, errors.Is(err, common.ErrNameTooLong))
	_, err = MkName("a/b")
	assert.True(t, errors.Is(err, common.ErrInvalid))
	_, err = MkName("")
	assert.True(t, errors.Is(err, common.ErrInvalid))
}

func TestDirentLayout(t *testing.T) {
	rec := encodeDirent(Dirent{Name: "b.txt", Inum: 258, Used: true})
	assert.Len(t, rec, 64)
	assert.Equal(t, []byte("b.txt\x00"), rec[:6])
	assert.Equal(t, []byte{2, 1, 0, 0}, rec[48:52])
	assert.Equal(t, byte(1), rec[52])
	assert.Equal(t, make([]byte, 11), rec[53:])
	assert.Equal(t, Dirent{Name: "b.txt", Inum: 258, Used: true}, decodeDirent(rec))

	full := strings.Repeat("n", 48)
	assert.Equal(t, Name(full), decodeDirent(encodeDirent(Dirent{Name: Name(full)})).Name)
}

func TestInitRoot(t *testing.T) {
	tbl, root := mkRoot(t)
	assert.Equal(t, common.ROOTINUM, root.Inum)
	assert.True(t, root.IsDir())
	assert.NotEqual(t, common.NULLBNUM, root.Ptrs.Direct[0])

	inum, err := Lookup(tbl, root, "")
	assert.NoError(t, err)
	assert.Equal(t, common.ROOTINUM, inum, "empty name is the directory itself")
}

func TestInitNotFirst(t *testing.T) {
	tbl, _ := mkTable(t, 256, 256)
	_, err := tbl.Alloc()
	require.NoError(t, err)
	_, err = Init(tbl)
	assert.True(t, errors.Is(err, common.ErrInvalid))
}

func TestInsertLookupDelete(t *testing.T) {
	assert := assert.New(t)
	tbl, root := mkRoot(t)
	x := mkFile(t, tbl)

	require.NoError(t, Insert(tbl, root, "x", x))
	assert.Equal(common.DIRENTSZ, root.Size)
	inum, err := Lookup(tbl, root, "x")
	assert.NoError(err)
	assert.Equal(x, inum)
	names, err := List(tbl, root)
	assert.NoError(err)
	assert.Equal([]string{"x"}, names)

	err = Insert(tbl, root, "x", x)
	assert.True(errors.Is(err, common.ErrExists))

	require.NoError(t, Delete(tbl, root, "x"))
	names, _ = List(tbl, root)
	assert.NotContains(names, "x")
	_, err = Lookup(tbl, root, "x")
	assert.True(errors.Is(err, common.ErrNotFound))
	assert.False(tbl.IsLive(x), "last reference dropped")

	err = Delete(tbl, root, "x")
	assert.True(errors.Is(err, common.ErrNotFound))
}

func TestSlotReuse(t *testing.T) {
	assert := assert.New(t)
	tbl, root := mkRoot(t)
	for _, n := range []string{"a", "b", "c"} {
		require.NoError(t, Insert(tbl, root, n, mkFile(t, tbl)))
	}
	require.NoError(t, Delete(tbl, root, "b"))
	require.NoError(t, Insert(tbl, root, "d", mkFile(t, tbl)))

	assert.Equal(3*common.DIRENTSZ, root.Size, "unused slot reused before growing")
	names, _ := List(tbl, root)
	assert.Equal([]string{"a", "d", "c"}, names, "slot order, not insertion order")
}

func TestDirectorySpansBlocks(t *testing.T) {
	assert := assert.New(t)
	tbl, root := mkRoot(t)
	perBlock := int(common.BlockSize / common.DIRENTSZ)
	n := perBlock + 3
	for i := 0; i < n; i++ {
		require.NoError(t, Insert(tbl, root, fmt.Sprintf("f%03d", i), common.Inum(1)))
	}
	assert.NotEqual(common.NULLBNUM, root.Ptrs.Direct[1])
	names, err := List(tbl, root)
	require.NoError(t, err)
	assert.Len(names, n)
	inum, err := Lookup(tbl, root, fmt.Sprintf("f%03d", n-1))
	assert.NoError(err)
	assert.Equal(common.Inum(1), inum)
}

func TestInsertExhausted(t *testing.T) {
	tbl, blocks := mkTable(t, 4, 256)
	root, err := Init(tbl)
	require.NoError(t, err)
	for {
		if _, err := blocks.AllocNum(); err != nil {
			break
		}
	}
	perBlock := int(common.BlockSize / common.DIRENTSZ)
	for i := 0; i < perBlock; i++ {
		require.NoError(t, Insert(tbl, root, fmt.Sprintf("f%d", i), common.Inum(1)))
	}
	err = Insert(tbl, root, "overflow", common.Inum(1))
	assert.True(t, errors.Is(err, common.ErrExhausted))
}

func TestLookupInFile(t *testing.T) {
	tbl, _ := mkRoot(t)
	ip, err := tbl.Get(mkFile(t, tbl))
	require.NoError(t, err)
	_, err = Lookup(tbl, ip, "x")
	assert.True(t, errors.Is(err, common.ErrNotDir))
}
