package namei

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/alloc"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/dir"
	"github.com/mit-pdos/go-nufs/disk"
	"github.com/mit-pdos/go-nufs/inode"
)

func TestSplit(t *testing.T) {
	assert := assert.New(t)
	assert.Nil(Split(""))
	assert.Nil(Split("/"))
	assert.Equal([]string{"a"}, Split("/a"))
	assert.Equal([]string{"a", "b.txt"}, Split("/a//b.txt/"))
	assert.Equal([]string{".", ".."}, Split("/./.."), "no special meaning")
}

func TestSplitParent(t *testing.T) {
	assert := assert.New(t)
	p, n, err := SplitParent("/a.txt")
	assert.NoError(err)
	assert.Equal("/", p)
	assert.Equal("a.txt", n)

	p, n, err = SplitParent("/dir/sub/b.txt")
	assert.NoError(err)
	assert.Equal("/dir/sub", p)
	assert.Equal("b.txt", n)

	_, _, err = SplitParent("/")
	assert.True(errors.Is(err, common.ErrInvalid))
}

func mkTree(t *testing.T) (*inode.Table, common.Inum, common.Inum) {
	l, err := addr.MkLayout(256, 256)
	require.NoError(t, err)
	r := disk.NewMemRegion(256)
	blk0, _ := r.Block(0)
	blocks := alloc.MkAlloc("block", blk0[:l.BlockBitmapLen()], 1, 256)
	for bn := uint64(0); bn < l.DataStart(); bn++ {
		blocks.MarkUsed(bn)
	}
	ibm := l.InodeBitmap().Off
	inodes := alloc.MkAlloc("inode", blk0[ibm:ibm+l.InodeBitmapLen()], 0, 256)
	tbl := inode.MkTable(r, l, inodes, blocks)

	root, err := dir.Init(tbl)
	require.NoError(t, err)
	sub, err := tbl.Alloc()
	require.NoError(t, err)
	sub.Mode = common.S_IFDIR | 0o755
	require.NoError(t, tbl.Put(sub))
	require.NoError(t, dir.Insert(tbl, root, "dir", sub.Inum))
	f, err := tbl.Alloc()
	require.NoError(t, err)
	f.Mode = common.S_IFREG | 0o644
	require.NoError(t, tbl.Put(f))
	require.NoError(t, dir.Insert(tbl, sub, "b.txt", f.Inum))
	return tbl, sub.Inum, f.Inum
}

func TestResolve(t *testing.T) {
	assert := assert.New(t)
	tbl, sub, f := mkTree(t)

	inum, err := Resolve(tbl, "")
	assert.NoError(err)
	assert.Equal(common.ROOTINUM, inum)
	inum, err = Resolve(tbl, "/")
	assert.NoError(err)
	assert.Equal(common.ROOTINUM, inum)

	inum, err = Resolve(tbl, "/dir")
	assert.NoError(err)
	assert.Equal(sub, inum)
	inum, err = Resolve(tbl, "/dir/b.txt")
	assert.NoError(err)
	assert.Equal(f, inum)

	ip, err := ResolveInode(tbl, "/dir/b.txt")
	assert.NoError(err)
	assert.Equal(f, ip.Inum)
}

func TestResolveFails(t *testing.T) {
	tbl, _, _ := mkTree(t)
	for _, p := range []string{"/nope", "/dir/nope", "/dir/b.txt/x", "/dir/./b.txt"} {
		_, err := Resolve(tbl, p)
		assert.True(t, errors.Is(err, common.ErrNotFound), p)
	}
}
