package addr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-nufs/common"
)

func TestFileAddr(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(MkAddr(0, 0), FileAddr(0))
	assert.Equal(MkAddr(0, 4095), FileAddr(4095))
	assert.Equal(MkAddr(1, 0), FileAddr(4096))
	assert.Equal(MkAddr(1, 6000-4096), FileAddr(6000))
	assert.Equal(uint64(2*4096+7), MkAddr(2, 7).Flatid())
}

func TestNBlocksFor(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(0), NBlocksFor(0))
	assert.Equal(uint64(1), NBlocksFor(1))
	assert.Equal(uint64(1), NBlocksFor(4096))
	assert.Equal(uint64(2), NBlocksFor(4097))
	assert.Equal(uint64(2), NBlocksFor(6000))
	assert.Equal(uint64(3), NBlocksFor(3*4096))
}

func TestDefaultLayout(t *testing.T) {
	assert := assert.New(t)
	l, err := MkLayout(256, 256)
	require.NoError(t, err)

	assert.Equal(uint64(32), l.InodeBitmapOff)
	assert.Equal(uint64(64), l.InodeTableOff)
	assert.Equal(uint64(1), l.NInodeBlk)
	assert.Equal(common.Bnum(2), l.DataStart())

	assert.Equal(MkAddr(0, 64), l.Inum2Addr(0))
	assert.Equal(MkAddr(0, 64+167*24), l.Inum2Addr(167))
	assert.Equal(MkAddr(1, 0), l.Inum2Addr(168))
	assert.Equal(MkAddr(1, 24), l.Inum2Addr(169))
}

func TestInodesNeverStraddle(t *testing.T) {
	l, err := MkLayout(4096, 2048)
	require.NoError(t, err)
	seen := make(map[uint64]bool)
	for i := uint64(0); i < l.NInodes; i++ {
		a := l.Inum2Addr(common.Inum(i))
		assert.LessOrEqual(t, a.Off+common.INODESZ, common.BlockSize, "inode %d", i)
		assert.Less(t, uint64(a.Blkno), uint64(l.DataStart()), "inode %d", i)
		assert.False(t, seen[a.Flatid()], "inode %d overlaps", i)
		seen[a.Flatid()] = true
	}
}

func TestBadLayout(t *testing.T) {
	_, err := MkLayout(1<<16, 1<<16)
	assert.True(t, errors.Is(err, common.ErrInvalid), "bitmaps cannot fit in block 0")

	_, err = MkLayout(4, 1024)
	assert.True(t, errors.Is(err, common.ErrInvalid), "no data blocks left")

	_, err = MkLayout(0, 16)
	assert.True(t, errors.Is(err, common.ErrInvalid))
}
