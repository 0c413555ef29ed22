package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-nufs/common"
)

func TestPopCnt(t *testing.T) {
	assert.Equal(t, uint64(0), popCnt(0))
	assert.Equal(t, uint64(1), popCnt(1))
	assert.Equal(t, uint64(1), popCnt(2))
	assert.Equal(t, uint64(2), popCnt(3))
	assert.Equal(t, uint64(8), popCnt(255))
}

func TestBitmap(t *testing.T) {
	assert := assert.New(t)
	bm := Bitmap(make([]byte, 2))
	bm.Put(0, true)
	bm.Put(9, true)
	assert.Equal([]byte{0x01, 0x02}, []byte(bm))
	assert.True(bm.Get(9))
	assert.False(bm.Get(8))
	bm.Put(9, false)
	assert.Equal([]byte{0x01, 0x00}, []byte(bm))
}

func TestAlloc(t *testing.T) {
	assert := assert.New(t)
	max := uint64(32)
	a := MkMaxAlloc(max)

	assert.Equal(max-1, a.NumFree(), "everything (but 0) should be initially free")

	n, err := a.AllocNum()
	require.NoError(t, err)
	assert.NotEqual(uint64(0), n, "should not allocate 0")

	a.MarkUsed(n + 1)
	n2, err := a.AllocNum()
	require.NoError(t, err)
	assert.NotEqual(n+1, n2, "should not allocate something marked used")

	assert.Equal(max-4, a.NumFree(), "should have used 4 items")

	assert.NoError(a.FreeNum(n))
	assert.NoError(a.FreeNum(n2))
	assert.Equal(max-2, a.NumFree(), "should have freed")
}

func TestFirstFit(t *testing.T) {
	assert := assert.New(t)
	a := MkMaxAlloc(64)
	for i := uint64(1); i < 20; i++ {
		n, err := a.AllocNum()
		require.NoError(t, err)
		assert.Equal(i, n)
	}
	assert.NoError(a.FreeNum(5))
	assert.NoError(a.FreeNum(12))
	n, _ := a.AllocNum()
	assert.Equal(uint64(5), n, "lowest free number first")
	n, _ = a.AllocNum()
	assert.Equal(uint64(12), n)
	n, _ = a.AllocNum()
	assert.Equal(uint64(20), n)
}

func TestExhausted(t *testing.T) {
	a := MkAlloc("inode", make([]byte, 1), 0, 5)
	for i := uint64(0); i < 5; i++ {
		n, err := a.AllocNum()
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	_, err := a.AllocNum()
	assert.True(t, errors.Is(err, common.ErrExhausted))

	assert.NoError(t, a.FreeNum(3))
	n, err := a.AllocNum()
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), n, "freed slot is reused")
}

func TestFreeFreeIsNoop(t *testing.T) {
	a := MkMaxAlloc(16)
	n, _ := a.AllocNum()
	assert.NoError(t, a.FreeNum(n))
	assert.NoError(t, a.FreeNum(n))
	assert.False(t, a.IsUsed(n))
	assert.Equal(t, uint64(15), a.NumFree())

	err := a.FreeNum(0)
	assert.True(t, errors.Is(err, common.ErrInvalid), "reserved number")
	err = a.FreeNum(16)
	assert.True(t, errors.Is(err, common.ErrInvalid))
}

func TestSkipsFullBytes(t *testing.T) {
	bm := make([]byte, 4)
	bm[0], bm[1] = 0xFF, 0xFF
	a := MkAlloc("block", bm, 1, 32)
	n, err := a.AllocNum()
	require.NoError(t, err)
	assert.Equal(t, uint64(16), n)
	assert.Equal(t, uint64(32-1-16), a.NumFree())
}
