package disk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gdisk "github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-nufs/common"
)

func TestMemRegionViewsAlias(t *testing.T) {
	assert := assert.New(t)
	r := NewMemRegion(4)
	assert.Equal(uint64(4), r.Size())

	b1, err := r.Block(2)
	require.NoError(t, err)
	b2, err := r.Block(2)
	require.NoError(t, err)
	assert.Len(b1, int(common.BlockSize))

	b1[10] = 0xAB
	assert.Equal(byte(0xAB), b2[10], "views of the same block share memory")

	b3, _ := r.Block(3)
	assert.Equal(byte(0), b3[10])
}

func TestBlockViewCannotGrowIntoNeighbor(t *testing.T) {
	r := NewMemRegion(2)
	b0, _ := r.Block(0)
	b0 = append(b0, 0xFF)
	b1, _ := r.Block(1)
	assert.Equal(t, byte(0), b1[0])
}

func TestOutOfRange(t *testing.T) {
	r := NewMemRegion(4)
	_, err := r.Block(4)
	assert.True(t, errors.Is(err, common.ErrIO))
}

func TestFileRegionPersists(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "data.nufs")

	r, err := NewFileRegion(path, 8)
	require.NoError(t, err)
	blk, err := r.Block(5)
	require.NoError(t, err)
	copy(blk, []byte("hello"))
	assert.NoError(r.Barrier())
	assert.NoError(r.Close())
	assert.NoError(r.Close(), "second close is a no-op")

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(int64(8*common.BlockSize), st.Size())

	r, err = NewFileRegion(path, 8)
	require.NoError(t, err)
	defer r.Close()
	blk, err = r.Block(5)
	require.NoError(t, err)
	assert.Equal([]byte("hello"), blk[:5])
}

func TestFileRegionSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.nufs")
	r, err := NewFileRegion(path, 8)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = NewFileRegion(path, 16)
	assert.True(t, errors.Is(err, common.ErrInvalid))
}

func TestExportImport(t *testing.T) {
	assert := assert.New(t)
	src := NewMemRegion(8)
	for a := uint64(0); a < 8; a++ {
		blk, _ := src.Block(a)
		blk[0] = byte(a + 1)
		blk[common.BlockSize-1] = byte(0xF0 | a)
	}

	d := gdisk.NewMemDisk(8)
	require.NoError(t, Export(src, d))

	dst := NewMemRegion(8)
	require.NoError(t, Import(d, dst))
	for a := uint64(0); a < 8; a++ {
		want, _ := src.Block(a)
		got, _ := dst.Block(a)
		assert.Equal(want, got, "block %d", a)
	}
}
