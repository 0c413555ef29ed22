package alloc

import (
	"fmt"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/util"
)

// Alloc hands out the numbers [start, max) from a bitmap, always choosing
// the lowest free one. Numbers below start are never allocated or freed.
type Alloc struct {
	name   string
	bitmap Bitmap
	start  uint64
	max    uint64
}

// MkAlloc allocates over bitmap, which must hold at least max bits. The
// bitmap is typically a view into block 0 and is updated in place.
func MkAlloc(name string, bitmap []byte, start uint64, max uint64) *Alloc {
	if uint64(len(bitmap))*8 < max {
		panic("MkAlloc: bitmap too small")
	}
	a := &Alloc{
		name:   name,
		bitmap: Bitmap(bitmap),
		start:  start,
		max:    max,
	}
	return a
}

// MkMaxAlloc allocates [1, max) from a private in-memory bitmap.
func MkMaxAlloc(max uint64) *Alloc {
	return MkAlloc("mem", make([]byte, util.RoundUp(max, 8)), 1, max)
}

func (a *Alloc) Max() uint64 {
	return a.max
}

// AllocNum claims the lowest free number, or fails with common.ErrExhausted.
func (a *Alloc) AllocNum() (uint64, error) {
	for n := a.start; n < a.max; n++ {
		if n%8 == 0 && a.bitmap[n/8] == 0xFF && n+8 <= a.max {
			n += 7
			continue
		}
		if !a.bitmap.Get(n) {
			a.bitmap.Put(n, true)
			util.DPrintf(10, "%s: alloc %d\n", a.name, n)
			return n, nil
		}
	}
	return 0, fmt.Errorf("%s bitmap: %w", a.name, common.ErrExhausted)
}

// FreeNum releases num. Freeing a number that is already free leaves the
// bitmap unchanged.
func (a *Alloc) FreeNum(num uint64) error {
	if num < a.start || num >= a.max {
		return fmt.Errorf("%s bitmap: free %d outside [%d, %d): %w",
			a.name, num, a.start, a.max, common.ErrInvalid)
	}
	if !a.bitmap.Get(num) {
		util.DPrintf(1, "%s: free of free number %d\n", a.name, num)
		return nil
	}
	a.bitmap.Put(num, false)
	util.DPrintf(10, "%s: free %d\n", a.name, num)
	return nil
}

// MarkUsed sets the bit for num regardless of start.
func (a *Alloc) MarkUsed(num uint64) {
	a.bitmap.Put(num, true)
}

func (a *Alloc) IsUsed(num uint64) bool {
	if num >= a.max {
		return false
	}
	return a.bitmap.Get(num)
}

// NumFree counts the free numbers in [start, max).
func (a *Alloc) NumFree() uint64 {
	var used uint64
	n := a.start
	for n < a.max {
		if n%8 == 0 && n+8 <= a.max {
			used += popCnt(a.bitmap[n/8])
			n += 8
			continue
		}
		if a.bitmap.Get(n) {
			used++
		}
		n++
	}
	return a.max - a.start - used
}
