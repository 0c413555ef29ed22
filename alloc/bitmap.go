package alloc

// Bitmap holds one bit per number; bit i is bit i%8 of byte i/8.
type Bitmap []byte

func (bm Bitmap) Get(i uint64) bool {
	return bm[i/8]&(1<<(i%8)) != 0
}

func (bm Bitmap) Put(i uint64, v bool) {
	if v {
		bm[i/8] = bm[i/8] | (1 << (i % 8))
	} else {
		bm[i/8] = bm[i/8] & ^(1 << (i % 8))
	}
}

func popCnt(b byte) uint64 {
	var count uint64
	var x = b
	for i := uint64(0); i < 8; i++ {
		count += uint64(x & 1)
		x = x >> 1
	}
	return count
}
