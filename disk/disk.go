package disk

import (
	"github.com/mit-pdos/go-nufs/common"
)

// Block is a BlockSize-byte view into a Region.
type Block = []byte

// Region is a fixed-capacity backing store addressed by block number.
//
// Every view returned for the same block aliases the same memory, so a write
// through one view is observed by all others. Regions do no locking; the
// caller serializes access.
type Region interface {
	// Block returns a mutable view of block a.
	//
	// Fails with common.ErrIO if a >= Size().
	Block(a common.Bnum) (Block, error)

	// Size reports how big the region is, in blocks
	Size() uint64

	// Barrier ensures data is persisted.
	Barrier() error

	// Close releases the region and makes it unusable.
	Close() error
}
