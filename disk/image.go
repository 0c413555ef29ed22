package disk

import (
	"fmt"

	gdisk "github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/util"
)

// Export copies every block of r to the same address on d.
//
// Expects d to hold at least r.Size() blocks.
func Export(r Region, d gdisk.Disk) error {
	for a := uint64(0); a < r.Size(); a++ {
		blk, err := r.Block(a)
		if err != nil {
			return err
		}
		d.Write(a, util.CloneByteSlice(blk))
	}
	d.Barrier()
	util.DPrintf(1, "Export: %d blocks\n", r.Size())
	return nil
}

// Import overwrites r with the first r.Size() blocks of d.
func Import(d gdisk.Disk, r Region) error {
	for a := uint64(0); a < r.Size(); a++ {
		blk, err := r.Block(a)
		if err != nil {
			return err
		}
		src := d.Read(a)
		if uint64(len(src)) != common.BlockSize {
			return fmt.Errorf("import block %d: short read: %w", a, common.ErrIO)
		}
		copy(blk, src)
	}
	util.DPrintf(1, "Import: %d blocks\n", r.Size())
	return r.Barrier()
}
