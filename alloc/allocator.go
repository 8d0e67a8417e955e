// Package alloc is the free-block bitmap allocator: one bit per data block,
// first-fit allocation and first-fit contiguous runs (the latter used by
// the defragmenter to stage relocated blocks).
package alloc

import (
	"github.com/boljen/go-bitmap"

	"github.com/mbarlow/monofs/block"
	"github.com/mbarlow/monofs/fserrors"
)

// Allocator tracks which blocks of the image are in use.
type Allocator struct {
	bits  bitmap.Bitmap
	total uint32
}

// New creates an allocator for an image with the given total block count.
// Every block starts free; callers reserve the superblock/bitmap/inode-table
// range with Reserve before handing the allocator to anything else.
func New(total uint32) *Allocator {
	return &Allocator{
		bits:  bitmap.New(int(total)),
		total: total,
	}
}

// FromBytes reconstructs an allocator from its packed on-disk bitmap.
func FromBytes(total uint32, packed []byte) *Allocator {
	return &Allocator{
		bits:  bitmap.Bitmap(packed),
		total: total,
	}
}

// Bytes returns the packed on-disk representation of the bitmap.
func (a *Allocator) Bytes() []byte {
	return []byte(a.bits)
}

// Reserve marks [0, count) as permanently allocated; used once at
// initialization time to claim the superblock, bitmap, and inode-table
// blocks before any file data is written.
func (a *Allocator) Reserve(count uint32) {
	for i := uint32(0); i < count; i++ {
		a.bits.Set(int(i), true)
	}
}

// Allocate returns the first free block, marking it used.
func (a *Allocator) Allocate() (block.ID, error) {
	for i := uint32(0); i < a.total; i++ {
		if !a.bits.Get(int(i)) {
			a.bits.Set(int(i), true)
			return block.ID(i), nil
		}
	}
	return 0, fserrors.NoSpace.WithMessage("no free blocks")
}

// Free releases a previously allocated block.
func (a *Allocator) Free(id block.ID) error {
	if uint32(id) >= a.total {
		return fserrors.InvalidArgument.WithMessage("block id out of range")
	}
	if !a.bits.Get(int(id)) {
		return fserrors.CorruptImage.WithMessage("block already free")
	}
	a.bits.Set(int(id), false)
	return nil
}

// IsAllocated reports whether id is currently in use.
func (a *Allocator) IsAllocated(id block.ID) bool {
	if uint32(id) >= a.total {
		return false
	}
	return a.bits.Get(int(id))
}

func (a *Allocator) findRun(count uint32, value bool) (block.ID, error) {
	runSize := uint32(0)
	runStart := block.ID(0)

	for i := uint32(0); i < a.total; i++ {
		bit := a.bits.Get(int(i))
		if bit == !value {
			runSize = 0
			continue
		}

		runSize++
		if runSize == 1 {
			runStart = block.ID(i)
		}
		if runSize == count {
			return runStart, nil
		}
	}

	return 0, fserrors.NoSpace.WithMessage("no contiguous run of that size")
}

// AllocateContiguous finds and claims the first run of count free blocks,
// returning the id of the first block in the run.
func (a *Allocator) AllocateContiguous(count uint32) (block.ID, error) {
	if count == 0 {
		return 0, fserrors.InvalidArgument.WithMessage("count must be positive")
	}
	start, err := a.findRun(count, false)
	if err != nil {
		return 0, err
	}
	for i := uint32(0); i < count; i++ {
		a.bits.Set(int(uint32(start)+i), true)
	}
	return start, nil
}

// CountFree returns the number of unallocated blocks.
func (a *Allocator) CountFree() uint32 {
	free := uint32(0)
	for i := uint32(0); i < a.total; i++ {
		if !a.bits.Get(int(i)) {
			free++
		}
	}
	return free
}

// Snapshot returns one bool per block (true = allocated), for the CLI's
// before/after defrag bitmap display.
func (a *Allocator) Snapshot() []bool {
	out := make([]bool, a.total)
	for i := uint32(0); i < a.total; i++ {
		out[i] = a.bits.Get(int(i))
	}
	return out
}
