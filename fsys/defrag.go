package fsys

import (
	"github.com/mbarlow/monofs/alloc"
	"github.com/mbarlow/monofs/block"
	"github.com/mbarlow/monofs/fserrors"
	"github.com/mbarlow/monofs/inode"
)

type remap struct {
	old, new block.ID
}

type inodePatch struct {
	id          inode.ID
	direct      [inode.DirectCount]uint32
	indirect    uint32
	indirectMap map[int]uint32
}

// Defragment rebuilds the bitmap and relocates every in-use inode's
// blocks into a contiguous range, so a later sequential read never seeks.
//
// Unlike the original program, every relocated block is staged into an
// in-memory shadow image (a plain byte-slice copy of the whole image) and
// the whole image is written back with a single WriteAt at the end. The source algorithm copies blocks into their new homes
// one at a time directly on the live image, which corrupts data whenever
// a new range overlaps a range that hasn't been read yet; staging through
// a shadow sidesteps the overlap hazard entirely instead of depending on
// the allocator always scanning in a direction that happens to avoid it.
func (fs *FileSystem) Defragment() error {
	temp := alloc.New(BlockCount)
	temp.Reserve(fs.reserved)

	var remaps []remap
	var patches []inodePatch

	for i := 0; i < fs.inodes.Len(); i++ {
		id := inode.ID(i)
		n := fs.inodes.Get(id)
		if n.Nlinks == 0 || n.Size == 0 {
			continue
		}

		needed := (n.Size + BlockSize - 1) / BlockSize
		start, err := temp.AllocateContiguous(needed)
		if err != nil {
			return fserrors.NoSpace.WithMessage("no contiguous run for an inode; aborting before any block is moved")
		}

		patch := inodePatch{id: id, indirectMap: map[int]uint32{}}
		runPos := uint32(0)

		for di := 0; di < inode.DirectCount; di++ {
			if n.Direct[di] == 0 {
				continue
			}
			newID := block.ID(uint32(start) + runPos)
			remaps = append(remaps, remap{old: block.ID(n.Direct[di]), new: newID})
			patch.direct[di] = uint32(newID)
			runPos++
		}

		if n.Indirect != 0 {
			raw, err := fs.readBlock(block.ID(n.Indirect))
			if err != nil {
				return err
			}
			slots := decodeIndirect(raw)
			for si, s := range slots {
				if s == 0 {
					continue
				}
				newID := block.ID(uint32(start) + runPos)
				remaps = append(remaps, remap{old: block.ID(s), new: newID})
				patch.indirectMap[si] = uint32(newID)
				runPos++
			}

			indirectNew, err := temp.Allocate()
			if err != nil {
				return fserrors.NoSpace.WithMessage("no block for relocated indirect pointer; aborting before any block is moved")
			}
			remaps = append(remaps, remap{old: block.ID(n.Indirect), new: indirectNew})
			patch.indirect = uint32(indirectNew)
		}

		patches = append(patches, patch)
	}

	full, err := fs.device.ReadFull()
	if err != nil {
		return err
	}
	shadow := make([]byte, len(full))
	copy(shadow, full)

	for _, r := range remaps {
		oldOff := int64(r.old) * BlockSize
		newOff := int64(r.new) * BlockSize
		copy(shadow[newOff:newOff+BlockSize], full[oldOff:oldOff+BlockSize])
	}

	for _, p := range patches {
		n := fs.inodes.Get(p.id)
		n.Direct = p.direct
		n.Indirect = p.indirect

		if p.indirect != 0 {
			slots := make([]uint32, inode.IndirectPerBlock)
			for slot, newID := range p.indirectMap {
				slots[slot] = newID
			}
			off := int64(p.indirect) * BlockSize
			copy(shadow[off:off+BlockSize], encodeIndirect(slots))
		}
	}

	if err := fs.device.WriteAt(0, shadow); err != nil {
		return err
	}
	fs.bitmap = temp
	return fs.Save()
}
