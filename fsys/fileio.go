package fsys

import (
	"github.com/mbarlow/monofs/block"
	"github.com/mbarlow/monofs/dirent"
	"github.com/mbarlow/monofs/fserrors"
	"github.com/mbarlow/monofs/inode"
)

// bmap maps logical block index i of n to a physical block id, allocating
// direct pointers and the indirect block (and its slots) on demand when
// allocating is true.
func (fs *FileSystem) bmap(n *inode.Inode, i uint32, allocating bool) (block.ID, error) {
	if i < inode.DirectCount {
		if n.Direct[i] == 0 && allocating {
			id, err := fs.allocateBlock()
			if err != nil {
				return 0, err
			}
			n.Direct[i] = uint32(id)
		}
		return block.ID(n.Direct[i]), nil
	}

	if i < inode.DirectCount+inode.IndirectPerBlock {
		if n.Indirect == 0 {
			if !allocating {
				return 0, nil
			}
			id, err := fs.allocateBlock()
			if err != nil {
				return 0, err
			}
			n.Indirect = uint32(id)
		}

		slotIndex := i - inode.DirectCount
		raw, err := fs.readBlock(block.ID(n.Indirect))
		if err != nil {
			return 0, err
		}
		slots := decodeIndirect(raw)

		if slots[slotIndex] == 0 && allocating {
			id, err := fs.allocateBlock()
			if err != nil {
				return 0, err
			}
			slots[slotIndex] = uint32(id)
			if err := fs.writeBlock(block.ID(n.Indirect), encodeIndirect(slots)); err != nil {
				return 0, err
			}
		}
		return block.ID(slots[slotIndex]), nil
	}

	return 0, fserrors.InvalidArgument.WithMessage("offset too large for this file")
}

func decodeIndirect(raw []byte) []uint32 {
	slots := make([]uint32, inode.IndirectPerBlock)
	for i := range slots {
		slots[i] = uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 |
			uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
	}
	return slots
}

func encodeIndirect(slots []uint32) []byte {
	raw := make([]byte, inode.IndirectPerBlock*4)
	for i, s := range slots {
		raw[i*4] = byte(s)
		raw[i*4+1] = byte(s >> 8)
		raw[i*4+2] = byte(s >> 16)
		raw[i*4+3] = byte(s >> 24)
	}
	return raw
}

// ReadFile reads up to n bytes from file id starting at offset. A symlink
// is resolved by looking its target name up in the current directory and
// reading the resolved inode, recursively if that is a symlink too.
func (fs *FileSystem) ReadFile(identity Identity, id inode.ID, offset uint32, n uint32) ([]byte, error) {
	target, err := fs.Inode(id)
	if err != nil {
		return nil, err
	}

	if target.IsSymlink() {
		linkName, err := fs.readSymlinkTarget(target)
		if err != nil {
			return nil, err
		}
		resolved, err := fs.lookupInCwd(linkName)
		if err != nil {
			return nil, err
		}
		return fs.ReadFile(identity, resolved, offset, n)
	}

	if target.IsDir() {
		return nil, fserrors.WrongType.WithMessage("cannot read a directory")
	}
	if offset >= target.Size {
		return nil, fserrors.InvalidArgument.WithMessage("offset beyond end of file")
	}
	if err := fs.checkAccess(target, identity, PermRead); err != nil {
		return nil, err
	}

	remaining := target.Size - offset
	if n > remaining {
		n = remaining
	}

	out := make([]byte, 0, n)
	blockIndex := offset / BlockSize
	inBlockOffset := offset % BlockSize

	for uint32(len(out)) < n {
		id, err := fs.bmap(target, blockIndex, false)
		if err != nil {
			return nil, err
		}

		var data []byte
		if id == 0 {
			data = make([]byte, BlockSize)
		} else {
			data, err = fs.readBlock(id)
			if err != nil {
				return nil, err
			}
		}

		chunk := data[inBlockOffset:]
		want := n - uint32(len(out))
		if uint32(len(chunk)) > want {
			chunk = chunk[:want]
		}
		out = append(out, chunk...)

		blockIndex++
		inBlockOffset = 0
	}

	target.AccessedAt = now()
	return out, nil
}

// WriteFile writes buf to file id starting at offset. Writing from
// offset 0 on a non-empty file first frees all of its existing blocks
// (the "open for rewrite" semantics described in the write operation).
func (fs *FileSystem) WriteFile(identity Identity, id inode.ID, offset uint32, buf []byte) (uint32, error) {
	target, err := fs.Inode(id)
	if err != nil {
		return 0, err
	}
	if !target.IsRegular() {
		return 0, fserrors.WrongType.WithMessage("can only write to a regular file")
	}
	if err := fs.checkAccess(target, identity, PermWrite); err != nil {
		return 0, err
	}

	if target.Size > 0 && offset == 0 {
		if err := fs.freeFileBlocks(target); err != nil {
			return 0, err
		}
		target.Size = 0
	}

	written := uint32(0)
	blockIndex := offset / BlockSize
	inBlockOffset := offset % BlockSize

	for written < uint32(len(buf)) {
		id, err := fs.bmap(target, blockIndex, true)
		if err != nil {
			return written, err
		}

		data, err := fs.readBlock(id)
		if err != nil {
			return written, err
		}

		space := BlockSize - inBlockOffset
		chunk := buf[written:]
		if uint32(len(chunk)) > space {
			chunk = chunk[:space]
		}
		copy(data[inBlockOffset:], chunk)

		if err := fs.writeBlock(id, data); err != nil {
			return written, err
		}

		written += uint32(len(chunk))
		blockIndex++
		inBlockOffset = 0
	}

	if offset+written > target.Size {
		target.Size = offset + written
	}
	target.ModifiedAt = now()
	target.AccessedAt = target.ModifiedAt
	return written, nil
}

// freeFileBlocks releases every direct block, every indirect slot, and
// the indirect block itself, in that order, as required by unlink and by
// rewrite-from-offset-0 writes.
func (fs *FileSystem) freeFileBlocks(n *inode.Inode) error {
	for i := range n.Direct {
		if n.Direct[i] != 0 {
			if err := fs.releaseBlock(block.ID(n.Direct[i])); err != nil {
				return err
			}
			n.Direct[i] = 0
		}
	}

	if n.Indirect != 0 {
		raw, err := fs.readBlock(block.ID(n.Indirect))
		if err != nil {
			return err
		}
		slots := decodeIndirect(raw)
		for _, s := range slots {
			if s != 0 {
				if err := fs.releaseBlock(block.ID(s)); err != nil {
					return err
				}
			}
		}
		if err := fs.releaseBlock(block.ID(n.Indirect)); err != nil {
			return err
		}
		n.Indirect = 0
	}
	return nil
}

func (fs *FileSystem) readSymlinkTarget(n *inode.Inode) (string, error) {
	if n.Direct[0] == 0 {
		return "", fserrors.CorruptImage.WithMessage("symlink has no target block")
	}
	data, err := fs.readBlock(block.ID(n.Direct[0]))
	if err != nil {
		return "", err
	}
	end := 0
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[:end]), nil
}

func (fs *FileSystem) lookupInCwd(name string) (inode.ID, error) {
	dirBlock, err := fs.readDirBlock(fs.cwd)
	if err != nil {
		return 0, err
	}
	id, ok := dirBlock.Lookup(name)
	if !ok {
		return 0, fserrors.NotFound.WithMessage(name)
	}
	return id, nil
}

func (fs *FileSystem) readDirBlock(dir inode.ID) (*dirent.Block, error) {
	n, err := fs.Inode(dir)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, fserrors.WrongType.WithMessage("not a directory")
	}
	raw, err := fs.readBlock(block.ID(n.Direct[0]))
	if err != nil {
		return nil, err
	}
	return dirent.Decode(raw)
}

func (fs *FileSystem) writeDirBlock(dir inode.ID, b *dirent.Block) error {
	n, err := fs.Inode(dir)
	if err != nil {
		return err
	}
	if err := fs.writeBlock(block.ID(n.Direct[0]), b.Encode()); err != nil {
		return err
	}
	n.ModifiedAt = now()
	return nil
}
