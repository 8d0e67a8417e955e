// Package dirent implements the fixed-capacity directory block: a flat
// array of (name, inode id) entries stored in exactly one data block,
// grounded on dargueta-disko's DirectoryEntry wrapper
// (drivers/common/basedriver/dirent.go) but working directly against the
// packed on-disk record this filesystem uses.
package dirent

import (
	"bytes"
	"encoding/binary"

	"github.com/mbarlow/monofs/fserrors"
	"github.com/mbarlow/monofs/inode"
)

// Capacity is the fixed number of entries a directory block holds.
const Capacity = 128

// BlockSize is the size of the single block a directory's contents live
// in. 128 entries must fit in exactly one 4096-byte block, which is
// tighter than the 255-byte name limit the namespace layer otherwise
// validates against (inode.MaxNameLength): 4096/128 leaves room for a
// length byte, an inode id, and a 27-byte name per entry.
const BlockSize = 4096

const entryOverhead = 1 + 4 // NameLen(1) + InodeID(4)

// MaxNameLength is the physical per-entry name capacity a directory
// block can hold; distinct from inode.MaxNameLength, the broader
// 255-byte bound the namespace layer validates names against before
// ever reaching directory insertion.
const MaxNameLength = BlockSize/Capacity - entryOverhead

// rawEntrySize is NameLen(1) + Name(MaxNameLength) + InodeID(4).
const rawEntrySize = entryOverhead + MaxNameLength

// RecordSize is how many bytes a directory block occupies — exactly one
// block.
const RecordSize = rawEntrySize * Capacity

// Entry is one (name, inode id) slot. A slot is free iff Name is empty —
// checking the ID instead would mistake a valid entry pointing at the
// root directory (inode id 0) for an empty slot.
type Entry struct {
	Name string
	ID   inode.ID
}

func (e Entry) empty() bool {
	return e.Name == ""
}

// Block is the in-memory form of a directory's single data block.
type Block struct {
	Entries [Capacity]Entry
}

// Decode unpacks a raw block's bytes into a Block.
func Decode(data []byte) (*Block, error) {
	if len(data) < RecordSize {
		return nil, fserrors.CorruptImage.WithMessage("truncated directory block")
	}
	b := &Block{}
	r := bytes.NewReader(data)
	for i := 0; i < Capacity; i++ {
		var nameLen uint8
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fserrors.CorruptImage.WrapError(err)
		}
		var nameBuf [MaxNameLength]byte
		if err := binary.Read(r, binary.LittleEndian, &nameBuf); err != nil {
			return nil, fserrors.CorruptImage.WrapError(err)
		}
		var id uint32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, fserrors.CorruptImage.WrapError(err)
		}
		b.Entries[i] = Entry{
			Name: string(nameBuf[:nameLen]),
			ID:   inode.ID(id),
		}
	}
	return b, nil
}

// Encode packs the block back into RecordSize bytes.
func (b *Block) Encode() []byte {
	buf := &bytes.Buffer{}
	for _, e := range b.Entries {
		nameBytes := []byte(e.Name)
		if len(nameBytes) > MaxNameLength {
			nameBytes = nameBytes[:MaxNameLength]
		}
		var nameBuf [MaxNameLength]byte
		copy(nameBuf[:], nameBytes)

		binary.Write(buf, binary.LittleEndian, uint8(len(nameBytes)))
		binary.Write(buf, binary.LittleEndian, nameBuf)
		binary.Write(buf, binary.LittleEndian, uint32(e.ID))
	}
	return buf.Bytes()
}

// Lookup scans all slots and returns the id of the first non-empty slot
// whose name matches.
func (b *Block) Lookup(name string) (inode.ID, bool) {
	for _, e := range b.Entries {
		if !e.empty() && e.Name == name {
			return e.ID, true
		}
	}
	return 0, false
}

// Insert validates name length, rejects duplicates, and places the entry
// in the first free slot (one whose name starts with a NUL, modeled here
// as an empty Name).
func (b *Block) Insert(name string, id inode.ID) error {
	if len(name) == 0 || len(name) > MaxNameLength {
		return fserrors.InvalidArgument.WithMessage("invalid name length")
	}
	if _, found := b.Lookup(name); found {
		return fserrors.Exists.WithMessage(name)
	}

	for i := range b.Entries {
		if b.Entries[i].empty() {
			b.Entries[i] = Entry{Name: name, ID: id}
			return nil
		}
	}
	return fserrors.NoSpace.WithMessage("directory is full")
}

// Remove zeroes the matching slot.
func (b *Block) Remove(name string) error {
	for i := range b.Entries {
		if !b.Entries[i].empty() && b.Entries[i].Name == name {
			b.Entries[i] = Entry{}
			return nil
		}
	}
	return fserrors.NotFound.WithMessage(name)
}

// Count returns the number of non-empty entries, optionally excluding
// "." and "..".
func (b *Block) Count(excludeDots bool) int {
	n := 0
	for _, e := range b.Entries {
		if e.empty() {
			continue
		}
		if excludeDots && (e.Name == "." || e.Name == "..") {
			continue
		}
		n++
	}
	return n
}

// List returns every non-empty entry, in slot order.
func (b *Block) List() []Entry {
	out := make([]Entry, 0, Capacity)
	for _, e := range b.Entries {
		if !e.empty() {
			out = append(out, e)
		}
	}
	return out
}

// New builds a fresh directory block containing "." -> self and
// ".." -> parent at positions 0 and 1.
func New(self, parent inode.ID) *Block {
	b := &Block{}
	b.Entries[0] = Entry{Name: ".", ID: self}
	b.Entries[1] = Entry{Name: "..", ID: parent}
	return b
}
