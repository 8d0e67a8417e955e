package inode

import (
	"github.com/mbarlow/monofs/fserrors"
)

// ReservedBlocks is K from the spec: the number of low blocks occupied by
// the superblock and the inode table, computed the way the original
// program derives it (ceil(inode-count * record-size / block-size)).
func ReservedBlocks(blockSize uint32) uint32 {
	total := uint32(Count) * uint32(RecordSize)
	blocks := total / blockSize
	if total%blockSize != 0 {
		blocks++
	}
	return blocks
}

// Table is the in-memory mirror of the on-disk inode array.
type Table struct {
	slots []Inode
}

// NewTable creates a table of Count empty (free) slots.
func NewTable() *Table {
	return &Table{slots: make([]Inode, Count)}
}

// TableFromRaw reconstructs a table from decoded on-disk records.
func TableFromRaw(records []RawInode) *Table {
	t := &Table{slots: make([]Inode, len(records))}
	for i, r := range records {
		t.slots[i] = FromRaw(r)
	}
	return t
}

// Get returns the inode at id. The caller must check id bounds first via
// Valid.
func (t *Table) Get(id ID) *Inode {
	return &t.slots[id]
}

// Valid reports whether id is within the table.
func (t *Table) Valid(id ID) bool {
	return int(id) < len(t.slots)
}

// Allocate scans for the first free slot (size=0 and link-count=0) and
// returns its id, leaving the slot zeroed for the caller to populate.
func (t *Table) Allocate() (ID, error) {
	for i := range t.slots {
		if t.slots[i].Size == 0 && t.slots[i].Nlinks == 0 {
			return ID(i), nil
		}
	}
	return 0, fserrors.NoSpace.WithMessage("no free inodes")
}

// Release zeroes the record at id, returning it to the free pool.
func (t *Table) Release(id ID) error {
	if !t.Valid(id) {
		return fserrors.InvalidArgument.WithMessage("inode id out of range")
	}
	t.slots[id] = Inode{}
	return nil
}

// CountFree returns how many slots are currently unused.
func (t *Table) CountFree() uint32 {
	free := uint32(0)
	for i := range t.slots {
		if t.slots[i].Size == 0 && t.slots[i].Nlinks == 0 {
			free++
		}
	}
	return free
}

// Records serializes every slot to its on-disk form, in order.
func (t *Table) Records() []RawInode {
	out := make([]RawInode, len(t.slots))
	for i := range t.slots {
		out[i] = t.slots[i].ToRaw()
	}
	return out
}

// Len reports the number of slots in the table.
func (t *Table) Len() int {
	return len(t.slots)
}
