// Package inode models the fixed-size on-disk inode record and the table
// that holds all of them, grounded on dargueta-disko's RawInode/Inode split
// (drivers/unixv1/inode.go): a compact on-disk shape plus a friendlier
// in-memory view with tagged conversions.
package inode

import (
	"time"

	"github.com/mbarlow/monofs/fserrors"
)

// Type identifies what an inode holds. Note there is deliberately no
// separate "hard link" type: a hard link is just another directory entry
// referencing an existing regular-file inode (see Link in package fsys).
type Type uint8

const (
	Free Type = iota
	Regular
	Directory
	Symlink
)

const (
	DirectCount     = 10
	IndirectPerBlock = 1024
	MaxNameLength   = 255
	Count           = 256
)

// ID is an index into the inode table. The root directory is always 0.
type ID uint32

const RootID ID = 0

// Inode is the in-memory representation of one inode-table slot.
type Inode struct {
	Size       uint32
	Type       Type
	Uid        uint16
	Gid        uint16
	Mode       uint16
	Nlinks     uint16
	CreatedAt  time.Time
	ModifiedAt time.Time
	AccessedAt time.Time
	Direct     [DirectCount]uint32
	Indirect   uint32
	// Name is kept for display purposes only; the canonical name lives in
	// the parent directory entry.
	Name string
}

// InUse reports whether this slot holds a live inode (link count > 0).
func (n *Inode) InUse() bool {
	return n.Nlinks > 0
}

// IsDir reports whether the inode is a directory.
func (n *Inode) IsDir() bool {
	return n.Type == Directory
}

// IsRegular reports whether the inode is a regular file.
func (n *Inode) IsRegular() bool {
	return n.Type == Regular
}

// IsSymlink reports whether the inode is a symbolic link.
func (n *Inode) IsSymlink() bool {
	return n.Type == Symlink
}

// BlocksUsed returns the number of direct pointers that are non-zero.
// The defragmenter does not use it; it sizes its runs from Size.
func (n *Inode) BlocksUsed() int {
	count := 0
	for _, b := range n.Direct {
		if b != 0 {
			count++
		}
	}
	return count
}

// ModeString renders the nine permission bits as an rwx-rwx-rwx string.
func (n *Inode) ModeString() string {
	letters := "rwxrwxrwx"
	out := make([]byte, 9)
	for i := 0; i < 9; i++ {
		bit := uint16(1) << (8 - i)
		if n.Mode&bit != 0 {
			out[i] = letters[i]
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}

// TypeGlyph returns the single-character type tag used by `ls`.
func (n *Inode) TypeGlyph() byte {
	switch n.Type {
	case Directory:
		return 'd'
	case Symlink:
		return 'l'
	case Regular:
		return 'f'
	default:
		return '?'
	}
}

// ParseMode converts a nine-character symbolic mode string (e.g.
// "rwxr-xr--") into the packed permission bits used by chmod.
func ParseMode(symbolic string) (uint16, error) {
	if len(symbolic) != 9 {
		return 0, fserrors.InvalidArgument.WithMessage(
			"symbolic mode must be exactly nine characters")
	}

	bits := [9]struct {
		pos  int
		char byte
	}{
		{8, 'r'}, {7, 'w'}, {6, 'x'},
		{5, 'r'}, {4, 'w'}, {3, 'x'},
		{2, 'r'}, {1, 'w'}, {0, 'x'},
	}

	var mode uint16
	for i, spec := range bits {
		if symbolic[i] == spec.char {
			mode |= 1 << spec.pos
		}
	}
	return mode, nil
}
