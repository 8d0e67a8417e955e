// Package fsys is the core engine: process state, access checks,
// block-mapped file I/O, namespace operations, persistence, and the
// defragmenter, grounded on dargueta-disko's UnixV1Driver
// (drivers/unixv1/driver.go) but redesigned as an explicit value instead
// of process-wide globals (see the "process-wide state" design note).
package fsys

import (
	"io"
	"time"

	"github.com/mbarlow/monofs/alloc"
	"github.com/mbarlow/monofs/block"
	"github.com/mbarlow/monofs/fserrors"
	"github.com/mbarlow/monofs/inode"
)

// Identity is the caller's effective uid/gid, used by the access checker
// and by create/chmod. Uid 0 is superuser and bypasses all checks.
type Identity struct {
	Uid uint16
	Gid uint16
}

// FileSystem holds one mounted image's entire live state: the backing
// handle, the cached superblock, the bitmap, the inode table, and the
// current directory. Every operation is a method on *FileSystem so tests
// (and, in principle, several images) never share global state.
type FileSystem struct {
	handle   io.ReadWriteSeeker
	device   block.Device
	sb       Superblock
	bitmap   *alloc.Allocator
	inodes   *inode.Table
	cwd      inode.ID
	reserved uint32
}

// Cwd returns the current directory's inode id.
func (fs *FileSystem) Cwd() inode.ID { return fs.cwd }

// Inode returns the inode at id, failing if id is out of range.
func (fs *FileSystem) Inode(id inode.ID) (*inode.Inode, error) {
	if !fs.inodes.Valid(id) {
		return nil, fserrors.InvalidArgument.WithMessage("inode id out of range")
	}
	return fs.inodes.Get(id), nil
}

// Stat returns a copy of the superblock.
func (fs *FileSystem) Stat() Superblock {
	return fs.sb
}

// Bitmap exposes the live allocator, e.g. for the CLI's bitmap display and
// the defragmenter's own use from outside package fsys in tests.
func (fs *FileSystem) Bitmap() *alloc.Allocator {
	return fs.bitmap
}

func (fs *FileSystem) touchSuperblock() {
	fs.sb.ModifiedAt = time.Now()
}

// readBlock and writeBlock are the single choke point spec §4.1 describes:
// every other component goes through these two.
func (fs *FileSystem) readBlock(id block.ID) ([]byte, error) {
	return fs.device.ReadBlock(id)
}

func (fs *FileSystem) writeBlock(id block.ID, data []byte) error {
	if err := fs.device.WriteBlock(id, data); err != nil {
		return err
	}
	fs.touchSuperblock()
	return nil
}

// allocateBlock claims a free block and zero-fills it on disk so stale
// contents never leak into a new allocation.
func (fs *FileSystem) allocateBlock() (block.ID, error) {
	id, err := fs.bitmap.Allocate()
	if err != nil {
		return 0, err
	}
	fs.sb.FreeBlocks--
	zero := make([]byte, BlockSize)
	if err := fs.writeBlock(id, zero); err != nil {
		return 0, err
	}
	return id, nil
}

// releaseBlock returns a block to the free pool, zero-filling it first.
func (fs *FileSystem) releaseBlock(id block.ID) error {
	if id == 0 {
		return nil
	}
	zero := make([]byte, BlockSize)
	if err := fs.writeBlock(id, zero); err != nil {
		return err
	}
	if err := fs.bitmap.Free(id); err != nil {
		return err
	}
	fs.sb.FreeBlocks++
	return nil
}

func (fs *FileSystem) allocateInode() (inode.ID, error) {
	id, err := fs.inodes.Allocate()
	if err != nil {
		return 0, err
	}
	fs.sb.FreeInodes--
	return id, nil
}

func (fs *FileSystem) releaseInode(id inode.ID) error {
	if err := fs.inodes.Release(id); err != nil {
		return err
	}
	fs.sb.FreeInodes++
	return nil
}

// Close flushes a final save and releases the backing handle. Both steps
// are attempted even if the first fails, and any failures are aggregated
// so neither masks the other.
func (fs *FileSystem) Close() error {
	return closeAll(
		fs.Save,
		func() error {
			if closer, ok := fs.handle.(io.Closer); ok {
				return closer.Close()
			}
			return nil
		},
	)
}
