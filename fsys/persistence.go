package fsys

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/mbarlow/monofs/alloc"
	"github.com/mbarlow/monofs/block"
	"github.com/mbarlow/monofs/dirent"
	"github.com/mbarlow/monofs/fserrors"
	"github.com/mbarlow/monofs/inode"
)

var reservedBlocks = inode.ReservedBlocks(BlockSize)

func newDevice(stream io.ReadWriteSeeker) block.Device {
	return block.New(stream, BlockCount, BlockSize, 0)
}

// Initialize creates a brand-new image at path: a zero-filled file of
// exactly PartitionSize bytes, the reserved low blocks marked allocated,
// every inode zeroed, and a root directory inode at id 0.
func Initialize(path string) (*FileSystem, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fserrors.IOError.WrapError(err)
	}
	if err := file.Truncate(PartitionSize); err != nil {
		file.Close()
		return nil, fserrors.IOError.WrapError(err)
	}

	fs, err := InitializeStream(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return fs, nil
}

// InitializeStream formats an already-sized backing stream in place,
// exactly the way Initialize does for a real file. It's the seam
// monofstest uses to build in-memory fixtures with bytesextra instead of
// touching the real filesystem.
func InitializeStream(stream io.ReadWriteSeeker) (*FileSystem, error) {
	fs := &FileSystem{
		handle: stream,
		device: newDevice(stream),
		inodes: inode.NewTable(),
		bitmap: alloc.New(BlockCount),
		cwd:    inode.RootID,
	}
	fs.reserved = reservedBlocks
	fs.bitmap.Reserve(fs.reserved)

	now := time.Now()
	fs.sb = Superblock{
		Root:       uint32(inode.RootID),
		ModifiedAt: now,
		Clean:      true,
		Partition:  PartitionSize,
		Blocks:     BlockCount,
		Inodes:     InodeCount,
		BlockSize:  BlockSize,
		FreeBlocks: fs.bitmap.CountFree(),
		FreeInodes: fs.inodes.CountFree(),
	}

	root := fs.inodes.Get(inode.RootID)
	*root = inode.Inode{
		Type:       inode.Directory,
		Mode:       0755,
		Nlinks:     1,
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
	}
	fs.sb.FreeInodes--

	blockID, err := fs.allocateBlock()
	if err != nil {
		return nil, err
	}
	root.Direct[0] = uint32(blockID)
	root.Size = BlockSize

	dirBlock := dirent.New(inode.RootID, inode.RootID)
	if err := fs.writeBlock(block.ID(blockID), dirBlock.Encode()); err != nil {
		return nil, err
	}

	if err := fs.Save(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Load opens an existing image, validates its signature, and reconstructs
// the in-memory superblock, inode table, and bitmap.
func Load(path string) (*FileSystem, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fserrors.IOError.WrapError(err)
	}

	fs := &FileSystem{
		handle:   file,
		device:   newDevice(file),
		cwd:      inode.RootID,
		reserved: reservedBlocks,
	}

	if err := fs.loadMetadata(); err != nil {
		file.Close()
		return nil, err
	}
	return fs, nil
}

// loadMetadata reads the superblock, inode table, and bitmap from the
// head of the image into fs. Shared by Load and Restore.
func (fs *FileSystem) loadMetadata() error {
	head, err := fs.device.ReadAt(0, fs.reserved)
	if err != nil {
		return err
	}

	sb, err := unmarshalSuperblock(head)
	if err != nil {
		return err
	}
	fs.sb = sb

	offset := SuperblockSize
	records := make([]inode.RawInode, InodeCount)
	for i := range records {
		raw, err := inode.Unmarshal(head[offset : offset+inode.RecordSize])
		if err != nil {
			return err
		}
		records[i] = raw
		offset += inode.RecordSize
	}
	fs.inodes = inode.TableFromRaw(records)

	bitmapSize := bitmapByteSize(BlockCount)
	if offset+int(bitmapSize) > len(head) {
		return fserrors.CorruptImage.WithMessage("bitmap does not fit in reserved region")
	}
	fs.bitmap = alloc.FromBytes(BlockCount, head[offset:offset+int(bitmapSize)])

	fs.cwd = inode.RootID
	return nil
}

func bitmapByteSize(bits uint32) uint32 {
	n := bits / 8
	if bits%8 != 0 {
		n++
	}
	return n
}

// headBytes serializes the superblock, inode table, and bitmap into the
// image's reserved head region.
func (fs *FileSystem) headBytes() ([]byte, error) {
	buf := make([]byte, 0, fs.reserved*BlockSize)

	sbBytes, err := fs.sb.marshal()
	if err != nil {
		return nil, err
	}
	buf = append(buf, sbBytes...)

	for _, raw := range fs.inodes.Records() {
		recBytes, err := raw.Marshal()
		if err != nil {
			return nil, err
		}
		buf = append(buf, recBytes...)
	}

	buf = append(buf, fs.bitmap.Bytes()...)

	if uint32(len(buf)) > fs.reserved*BlockSize {
		return nil, fserrors.CorruptImage.WithMessage("metadata overflows reserved blocks")
	}
	padded := make([]byte, fs.reserved*BlockSize)
	copy(padded, buf)
	return padded, nil
}

// Save re-stamps the superblock's modification time and writes the
// superblock, inode table, and bitmap back to the head of the image.
func (fs *FileSystem) Save() error {
	fs.touchSuperblock()
	head, err := fs.headBytes()
	if err != nil {
		return err
	}
	if err := fs.device.WriteAt(0, head); err != nil {
		return err
	}
	if syncer, ok := fs.handle.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			return fserrors.IOError.WrapError(err)
		}
	}
	return nil
}

// Backup saves the in-memory superblock/inode table/bitmap to the head of
// the image, then writes every block of the image, byte for byte, to a
// fresh side file. The side file is a plain copy of the image: it has no
// separate metadata header in front of the blocks.
func (fs *FileSystem) Backup(sidePath string) (err error) {
	if saveErr := fs.Save(); saveErr != nil {
		return saveErr
	}

	out, createErr := os.Create(sidePath)
	if createErr != nil {
		return fserrors.IOError.WrapError(createErr)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fserrors.IOError.WrapError(closeErr)
		}
	}()

	full, readErr := fs.device.ReadFull()
	if readErr != nil {
		return readErr
	}

	if _, err = out.Write(full); err != nil {
		return fserrors.IOError.WrapError(err)
	}
	return nil
}

// Restore replaces the current image's contents, byte for byte, with the
// contents of a side file produced by Backup, then reloads the in-memory
// metadata from it.
func (fs *FileSystem) Restore(sidePath string) error {
	in, err := os.Open(sidePath)
	if err != nil {
		return fserrors.IOError.WrapError(err)
	}
	defer in.Close()

	full, err := io.ReadAll(in)
	if err != nil {
		return fserrors.IOError.WrapError(err)
	}
	if len(full) != PartitionSize {
		return fserrors.CorruptImage.WithMessage("restored image has the wrong size")
	}

	if err := fs.device.WriteAt(0, full); err != nil {
		return err
	}
	return fs.loadMetadata()
}

// closeAll aggregates independent teardown failures (used when multiple
// cleanup steps can each fail on their own and none should be hidden by
// another).
func closeAll(steps ...func() error) error {
	var result *multierror.Error
	for _, step := range steps {
		if err := step(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
