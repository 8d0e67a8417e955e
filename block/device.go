// Package block provides a fixed-size-block view over a backing
// io.ReadWriteSeeker, the way dargueta-disko's BlockStream does for its
// drivers. monofs's geometry is fixed (4096-byte blocks, 2560 of them) but
// the type still carries it explicitly rather than hardcoding it at every
// call site.
package block

import (
	"io"

	"github.com/mbarlow/monofs/fserrors"
)

// ID identifies a block by its zero-based index into the image.
type ID uint32

// Device is a block-addressable view over a backing stream. The exposed
// fields are informational; callers should treat them as read-only.
type Device struct {
	BlockSize   uint32
	BlockCount  uint32
	StartOffset int64
	stream      io.ReadWriteSeeker
}

// New wraps stream as a Device with the given geometry.
func New(stream io.ReadWriteSeeker, blockCount uint32, blockSize uint32, startOffset int64) Device {
	return Device{
		BlockSize:   blockSize,
		BlockCount:  blockCount,
		StartOffset: startOffset,
		stream:      stream,
	}
}

// Offset converts a block ID into a byte offset in the backing stream.
func (d *Device) Offset(id ID) (int64, error) {
	if uint32(id) >= d.BlockCount {
		return -1, fserrors.InvalidArgument.WithMessage(
			"block id out of range")
	}
	return d.StartOffset + int64(id)*int64(d.BlockSize), nil
}

func (d *Device) seek(id ID) error {
	offset, err := d.Offset(id)
	if err != nil {
		return err
	}
	_, err = d.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return fserrors.IOError.WrapError(err)
	}
	return nil
}

// ReadBlock reads exactly one block at id.
func (d *Device) ReadBlock(id ID) ([]byte, error) {
	if err := d.seek(id); err != nil {
		return nil, err
	}
	buffer := make([]byte, d.BlockSize)
	if _, err := io.ReadFull(d.stream, buffer); err != nil {
		return nil, fserrors.IOError.WrapError(err)
	}
	return buffer, nil
}

// WriteBlock writes data (which must be exactly one block long) at id.
func (d *Device) WriteBlock(id ID, data []byte) error {
	if uint32(len(data)) != d.BlockSize {
		return fserrors.InvalidArgument.WithMessage(
			"write must be exactly one block")
	}
	if err := d.seek(id); err != nil {
		return err
	}
	if _, err := d.stream.Write(data); err != nil {
		return fserrors.IOError.WrapError(err)
	}
	return nil
}

// ReadAt reads n contiguous blocks starting at id.
func (d *Device) ReadAt(id ID, n uint32) ([]byte, error) {
	if uint32(id)+n > d.BlockCount {
		return nil, fserrors.InvalidArgument.WithMessage(
			"read extends past end of image")
	}
	if err := d.seek(id); err != nil {
		return nil, err
	}
	buffer := make([]byte, uint32(d.BlockSize)*n)
	if _, err := io.ReadFull(d.stream, buffer); err != nil {
		return nil, fserrors.IOError.WrapError(err)
	}
	return buffer, nil
}

// WriteAt writes data (a multiple of BlockSize) starting at id.
func (d *Device) WriteAt(id ID, data []byte) error {
	if uint32(len(data))%d.BlockSize != 0 {
		return fserrors.InvalidArgument.WithMessage(
			"data length must be a multiple of the block size")
	}
	n := uint32(len(data)) / d.BlockSize
	if uint32(id)+n > d.BlockCount {
		return fserrors.InvalidArgument.WithMessage(
			"write extends past end of image")
	}
	if err := d.seek(id); err != nil {
		return err
	}
	if _, err := d.stream.Write(data); err != nil {
		return fserrors.IOError.WrapError(err)
	}
	return nil
}

// ReadFull copies the whole image into a single byte slice, used by
// Backup.
func (d *Device) ReadFull() ([]byte, error) {
	return d.ReadAt(0, d.BlockCount)
}

// Stream returns the underlying backing stream, for callers (like backup
// restore) that need to replace the image wholesale.
func (d *Device) Stream() io.ReadWriteSeeker {
	return d.stream
}
