package fsys

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/noxer/bytewriter"

	"github.com/mbarlow/monofs/fserrors"
)

// Signature is the magic string stamped into every image's superblock.
const Signature = "MONFSS"

const (
	PartitionSize = 10 * 1024 * 1024
	BlockSize     = 4096
	BlockCount    = PartitionSize / BlockSize
	InodeCount    = 256
)

// RawSuperblock is the exact on-disk superblock record.
type RawSuperblock struct {
	Signature  [8]byte
	Root       uint32
	ModifiedAt uint32
	Clean      uint8
	_          [3]byte // explicit padding to keep the record 4-byte aligned
	Partition  uint32
	Blocks     uint32
	Inodes     uint32
	BlockSize  uint32
	FreeBlocks uint32
	FreeInodes uint32
}

// SuperblockSize is the exact on-disk size of RawSuperblock.
const SuperblockSize = 8 + 4 + 4 + 1 + 3 + 4*6

// Superblock is the in-memory mirror of RawSuperblock.
type Superblock struct {
	Root       uint32
	ModifiedAt time.Time
	Clean      bool
	Partition  uint32
	Blocks     uint32
	Inodes     uint32
	BlockSize  uint32
	FreeBlocks uint32
	FreeInodes uint32
}

func (sb *Superblock) toRaw() RawSuperblock {
	raw := RawSuperblock{
		Root:       sb.Root,
		Partition:  sb.Partition,
		Blocks:     sb.Blocks,
		Inodes:     sb.Inodes,
		BlockSize:  sb.BlockSize,
		FreeBlocks: sb.FreeBlocks,
		FreeInodes: sb.FreeInodes,
	}
	copy(raw.Signature[:], Signature)
	raw.ModifiedAt = uint32(sb.ModifiedAt.Unix())
	if sb.Clean {
		raw.Clean = 1
	}
	return raw
}

func superblockFromRaw(raw RawSuperblock) (Superblock, error) {
	if string(bytes.TrimRight(raw.Signature[:], "\x00")) != Signature {
		return Superblock{}, fserrors.CorruptImage.WithMessage(
			"bad superblock signature")
	}
	return Superblock{
		Root:       raw.Root,
		ModifiedAt: time.Unix(int64(raw.ModifiedAt), 0).UTC(),
		Clean:      raw.Clean != 0,
		Partition:  raw.Partition,
		Blocks:     raw.Blocks,
		Inodes:     raw.Inodes,
		BlockSize:  raw.BlockSize,
		FreeBlocks: raw.FreeBlocks,
		FreeInodes: raw.FreeInodes,
	}, nil
}

func (sb *Superblock) marshal() ([]byte, error) {
	raw := sb.toRaw()
	buf := make([]byte, SuperblockSize)
	writer := bytewriter.New(buf)
	if err := binary.Write(writer, binary.LittleEndian, &raw); err != nil {
		return nil, fserrors.IOError.WrapError(err)
	}
	return buf, nil
}

func unmarshalSuperblock(data []byte) (Superblock, error) {
	if len(data) < SuperblockSize {
		return Superblock{}, fserrors.CorruptImage.WithMessage("truncated superblock")
	}
	var raw RawSuperblock
	r := bytes.NewReader(data[:SuperblockSize])
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return Superblock{}, fserrors.CorruptImage.WrapError(err)
	}
	return superblockFromRaw(raw)
}
