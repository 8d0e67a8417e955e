package inode

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/noxer/bytewriter"

	"github.com/mbarlow/monofs/fserrors"
)

// RawInode is the exact on-disk layout of one inode-table slot: fixed
// width, no padding beyond what's declared, little-endian, written with
// encoding/binary the way file_systems/unixv1/format.go writes RawInode.
type RawInode struct {
	Size       uint32
	Type       uint8
	Uid        uint16
	Gid        uint16
	Mode       uint16
	Nlinks     uint16
	CreatedAt  uint32
	ModifiedAt uint32
	AccessedAt uint32
	Direct     [DirectCount]uint32
	Indirect   uint32
	NameLen    uint8
	Name       [MaxNameLength]byte
}

// RecordSize is the exact byte length of one serialized RawInode.
const RecordSize = 4 + 1 + 2 + 2 + 2 + 2 + 4 + 4 + 4 + 4*DirectCount + 4 + 1 + MaxNameLength

func toUnix(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Unix())
}

func fromUnix(sec uint32) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}

// ToRaw converts an in-memory Inode to its on-disk record.
func (n *Inode) ToRaw() RawInode {
	raw := RawInode{
		Size:       n.Size,
		Type:       uint8(n.Type),
		Uid:        n.Uid,
		Gid:        n.Gid,
		Mode:       n.Mode,
		Nlinks:     n.Nlinks,
		CreatedAt:  toUnix(n.CreatedAt),
		ModifiedAt: toUnix(n.ModifiedAt),
		AccessedAt: toUnix(n.AccessedAt),
		Direct:     n.Direct,
		Indirect:   n.Indirect,
	}
	nameBytes := []byte(n.Name)
	if len(nameBytes) > MaxNameLength {
		nameBytes = nameBytes[:MaxNameLength]
	}
	raw.NameLen = uint8(len(nameBytes))
	copy(raw.Name[:], nameBytes)
	return raw
}

// FromRaw converts an on-disk record to an in-memory Inode.
func FromRaw(raw RawInode) Inode {
	return Inode{
		Size:       raw.Size,
		Type:       Type(raw.Type),
		Uid:        raw.Uid,
		Gid:        raw.Gid,
		Mode:       raw.Mode,
		Nlinks:     raw.Nlinks,
		CreatedAt:  fromUnix(raw.CreatedAt),
		ModifiedAt: fromUnix(raw.ModifiedAt),
		AccessedAt: fromUnix(raw.AccessedAt),
		Direct:     raw.Direct,
		Indirect:   raw.Indirect,
		Name:       string(raw.Name[:raw.NameLen]),
	}
}

// Marshal serializes raw into a new RecordSize-length buffer.
func (raw *RawInode) Marshal() ([]byte, error) {
	buf := make([]byte, RecordSize)
	writer := bytewriter.New(buf)
	if err := binary.Write(writer, binary.LittleEndian, raw); err != nil {
		return nil, fserrors.IOError.WrapError(err)
	}
	return buf, nil
}

// Unmarshal decodes exactly RecordSize bytes into a RawInode.
func Unmarshal(data []byte) (RawInode, error) {
	var raw RawInode
	if len(data) < RecordSize {
		return raw, fserrors.CorruptImage.WithMessage("truncated inode record")
	}
	reader := bytes.NewReader(data[:RecordSize])
	if err := binary.Read(reader, binary.LittleEndian, &raw); err != nil {
		return raw, fserrors.CorruptImage.WrapError(err)
	}
	return raw, nil
}
