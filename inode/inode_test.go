package inode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarlow/monofs/inode"
)

func TestInUseReflectsLinkCount(t *testing.T) {
	var n inode.Inode
	assert.False(t, n.InUse())
	n.Nlinks = 1
	assert.True(t, n.InUse())
}

func TestTypePredicates(t *testing.T) {
	dir := inode.Inode{Type: inode.Directory}
	assert.True(t, dir.IsDir())
	assert.False(t, dir.IsRegular())

	reg := inode.Inode{Type: inode.Regular}
	assert.True(t, reg.IsRegular())

	sym := inode.Inode{Type: inode.Symlink}
	assert.True(t, sym.IsSymlink())
}

func TestBlocksUsedCountsNonZeroDirect(t *testing.T) {
	n := inode.Inode{}
	n.Direct[0] = 7
	n.Direct[3] = 9
	assert.Equal(t, 2, n.BlocksUsed())
}

func TestModeStringRendersRWX(t *testing.T) {
	n := inode.Inode{Mode: 0754}
	assert.Equal(t, "rwxr-xr--", n.ModeString())
}

func TestTypeGlyph(t *testing.T) {
	assert.Equal(t, byte('d'), (&inode.Inode{Type: inode.Directory}).TypeGlyph())
	assert.Equal(t, byte('l'), (&inode.Inode{Type: inode.Symlink}).TypeGlyph())
	assert.Equal(t, byte('f'), (&inode.Inode{Type: inode.Regular}).TypeGlyph())
	assert.Equal(t, byte('?'), (&inode.Inode{Type: inode.Free}).TypeGlyph())
}

func TestParseModeRoundTripsModeString(t *testing.T) {
	mode, err := inode.ParseMode("rwxr-xr--")
	require.NoError(t, err)
	n := inode.Inode{Mode: mode}
	assert.Equal(t, "rwxr-xr--", n.ModeString())
}

func TestParseModeRejectsWrongLength(t *testing.T) {
	_, err := inode.ParseMode("rwx")
	assert.Error(t, err)
}

func TestRawRoundTrip(t *testing.T) {
	n := inode.Inode{
		Size:   4096,
		Type:   inode.Regular,
		Uid:    1,
		Gid:    2,
		Mode:   0644,
		Nlinks: 1,
	}
	n.Direct[0] = 9
	n.Name = "hello.txt"

	raw := n.ToRaw()
	bytesOut, err := raw.Marshal()
	require.NoError(t, err)
	assert.Len(t, bytesOut, inode.RecordSize)

	decoded, err := inode.Unmarshal(bytesOut)
	require.NoError(t, err)
	back := inode.FromRaw(decoded)

	assert.Equal(t, n.Size, back.Size)
	assert.Equal(t, n.Type, back.Type)
	assert.Equal(t, n.Uid, back.Uid)
	assert.Equal(t, n.Mode, back.Mode)
	assert.Equal(t, n.Direct, back.Direct)
	assert.Equal(t, n.Name, back.Name)
}

func TestUnmarshalRejectsTruncatedRecord(t *testing.T) {
	_, err := inode.Unmarshal(make([]byte, 3))
	assert.Error(t, err)
}
