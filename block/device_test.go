package block_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/mbarlow/monofs/block"
)

func newDevice(t *testing.T, blockCount uint32) block.Device {
	t.Helper()
	stream := bytesextra.NewReadWriteSeeker(make([]byte, blockCount*4096))
	return block.New(stream, blockCount, 4096, 0)
}

func TestOffsetRejectsOutOfRange(t *testing.T) {
	d := newDevice(t, 4)
	_, err := d.Offset(4)
	assert.Error(t, err)
}

func TestWriteThenReadBlockRoundTrips(t *testing.T) {
	d := newDevice(t, 4)
	data := bytes.Repeat([]byte{0xAB}, 4096)

	require.NoError(t, d.WriteBlock(2, data))
	got, err := d.ReadBlock(2)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteBlockRejectsWrongLength(t *testing.T) {
	d := newDevice(t, 4)
	err := d.WriteBlock(0, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestReadAtSpansMultipleBlocks(t *testing.T) {
	d := newDevice(t, 4)
	require.NoError(t, d.WriteBlock(0, bytes.Repeat([]byte{1}, 4096)))
	require.NoError(t, d.WriteBlock(1, bytes.Repeat([]byte{2}, 4096)))

	got, err := d.ReadAt(0, 2)
	require.NoError(t, err)
	assert.Equal(t, byte(1), got[0])
	assert.Equal(t, byte(2), got[4096])
}

func TestReadAtRejectsOverrun(t *testing.T) {
	d := newDevice(t, 4)
	_, err := d.ReadAt(3, 2)
	assert.Error(t, err)
}

func TestReadFullReturnsWholeImage(t *testing.T) {
	d := newDevice(t, 4)
	full, err := d.ReadFull()
	require.NoError(t, err)
	assert.Len(t, full, 4*4096)
}
