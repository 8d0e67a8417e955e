package geometry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarlow/monofs/geometry"
)

func TestLookupKnownSlug(t *testing.T) {
	g, ok := geometry.Lookup("monofss")
	require.True(t, ok)
	assert.Equal(t, uint32(10485760), g.PartitionSize)
	assert.Equal(t, uint32(4096), g.BlockSize)
	assert.Equal(t, uint32(2560), g.BlockCount)
	assert.Equal(t, uint32(256), g.InodeCount)
}

func TestLookupUnknownSlug(t *testing.T) {
	_, ok := geometry.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestDefaultMatchesMonofss(t *testing.T) {
	def := geometry.Default()
	want, _ := geometry.Lookup("monofss")
	assert.Equal(t, want, def)
}
