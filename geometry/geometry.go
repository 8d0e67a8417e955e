// Package geometry documents the disk geometries monofs images can use.
// Today there's exactly one: the fixed MONFSS layout (see package fsys).
// The table gives a future second geometry somewhere to go (the CLI does
// not read it; it has no geometry subcommand or flag), the way
// dargueta-disko's disks package (disks/disks.go) catalogs classic floppy
// geometries via the same CSV-driven pattern.
package geometry

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Geometry describes one named disk layout.
type Geometry struct {
	Name          string `csv:"name"`
	Slug          string `csv:"slug"`
	PartitionSize uint32 `csv:"partition_size"`
	BlockSize     uint32 `csv:"block_size"`
	BlockCount    uint32 `csv:"block_count"`
	InodeCount    uint32 `csv:"inode_count"`
}

const tableCSV = `name,slug,partition_size,block_size,block_count,inode_count
MONFSS default,monofss,10485760,4096,2560,256
`

var table map[string]Geometry

func init() {
	table = make(map[string]Geometry)
	err := gocsv.UnmarshalToCallback(
		strings.NewReader(tableCSV),
		func(row Geometry) error {
			if _, exists := table[row.Slug]; exists {
				return fmt.Errorf("duplicate geometry slug %q", row.Slug)
			}
			table[row.Slug] = row
			return nil
		},
	)
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// Lookup returns the named geometry, or false if no such slug is known.
func Lookup(slug string) (Geometry, bool) {
	g, ok := table[slug]
	return g, ok
}

// Default returns the one geometry monofs currently mounts.
func Default() Geometry {
	g, _ := Lookup("monofss")
	return g
}
