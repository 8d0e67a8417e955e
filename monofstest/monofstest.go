// Package monofstest builds in-memory filesystem fixtures for tests,
// grounded on dargueta-disko's LoadDiskImage helper (testing/images.go):
// a fixed-size byte slice wrapped by bytesextra.NewReadWriteSeeker
// instead of a real file, so tests never touch disk.
package monofstest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/mbarlow/monofs/fsys"
)

// New formats a brand-new in-memory image of exactly fsys.PartitionSize
// bytes and returns it mounted, the same shape Initialize hands back for
// a real file.
func New(t *testing.T) *fsys.FileSystem {
	t.Helper()
	stream := bytesextra.NewReadWriteSeeker(make([]byte, fsys.PartitionSize))
	fs, err := fsys.InitializeStream(stream)
	require.NoError(t, err)
	return fs
}

// Root is the identity used by tests that don't care about permission
// checks: uid/gid 0, which Check always allows.
func Root() fsys.Identity {
	return fsys.Identity{Uid: 0, Gid: 0}
}

// User returns a non-superuser identity for exercising the permission
// checks in fsys.Check / fsys.Chmod.
func User(uid, gid uint16) fsys.Identity {
	return fsys.Identity{Uid: uid, Gid: gid}
}
