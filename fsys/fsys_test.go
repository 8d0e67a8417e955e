package fsys_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarlow/monofs/fsys"
	"github.com/mbarlow/monofs/inode"
	"github.com/mbarlow/monofs/monofstest"
)

func TestCreateFileThenListShowsIt(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	_, err := fs.Create(root, "hello.txt", false)
	require.NoError(t, err)

	listing, err := fs.List()
	require.NoError(t, err)

	var names []string
	for _, e := range listing {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "hello.txt")
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	_, err := fs.Create(root, "a", false)
	require.NoError(t, err)
	_, err = fs.Create(root, "a", false)
	assert.Error(t, err)
}

func TestWriteThenReadFileRoundTrips(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	id, err := fs.Create(root, "data.bin", false)
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog")
	n, err := fs.WriteFile(root, id, 0, payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(payload)), n)

	got, err := fs.ReadFile(root, id, 0, uint32(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteSpanningIndirectBlocks(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	id, err := fs.Create(root, "big.bin", false)
	require.NoError(t, err)

	// 10 direct blocks at 4096 bytes each = 40960; push past that into the
	// indirect range.
	payload := make([]byte, fsys.BlockSize*12)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	n, err := fs.WriteFile(root, id, 0, payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(payload)), n)

	got, err := fs.ReadFile(root, id, 0, uint32(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRewriteFromOffsetZeroFreesOldBlocks(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	id, err := fs.Create(root, "f", false)
	require.NoError(t, err)

	_, err = fs.WriteFile(root, id, 0, make([]byte, fsys.BlockSize*3))
	require.NoError(t, err)

	freeBefore := fs.Bitmap().CountFree()

	_, err = fs.WriteFile(root, id, 0, []byte("short"))
	require.NoError(t, err)

	freeAfter := fs.Bitmap().CountFree()
	assert.Greater(t, freeAfter, freeBefore)
}

func TestUnlinkRemovesEntryAndFreesInodeAtZeroLinks(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	id, err := fs.Create(root, "gone.txt", false)
	require.NoError(t, err)

	require.NoError(t, fs.Unlink(root, "gone.txt"))

	_, found := func() (inode.ID, bool) {
		listing, _ := fs.List()
		for _, e := range listing {
			if e.Name == "gone.txt" {
				return e.ID, true
			}
		}
		return 0, false
	}()
	assert.False(t, found)
	n, err := fs.Inode(id)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), n.Nlinks)
}

func TestUnlinkNonemptyDirectoryFails(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	_, err := fs.Create(root, "d", true)
	require.NoError(t, err)
	require.NoError(t, fs.Chdir(root, "d"))
	_, err = fs.Create(root, "child", false)
	require.NoError(t, err)
	require.NoError(t, fs.Chdir(root, ".."))

	err = fs.Unlink(root, "d")
	assert.Error(t, err)
}

func TestLinkSharesInodeAndBumpsNlinks(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	id, err := fs.Create(root, "orig", false)
	require.NoError(t, err)
	_, err = fs.WriteFile(root, id, 0, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, fs.Link(root, "orig", "alias"))
	afterLink, err := fs.Inode(id)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), afterLink.Nlinks)

	// Unlinking one name must not free the inode while the other survives.
	require.NoError(t, fs.Unlink(root, "orig"))
	data, err := fs.ReadFile(root, id, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestLinkRejectsDirectories(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	_, err := fs.Create(root, "d", true)
	require.NoError(t, err)
	err = fs.Link(root, "d", "alias")
	assert.Error(t, err)
}

func TestChmodRequiresOwnerOrRoot(t *testing.T) {
	fs := monofstest.New(t)
	owner := monofstest.User(10, 10)
	other := monofstest.User(20, 20)

	id, err := fs.Create(owner, "f", false)
	require.NoError(t, err)

	err = fs.Chmod(other, id, 0o600)
	assert.Error(t, err)

	require.NoError(t, fs.Chmod(owner, id, 0o600))
	n, err := fs.Inode(id)
	require.NoError(t, err)
	assert.Equal(t, "rw-------", n.ModeString())
}

func TestChmodAllowsRoot(t *testing.T) {
	fs := monofstest.New(t)
	owner := monofstest.User(10, 10)
	root := monofstest.Root()

	id, err := fs.Create(owner, "f", false)
	require.NoError(t, err)
	require.NoError(t, fs.Chmod(root, id, 0o400))
}

func TestAccessDeniedToOthersWithoutPermission(t *testing.T) {
	fs := monofstest.New(t)
	owner := monofstest.User(10, 10)
	other := monofstest.User(20, 20)

	id, err := fs.Create(owner, "private", false)
	require.NoError(t, err)
	require.NoError(t, fs.Chmod(owner, id, 0o600))

	_, err = fs.WriteFile(other, id, 0, []byte("nope"))
	assert.Error(t, err)
}

func TestSymlinkResolvesThroughReadFile(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	targetID, err := fs.Create(root, "target.txt", false)
	require.NoError(t, err)
	_, err = fs.WriteFile(root, targetID, 0, []byte("resolved"))
	require.NoError(t, err)

	require.NoError(t, fs.Symlink(root, "target.txt", "link.txt"))

	listing, err := fs.List()
	require.NoError(t, err)
	var linkID inode.ID
	for _, e := range listing {
		if e.Name == "link.txt" {
			linkID = e.ID
		}
	}

	data, err := fs.ReadFile(root, linkID, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("resolved"), data)
}

func TestRenamePreservesInodeID(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	id, err := fs.Create(root, "old", false)
	require.NoError(t, err)
	require.NoError(t, fs.Rename(root, "old", "new"))

	listing, err := fs.List()
	require.NoError(t, err)
	found := false
	for _, e := range listing {
		if e.Name == "new" {
			found = true
			assert.Equal(t, id, e.ID)
		}
		assert.NotEqual(t, "old", e.Name)
	}
	assert.True(t, found)
}

func TestCopyDuplicatesContentsUnderNewInode(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	srcID, err := fs.Create(root, "src", false)
	require.NoError(t, err)
	_, err = fs.WriteFile(root, srcID, 0, []byte("copy me"))
	require.NoError(t, err)

	require.NoError(t, fs.Copy(root, "src", "dst"))

	listing, err := fs.List()
	require.NoError(t, err)
	var dstID inode.ID
	for _, e := range listing {
		if e.Name == "dst" {
			dstID = e.ID
		}
	}
	assert.NotEqual(t, srcID, dstID)

	data, err := fs.ReadFile(root, dstID, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("copy me"), data)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	id, err := fs.Create(root, "keep.txt", false)
	require.NoError(t, err)
	_, err = fs.WriteFile(root, id, 0, []byte("durable"))
	require.NoError(t, err)

	side, err := os.CreateTemp(t.TempDir(), "monofs-backup-*.img")
	require.NoError(t, err)
	side.Close()

	require.NoError(t, fs.Backup(side.Name()))

	// Mutate the live image, then restore and confirm the mutation is gone.
	require.NoError(t, fs.Unlink(root, "keep.txt"))
	require.NoError(t, fs.Restore(side.Name()))

	listing, err := fs.List()
	require.NoError(t, err)
	found := false
	for _, e := range listing {
		if e.Name == "keep.txt" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDefragmentPreservesFileContents(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	id, err := fs.Create(root, "frag.bin", false)
	require.NoError(t, err)
	payload := make([]byte, fsys.BlockSize*5)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, err = fs.WriteFile(root, id, 0, payload)
	require.NoError(t, err)

	// Create and remove a file in between to fragment the bitmap.
	junkID, err := fs.Create(root, "junk.bin", false)
	require.NoError(t, err)
	_, err = fs.WriteFile(root, junkID, 0, make([]byte, fsys.BlockSize*2))
	require.NoError(t, err)
	require.NoError(t, fs.Unlink(root, "junk.bin"))

	require.NoError(t, fs.Defragment())

	got, err := fs.ReadFile(root, id, 0, uint32(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestChdirDotDotFromSubdirectoryReturnsToRoot(t *testing.T) {
	fs := monofstest.New(t)
	root := monofstest.Root()

	_, err := fs.Create(root, "sub", true)
	require.NoError(t, err)
	require.NoError(t, fs.Chdir(root, "sub"))
	assert.NotEqual(t, inode.RootID, fs.Cwd())

	require.NoError(t, fs.Chdir(root, ".."))
	assert.Equal(t, inode.RootID, fs.Cwd())
}
