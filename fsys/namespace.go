package fsys

import (
	"strings"

	"github.com/mbarlow/monofs/block"
	"github.com/mbarlow/monofs/dirent"
	"github.com/mbarlow/monofs/fserrors"
	"github.com/mbarlow/monofs/inode"
)

const forbiddenNameChars = `/\:*?"<>|`

func validateName(name string) error {
	if len(name) == 0 {
		return fserrors.InvalidArgument.WithMessage("name is empty")
	}
	if len(name) > inode.MaxNameLength {
		return fserrors.InvalidArgument.WithMessage("name too long")
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return fserrors.InvalidArgument.WithMessage("name contains a forbidden character")
	}
	return nil
}

// Create makes a new directory or regular file named name in the current
// directory, owned by identity.
func (fs *FileSystem) Create(identity Identity, name string, dir bool) (inode.ID, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}

	dirBlock, err := fs.readDirBlock(fs.cwd)
	if err != nil {
		return 0, err
	}
	if _, found := dirBlock.Lookup(name); found {
		return 0, fserrors.Exists.WithMessage(name)
	}

	id, err := fs.allocateInode()
	if err != nil {
		return 0, err
	}
	n := fs.inodes.Get(id)
	ts := now()

	if dir {
		blockID, err := fs.allocateBlock()
		if err != nil {
			fs.releaseInode(id)
			return 0, err
		}
		*n = inode.Inode{
			Type:       inode.Directory,
			Mode:       0755,
			Nlinks:     1,
			Uid:        identity.Uid,
			Gid:        identity.Gid,
			CreatedAt:  ts,
			ModifiedAt: ts,
			AccessedAt: ts,
			Size:       BlockSize,
		}
		n.Direct[0] = uint32(blockID)

		newDirBlock := dirent.New(id, fs.cwd)
		if err := fs.writeBlock(block.ID(blockID), newDirBlock.Encode()); err != nil {
			fs.releaseBlock(blockID)
			fs.releaseInode(id)
			return 0, err
		}
	} else {
		*n = inode.Inode{
			Type:       inode.Regular,
			Mode:       0644,
			Nlinks:     1,
			Uid:        identity.Uid,
			Gid:        identity.Gid,
			CreatedAt:  ts,
			ModifiedAt: ts,
			AccessedAt: ts,
		}
	}

	if err := dirBlock.Insert(name, id); err != nil {
		if dir {
			fs.releaseBlock(block.ID(n.Direct[0]))
		}
		fs.releaseInode(id)
		return 0, err
	}
	if err := fs.writeDirBlock(fs.cwd, dirBlock); err != nil {
		return 0, err
	}
	return id, nil
}

// Unlink removes name from the current directory, freeing the inode (and
// its blocks) once its link count reaches zero.
func (fs *FileSystem) Unlink(identity Identity, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	dirBlock, err := fs.readDirBlock(fs.cwd)
	if err != nil {
		return err
	}
	id, found := dirBlock.Lookup(name)
	if !found {
		return fserrors.NotFound.WithMessage(name)
	}

	target, err := fs.Inode(id)
	if err != nil {
		return err
	}
	if err := fs.checkAccess(target, identity, PermWrite); err != nil {
		return err
	}

	if target.IsDir() {
		childBlock, err := fs.readDirBlock(id)
		if err != nil {
			return err
		}
		if childBlock.Count(true) != 0 {
			return fserrors.NotEmpty.WithMessage(name)
		}
	}

	target.Nlinks--
	if target.Nlinks == 0 {
		if err := fs.freeFileBlocks(target); err != nil {
			return err
		}
		if err := fs.releaseInode(id); err != nil {
			return err
		}
	}

	if err := dirBlock.Remove(name); err != nil {
		return err
	}
	return fs.writeDirBlock(fs.cwd, dirBlock)
}

// Chdir changes the current directory to name ("." and ".." handled
// specially, per spec).
func (fs *FileSystem) Chdir(identity Identity, name string) error {
	if name == "." {
		return nil
	}
	if name == ".." {
		dirBlock, err := fs.readDirBlock(fs.cwd)
		if err != nil {
			return err
		}
		parent, ok := dirBlock.Lookup("..")
		if !ok {
			return fserrors.CorruptImage.WithMessage("directory missing '..' entry")
		}
		fs.cwd = parent
		return nil
	}

	if err := validateName(name); err != nil {
		return err
	}
	dirBlock, err := fs.readDirBlock(fs.cwd)
	if err != nil {
		return err
	}
	id, found := dirBlock.Lookup(name)
	if !found {
		return fserrors.NotFound.WithMessage(name)
	}
	target, err := fs.Inode(id)
	if err != nil {
		return err
	}
	if !target.IsDir() {
		return fserrors.WrongType.WithMessage(name)
	}
	if err := fs.checkAccess(target, identity, PermExecute); err != nil {
		return err
	}

	fs.cwd = id
	target.AccessedAt = now()
	return nil
}

// Copy reads the entirety of src into a newly created regular file dst.
func (fs *FileSystem) Copy(identity Identity, src, dst string) error {
	if err := validateName(src); err != nil {
		return err
	}
	dirBlock, err := fs.readDirBlock(fs.cwd)
	if err != nil {
		return err
	}
	srcID, found := dirBlock.Lookup(src)
	if !found {
		return fserrors.NotFound.WithMessage(src)
	}
	srcInode, err := fs.Inode(srcID)
	if err != nil {
		return err
	}
	if err := fs.checkAccess(srcInode, identity, PermRead); err != nil {
		return err
	}
	if _, found := dirBlock.Lookup(dst); found {
		return fserrors.Exists.WithMessage(dst)
	}

	dstID, err := fs.Create(identity, dst, false)
	if err != nil {
		return err
	}

	offset := uint32(0)
	for offset < srcInode.Size {
		chunkLen := BlockSize
		if remaining := srcInode.Size - offset; uint32(chunkLen) > remaining {
			chunkLen = int(remaining)
		}
		data, err := fs.ReadFile(identity, srcID, offset, uint32(chunkLen))
		if err != nil {
			fs.Unlink(identity, dst)
			return err
		}
		if _, err := fs.WriteFile(identity, dstID, offset, data); err != nil {
			fs.Unlink(identity, dst)
			return err
		}
		offset += uint32(len(data))
	}
	return nil
}

// Rename moves src to dst within the current directory, preserving the
// inode id and its link count.
func (fs *FileSystem) Rename(identity Identity, src, dst string) error {
	if err := validateName(src); err != nil {
		return err
	}
	if err := validateName(dst); err != nil {
		return err
	}

	dirBlock, err := fs.readDirBlock(fs.cwd)
	if err != nil {
		return err
	}
	srcID, found := dirBlock.Lookup(src)
	if !found {
		return fserrors.NotFound.WithMessage(src)
	}
	if _, found := dirBlock.Lookup(dst); found {
		return fserrors.Exists.WithMessage(dst)
	}
	srcInode, err := fs.Inode(srcID)
	if err != nil {
		return err
	}
	if err := fs.checkAccess(srcInode, identity, PermWrite); err != nil {
		return err
	}

	if err := dirBlock.Insert(dst, srcID); err != nil {
		return err
	}
	if err := dirBlock.Remove(src); err != nil {
		return err
	}
	return fs.writeDirBlock(fs.cwd, dirBlock)
}

// Chmod overwrites the low nine permission bits of id. Only the owner or
// the superuser may do this — the redesigned behavior per the design
// note on the original's missing ownership check.
func (fs *FileSystem) Chmod(identity Identity, id inode.ID, mode uint16) error {
	n, err := fs.Inode(id)
	if err != nil {
		return err
	}
	if identity.Uid != 0 && identity.Uid != n.Uid {
		return fserrors.PermissionDenied.WithMessage("only the owner or root may chmod")
	}
	n.Mode = mode & 0o777
	n.ModifiedAt = now()
	return nil
}

// Link creates newname in the current directory as an additional
// directory entry referencing src's existing inode, bumping its link
// count. This is the redesigned hard-link semantics: no inode is
// duplicated, so unlinking one name never leaks the other's blocks.
func (fs *FileSystem) Link(identity Identity, src, newname string) error {
	if err := validateName(src); err != nil {
		return err
	}
	if err := validateName(newname); err != nil {
		return err
	}

	dirBlock, err := fs.readDirBlock(fs.cwd)
	if err != nil {
		return err
	}
	srcID, found := dirBlock.Lookup(src)
	if !found {
		return fserrors.NotFound.WithMessage(src)
	}
	if _, found := dirBlock.Lookup(newname); found {
		return fserrors.Exists.WithMessage(newname)
	}

	srcInode, err := fs.Inode(srcID)
	if err != nil {
		return err
	}
	if srcInode.IsDir() {
		return fserrors.WrongType.WithMessage("cannot hard-link a directory")
	}

	if err := dirBlock.Insert(newname, srcID); err != nil {
		return err
	}
	if err := fs.writeDirBlock(fs.cwd, dirBlock); err != nil {
		return err
	}
	srcInode.Nlinks++
	return nil
}

// Symlink creates a symlink inode named newname whose data block holds
// target.
func (fs *FileSystem) Symlink(identity Identity, target, newname string) error {
	if err := validateName(newname); err != nil {
		return err
	}
	if len(target)+1 > BlockSize {
		return fserrors.InvalidArgument.WithMessage("symlink target too long")
	}

	dirBlock, err := fs.readDirBlock(fs.cwd)
	if err != nil {
		return err
	}
	if _, found := dirBlock.Lookup(newname); found {
		return fserrors.Exists.WithMessage(newname)
	}

	id, err := fs.allocateInode()
	if err != nil {
		return err
	}
	blockID, err := fs.allocateBlock()
	if err != nil {
		fs.releaseInode(id)
		return err
	}

	buf := make([]byte, BlockSize)
	copy(buf, target)
	if err := fs.writeBlock(blockID, buf); err != nil {
		fs.releaseBlock(blockID)
		fs.releaseInode(id)
		return err
	}

	ts := now()
	n := fs.inodes.Get(id)
	*n = inode.Inode{
		Type:       inode.Symlink,
		Mode:       0777,
		Nlinks:     1,
		Uid:        identity.Uid,
		Gid:        identity.Gid,
		Size:       uint32(len(target) + 1),
		CreatedAt:  ts,
		ModifiedAt: ts,
		AccessedAt: ts,
	}
	n.Direct[0] = uint32(blockID)

	if err := dirBlock.Insert(newname, id); err != nil {
		fs.releaseBlock(blockID)
		fs.releaseInode(id)
		return err
	}
	return fs.writeDirBlock(fs.cwd, dirBlock)
}

// Listing is one entry returned by List: the directory entry plus a
// snapshot of its inode's display fields.
type Listing struct {
	Name       string
	ID         inode.ID
	Type       inode.Type
	Size       uint32
	ModeString string
	ModifiedAt string
}

// List scans the current directory and returns every non-empty entry.
func (fs *FileSystem) List() ([]Listing, error) {
	dirBlock, err := fs.readDirBlock(fs.cwd)
	if err != nil {
		return nil, err
	}

	out := make([]Listing, 0, dirent.Capacity)
	for _, e := range dirBlock.List() {
		n, err := fs.Inode(e.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Listing{
			Name:       e.Name,
			ID:         e.ID,
			Type:       n.Type,
			Size:       n.Size,
			ModeString: n.ModeString(),
			ModifiedAt: n.ModifiedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return out, nil
}
