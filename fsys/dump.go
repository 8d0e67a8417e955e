package fsys

import (
	"github.com/mbarlow/monofs/block"
	"github.com/mbarlow/monofs/inode"
)

// InodeDump is the structured report behind the `ls -i NAME` shell
// command (present in the original program's afficher_inode, dropped by
// the distilled spec): metadata plus every allocated block's raw bytes,
// direct first, then indirect slots. The CLI is responsible for
// formatting it as hex/ASCII text.
type InodeDump struct {
	ID      inode.ID
	Inode   inode.Inode
	Direct  [][]byte
	Indirect [][]byte
}

// DumpInode gathers an inode's metadata and the contents of every block
// it references.
func (fs *FileSystem) DumpInode(id inode.ID) (*InodeDump, error) {
	n, err := fs.Inode(id)
	if err != nil {
		return nil, err
	}

	dump := &InodeDump{ID: id, Inode: *n}
	for _, d := range n.Direct {
		if d == 0 {
			continue
		}
		data, err := fs.readBlock(block.ID(d))
		if err != nil {
			return nil, err
		}
		dump.Direct = append(dump.Direct, data)
	}

	if n.Indirect != 0 {
		raw, err := fs.readBlock(block.ID(n.Indirect))
		if err != nil {
			return nil, err
		}
		for _, slot := range decodeIndirect(raw) {
			if slot == 0 {
				continue
			}
			data, err := fs.readBlock(block.ID(slot))
			if err != nil {
				return nil, err
			}
			dump.Indirect = append(dump.Indirect, data)
		}
	}
	return dump, nil
}
