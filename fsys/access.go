package fsys

import (
	"github.com/mbarlow/monofs/fserrors"
	"github.com/mbarlow/monofs/inode"
)

// Permission bits, mirrored on the classic rwx=4/2/1 scale.
const (
	PermRead    = 4
	PermWrite   = 2
	PermExecute = 1
)

// Check reports whether identity may perform the required access on n:
// true iff identity is superuser (uid 0), or the three-bit mask selected
// by matching owner then group then other is a superset of required.
func Check(n *inode.Inode, identity Identity, required uint16) bool {
	if identity.Uid == 0 {
		return true
	}

	var shift uint16
	switch {
	case identity.Uid == n.Uid:
		shift = 6
	case identity.Gid == n.Gid:
		shift = 3
	default:
		shift = 0
	}

	mask := (n.Mode >> shift) & 0o7
	return mask&required == required
}

// checkAccess wraps Check, returning a PermissionDenied error on failure.
func (fs *FileSystem) checkAccess(n *inode.Inode, identity Identity, required uint16) error {
	if !Check(n, identity, required) {
		return fserrors.PermissionDenied.WithMessage("access denied")
	}
	return nil
}
