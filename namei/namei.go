// Package namei translates slash-separated paths into inode numbers by
// walking directory entries from the root. "." and ".." have no special
// meaning and there are no symbolic links.
package namei

import (
	"fmt"
	"strings"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/dir"
	"github.com/mit-pdos/go-nufs/inode"
)

// Split returns the non-empty components of path in order.
func Split(path string) []string {
	var names []string
	for _, n := range strings.Split(path, "/") {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// SplitParent separates path into the path of its parent directory and its
// last component. The root has no last component.
func SplitParent(path string) (string, string, error) {
	names := Split(path)
	if len(names) == 0 {
		return "", "", fmt.Errorf("path %q has no parent: %w", path, common.ErrInvalid)
	}
	parent := "/" + strings.Join(names[:len(names)-1], "/")
	return parent, names[len(names)-1], nil
}

// Resolve walks path from the root directory. Any component that does not
// resolve fails the whole walk with common.ErrNotFound.
func Resolve(t *inode.Table, path string) (common.Inum, error) {
	cur := common.ROOTINUM
	for _, name := range Split(path) {
		dp, err := t.Get(cur)
		if err != nil {
			return 0, fmt.Errorf("resolve %q: %w", path, common.ErrNotFound)
		}
		next, err := dir.Lookup(t, dp, name)
		if err != nil {
			return 0, fmt.Errorf("resolve %q at %q: %w", path, name, common.ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

// ResolveInode is Resolve followed by a table lookup.
func ResolveInode(t *inode.Table, path string) (*inode.Inode, error) {
	inum, err := Resolve(t, path)
	if err != nil {
		return nil, err
	}
	ip, err := t.Get(inum)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	return ip, nil
}
