//go:build unix

package identity

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/keel/internal/domain"
)

// ChownTree re-owns root and everything below it to id. Symlinks are
// re-owned themselves and never followed. Entries already owned by id are
// left alone; the number of changed entries is returned.
func ChownTree(root string, id domain.Identity) (int, error) {
	if err := id.Validate(); err != nil {
		return 0, err
	}

	changed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		var st unix.Stat_t
		if err := unix.Lstat(path, &st); err != nil {
			return &os.PathError{Op: "lstat", Path: path, Err: err}
		}
		if id.Owns(int(st.Uid), int(st.Gid)) {
			return nil
		}
		if err := unix.Lchown(path, id.UID, id.GID); err != nil {
			return &os.PathError{Op: "lchown", Path: path, Err: err}
		}
		changed++
		return nil
	})
	if err != nil {
		return changed, fmt.Errorf("%w: %v", domain.ErrOwnership, err)
	}
	return changed, nil
}

// VerifyTree returns ErrOwnership naming the first entry under root that is
// not owned by id.
func VerifyTree(root string, id domain.Identity) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		var st unix.Stat_t
		if err := unix.Lstat(path, &st); err != nil {
			return &os.PathError{Op: "lstat", Path: path, Err: err}
		}
		if !id.Owns(int(st.Uid), int(st.Gid)) {
			return fmt.Errorf("%w: %s is owned by %d:%d, want %s",
				domain.ErrOwnership, path, st.Uid, st.Gid, id)
		}
		return nil
	})
}
