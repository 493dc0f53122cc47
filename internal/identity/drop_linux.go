//go:build linux

package identity

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/keel/internal/domain"
)

// Drop permanently switches the calling process to id. Supplementary groups
// are cleared first, then the group and user ids are set (real, effective
// and saved), and finally no_new_privs is set so no later exec can regain
// privileges. The syscall package applies the id changes to every thread.
func Drop(id domain.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}

	if err := syscall.Setgroups(nil); err != nil {
		return fmt.Errorf("setgroups: %w", err)
	}
	if err := syscall.Setresgid(id.GID, id.GID, id.GID); err != nil {
		return fmt.Errorf("setresgid %d: %w", id.GID, err)
	}
	if err := syscall.Setresuid(id.UID, id.UID, id.UID); err != nil {
		return fmt.Errorf("setresuid %d: %w", id.UID, err)
	}
	if err := setNoNewPrivs(); err != nil {
		return fmt.Errorf("prctl no_new_privs: %w", err)
	}

	if os.Geteuid() == 0 || os.Getegid() == 0 {
		return fmt.Errorf("%w: still privileged after drop", domain.ErrPrivilegedIdentity)
	}
	return nil
}

// setNoNewPrivs sets no_new_privs on every thread. Binaries built with cgo
// cannot do that, so they fall back to the calling thread.
func setNoNewPrivs() error {
	_, _, errno := syscall.AllThreadsSyscall(syscall.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0)
	if errno == 0 {
		return nil
	}
	if !errors.Is(errno, syscall.ENOTSUP) {
		return errno
	}
	return unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
}
