//go:build linux

package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/keel/internal/domain"
)

// configureCredentials makes the child run as uid:gid in its own process
// group. When keel itself is root the credentials are switched for the
// child; otherwise the child inherits keel's identity, which must then
// already be uid:gid.
func configureCredentials(cmd *exec.Cmd, uid, gid int) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.SysProcAttr.Pdeathsig = syscall.SIGTERM

	euid := os.Geteuid()
	if euid == 0 {
		cmd.SysProcAttr.Credential = &syscall.Credential{
			Uid:    uint32(uid),
			Gid:    uint32(gid),
			Groups: []uint32{},
		}
		return nil
	}
	if euid != uid {
		return fmt.Errorf("%w: running as uid %d, service identity is uid %d",
			domain.ErrOwnership, euid, uid)
	}
	return nil
}

func terminate(cmd *exec.Cmd) error {
	return signalGroup(cmd, unix.SIGTERM)
}

func kill(cmd *exec.Cmd) error {
	return signalGroup(cmd, unix.SIGKILL)
}

// signalGroup signals the child's whole process group so workers spawned by
// the server are not orphaned.
func signalGroup(cmd *exec.Cmd, sig unix.Signal) error {
	pid := cmd.Process.Pid
	if err := unix.Kill(-pid, sig); err != nil {
		if err == unix.ESRCH {
			return os.ErrProcessDone
		}
		return cmd.Process.Signal(sig)
	}
	return nil
}
