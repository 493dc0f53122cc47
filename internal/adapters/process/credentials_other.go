//go:build !linux

package process

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/bft-labs/keel/internal/domain"
)

func configureCredentials(cmd *exec.Cmd, uid, gid int) error {
	if euid := os.Geteuid(); euid != uid {
		return fmt.Errorf("%w: running as uid %d, service identity is uid %d",
			domain.ErrOwnership, euid, uid)
	}
	return nil
}

func terminate(cmd *exec.Cmd) error { return cmd.Process.Signal(os.Interrupt) }

func kill(cmd *exec.Cmd) error { return cmd.Process.Kill() }
