package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/bft-labs/keel/internal/ports"
)

// Runner implements ports.CommandRunner with os/exec, streaming output to
// the caller's stdout/stderr.
type Runner struct {
	logger ports.Logger
}

// NewRunner creates a command runner.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes name with args in dir and waits for it.
func (r *Runner) Run(ctx context.Context, dir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	r.logger.Debug("running command", ports.String("name", name), ports.Any("args", args), ports.String("dir", dir))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

var _ ports.CommandRunner = (*Runner)(nil)
