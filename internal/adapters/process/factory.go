// Package process launches the supervised service and one-shot commands as
// child processes.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

// DefaultStopTimeout bounds graceful termination when the spec sets none.
const DefaultStopTimeout = 30 * time.Second

// Factory implements ports.ServiceFactory by exec'ing the service command.
type Factory struct {
	logger ports.Logger
}

// NewFactory creates a process factory.
func NewFactory(logger ports.Logger) *Factory {
	return &Factory{logger: logger}
}

// Start launches exactly one process for spec. It refuses any spec whose
// process would run as uid 0 or gid 0.
func (f *Factory) Start(ctx context.Context, spec ports.ServiceSpec) (ports.Service, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("%w: empty service command", domain.ErrInvalidConfig)
	}
	if spec.UID == 0 || spec.GID == 0 {
		return nil, fmt.Errorf("%w: refusing to launch service as uid=%d gid=%d",
			domain.ErrPrivilegedIdentity, spec.UID, spec.GID)
	}

	path, err := exec.LookPath(spec.Command[0])
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", spec.Command[0], err)
	}

	cmd := exec.Command(path, spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := configureCredentials(cmd, spec.UID, spec.GID); err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	stopTimeout := spec.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	p := &Process{
		cmd:         cmd,
		addr:        spec.Addr,
		stopTimeout: stopTimeout,
		done:        make(chan struct{}),
		logger:      f.logger,
	}
	go p.wait()

	f.logger.Info("service started",
		ports.String("command", path),
		ports.Int("pid", cmd.Process.Pid),
		ports.String("addr", spec.Addr),
		ports.Int("uid", spec.UID),
		ports.Int("gid", spec.GID),
	)

	return p, nil
}

// Process is a running service child process.
type Process struct {
	cmd         *exec.Cmd
	addr        string
	stopTimeout time.Duration
	logger      ports.Logger

	done chan struct{}
	mu   sync.Mutex
	err  error
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

// Addr returns the bind address.
func (p *Process) Addr() string { return p.addr }

// PID returns the child pid.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the exit error once Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop sends SIGTERM to the process group and waits. If the process is
// still alive when ctx expires or the stop timeout elapses, it is killed.
func (p *Process) Stop(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := terminate(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("terminate failed", ports.Err(err))
	}

	timer := time.NewTimer(p.stopTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
	case <-timer.C:
	}

	p.logger.Warn("service did not exit in time, killing",
		ports.Int("pid", p.PID()),
		ports.Duration("timeout", p.stopTimeout),
	)
	if err := kill(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill: %w", err)
	}
	<-p.done
	return domain.ErrShutdownTimeout
}

var (
	_ ports.ServiceFactory = (*Factory)(nil)
	_ ports.Service        = (*Process)(nil)
)
