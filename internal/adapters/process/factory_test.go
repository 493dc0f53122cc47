package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	logAdapter "github.com/bft-labs/keel/internal/adapters/log"
	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

// currentSpec returns a spec for the calling user. Tests that launch real
// processes are skipped as root: the factory never runs services as root.
func currentSpec(t *testing.T, command ...string) ports.ServiceSpec {
	t.Helper()
	if os.Geteuid() == 0 || os.Getegid() == 0 {
		t.Skip("process launch tests require a non-root user")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return ports.ServiceSpec{
		Command:     command,
		Dir:         t.TempDir(),
		Addr:        "127.0.0.1:0",
		UID:         os.Geteuid(),
		GID:         os.Getegid(),
		StopTimeout: 2 * time.Second,
	}
}

func TestFactory_RefusesAdministrativePrincipal(t *testing.T) {
	f := NewFactory(logAdapter.NewNoopLogger())

	tests := []struct {
		name string
		uid  int
		gid  int
	}{
		{"root uid", 0, 1000},
		{"root gid", 1000, 0},
		{"both root", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Start(context.Background(), ports.ServiceSpec{
				Command: []string{"true"},
				UID:     tt.uid,
				GID:     tt.gid,
			})
			if !errors.Is(err, domain.ErrPrivilegedIdentity) {
				t.Errorf("Start() error = %v, want ErrPrivilegedIdentity", err)
			}
		})
	}
}

func TestFactory_EmptyCommand(t *testing.T) {
	f := NewFactory(logAdapter.NewNoopLogger())
	_, err := f.Start(context.Background(), ports.ServiceSpec{UID: 1000, GID: 1000})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("Start() error = %v, want ErrInvalidConfig", err)
	}
}

func TestProcess_GracefulStop(t *testing.T) {
	spec := currentSpec(t, "sh", "-c", "sleep 30")
	svc, err := NewFactory(logAdapter.NewNoopLogger()).Start(context.Background(), spec)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if svc.PID() <= 0 {
		t.Errorf("PID() = %d, want > 0", svc.PID())
	}

	if err := svc.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v, want nil", err)
	}
	select {
	case <-svc.Done():
	default:
		t.Error("Done not closed after Stop")
	}
}

func TestProcess_KilledAfterTimeout(t *testing.T) {
	spec := currentSpec(t, "sh", "-c", "trap '' TERM; sleep 30")
	spec.StopTimeout = 100 * time.Millisecond

	svc, err := NewFactory(logAdapter.NewNoopLogger()).Start(context.Background(), spec)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// Let the shell install its trap.
	time.Sleep(100 * time.Millisecond)

	err = svc.Stop(context.Background())
	if !errors.Is(err, domain.ErrShutdownTimeout) {
		t.Errorf("Stop() error = %v, want ErrShutdownTimeout", err)
	}
}

func TestProcess_ExitIsObserved(t *testing.T) {
	spec := currentSpec(t, "sh", "-c", "exit 3")
	svc, err := NewFactory(logAdapter.NewNoopLogger()).Start(context.Background(), spec)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-svc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	var exitErr *exec.ExitError
	if !errors.As(svc.Err(), &exitErr) || exitErr.ExitCode() != 3 {
		t.Errorf("Err() = %v, want exit status 3", svc.Err())
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Errorf("Stop() after exit = %v, want nil", err)
	}
}

func TestRunner_NonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := NewRunner(logAdapter.NewNoopLogger())

	if err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "exit 0"); err != nil {
		t.Errorf("Run(exit 0) error = %v", err)
	}
	if err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "exit 1"); err == nil {
		t.Error("Run(exit 1) error = nil, want error")
	}
}
