package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	fsAdapter "github.com/bft-labs/keel/internal/adapters/fs"
	"github.com/bft-labs/keel/internal/cliconfig"
	"github.com/bft-labs/keel/internal/domain"
)

// fakePrivileges records drops instead of changing the test process.
type fakePrivileges struct {
	euid    int
	lookErr error
	dropErr error

	mu      sync.Mutex
	dropped []domain.Identity
}

func (f *fakePrivileges) drops() []domain.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Identity(nil), f.dropped...)
}

func (f *fakePrivileges) privileges() privileges {
	return privileges{
		geteuid: func() int { return f.euid },
		lookup: func(name string) (domain.Identity, error) {
			if f.lookErr != nil {
				return domain.Identity{}, f.lookErr
			}
			return domain.Identity{Name: name, UID: 1000, GID: 1000}, nil
		},
		drop: func(id domain.Identity) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.dropped = append(f.dropped, id)
			return f.dropErr
		},
	}
}

// execute runs the root command as a non-root process.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeAs(t, &fakePrivileges{euid: 1000}, args...)
}

// executeAs runs the root command with an empty config file so that no
// host config leaks into the test.
func executeAs(t *testing.T, privs *fakePrivileges, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "keel.toml")
	if err := os.WriteFile(cfgPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd(&cli{cfg: cliconfig.DefaultConfig(), privs: privs.privileges()})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--config", cfgPath))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func hostPort(t *testing.T, srv *httptest.Server) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return host, port
}

func TestProbeCommand(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		policy  string
		wantErr bool
	}{
		{"healthy", http.StatusOK, `{"status":"healthy"}`, "status", false},
		{"server error", http.StatusInternalServerError, "", "status", true},
		{"body policy accepts", http.StatusOK, `{"status":"healthy","uptime":3}`, "body", false},
		{"body policy rejects", http.StatusOK, `{"status":"degraded"}`, "body", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					http.NotFound(w, r)
					return
				}
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			host, port := hostPort(t, srv)

			_, err := execute(t, "probe", "--app-dir", t.TempDir(), "--host", host, "--port", port, "--health-policy", tt.policy)
			if tt.wantErr {
				if !errors.Is(err, errUnhealthy) {
					t.Errorf("probe error = %v, want errUnhealthy", err)
				}
				return
			}
			if err != nil {
				t.Errorf("probe error = %v, want nil", err)
			}
		})
	}
}

func TestProbeCommandNothingListening(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host, port := hostPort(t, srv)
	srv.Close()

	_, err := execute(t, "probe", "--app-dir", t.TempDir(), "--host", host, "--port", port, "--health-timeout", "1s")
	if !errors.Is(err, errUnhealthy) {
		t.Errorf("probe error = %v, want errUnhealthy", err)
	}
}

func TestProbeFromStatus(t *testing.T) {
	tests := []struct {
		name    string
		health  domain.HealthState
		wantErr bool
	}{
		{"healthy", domain.HealthHealthy, false},
		{"starting", domain.HealthStarting, true},
		{"unhealthy", domain.HealthUnhealthy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stateDir := t.TempDir()
			repo := fsAdapter.NewStatusFileRepository(stateDir)
			if err := repo.Save(context.Background(), domain.Status{RunID: "r1", Health: tt.health}); err != nil {
				t.Fatal(err)
			}

			_, err := execute(t, "probe", "--from-status", "--app-dir", t.TempDir(), "--state-dir", stateDir)
			if tt.wantErr != (err != nil) {
				t.Errorf("probe --from-status error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusCommand(t *testing.T) {
	stateDir := t.TempDir()
	repo := fsAdapter.NewStatusFileRepository(stateDir)
	st := domain.Status{RunID: "run-42", Lifecycle: "running", Health: domain.HealthHealthy}
	if err := repo.Save(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "status", "--app-dir", t.TempDir(), "--state-dir", stateDir)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, `"run_id": "run-42"`) {
		t.Errorf("json output missing run id:\n%s", out)
	}

	out, err = execute(t, "status", "-o", "yaml", "--app-dir", t.TempDir(), "--state-dir", stateDir)
	if err != nil {
		t.Fatalf("status -o yaml: %v", err)
	}
	if !strings.Contains(out, "health: healthy") {
		t.Errorf("yaml output missing health:\n%s", out)
	}

	if _, err := execute(t, "status", "-o", "xml", "--app-dir", t.TempDir(), "--state-dir", stateDir); err == nil {
		t.Error("status -o xml succeeded, want error")
	}
}

func TestHealthCheckDropsRootBeforeRequest(t *testing.T) {
	privs := &fakePrivileges{euid: 0}
	var droppedFirst atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		droppedFirst.Store(len(privs.drops()) == 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	host, port := hostPort(t, srv)

	_, err := executeAs(t, privs, "probe", "--app-dir", t.TempDir(), "--host", host, "--port", port, "--user", "svc")
	if err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if got := privs.drops(); len(got) != 1 || got[0].Name != "svc" {
		t.Fatalf("dropped = %+v, want one drop to svc", got)
	}
	if !droppedFirst.Load() {
		t.Error("request reached the service before privileges were dropped")
	}
}

func TestHealthCheckFromStatusDropsRoot(t *testing.T) {
	stateDir := t.TempDir()
	repo := fsAdapter.NewStatusFileRepository(stateDir)
	if err := repo.Save(context.Background(), domain.Status{Health: domain.HealthHealthy}); err != nil {
		t.Fatal(err)
	}

	privs := &fakePrivileges{euid: 0}
	if _, err := executeAs(t, privs, "probe", "--from-status", "--app-dir", t.TempDir(), "--state-dir", stateDir); err != nil {
		t.Fatalf("probe --from-status error = %v", err)
	}
	if got := privs.drops(); len(got) != 1 {
		t.Errorf("dropped = %+v, want one drop", got)
	}
}

func TestHealthCheckFailsWhenRootCannotDrop(t *testing.T) {
	tests := []struct {
		name  string
		privs *fakePrivileges
		want  error
	}{
		{"unknown account", &fakePrivileges{euid: 0, lookErr: domain.ErrIdentityMissing}, domain.ErrIdentityMissing},
		{"drop rejected", &fakePrivileges{euid: 0, dropErr: syscall.EPERM}, syscall.EPERM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
			}))
			defer srv.Close()
			host, port := hostPort(t, srv)

			_, err := executeAs(t, tt.privs, "probe", "--app-dir", t.TempDir(), "--host", host, "--port", port)
			if !errors.Is(err, tt.want) {
				t.Errorf("probe error = %v, want %v", err, tt.want)
			}
			if hits.Load() != 0 {
				t.Errorf("service received %d requests, want 0", hits.Load())
			}
		})
	}
}

func TestHealthCheckAsNonRootKeepsIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	host, port := hostPort(t, srv)

	privs := &fakePrivileges{euid: 1000}
	if _, err := executeAs(t, privs, "probe", "--app-dir", t.TempDir(), "--host", host, "--port", port); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if got := privs.drops(); len(got) != 0 {
		t.Errorf("dropped = %+v, want none", got)
	}
}

func TestLaunchSignal(t *testing.T) {
	l := newLaunchSignal()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if l.wait(ctx) {
		t.Error("wait() = true before launch")
	}

	l.ServiceStarted(nil)
	l.ServiceStarted(nil)
	if !l.wait(context.Background()) {
		t.Error("wait() = false after launch")
	}
}
