package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	fsAdapter "github.com/bft-labs/keel/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/keel/internal/adapters/http"
	"github.com/bft-labs/keel/internal/adapters/metrics"
	"github.com/bft-labs/keel/internal/adapters/process"
	"github.com/bft-labs/keel/internal/app"
	"github.com/bft-labs/keel/internal/cliconfig"
	"github.com/bft-labs/keel/internal/ports"
)

const metricsShutdownTimeout = 5 * time.Second

func newRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Provision, drop privileges, launch the service and monitor its health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, c, cmd)
		},
	}
}

func run(ctx context.Context, c *cli, cmd *cobra.Command) error {
	cfg, changed, err := c.resolve(cmd)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := newLogger(cfg).With("run_id", runID)
	logger.Info("configuration", ports.Any("config", cfg))

	privileged := c.privs.root()
	if privileged {
		logger.Info("started as root; privileges are dropped after provisioning", ports.String("user", cfg.User))
	}

	id, err := resolveIdentity(ctx, cfg, logger)
	if err != nil {
		return err
	}

	prov := newProvisioner(cfg, id, logger)
	provisioner := app.ProvisionerFunc(func(ctx context.Context) error {
		if _, err := prov.Provision(ctx); err != nil {
			return err
		}
		if !privileged {
			return nil
		}
		if err := c.privs.drop(id); err != nil {
			return fmt.Errorf("drop privileges to %s: %w", id, err)
		}
		logger.Info("privileges dropped", ports.String("identity", id.String()))
		return nil
	})

	policy, err := httpAdapter.PolicyByName(cfg.HealthPolicy)
	if err != nil {
		return err
	}
	// The monitor bounds each attempt, so the prober carries no timeout of its own.
	prober := httpAdapter.NewProber(&http.Client{}, httpAdapter.BaseURL(cfg.Host, cfg.Port), cfg.HealthPath, 0, policy)

	status := app.NewStatusRecorder(fsAdapter.NewStatusFileRepository(cfg.StateDir), runID, logger)
	opts := []app.SupervisorOption{
		app.WithProvisioner(provisioner),
		app.WithProbeObserver(status),
		app.WithServiceObserver(status),
	}

	launched := newLaunchSignal()
	opts = append(opts, app.WithServiceObserver(launched))

	var recorder *metrics.Recorder
	if cfg.MetricsAddr != "" {
		recorder = metrics.NewRecorder()
		opts = append(opts, app.WithProbeObserver(recorder))
	}

	sup := app.NewSupervisor(app.SupervisorConfig{
		Service: ports.ServiceSpec{
			Command:     cfg.Command(),
			Dir:         cfg.AppDir,
			Env:         cfg.ServiceEnv(),
			Addr:        cfg.Addr(),
			UID:         id.UID,
			GID:         id.GID,
			StopTimeout: cfg.ShutdownTimeout,
		},
		Health:          healthSettings(cfg),
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, process.NewFactory(logger), prober, logger, status, opts...)

	g, gctx := errgroup.WithContext(ctx)
	auxCtx, stopAux := context.WithCancel(gctx)
	defer stopAux()

	g.Go(func() error {
		defer stopAux()
		return sup.Run(gctx)
	})

	if recorder != nil {
		g.Go(func() error {
			if !launched.wait(auxCtx) {
				return nil
			}
			return serveMetrics(auxCtx, cfg.MetricsAddr, recorder.Handler(), logger)
		})
	}

	path := c.configPath()
	if cfg.WatchConfig && cliconfig.FileExists(path) {
		watcher := fsAdapter.NewConfigWatcher(path, fsAdapter.DefaultDebounceDelay, logger, func() {
			reloadHealth(c, path, changed, sup, logger)
		})
		g.Go(func() error {
			if !launched.wait(auxCtx) {
				return nil
			}
			if err := watcher.Run(auxCtx); err != nil {
				logger.Warn("config watcher disabled", ports.Err(err))
			}
			return nil
		})
	}

	return g.Wait()
}

// launchSignal is closed once the service has been launched. By then
// provisioning is done and privileges have been dropped, so helpers
// started after it never run as root.
type launchSignal struct {
	once sync.Once
	done chan struct{}
}

func newLaunchSignal() *launchSignal {
	return &launchSignal{done: make(chan struct{})}
}

func (l *launchSignal) ServiceStarted(ports.Service) {
	l.once.Do(func() { close(l.done) })
}

// wait reports whether the service was launched before ctx ended.
func (l *launchSignal) wait(ctx context.Context) bool {
	select {
	case <-l.done:
		return true
	case <-ctx.Done():
		return false
	}
}

// reloadHealth re-resolves the config and applies its health settings to
// the running supervisor. Other settings need a restart.
func reloadHealth(c *cli, path string, changed map[string]bool, sup *app.Supervisor, logger ports.Logger) {
	cfg, err := cliconfig.Resolve(c.cfg, path, changed)
	if err != nil {
		logger.Error("config reload rejected", ports.Err(err))
		return
	}
	if err := sup.UpdateHealthSettings(healthSettings(cfg)); err != nil {
		logger.Error("health settings rejected", ports.Err(err))
	}
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger ports.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", ports.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
