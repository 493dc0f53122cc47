package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

// Provisioner prepares the data area before the service is launched.
type Provisioner interface {
	Provision(ctx context.Context) error
}

// ProvisionerFunc adapts a function to the Provisioner interface.
type ProvisionerFunc func(ctx context.Context) error

// Provision calls f(ctx).
func (f ProvisionerFunc) Provision(ctx context.Context) error { return f(ctx) }

// SupervisorConfig contains configuration for a supervised run.
type SupervisorConfig struct {
	Service         ports.ServiceSpec
	Health          HealthSettings
	ShutdownTimeout time.Duration
}

// Supervisor is the container's foreground task. It provisions the data
// area, launches exactly one service process, runs the health monitor next
// to it and owns shutdown. It never restarts the service: an unexpected
// exit ends the run with ErrServiceExited.
type Supervisor struct {
	config      SupervisorConfig
	provisioner Provisioner
	factory     ports.ServiceFactory
	prober      ports.Prober
	logger      ports.Logger
	lifecycle   *Lifecycle
	observers   []ProbeObserver
	launched    []ServiceObserver

	mu      sync.Mutex
	monitor *Monitor
	health  HealthSettings
}

// ServiceObserver is told about the service once it has been launched,
// which is after provisioning has finished.
type ServiceObserver interface {
	ServiceStarted(svc ports.Service)
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithProvisioner runs p before the service is launched.
func WithProvisioner(p Provisioner) SupervisorOption {
	return func(s *Supervisor) { s.provisioner = p }
}

// WithProbeObserver adds an observer to the health monitor.
func WithProbeObserver(o ProbeObserver) SupervisorOption {
	return func(s *Supervisor) { s.observers = append(s.observers, o) }
}

// WithServiceObserver adds an observer notified after each launch.
func WithServiceObserver(o ServiceObserver) SupervisorOption {
	return func(s *Supervisor) { s.launched = append(s.launched, o) }
}

// NewSupervisor creates a supervisor. emitter may be nil.
func NewSupervisor(
	config SupervisorConfig,
	factory ports.ServiceFactory,
	prober ports.Prober,
	logger ports.Logger,
	emitter EventEmitter,
	opts ...SupervisorOption,
) *Supervisor {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = ShutdownTimeout
	}
	s := &Supervisor{
		config:    config,
		factory:   factory,
		prober:    prober,
		logger:    logger,
		lifecycle: NewLifecycle(logger, emitter),
		health:    config.Health,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return s.lifecycle.State()
}

// Health returns the current health state, or starting before launch.
func (s *Supervisor) Health() domain.HealthState {
	s.mu.Lock()
	m := s.monitor
	s.mu.Unlock()
	if m == nil {
		return domain.HealthStarting
	}
	return m.State()
}

// UpdateHealthSettings swaps the probe settings of the current and future runs.
func (s *Supervisor) UpdateHealthSettings(settings HealthSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.health = settings
	m := s.monitor
	s.mu.Unlock()

	if m != nil {
		return m.UpdateSettings(settings)
	}
	return nil
}

// Stop requests a graceful shutdown of a running supervisor.
func (s *Supervisor) Stop() error {
	return s.lifecycle.RequestStop()
}

// Run provisions, launches the service and blocks until ctx is cancelled
// (graceful stop, returns nil) or the service exits on its own (returns
// ErrServiceExited).
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel, err := s.lifecycle.Begin(ctx, "run requested")
	if err != nil {
		return err
	}
	defer cancel()

	if s.provisioner != nil {
		if err := s.provisioner.Provision(runCtx); err != nil {
			s.crash("provisioning failed")
			return fmt.Errorf("provision data area: %w", err)
		}
	}

	if runCtx.Err() != nil {
		s.stopped("shutdown before launch")
		return nil
	}

	svc, err := s.factory.Start(runCtx, s.config.Service)
	if err != nil {
		s.crash("launch failed")
		return fmt.Errorf("start service: %w", err)
	}

	for _, o := range s.launched {
		o.ServiceStarted(svc)
	}

	s.mu.Lock()
	opts := make([]MonitorOption, 0, len(s.observers))
	for _, o := range s.observers {
		opts = append(opts, WithObserver(o))
	}
	monitor := NewMonitor(s.prober, s.health, s.logger, opts...)
	s.monitor = monitor
	s.mu.Unlock()

	monitorCtx, stopMonitor := context.WithCancel(runCtx)
	defer stopMonitor()
	s.lifecycle.Go(func() { monitor.Run(monitorCtx) })

	if err := s.lifecycle.TransitionTo(StateRunning, "service launched"); err != nil {
		return err
	}

	s.logger.Info("service running",
		ports.Int("pid", svc.PID()),
		ports.String("addr", svc.Addr()),
	)

	select {
	case <-svc.Done():
		stopMonitor()
		_ = s.lifecycle.Drain(s.config.ShutdownTimeout)

		exitErr := svc.Err()
		s.logger.Error("service exited", ports.Err(exitErr))
		s.crash("service exited")
		if exitErr == nil {
			return domain.ErrServiceExited
		}
		return fmt.Errorf("%w: %v", domain.ErrServiceExited, exitErr)

	case <-runCtx.Done():
		return s.shutdown(svc, stopMonitor)
	}
}

func (s *Supervisor) shutdown(svc ports.Service, stopMonitor context.CancelFunc) error {
	if err := s.lifecycle.TransitionTo(StateStopping, "shutdown requested"); err != nil {
		return err
	}
	stopMonitor()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	stopErr := svc.Stop(stopCtx)
	waitErr := s.lifecycle.Drain(s.config.ShutdownTimeout)

	if stopErr != nil && !errors.Is(stopErr, domain.ErrShutdownTimeout) {
		s.crash("stop failed")
		return fmt.Errorf("stop service: %w", stopErr)
	}
	if stopErr != nil {
		s.logger.Warn("service killed after shutdown timeout",
			ports.Duration("timeout", s.config.ShutdownTimeout),
		)
	}
	if waitErr != nil {
		s.logger.Warn("goroutines still running after shutdown", ports.Err(waitErr))
	}

	s.stopped("shutdown complete")
	return nil
}

func (s *Supervisor) crash(reason string) {
	if err := s.lifecycle.TransitionTo(StateCrashed, reason); err != nil {
		s.logger.Warn("state transition rejected", ports.Err(err))
	}
}

func (s *Supervisor) stopped(reason string) {
	if s.lifecycle.State() == StateStarting {
		_ = s.lifecycle.TransitionTo(StateStopping, reason)
	}
	if err := s.lifecycle.TransitionTo(StateStopped, reason); err != nil {
		s.logger.Warn("state transition rejected", ports.Err(err))
	}
}
