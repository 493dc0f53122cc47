package keel

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"

	httpAdapter "github.com/bft-labs/keel/internal/adapters/http"
	logAdapter "github.com/bft-labs/keel/internal/adapters/log"
	"github.com/bft-labs/keel/internal/adapters/process"
	"github.com/bft-labs/keel/internal/app"
	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

// Keel supervises one service. Use New() to create an instance, then
// Start() to launch the service.
type Keel struct {
	config     Config
	supervisor *app.Supervisor
	logger     ports.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates a Keel instance in StateStopped.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Keel, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logAdapter.NewNoopLogger()
	}
	if o.factory == nil {
		o.factory = process.NewFactory(o.logger)
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	prober := httpAdapter.NewProber(o.httpClient, httpAdapter.BaseURL(cfg.Host, cfg.Port), cfg.HealthPath, 0, o.policy)

	sup := app.NewSupervisor(app.SupervisorConfig{
		Service: ports.ServiceSpec{
			Command:     cfg.Command,
			Dir:         cfg.Dir,
			Env:         cfg.Env,
			Addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			UID:         cfg.UID,
			GID:         cfg.GID,
			StopTimeout: cfg.ShutdownTimeout,
		},
		Health: app.HealthSettings{
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			StartPeriod: cfg.startPeriod(),
			Retries:     cfg.Retries,
		},
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, o.factory, prober, o.logger, emitter, app.WithProbeObserver(emitter))

	return &Keel{
		config:     cfg,
		supervisor: sup,
		logger:     o.logger,
	}, nil
}

// Start launches the service in the background and returns once the run
// has begun. Use Wait to learn how it ended.
func (k *Keel) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.done != nil {
		select {
		case <-k.done:
		default:
			return domain.ErrAlreadyRunning
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	k.cancel = cancel
	k.done = done
	k.err = nil

	go func() {
		defer cancel()
		err := k.supervisor.Run(runCtx)
		k.mu.Lock()
		k.err = err
		k.mu.Unlock()
		close(done)
	}()
	return nil
}

// Stop gracefully shuts the service down and waits for the run to end.
func (k *Keel) Stop() error {
	k.mu.Lock()
	cancel := k.cancel
	k.mu.Unlock()
	if cancel == nil {
		return domain.ErrNotRunning
	}

	cancel()
	return k.Wait()
}

// Wait blocks until the run ends and returns its error: nil after a
// graceful stop, ErrServiceExited if the service exited on its own.
func (k *Keel) Wait() error {
	k.mu.Lock()
	done := k.done
	k.mu.Unlock()
	if done == nil {
		return domain.ErrNotRunning
	}

	<-done
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (k *Keel) Status() State {
	return convertState(k.supervisor.State())
}

// Health returns the current health state.
func (k *Keel) Health() Health {
	return k.supervisor.Health()
}

// Errors returned by Keel.
var (
	ErrAlreadyRunning     = domain.ErrAlreadyRunning
	ErrNotRunning         = domain.ErrNotRunning
	ErrServiceExited      = domain.ErrServiceExited
	ErrPrivilegedIdentity = domain.ErrPrivilegedIdentity
	ErrInvalidConfig      = domain.ErrInvalidConfig
)
