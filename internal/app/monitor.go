package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

// ProbeObserver is notified of every probe attempt and health transition.
type ProbeObserver interface {
	OnProbe(ok bool, duration time.Duration, consecutiveFailures int)
	OnHealthChange(previous, current domain.HealthState)
}

// ProbeErrorObserver is optionally implemented by observers that want the
// attempt error as well.
type ProbeErrorObserver interface {
	OnProbeError(err error)
}

// Monitor runs the liveness probe on a fixed interval and feeds the outcomes
// to a HealthTracker. It never retries within an attempt and never stops
// the service; it only changes the observed health state.
type Monitor struct {
	prober    ports.Prober
	logger    ports.Logger
	observers []ProbeObserver
	now       func() time.Time

	mu       sync.Mutex
	settings HealthSettings
	tracker  *HealthTracker
	reset    chan struct{}
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithClock overrides the time source used for the start period.
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// WithObserver registers an observer.
func WithObserver(o ProbeObserver) MonitorOption {
	return func(m *Monitor) { m.observers = append(m.observers, o) }
}

// NewMonitor creates a monitor whose start period begins now.
func NewMonitor(prober ports.Prober, settings HealthSettings, logger ports.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		prober:   prober,
		logger:   logger,
		now:      time.Now,
		settings: settings,
		reset:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.tracker = NewHealthTracker(m.now(), settings.StartPeriod, settings.Retries)
	return m
}

// State returns the current health state.
func (m *Monitor) State() domain.HealthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.State()
}

// Settings returns the active settings.
func (m *Monitor) Settings() HealthSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// UpdateSettings swaps the settings. A changed interval restarts the ticker.
func (m *Monitor) UpdateSettings(s HealthSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.settings = s
	m.tracker.Reconfigure(s.StartPeriod, s.Retries)
	m.mu.Unlock()

	select {
	case m.reset <- struct{}{}:
	default:
	}

	m.logger.Info("health settings updated",
		ports.Duration("interval", s.Interval),
		ports.Duration("timeout", s.Timeout),
		ports.Duration("start_period", s.StartPeriod),
		ports.Int("retries", s.Retries),
	)
	return nil
}

// Run probes every interval until ctx is cancelled. The first attempt
// happens one interval after Run is called.
func (m *Monitor) Run(ctx context.Context) {
	settings := m.Settings()
	m.logger.Info("health monitor started",
		ports.Duration("interval", settings.Interval),
		ports.Duration("timeout", settings.Timeout),
		ports.Duration("start_period", settings.StartPeriod),
		ports.Int("retries", settings.Retries),
	)

	ticker := time.NewTicker(settings.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.reset:
			ticker.Reset(m.Settings().Interval)
		case <-ticker.C:
			m.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce performs one attempt and applies its outcome.
func (m *Monitor) ProbeOnce(ctx context.Context) Transition {
	timeout := m.Settings().Timeout

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	err := m.prober.Probe(attemptCtx)
	duration := time.Since(start)
	cancel()

	// Shutdown is not a probe failure.
	if err != nil && ctx.Err() != nil {
		m.mu.Lock()
		tr := Transition{From: m.tracker.State(), To: m.tracker.State(), Failures: m.tracker.Failures()}
		m.mu.Unlock()
		return tr
	}

	m.mu.Lock()
	tr := m.tracker.Observe(err == nil, m.now())
	m.mu.Unlock()

	m.report(tr, err, duration)
	return tr
}

func (m *Monitor) report(tr Transition, err error, duration time.Duration) {
	switch {
	case !tr.Counted:
		m.logger.Debug("health check inside start period",
			ports.Bool("ok", err == nil),
			ports.Duration("duration", duration),
		)
	case err == nil:
		m.logger.Debug("health check passed", ports.Duration("duration", duration))
	default:
		m.logger.Warn("health check failed",
			ports.Err(err),
			ports.Int("consecutive_failures", tr.Failures),
			ports.Int("threshold", m.Settings().Retries),
		)
	}

	if tr.Changed {
		m.logger.Info("health state changed",
			ports.String("from", tr.From.String()),
			ports.String("to", tr.To.String()),
		)
	}

	for _, o := range m.observers {
		if eo, ok := o.(ProbeErrorObserver); ok {
			eo.OnProbeError(err)
		}
		o.OnProbe(err == nil, duration, tr.Failures)
		if tr.Changed {
			o.OnHealthChange(tr.From, tr.To)
		}
	}
}
