package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

// StatusRecorder keeps the supervisor snapshot and persists it on every
// lifecycle change and probe attempt. Persistence failures are logged and
// never affect the run.
type StatusRecorder struct {
	repo   ports.StatusRepository
	logger ports.Logger
	now    func() time.Time

	mu     sync.Mutex
	status domain.Status
}

// NewStatusRecorder creates a recorder for the given run. repo may be nil.
func NewStatusRecorder(repo ports.StatusRepository, runID string, logger ports.Logger) *StatusRecorder {
	return &StatusRecorder{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		status: domain.Status{
			RunID:     runID,
			Lifecycle: StateStopped.String(),
			Health:    domain.HealthStarting,
		},
	}
}

// Snapshot returns a copy of the current status.
func (r *StatusRecorder) Snapshot() domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// ServiceStarted records the launched process.
func (r *StatusRecorder) ServiceStarted(svc ports.Service) {
	r.update(func(s *domain.Status) {
		s.PID = svc.PID()
		s.Addr = svc.Addr()
		s.StartedAt = r.now()
		s.Health = domain.HealthStarting
		s.ConsecutiveFailures = 0
	})
}

// OnStateChange implements EventEmitter.
func (r *StatusRecorder) OnStateChange(_, current State, _ string) {
	r.update(func(s *domain.Status) {
		s.Lifecycle = current.String()
	})
}

// OnProbe implements ProbeObserver.
func (r *StatusRecorder) OnProbe(ok bool, _ time.Duration, consecutiveFailures int) {
	r.update(func(s *domain.Status) {
		s.LastProbeAt = r.now()
		s.LastProbeOK = ok
		s.ConsecutiveFailures = consecutiveFailures
		if ok {
			s.LastProbeError = ""
		}
	})
}

// OnProbeError implements ProbeErrorObserver. It only records the message;
// OnProbe follows and persists.
func (r *StatusRecorder) OnProbeError(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	r.status.LastProbeError = err.Error()
	r.mu.Unlock()
}

// OnHealthChange implements ProbeObserver.
func (r *StatusRecorder) OnHealthChange(_, current domain.HealthState) {
	r.update(func(s *domain.Status) {
		s.Health = current
	})
}

func (r *StatusRecorder) update(fn func(*domain.Status)) {
	r.mu.Lock()
	fn(&r.status)
	r.status.UpdatedAt = r.now()
	snapshot := r.status
	r.mu.Unlock()

	if r.repo == nil {
		return
	}
	if err := r.repo.Save(context.Background(), snapshot); err != nil {
		r.logger.Error("failed to save status", ports.Err(err))
	}
}
