package app

import (
	"fmt"
	"time"

	"github.com/bft-labs/keel/internal/domain"
)

// HealthSettings controls the liveness probe loop.
type HealthSettings struct {
	// Interval is the time between probe attempts.
	Interval time.Duration

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// StartPeriod is the grace period after launch during which failures
	// are not counted.
	StartPeriod time.Duration

	// Retries is the number of consecutive counted failures that makes the
	// service unhealthy.
	Retries int
}

// DefaultHealthSettings returns interval=30s, timeout=10s, start period=5s, retries=3.
func DefaultHealthSettings() HealthSettings {
	return HealthSettings{
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		StartPeriod: 5 * time.Second,
		Retries:     3,
	}
}

// Validate checks the settings.
func (s HealthSettings) Validate() error {
	if s.Interval <= 0 {
		return fmt.Errorf("%w: health interval must be positive", domain.ErrInvalidConfig)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: health timeout must be positive", domain.ErrInvalidConfig)
	}
	if s.StartPeriod < 0 {
		return fmt.Errorf("%w: health start period must not be negative", domain.ErrInvalidConfig)
	}
	if s.Retries < 1 {
		return fmt.Errorf("%w: health retries must be at least 1", domain.ErrInvalidConfig)
	}
	return nil
}

// Transition is the outcome of feeding one attempt into a HealthTracker.
type Transition struct {
	From    domain.HealthState
	To      domain.HealthState
	Changed bool

	// Counted is false for attempts made inside the start period.
	Counted bool

	// Failures is the consecutive failure count after the attempt.
	Failures int
}

// HealthTracker is the probe state machine:
//
//	starting  -> healthy    on the first success after the start period
//	starting  -> unhealthy  after Retries consecutive failures after the start period
//	healthy   -> unhealthy  after Retries consecutive failures
//	unhealthy -> healthy    on the next success
//
// Attempts inside the start period are observed but never counted: the
// state stays starting whatever they return. A counted success resets the
// failure count. It is not safe for concurrent use; the monitor owns it.
type HealthTracker struct {
	startedAt   time.Time
	startPeriod time.Duration
	threshold   int

	state    domain.HealthState
	failures int
}

// NewHealthTracker creates a tracker in the starting state.
func NewHealthTracker(startedAt time.Time, startPeriod time.Duration, threshold int) *HealthTracker {
	if threshold < 1 {
		threshold = 1
	}
	return &HealthTracker{
		startedAt:   startedAt,
		startPeriod: startPeriod,
		threshold:   threshold,
		state:       domain.HealthStarting,
	}
}

// State returns the current health state.
func (t *HealthTracker) State() domain.HealthState { return t.state }

// Failures returns the consecutive counted failures.
func (t *HealthTracker) Failures() int { return t.failures }

// InStartPeriod reports whether at falls inside the start period.
func (t *HealthTracker) InStartPeriod(at time.Time) bool {
	return at.Sub(t.startedAt) < t.startPeriod
}

// Reconfigure changes the start period and threshold. The new threshold is
// applied on the next counted failure.
func (t *HealthTracker) Reconfigure(startPeriod time.Duration, threshold int) {
	if threshold < 1 {
		threshold = 1
	}
	t.startPeriod = startPeriod
	t.threshold = threshold
}

// Observe feeds one attempt outcome observed at the given time.
func (t *HealthTracker) Observe(ok bool, at time.Time) Transition {
	tr := Transition{From: t.state, Counted: true}

	switch {
	case t.InStartPeriod(at):
		tr.Counted = false
	case ok:
		t.failures = 0
		t.state = domain.HealthHealthy
	default:
		t.failures++
		if t.failures >= t.threshold {
			t.state = domain.HealthUnhealthy
		}
	}

	tr.To = t.state
	tr.Changed = tr.From != tr.To
	tr.Failures = t.failures
	return tr
}
