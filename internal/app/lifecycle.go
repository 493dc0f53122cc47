package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

// ShutdownTimeout is the default maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// State is the lifecycle state of one supervised run.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateCrashed  State = "crashed"
)

func (s State) String() string { return string(s) }

// next lists the states reachable from each state. A run begins only from
// a terminal state; Starting may go straight to Stopping when shutdown
// arrives before launch.
var next = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// terminal reports whether a new run may begin from s.
func (s State) terminal() bool {
	return s == StateStopped || s == StateCrashed
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle guards the state of one run at a time: the run's cancel
// function, its helper goroutines and the transitions between states.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  ports.Logger
	emitter EventEmitter
}

// NewLifecycle returns a lifecycle in StateStopped. emitter may be nil.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:   StateStopped,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Begin moves a terminal lifecycle to Starting and returns the run context.
// Cancelling it, directly or through RequestStop, asks the run to shut down.
func (l *Lifecycle) Begin(parent context.Context, reason string) (context.Context, context.CancelFunc, error) {
	l.mu.Lock()
	prev := l.state
	if !prev.terminal() {
		l.mu.Unlock()
		return nil, nil, domain.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(parent)
	l.state = StateStarting
	l.cancel = cancel
	l.mu.Unlock()

	l.announce(prev, StateStarting, reason)
	return ctx, cancel, nil
}

// TransitionTo moves to to, or fails when the move is not allowed from the
// current state.
func (l *Lifecycle) TransitionTo(to State, reason string) error {
	l.mu.Lock()
	prev := l.state
	if !slices.Contains(next[prev], to) {
		l.mu.Unlock()
		if prev.terminal() {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = to
	if to.terminal() {
		l.cancel = nil
	}
	l.mu.Unlock()

	l.announce(prev, to, reason)
	return nil
}

// RequestStop cancels the active run. It fails with ErrNotRunning unless
// the run is starting or running.
func (l *Lifecycle) RequestStop() error {
	l.mu.RLock()
	cancel := l.cancel
	active := l.state == StateStarting || l.state == StateRunning
	l.mu.RUnlock()

	if !active || cancel == nil {
		return domain.ErrNotRunning
	}
	cancel()
	return nil
}

// Go runs fn in a goroutine that Drain waits for.
func (l *Lifecycle) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// Drain waits for goroutines started with Go, giving up after timeout
// with ErrShutdownTimeout.
func (l *Lifecycle) Drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		l.logger.Warn("run goroutines still busy after timeout", ports.Duration("timeout", timeout))
		return domain.ErrShutdownTimeout
	}
}

func (l *Lifecycle) announce(prev, cur State, reason string) {
	if l.emitter != nil {
		l.emitter.OnStateChange(prev, cur, reason)
	}
	l.logger.Info("state transition",
		ports.String("from", prev.String()),
		ports.String("to", cur.String()),
		ports.String("reason", reason),
	)
}
