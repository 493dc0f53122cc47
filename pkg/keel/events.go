package keel

import (
	"time"

	"github.com/bft-labs/keel/internal/app"
	"github.com/bft-labs/keel/internal/domain"
)

// State is the lifecycle state of a Keel instance.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateCrashed  State = "crashed"
)

// Health is the observed liveness of the service.
type Health = domain.HealthState

const (
	HealthStarting  = domain.HealthStarting
	HealthHealthy   = domain.HealthHealthy
	HealthUnhealthy = domain.HealthUnhealthy
)

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ProbeEvent is emitted after every liveness attempt.
type ProbeEvent struct {
	OK                  bool
	Duration            time.Duration
	ConsecutiveFailures int
}

// HealthChangeEvent is emitted when the health state changes.
type HealthChangeEvent struct {
	Previous Health
	Current  Health
}

// EventHandler receives keel events.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnProbe(event ProbeEvent)
	OnHealthChange(event HealthChangeEvent)
}

// BaseEventHandler implements EventHandler with no-ops; embed it to
// override only what you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)   {}
func (BaseEventHandler) OnProbe(ProbeEvent)               {}
func (BaseEventHandler) OnHealthChange(HealthChangeEvent) {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnProbe(ok bool, duration time.Duration, consecutiveFailures int) {
	if e.handler == nil {
		return
	}
	e.handler.OnProbe(ProbeEvent{OK: ok, Duration: duration, ConsecutiveFailures: consecutiveFailures})
}

func (e *eventEmitterWrapper) OnHealthChange(previous, current domain.HealthState) {
	if e.handler == nil {
		return
	}
	e.handler.OnHealthChange(HealthChangeEvent{Previous: previous, Current: current})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
