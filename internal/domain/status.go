package domain

import "time"

// Status is a snapshot of the supervisor persisted to the state directory.
// It is the only view external tools get into the running supervisor.
type Status struct {
	RunID               string      `json:"run_id" yaml:"run_id"`
	Lifecycle           string      `json:"lifecycle" yaml:"lifecycle"`
	Health              HealthState `json:"health" yaml:"health"`
	ConsecutiveFailures int         `json:"consecutive_failures" yaml:"consecutive_failures"`
	PID                 int         `json:"pid,omitempty" yaml:"pid,omitempty"`
	Addr                string      `json:"addr,omitempty" yaml:"addr,omitempty"`
	StartedAt           time.Time   `json:"started_at" yaml:"started_at"`
	LastProbeAt         time.Time   `json:"last_probe_at,omitempty" yaml:"last_probe_at,omitempty"`
	LastProbeOK         bool        `json:"last_probe_ok" yaml:"last_probe_ok"`
	LastProbeError      string      `json:"last_probe_error,omitempty" yaml:"last_probe_error,omitempty"`
	UpdatedAt           time.Time   `json:"updated_at" yaml:"updated_at"`
}
