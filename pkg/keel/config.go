package keel

import (
	"fmt"
	"time"

	"github.com/bft-labs/keel/internal/domain"
)

// NoStartPeriod disables the grace period after launch.
const NoStartPeriod time.Duration = -1

// Config describes the supervised service and its liveness probe.
type Config struct {
	// Command is the service program and its arguments.
	Command []string

	// Dir is the working directory of the service.
	Dir string

	// Env is appended to the inherited environment.
	Env []string

	// Host and Port are where the service listens.
	Host string
	Port int

	// UID and GID the service runs as. Both must be non-zero.
	UID int
	GID int

	// HealthPath is the liveness endpoint.
	HealthPath string

	// Interval, Timeout and Retries control the probe loop.
	Interval time.Duration
	Timeout  time.Duration
	Retries  int

	// StartPeriod is the grace period after launch during which check
	// outcomes are not counted. Zero selects the default of 5s; use
	// NoStartPeriod to count from the first check.
	StartPeriod time.Duration

	// ShutdownTimeout bounds graceful termination.
	ShutdownTimeout time.Duration
}

// SetDefaults fills zero fields with the default contract values.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.HealthPath == "" {
		c.HealthPath = "/health"
	}
	if c.Interval == 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.StartPeriod == 0 {
		c.StartPeriod = 5 * time.Second
	}
	if c.StartPeriod < 0 {
		c.StartPeriod = NoStartPeriod
	}
	if c.Retries == 0 {
		c.Retries = 3
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Command) == 0 {
		return fmt.Errorf("%w: command is required", domain.ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	if c.UID == 0 || c.GID == 0 {
		return fmt.Errorf("%w: uid %d gid %d", domain.ErrPrivilegedIdentity, c.UID, c.GID)
	}
	return nil
}

// startPeriod is the grace period handed to the health tracker.
func (c Config) startPeriod() time.Duration {
	if c.StartPeriod < 0 {
		return 0
	}
	return c.StartPeriod
}
