package ports

import (
	"context"
	"time"
)

// ServiceSpec describes how to launch the supervised service.
type ServiceSpec struct {
	// Command is the program and its arguments.
	Command []string

	// Dir is the working directory of the process.
	Dir string

	// Env is appended to the inherited environment.
	Env []string

	// Addr is the bind address the service listens on (host:port).
	Addr string

	// UID and GID are the credentials the process must run with.
	// Both must be non-zero; the factory refuses anything else.
	UID int
	GID int

	// StopTimeout bounds graceful termination before the process is killed.
	StopTimeout time.Duration
}

// Service is a running, stoppable service bound to an address.
type Service interface {
	// Addr returns the bind address.
	Addr() string

	// PID returns the process id, or 0 for in-process services.
	PID() int

	// Done is closed when the service has exited.
	Done() <-chan struct{}

	// Err returns the exit error after Done is closed.
	Err() error

	// Stop terminates the service gracefully, forcing it after the context expires.
	Stop(ctx context.Context) error
}

// ServiceFactory launches the service described by spec.
type ServiceFactory interface {
	Start(ctx context.Context, spec ServiceSpec) (Service, error)
}
