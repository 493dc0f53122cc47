package keel

import (
	"github.com/bft-labs/keel/internal/ports"
)

// Re-exported port types so callers can implement them.
type (
	// Logger is the structured logging interface.
	Logger = ports.Logger

	// LogField is a structured log field.
	LogField = ports.Field

	// HTTPClient performs probe requests. *http.Client satisfies it.
	HTTPClient = ports.HTTPClient

	// HealthPolicy decides whether a liveness response is a success.
	HealthPolicy = ports.HealthPolicy

	// Service is a running, stoppable service.
	Service = ports.Service

	// ServiceSpec describes how to launch the service.
	ServiceSpec = ports.ServiceSpec

	// ServiceFactory launches the service.
	ServiceFactory = ports.ServiceFactory
)

// Option configures optional behavior of Keel.
type Option func(*options)

// options holds the optional configuration for a Keel instance.
type options struct {
	httpClient   ports.HTTPClient
	logger       ports.Logger
	factory      ports.ServiceFactory
	policy       ports.HealthPolicy
	eventHandler EventHandler
}

// WithHTTPClient sets the client used for liveness probes.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithServiceFactory replaces the process launcher, e.g. with an
// in-process stub service.
func WithServiceFactory(factory ServiceFactory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// WithHealthPolicy sets how liveness responses are judged. The default
// accepts any 2xx response.
func WithHealthPolicy(policy HealthPolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithEventHandler sets a handler for keel events.
// Events are called synchronously from the supervisor goroutines.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}
