package ports

import (
	"context"
	"net/http"
)

// Prober performs a single liveness attempt against the running service.
// A nil error is a successful attempt. Network failures, timeouts and
// rejected responses are all reported as a non-nil error; callers do not
// distinguish between them.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

// Probe calls f(ctx).
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// HealthPolicy decides whether a liveness response means the service is alive.
// What the endpoint reports beyond HTTP success is owned by the application,
// so the decision is injectable.
type HealthPolicy interface {
	// Evaluate returns nil if resp counts as a successful attempt.
	Evaluate(resp *http.Response) error
}
