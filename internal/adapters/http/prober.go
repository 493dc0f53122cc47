package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bft-labs/keel/internal/ports"
)

// DefaultPath is the liveness path the service is expected to expose.
const DefaultPath = "/health"

// maxDrain bounds how much of a response body is read before closing it,
// so keep-alive connections can be reused between attempts.
const maxDrain = 64 << 10

// Prober implements ports.Prober with an HTTP GET against the service.
type Prober struct {
	client  ports.HTTPClient
	url     string
	timeout time.Duration
	policy  ports.HealthPolicy
}

// NewProber creates a prober for baseURL+path. A nil policy accepts any 2xx.
func NewProber(client ports.HTTPClient, baseURL, path string, timeout time.Duration, policy ports.HealthPolicy) *Prober {
	if path == "" {
		path = DefaultPath
	}
	if policy == nil {
		policy = StatusPolicy{}
	}
	return &Prober{
		client:  client,
		url:     baseURL + path,
		timeout: timeout,
		policy:  policy,
	}
}

// URL returns the probed URL.
func (p *Prober) URL() string { return p.url }

// Probe performs one attempt bounded by the configured timeout.
// Network failures, timeouts and policy rejections all surface as an error.
func (p *Prober) Probe(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "keel-probe")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		resp.Body.Close()
	}()

	return p.policy.Evaluate(resp)
}

// BaseURL returns the URL the supervisor should probe for a service bound to
// host:port. Wildcard binds are probed over loopback.
func BaseURL(host string, port int) string {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

var _ ports.Prober = (*Prober)(nil)
