package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bft-labs/keel/internal/ports"
)

// Policy names accepted by PolicyByName.
const (
	PolicyStatus = "status"
	PolicyBody   = "body"
)

// StatusPolicy accepts any 2xx response.
type StatusPolicy struct{}

// Evaluate implements ports.HealthPolicy.
func (StatusPolicy) Evaluate(resp *http.Response) error {
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unhealthy status %d", resp.StatusCode)
	}
	return nil
}

// BodyPolicy accepts a 2xx response whose JSON body has a "status" field
// equal to Want (case-insensitive).
type BodyPolicy struct {
	Want string
}

// Evaluate implements ports.HealthPolicy.
func (p BodyPolicy) Evaluate(resp *http.Response) error {
	if err := (StatusPolicy{}).Evaluate(resp); err != nil {
		return err
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDrain)).Decode(&body); err != nil {
		return fmt.Errorf("decode health body: %w", err)
	}

	want := p.Want
	if want == "" {
		want = "healthy"
	}
	if !strings.EqualFold(body.Status, want) {
		return fmt.Errorf("health status %q, want %q", body.Status, want)
	}
	return nil
}

// PolicyByName returns the policy registered under name.
func PolicyByName(name string) (ports.HealthPolicy, error) {
	switch strings.ToLower(name) {
	case "", PolicyStatus:
		return StatusPolicy{}, nil
	case PolicyBody:
		return BodyPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown health policy %q (valid: %q, %q)", name, PolicyStatus, PolicyBody)
	}
}
