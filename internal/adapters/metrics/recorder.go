// Package metrics exports probe and health metrics for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/keel/internal/domain"
)

var healthStates = []domain.HealthState{
	domain.HealthStarting,
	domain.HealthHealthy,
	domain.HealthUnhealthy,
}

// Recorder records probe outcomes and health transitions.
type Recorder struct {
	registry *prometheus.Registry

	probes       *prometheus.CounterVec
	probeLatency prometheus.Histogram
	failures     prometheus.Gauge
	health       *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keel_probe_total",
				Help: "Total liveness probe attempts by result",
			},
			[]string{"result"},
		),
		probeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "keel_probe_duration_seconds",
			Help:    "Duration of liveness probe attempts",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		failures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "keel_probe_consecutive_failures",
			Help: "Consecutive failed liveness probes counted against the threshold",
		}),
		health: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keel_health_state",
				Help: "Current health state of the service (1 for the active state)",
			},
			[]string{"state"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keel_health_transitions_total",
				Help: "Health state transitions by target state",
			},
			[]string{"to"},
		),
	}
	r.setHealth(domain.HealthStarting)
	return r
}

// OnProbe records one probe attempt.
func (r *Recorder) OnProbe(ok bool, duration time.Duration, consecutiveFailures int) {
	result := "success"
	if !ok {
		result = "failure"
	}
	r.probes.WithLabelValues(result).Inc()
	r.probeLatency.Observe(duration.Seconds())
	r.failures.Set(float64(consecutiveFailures))
}

// OnHealthChange records a health transition.
func (r *Recorder) OnHealthChange(previous, current domain.HealthState) {
	r.transitions.WithLabelValues(string(current)).Inc()
	r.setHealth(current)
}

func (r *Recorder) setHealth(current domain.HealthState) {
	for _, s := range healthStates {
		v := 0.0
		if s == current {
			v = 1
		}
		r.health.WithLabelValues(string(s)).Set(v)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
