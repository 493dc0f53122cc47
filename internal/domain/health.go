package domain

// HealthState is the externally observed liveness of the service.
type HealthState string

const (
	HealthStarting  HealthState = "starting"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// String returns the state name.
func (h HealthState) String() string { return string(h) }

// ExitCode maps a health state to the exit status of `keel probe`-style checks.
// Only healthy is success.
func (h HealthState) ExitCode() int {
	if h == HealthHealthy {
		return 0
	}
	return 1
}
