package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// HealthState is the coarse condition of the graph store connection:
// healthy (liveness check answered), degraded (handle held but the check
// failed) or unhealthy (no handle).
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// ParseHealthState accepts only the three known states.
func ParseHealthState(s string) (HealthState, error) {
	switch state := HealthState(s); state {
	case HealthStateHealthy, HealthStateDegraded, HealthStateUnhealthy:
		return state, nil
	}
	return "", fmt.Errorf("unknown health state %q", s)
}

func (s HealthState) String() string { return string(s) }

// UnmarshalJSON rejects unknown states.
func (s *HealthState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	state, err := ParseHealthState(raw)
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// HealthStatus is the result of one liveness check.
type HealthStatus struct {
	State     HealthState `json:"state"`
	Message   string      `json:"message,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}

func newHealth(state HealthState, format string, args ...any) HealthStatus {
	return HealthStatus{State: state, Message: fmt.Sprintf(format, args...), CheckedAt: time.Now()}
}

// Healthy, Degraded and Unhealthy build a status stamped now, with a
// printf-style message.
func Healthy(format string, args ...any) HealthStatus {
	return newHealth(HealthStateHealthy, format, args...)
}

func Degraded(format string, args ...any) HealthStatus {
	return newHealth(HealthStateDegraded, format, args...)
}

func Unhealthy(format string, args ...any) HealthStatus {
	return newHealth(HealthStateUnhealthy, format, args...)
}

// IsHealthy reports whether the liveness check answered.
func (h HealthStatus) IsHealthy() bool {
	return h.State == HealthStateHealthy
}
