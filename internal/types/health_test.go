package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthStatusConstructors(t *testing.T) {
	tests := []struct {
		name   string
		status HealthStatus
		state  HealthState
	}{
		{"healthy", Healthy("ok"), HealthStateHealthy},
		{"degraded", Degraded("slow"), HealthStateDegraded},
		{"unhealthy", Unhealthy("down: %s", "refused"), HealthStateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.state, tt.status.State)
			assert.False(t, tt.status.CheckedAt.IsZero())
			assert.Equal(t, tt.state == HealthStateHealthy, tt.status.IsHealthy())
		})
	}
}

func TestHealthState_UnmarshalJSON(t *testing.T) {
	var s HealthState
	require.NoError(t, json.Unmarshal([]byte(`"degraded"`), &s))
	assert.Equal(t, HealthStateDegraded, s)

	assert.Error(t, json.Unmarshal([]byte(`"sideways"`), &s))
	assert.Equal(t, HealthStateDegraded, s, "rejected value leaves the state untouched")
}

func TestParseHealthState(t *testing.T) {
	state, err := ParseHealthState("unhealthy")
	require.NoError(t, err)
	assert.Equal(t, HealthStateUnhealthy, state)

	_, err = ParseHealthState("Healthy")
	assert.Error(t, err)
}

func TestUnhealthy_FormatsMessage(t *testing.T) {
	assert.Equal(t, "down: refused", Unhealthy("down: %s", "refused").Message)
}

func TestID(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Len(t, id.Short(), 8)

	_, err = ParseID("")
	assert.Error(t, err)
	_, err = ParseID("not-a-uuid")
	assert.Error(t, err)
	assert.True(t, ID("").IsZero())
}
