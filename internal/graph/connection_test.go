package graph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barabonda/linkbrain/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = 0
	cfg.ConnectTimeout = time.Second
	cfg.QueryTimeout = time.Second
	return cfg
}

func newTestManager(t *testing.T, dialer *MockDialer, mutate ...func(*Config)) *ConnectionManager {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	mgr, err := NewConnectionManager(cfg, WithDialer(dialer.Dial), WithLogger(discardLogger()))
	require.NoError(t, err)
	return mgr
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty uri", func(c *Config) { c.URI = "" }, true},
		{"zero retry budget", func(c *Config) { c.RetryBudget = 0 }, true},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }, true},
		{"zero query timeout", func(c *Config) { c.QueryTimeout = 0 }, true},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }, true},
		{"no cooldown", func(c *Config) { c.ReconnectCooldown = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.True(t, types.HasCode(err, ErrCodeGraphInvalidConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConnectionManager_Connect(t *testing.T) {
	driver := NewMockDriver()
	mgr := newTestManager(t, NewMockDialer(DialOutcome{Driver: driver}))

	require.NoError(t, mgr.Connect(context.Background()))

	status := mgr.Status()
	assert.True(t, status.Connected)
	assert.Equal(t, StateConnected, status.State)
	assert.Equal(t, "neo4j://localhost:7687", status.URI)
	assert.True(t, mgr.Health(context.Background()).IsHealthy())
}

func TestConnectionManager_ConnectFailureIsReported(t *testing.T) {
	mgr := newTestManager(t, NewMockDialer(DialOutcome{Err: errors.New("connection refused")}))

	err := mgr.Connect(context.Background())

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConnectivity, types.CodeOf(err))
	status := mgr.Status()
	assert.False(t, status.Connected)
	assert.Contains(t, status.LastError, "connection refused")
}

func TestConnectionManager_ConnectClosesDriverFailingProbe(t *testing.T) {
	driver := NewMockDriver()
	driver.SetProbeError(errors.New("handshake failed"))
	mgr := newTestManager(t, NewMockDialer(DialOutcome{Driver: driver}))

	err := mgr.Connect(context.Background())

	require.Error(t, err)
	assert.True(t, driver.Closed())
	assert.False(t, mgr.Status().Connected)
}

func TestConnectionManager_EnsureLiveReplacesDeadHandle(t *testing.T) {
	first, second := NewMockDriver(), NewMockDriver()
	dialer := NewMockDialer(DialOutcome{Driver: first}, DialOutcome{Driver: second})
	mgr := newTestManager(t, dialer)
	require.NoError(t, mgr.Connect(context.Background()))

	first.SetProbeError(errors.New("broken pipe"))

	require.NoError(t, mgr.EnsureLive(context.Background()))
	assert.Equal(t, 2, dialer.Dials())
	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
	assert.True(t, mgr.Status().Connected)
}

func TestConnectionManager_EnsureLiveKeepsHealthyHandle(t *testing.T) {
	driver := NewMockDriver()
	dialer := NewMockDialer(DialOutcome{Driver: driver})
	mgr := newTestManager(t, dialer)
	require.NoError(t, mgr.Connect(context.Background()))

	for i := 0; i < 3; i++ {
		require.NoError(t, mgr.EnsureLive(context.Background()))
	}
	assert.Equal(t, 1, dialer.Dials())
}

func TestConnectionManager_EnsureLiveExhaustsBudgetThenFailsFast(t *testing.T) {
	dialer := NewMockDialer(DialOutcome{Err: errors.New("service unavailable")})
	mgr := newTestManager(t, dialer)

	err := mgr.EnsureLive(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConnectivity, types.CodeOf(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, dialer.Dials())

	start := time.Now()
	err = mgr.EnsureLive(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConnectivity, types.CodeOf(err))
	assert.Equal(t, 3, dialer.Dials(), "open breaker must not dial")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StateUnavailable, mgr.Status().State)
}

func TestConnectionManager_WithoutCooldownEachCallRetries(t *testing.T) {
	dialer := NewMockDialer(DialOutcome{Err: errors.New("service unavailable")})
	mgr := newTestManager(t, dialer, func(c *Config) {
		c.ReconnectCooldown = 0
		c.RetryBudget = 2
	})

	require.Error(t, mgr.EnsureLive(context.Background()))
	require.Error(t, mgr.EnsureLive(context.Background()))
	assert.Equal(t, 4, dialer.Dials())
}

func TestConnectionManager_EnsureLiveHonoursCancellation(t *testing.T) {
	dialer := NewMockDialer(DialOutcome{Driver: NewMockDriver()})
	mgr := newTestManager(t, dialer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mgr.EnsureLive(ctx)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeCancelled, types.CodeOf(err))
	assert.Equal(t, 0, dialer.Dials())
}

func TestConnectionManager_DisconnectIsIdempotent(t *testing.T) {
	driver := NewMockDriver()
	mgr := newTestManager(t, NewMockDialer(DialOutcome{Driver: driver}))

	assert.NoError(t, mgr.Disconnect(context.Background()), "disconnect before connect")

	require.NoError(t, mgr.Connect(context.Background()))
	assert.NoError(t, mgr.Disconnect(context.Background()))
	assert.NoError(t, mgr.Disconnect(context.Background()))

	assert.True(t, driver.Closed())
	assert.False(t, mgr.Status().Connected)
	assert.False(t, mgr.Health(context.Background()).IsHealthy())
}
