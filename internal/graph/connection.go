package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/barabonda/linkbrain/internal/types"
)

const (
	tracerName = "github.com/barabonda/linkbrain/internal/graph"

	// probeQuery is the liveness round trip.
	probeQuery = "RETURN 1 AS test"
)

var errNoHandle = errors.New("no connection handle")

// ConnectionState describes the manager's handle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
	// StateUnavailable means the last reconnect cycle exhausted its budget
	// and operations fail fast until the cooldown elapses.
	StateUnavailable ConnectionState = "unavailable"
)

// ConnectionStatus is a snapshot of the manager for status reporting.
type ConnectionStatus struct {
	Connected bool            `json:"connected"`
	URI       string          `json:"uri"`
	State     ConnectionState `json:"state"`
	LastError string          `json:"lastError,omitempty"`
}

// ConnectionManager owns at most one live driver handle.
//
// Queries run while holding the read lock; replacing the handle takes the
// write lock, so a reconnect never races an in-flight query. Reconnect
// cycles are serialized by a context-aware semaphore and guarded by a
// circuit breaker that turns repeated exhausted cycles into immediate
// ConnectivityErrors.
type ConnectionManager struct {
	cfg    Config
	dial   Dialer
	logger *slog.Logger
	tracer trace.Tracer

	mu         sync.RWMutex
	driver     Driver
	generation uint64
	lastErr    error

	reconnecting chan struct{}
	breaker      *gobreaker.CircuitBreaker[struct{}]
}

// Option configures a ConnectionManager.
type Option func(*ConnectionManager)

// WithDialer replaces the Neo4j dialer.
func WithDialer(dial Dialer) Option {
	return func(m *ConnectionManager) {
		if dial != nil {
			m.dial = dial
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *ConnectionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *ConnectionManager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// NewConnectionManager creates a manager. No connection is opened until
// Connect or the first EnsureLive.
func NewConnectionManager(cfg Config, opts ...Option) (*ConnectionManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &ConnectionManager{
		cfg:          cfg,
		dial:         DialNeo4j,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		reconnecting: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.ReconnectCooldown > 0 {
		m.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "graph-reconnect",
			MaxRequests: 1,
			Timeout:     cfg.ReconnectCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 1
			},
			IsSuccessful: func(err error) bool {
				return err == nil || types.IsCancelled(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				m.logger.Info("graph reconnect breaker state changed",
					"from", from.String(), "to", to.String())
			},
		})
	}

	return m, nil
}

// Config returns the manager's configuration.
func (m *ConnectionManager) Config() Config {
	return m.cfg
}

// Connect opens a new handle and verifies it with the liveness probe,
// replacing any existing handle. It makes a single attempt.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "graph.connect",
		trace.WithAttributes(attribute.String("graph.uri", m.cfg.URI)))
	defer span.End()

	d, err := m.open(ctx)
	if err != nil {
		m.recordFailure(err)
		m.logger.Warn("graph connect failed", "uri", m.cfg.URI, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return NewCancelledError(ctx.Err())
		}
		return NewConnectivityError("failed to connect to graph store", err)
	}

	m.install(ctx, d)
	m.logger.Info("graph connected", "uri", m.cfg.URI)
	return nil
}

// EnsureLive probes the current handle and, when it is absent or dead,
// discards it and reconnects with up to RetryBudget attempts.
func (m *ConnectionManager) EnsureLive(ctx context.Context) error {
	m.mu.RLock()
	d, gen := m.driver, m.generation
	probeErr := errNoHandle
	if d != nil {
		probeErr = m.probe(ctx, d)
	}
	m.mu.RUnlock()

	if probeErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return NewCancelledError(ctx.Err())
	}
	if d != nil {
		m.logger.Warn("graph liveness probe failed", "uri", m.cfg.URI, "error", probeErr)
	}

	return m.reconnect(ctx, gen, probeErr)
}

// Disconnect closes the current handle. It is safe to call repeatedly.
func (m *ConnectionManager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	d := m.driver
	m.driver = nil
	m.generation++
	m.mu.Unlock()

	if d == nil {
		return nil
	}
	if err := d.Close(ctx); err != nil {
		m.logger.Warn("graph driver close failed", "error", err)
		return NewUnknownError("failed to close driver", err)
	}
	m.logger.Info("graph disconnected", "uri", m.cfg.URI)
	return nil
}

// Status reports the manager state without touching the network.
func (m *ConnectionManager) Status() ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := ConnectionStatus{
		Connected: m.driver != nil,
		URI:       m.cfg.URI,
		State:     StateDisconnected,
	}
	if m.driver != nil {
		status.State = StateConnected
	} else if m.breaker != nil && m.breaker.State() == gobreaker.StateOpen {
		status.State = StateUnavailable
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}

// Health probes the handle without reconnecting.
func (m *ConnectionManager) Health(ctx context.Context) types.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.driver == nil {
		if m.breaker != nil && m.breaker.State() == gobreaker.StateOpen {
			return types.Unhealthy("graph store unavailable; reconnect cooling down")
		}
		return types.Unhealthy("not connected")
	}
	if err := m.probe(ctx, m.driver); err != nil {
		return types.Degraded("liveness probe failed: %v", err)
	}
	return types.Healthy("connected to %s", m.cfg.URI)
}

// lease is a driver held under the read lock for the duration of one query.
type lease struct {
	driver     Driver
	generation uint64
	release    func()
}

// acquire returns a live driver held under the read lock.
func (m *ConnectionManager) acquire(ctx context.Context) (*lease, error) {
	if err := m.EnsureLive(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	if m.driver == nil {
		lastErr := m.lastErr
		m.mu.RUnlock()
		return nil, NewConnectivityError("connection handle lost", lastErr)
	}
	return &lease{
		driver:     m.driver,
		generation: m.generation,
		release:    m.mu.RUnlock,
	}, nil
}

// invalidate discards the handle of generation gen after a connectivity
// fault. A newer handle installed meanwhile is left alone.
func (m *ConnectionManager) invalidate(ctx context.Context, gen uint64, cause error) {
	m.mu.Lock()
	if m.generation != gen || m.driver == nil {
		m.mu.Unlock()
		return
	}
	d := m.driver
	m.driver = nil
	m.generation++
	m.lastErr = cause
	m.mu.Unlock()

	m.logger.Warn("graph handle discarded", "uri", m.cfg.URI, "error", cause)
	if err := d.Close(ctx); err != nil {
		m.logger.Debug("closing discarded driver failed", "error", err)
	}
}

func (m *ConnectionManager) reconnect(ctx context.Context, seenGen uint64, cause error) error {
	select {
	case m.reconnecting <- struct{}{}:
	case <-ctx.Done():
		return NewCancelledError(ctx.Err())
	}
	defer func() { <-m.reconnecting }()

	m.mu.RLock()
	current, live := m.generation, m.driver != nil
	m.mu.RUnlock()
	if current != seenGen && live {
		// Another caller already replaced the handle.
		return nil
	}
	m.invalidate(ctx, current, cause)

	ctx, span := m.tracer.Start(ctx, "graph.reconnect",
		trace.WithAttributes(
			attribute.String("graph.uri", m.cfg.URI),
			attribute.Int("graph.retry_budget", m.cfg.RetryBudget),
		))
	defer span.End()

	var err error
	if m.breaker == nil {
		err = m.connectWithRetry(ctx)
	} else {
		_, err = m.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, m.connectWithRetry(ctx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			m.mu.RLock()
			lastErr := m.lastErr
			m.mu.RUnlock()
			err = NewConnectivityError("graph store unavailable; failing fast until reconnect cooldown elapses", lastErr)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (m *ConnectionManager) connectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.RetryBudget; attempt++ {
		d, err := m.open(ctx)
		if err == nil {
			m.install(ctx, d)
			m.logger.Info("graph reconnected", "uri", m.cfg.URI,
				"attempt", attempt, "max_attempts", m.cfg.RetryBudget)
			return nil
		}

		lastErr = err
		m.recordFailure(err)
		if ctx.Err() != nil {
			return NewCancelledError(ctx.Err())
		}

		m.logger.Warn("graph connect attempt failed", "uri", m.cfg.URI,
			"attempt", attempt, "max_attempts", m.cfg.RetryBudget, "error", err)

		if attempt < m.cfg.RetryBudget && m.cfg.RetryDelay > 0 {
			timer := time.NewTimer(m.cfg.RetryDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return NewCancelledError(ctx.Err())
			}
		}
	}

	m.logger.Error("graph reconnect exhausted", "uri", m.cfg.URI,
		"max_attempts", m.cfg.RetryBudget, "error", lastErr)
	return NewConnectivityError(
		fmt.Sprintf("failed to connect after %d attempts", m.cfg.RetryBudget), lastErr)
}

// open dials a driver and verifies it. A driver that fails the probe is closed.
func (m *ConnectionManager) open(ctx context.Context) (Driver, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	d, err := m.dial(dialCtx, m.cfg)
	if err != nil {
		return nil, err
	}
	if err := m.probe(dialCtx, d); err != nil {
		_ = d.Close(ctx)
		return nil, err
	}
	return d, nil
}

func (m *ConnectionManager) probe(ctx context.Context, d Driver) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	res, err := d.Run(probeCtx, probeQuery, nil, AccessModeRead)
	if err != nil {
		return err
	}
	if len(res.Records) != 1 || len(res.Records[0]) != 1 {
		return fmt.Errorf("unexpected liveness probe result: %d records", len(res.Records))
	}
	if v, ok := res.Records[0][0].(int64); !ok || v != 1 {
		return fmt.Errorf("unexpected liveness probe value: %v", res.Records[0][0])
	}
	return nil
}

func (m *ConnectionManager) install(ctx context.Context, d Driver) {
	m.mu.Lock()
	old := m.driver
	m.driver = d
	m.generation++
	m.lastErr = nil
	m.mu.Unlock()

	if old != nil {
		_ = old.Close(ctx)
	}
}

func (m *ConnectionManager) recordFailure(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
