package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/barabonda/linkbrain/internal/types"
)

// Query is a Cypher statement with optional parameters.
type Query struct {
	Text   string
	Params map[string]any
}

// Result is a fully materialized, normalized result set. Rows keep the
// order the store emitted them in.
type Result struct {
	Columns  []string      `json:"columns"`
	Rows     []*Row        `json:"rows"`
	Counters Counters      `json:"counters"`
	Elapsed  time.Duration `json:"-"`
}

// QueryRunner executes queries. Executor is the production implementation.
type QueryRunner interface {
	Execute(ctx context.Context, q Query, mode AccessMode) (*Result, error)
}

// Executor runs queries through a ConnectionManager.
type Executor struct {
	conn        *ConnectionManager
	timeout     time.Duration
	retryWrites bool
	logger      *slog.Logger
	tracer      trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithExecutorTracer sets the tracer.
func WithExecutorTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// NewExecutor creates an Executor. Timeout and write-retry policy come
// from the manager's Config.
func NewExecutor(conn *ConnectionManager, opts ...ExecutorOption) *Executor {
	cfg := conn.Config()
	e := &Executor{
		conn:        conn,
		timeout:     cfg.QueryTimeout,
		retryWrites: cfg.RetryWrites,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs q and returns every row, normalized.
//
// A connectivity fault during execution discards the handle, reconnects
// and re-issues the query exactly once. Writes are only re-issued when
// RetryWrites is set. Query faults are returned immediately and anything
// unclassified is returned as an UnknownError.
func (e *Executor) Execute(ctx context.Context, q Query, mode AccessMode) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "graph.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "neo4j"),
			attribute.String("graph.mode", mode.String()),
		))
	defer span.End()

	result, err := e.execute(ctx, q, mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("graph.rows", len(result.Rows)))
	return result, nil
}

func (e *Executor) execute(ctx context.Context, q Query, mode AccessMode) (*Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, NewQueryError("query text is empty", nil)
	}
	if err := checkParams(q.Params); err != nil {
		return nil, err
	}

	start := time.Now()
	raw, attempt, err := e.run(ctx, q, mode)
	if err == nil {
		return e.materialize(raw, start)
	}
	if !attempt.dispatched {
		// The connection manager already spent its reconnect budget.
		return nil, err
	}

	code := e.classify(ctx, err)
	switch code {
	case types.ErrCodeCancelled:
		return nil, NewCancelledError(err)
	case types.ErrCodeQuery:
		e.logger.DebugContext(ctx, "query rejected", "mode", mode.String(), "error", err)
		return nil, NewQueryError("query failed", err)
	case types.ErrCodeConnectivity:
		// handled below
	default:
		e.logger.ErrorContext(ctx, "query failed with unclassified error", "mode", mode.String(), "error", err)
		return nil, NewUnknownError("query failed", err)
	}

	if mode == AccessModeWrite && !e.retryWrites {
		e.conn.invalidate(ctx, attempt.generation, err)
		return nil, NewConnectivityError("write interrupted by connectivity fault; not re-issued", err)
	}

	e.logger.WarnContext(ctx, "connectivity fault during query, retrying once",
		"mode", mode.String(), "error", err)
	e.conn.invalidate(ctx, attempt.generation, err)

	raw, _, retryErr := e.run(ctx, q, mode)
	if retryErr == nil {
		return e.materialize(raw, start)
	}

	switch e.classify(ctx, retryErr) {
	case types.ErrCodeCancelled:
		return nil, NewCancelledError(retryErr)
	case types.ErrCodeConnectivity:
		return nil, NewConnectivityError("query failed after reconnect", retryErr)
	case types.ErrCodeQuery:
		return nil, NewQueryError("query failed", retryErr)
	default:
		return nil, NewUnknownError("query failed", retryErr)
	}
}

type attemptInfo struct {
	dispatched bool
	generation uint64
}

// run performs one attempt. dispatched is false when no live handle could
// be obtained, in which case err is already classified.
func (e *Executor) run(ctx context.Context, q Query, mode AccessMode) (*RawResult, attemptInfo, error) {
	l, err := e.conn.acquire(ctx)
	if err != nil {
		return nil, attemptInfo{}, err
	}
	info := attemptInfo{dispatched: true, generation: l.generation}

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	raw, err := l.driver.Run(queryCtx, q.Text, q.Params, mode)
	cancel()
	l.release()

	if err != nil {
		return nil, info, err
	}
	return raw, info, nil
}

// classify treats any error seen after the caller's context ended as
// cancellation, so our own query deadline still counts as connectivity.
func (e *Executor) classify(ctx context.Context, err error) types.ErrorCode {
	if ctx.Err() != nil {
		return types.ErrCodeCancelled
	}
	return Classify(err)
}

func (e *Executor) materialize(raw *RawResult, start time.Time) (*Result, error) {
	result := &Result{
		Columns:  raw.Keys,
		Rows:     make([]*Row, 0, len(raw.Records)),
		Counters: raw.Counters,
		Elapsed:  time.Since(start),
	}
	if result.Columns == nil {
		result.Columns = []string{}
	}

	for i, record := range raw.Records {
		if len(record) != len(raw.Keys) {
			return nil, NewSerializationError(
				fmt.Sprintf("record %d has %d values for %d columns", i, len(record), len(raw.Keys)), nil)
		}
		row := NewRow()
		for j, key := range raw.Keys {
			value, err := Normalize(record[j])
			if err != nil {
				return nil, NewSerializationError(fmt.Sprintf("record %d column %q", i, key), err)
			}
			row.Set(key, value)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}
