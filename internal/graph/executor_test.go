package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barabonda/linkbrain/internal/types"
)

const countQuery = "MATCH (n) RETURN count(n) AS total"

func unavailable() error {
	return &neo4j.Neo4jError{Code: "Neo.TransientError.General.DatabaseUnavailable", Msg: "database unavailable"}
}

func syntaxError() error {
	return &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "Invalid input 'MATC'"}
}

func newTestExecutor(t *testing.T, dialer *MockDialer, mutate ...func(*Config)) (*Executor, *ConnectionManager) {
	t.Helper()
	mgr := newTestManager(t, dialer, mutate...)
	require.NoError(t, mgr.Connect(context.Background()))
	return NewExecutor(mgr, WithExecutorLogger(discardLogger())), mgr
}

func TestExecutor_CountOnEmptyStore(t *testing.T) {
	driver := NewMockDriver().On(countQuery, MockResponse{
		Result: Rows([]string{"total"}, []any{int64(0)}),
	})
	exec, _ := newTestExecutor(t, NewMockDialer(DialOutcome{Driver: driver}))

	res, err := exec.Execute(context.Background(), Query{Text: countQuery, Params: map[string]any{}}, AccessModeRead)

	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	total, ok := res.Rows[0].Get("total")
	require.True(t, ok)
	assert.Equal(t, int64(0), total)

	encoded, err := json.Marshal(res.Rows)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"total":0}]`, string(encoded))
}

func TestExecutor_PreservesRowAndColumnOrder(t *testing.T) {
	query := "MATCH (p:Plant) RETURN p.name AS name, p.id AS id"
	driver := NewMockDriver().On(query, MockResponse{
		Result: Rows([]string{"name", "id"},
			[]any{"zeta", int64(3)},
			[]any{"alpha", int64(1)},
			[]any{"mid", int64(2)},
		),
	})
	exec, _ := newTestExecutor(t, NewMockDialer(DialOutcome{Driver: driver}))

	res, err := exec.Execute(context.Background(), Query{Text: query}, AccessModeRead)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "id"}, res.Columns)
	encoded, err := json.Marshal(res.Rows)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"zeta","id":3},{"name":"alpha","id":1},{"name":"mid","id":2}]`, string(encoded))
}

func TestExecutor_QueryErrorIsNotRetried(t *testing.T) {
	query := "MATC (n) RETURN n"
	driver := NewMockDriver().On(query, MockResponse{Err: syntaxError()})
	dialer := NewMockDialer(DialOutcome{Driver: driver})
	exec, _ := newTestExecutor(t, dialer)

	_, err := exec.Execute(context.Background(), Query{Text: query}, AccessModeRead)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeQuery, types.CodeOf(err))
	assert.False(t, types.IsRetryable(err))
	assert.Equal(t, 1, driver.CallCount(query))
	assert.Equal(t, 1, dialer.Dials())
}

func TestExecutor_ConnectivityFaultRetriesOnceOnNewHandle(t *testing.T) {
	first := NewMockDriver().On(countQuery, MockResponse{Err: unavailable()})
	second := NewMockDriver().On(countQuery, MockResponse{Result: Rows([]string{"total"}, []any{int64(5)})})
	dialer := NewMockDialer(DialOutcome{Driver: first}, DialOutcome{Driver: second})
	exec, _ := newTestExecutor(t, dialer)

	res, err := exec.Execute(context.Background(), Query{Text: countQuery}, AccessModeRead)

	require.NoError(t, err)
	total, _ := res.Rows[0].Get("total")
	assert.Equal(t, int64(5), total)
	assert.Equal(t, 1, first.CallCount(countQuery))
	assert.Equal(t, 1, second.CallCount(countQuery))
	assert.Equal(t, 2, dialer.Dials())
	assert.True(t, first.Closed())
}

func TestExecutor_ConcurrentFaultsShareOneReconnect(t *testing.T) {
	const callers = 32
	first := NewMockDriver().On(countQuery, MockResponse{Err: unavailable()})
	second := NewMockDriver().On(countQuery, MockResponse{Result: Rows([]string{"total"}, []any{int64(5)})})
	dialer := NewMockDialer(DialOutcome{Driver: first}, DialOutcome{Driver: second})
	exec, mgr := newTestExecutor(t, dialer)

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = exec.Execute(context.Background(), Query{Text: countQuery}, AccessModeRead)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, 2, dialer.Dials(), "one reconnect for all callers")
	assert.Equal(t, callers, second.CallCount(countQuery), "every caller lands on the new handle once")
	assert.True(t, first.Closed())
	assert.True(t, mgr.Status().Connected)
}

func TestExecutor_ConnectivityFaultOnRetrySurfaces(t *testing.T) {
	first := NewMockDriver().On(countQuery, MockResponse{Err: unavailable()})
	second := NewMockDriver().On(countQuery, MockResponse{Err: io.EOF})
	dialer := NewMockDialer(DialOutcome{Driver: first}, DialOutcome{Driver: second})
	exec, _ := newTestExecutor(t, dialer)

	_, err := exec.Execute(context.Background(), Query{Text: countQuery}, AccessModeRead)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConnectivity, types.CodeOf(err))
	assert.Contains(t, err.Error(), io.EOF.Error())
	assert.Equal(t, 1, first.CallCount(countQuery))
	assert.Equal(t, 1, second.CallCount(countQuery))
}

func TestExecutor_DeadHandleGetsOneReconnectCycle(t *testing.T) {
	first := NewMockDriver()
	dialer := NewMockDialer(DialOutcome{Driver: first}, DialOutcome{Err: errors.New("connection refused")})
	exec, _ := newTestExecutor(t, dialer)
	first.SetProbeError(errors.New("broken pipe"))

	_, err := exec.Execute(context.Background(), Query{Text: countQuery}, AccessModeRead)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConnectivity, types.CodeOf(err))
	assert.Equal(t, 1+3, dialer.Dials(), "initial connect plus one reconnect cycle of RetryBudget attempts")
	assert.Empty(t, first.Calls())
}

func TestExecutor_WriteIsNotReissuedByDefault(t *testing.T) {
	query := "CREATE (n:Plant {id: $id})"
	first := NewMockDriver().On(query, MockResponse{Err: unavailable()})
	second := NewMockDriver()
	dialer := NewMockDialer(DialOutcome{Driver: first}, DialOutcome{Driver: second})
	exec, mgr := newTestExecutor(t, dialer)

	_, err := exec.Execute(context.Background(),
		Query{Text: query, Params: map[string]any{"id": int64(1918)}}, AccessModeWrite)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConnectivity, types.CodeOf(err))
	assert.Equal(t, 1, first.CallCount(query))
	assert.Equal(t, 0, second.CallCount(query))
	assert.False(t, mgr.Status().Connected, "faulted handle is discarded")
}

func TestExecutor_WriteRetriedWhenEnabled(t *testing.T) {
	query := "CREATE (n:Plant {id: $id})"
	first := NewMockDriver().On(query, MockResponse{Err: unavailable()})
	second := NewMockDriver().On(query, MockResponse{Result: &RawResult{Keys: []string{}, Counters: Counters{NodesCreated: 1}}})
	dialer := NewMockDialer(DialOutcome{Driver: first}, DialOutcome{Driver: second})
	exec, _ := newTestExecutor(t, dialer, func(c *Config) { c.RetryWrites = true })

	res, err := exec.Execute(context.Background(),
		Query{Text: query, Params: map[string]any{"id": int64(1918)}}, AccessModeWrite)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Counters.NodesCreated)
	assert.Equal(t, AccessModeWrite, second.Calls()[0].Mode)
}

func TestExecutor_UnclassifiedErrorIsUnknown(t *testing.T) {
	driver := NewMockDriver().On(countQuery, MockResponse{Err: errors.New("something odd")})
	exec, _ := newTestExecutor(t, NewMockDialer(DialOutcome{Driver: driver}))

	res, err := exec.Execute(context.Background(), Query{Text: countQuery}, AccessModeRead)

	assert.Nil(t, res)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUnknown, types.CodeOf(err))
	assert.Equal(t, 1, driver.CallCount(countQuery))
}

func TestExecutor_StoreTimeoutIsConnectivityFault(t *testing.T) {
	first := NewMockDriver().On(countQuery, MockResponse{Block: true})
	second := NewMockDriver().On(countQuery, MockResponse{Block: true})
	dialer := NewMockDialer(DialOutcome{Driver: first}, DialOutcome{Driver: second})
	exec, _ := newTestExecutor(t, dialer, func(c *Config) { c.QueryTimeout = 20 * time.Millisecond })

	_, err := exec.Execute(context.Background(), Query{Text: countQuery}, AccessModeRead)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConnectivity, types.CodeOf(err))
	assert.Equal(t, 1, first.CallCount(countQuery))
	assert.Equal(t, 1, second.CallCount(countQuery))
}

func TestExecutor_CancellationIsNotRetried(t *testing.T) {
	driver := NewMockDriver().On(countQuery, MockResponse{Block: true})
	dialer := NewMockDialer(DialOutcome{Driver: driver})
	exec, _ := newTestExecutor(t, dialer)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := exec.Execute(ctx, Query{Text: countQuery}, AccessModeRead)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeCancelled, types.CodeOf(err))
	assert.Equal(t, 1, driver.CallCount(countQuery))
	assert.Equal(t, 1, dialer.Dials())
}

func TestExecutor_RejectsInvalidInputBeforeBackend(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		code  types.ErrorCode
	}{
		{"empty query", Query{Text: "   "}, types.ErrCodeQuery},
		{"function parameter", Query{Text: countQuery, Params: map[string]any{"f": func() {}}}, types.ErrCodeValidation},
		{"channel in list", Query{Text: countQuery, Params: map[string]any{"l": []any{1, make(chan int)}}}, types.ErrCodeValidation},
		{"non-string map key", Query{Text: countQuery, Params: map[string]any{"m": map[int]string{1: "a"}}}, types.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := NewMockDriver()
			exec, _ := newTestExecutor(t, NewMockDialer(DialOutcome{Driver: driver}))

			_, err := exec.Execute(context.Background(), tt.query, AccessModeRead)

			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
			assert.Empty(t, driver.Calls())
		})
	}
}

func TestExecutor_AcceptsJSONParameters(t *testing.T) {
	query := "MATCH (p:Plant {id: $id}) RETURN p.name AS name"
	driver := NewMockDriver().On(query, MockResponse{Result: Rows([]string{"name"}, []any{"Ulsan"})})
	exec, _ := newTestExecutor(t, NewMockDialer(DialOutcome{Driver: driver}))

	params := map[string]any{
		"id":     int64(1918),
		"ratio":  0.5,
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"ok": true, "none": nil},
		"typed":  []string{"x"},
	}
	_, err := exec.Execute(context.Background(), Query{Text: query, Params: params}, AccessModeRead)

	require.NoError(t, err)
	require.Len(t, driver.Calls(), 1)
	assert.Equal(t, params, driver.Calls()[0].Params)
}

func TestExecutor_UnserializableValueFailsClosed(t *testing.T) {
	query := "RETURN weird"
	driver := NewMockDriver().On(query, MockResponse{Result: Rows([]string{"weird"}, []any{struct{}{}})})
	exec, _ := newTestExecutor(t, NewMockDialer(DialOutcome{Driver: driver}))

	res, err := exec.Execute(context.Background(), Query{Text: query}, AccessModeRead)

	assert.Nil(t, res)
	assert.Equal(t, types.ErrCodeSerialization, types.CodeOf(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"nil", nil, ""},
		{"cancelled", context.Canceled, types.ErrCodeCancelled},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), types.ErrCodeConnectivity},
		{"database unavailable", unavailable(), types.ErrCodeConnectivity},
		{"unauthorized", &neo4j.Neo4jError{Code: "Neo.ClientError.Security.Unauthorized"}, types.ErrCodeConnectivity},
		{"token expired", &neo4j.Neo4jError{Code: "Neo.ClientError.Security.TokenExpired"}, types.ErrCodeConnectivity},
		{"not a leader", &neo4j.Neo4jError{Code: "Neo.ClientError.Cluster.NotALeader"}, types.ErrCodeConnectivity},
		{"forbidden", &neo4j.Neo4jError{Code: "Neo.ClientError.Security.Forbidden"}, types.ErrCodeQuery},
		{"syntax", syntaxError(), types.ErrCodeQuery},
		{"constraint", &neo4j.Neo4jError{Code: "Neo.ClientError.Schema.ConstraintValidationFailed"}, types.ErrCodeQuery},
		{"type mismatch", &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.TypeError"}, types.ErrCodeQuery},
		{"database error", &neo4j.Neo4jError{Code: "Neo.DatabaseError.General.UnknownError"}, types.ErrCodeUnknown},
		{"eof", io.EOF, types.ErrCodeConnectivity},
		{"net op", &net.OpError{Op: "dial", Err: errors.New("refused")}, types.ErrCodeConnectivity},
		{"coded", NewQueryError("bad", nil), types.ErrCodeQuery},
		{"plain", errors.New("mystery"), types.ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestCounters_Summary(t *testing.T) {
	assert.Empty(t, Counters{}.Summary())
	assert.Equal(t, "nodes created: 2, properties set: 4",
		Counters{NodesCreated: 2, PropertiesSet: 4}.Summary())
	assert.Equal(t, "relationships deleted: 1, labels removed: 3",
		Counters{RelationshipsDeleted: 1, LabelsRemoved: 3}.Summary())
}
