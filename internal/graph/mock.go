package graph

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockCall represents a recorded query on the mock driver.
type MockCall struct {
	Query     string
	Params    map[string]any
	Mode      AccessMode
	Timestamp time.Time
}

// MockResponse is a scripted outcome for one query.
type MockResponse struct {
	Result *RawResult
	Err    error
	// Block makes Run wait for the context to end and return its error,
	// simulating a store call that never answers.
	Block bool
}

// MockDriver is a scripted Driver for tests. Responses are consumed in
// order per query text; the last response for a query repeats. The
// liveness probe succeeds unless SetProbeError is used.
type MockDriver struct {
	mu        sync.Mutex
	responses map[string][]MockResponse
	probeErr  error
	calls     []MockCall
	closed    bool
}

// NewMockDriver creates a mock driver that answers only the liveness probe.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		responses: make(map[string][]MockResponse),
	}
}

// On scripts responses for query.
func (m *MockDriver) On(query string, responses ...MockResponse) *MockDriver {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[query] = append(m.responses[query], responses...)
	return m
}

// SetProbeError makes the liveness probe fail with err; nil restores it.
func (m *MockDriver) SetProbeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeErr = err
}

// Run implements Driver.
func (m *MockDriver) Run(ctx context.Context, query string, params map[string]any, mode AccessMode) (*RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New("driver closed")
	}

	if query == probeQuery {
		probeErr := m.probeErr
		m.mu.Unlock()
		if probeErr != nil {
			return nil, probeErr
		}
		return Rows([]string{"test"}, []any{int64(1)}), nil
	}

	m.calls = append(m.calls, MockCall{
		Query:     query,
		Params:    params,
		Mode:      mode,
		Timestamp: time.Now(),
	})

	var resp MockResponse
	queue := m.responses[query]
	switch {
	case len(queue) > 1:
		resp = queue[0]
		m.responses[query] = queue[1:]
	case len(queue) == 1:
		resp = queue[0]
	default:
		resp = MockResponse{Result: &RawResult{}}
	}
	m.mu.Unlock()

	if resp.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Result, nil
}

// Close implements Driver.
func (m *MockDriver) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns the recorded queries, excluding liveness probes.
func (m *MockDriver) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times query was run.
func (m *MockDriver) CallCount(query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Query == query {
			n++
		}
	}
	return n
}

// Rows builds a RawResult from column names and records.
func Rows(keys []string, records ...[]any) *RawResult {
	if records == nil {
		records = [][]any{}
	}
	return &RawResult{Keys: keys, Records: records}
}

// DialOutcome is one scripted result of MockDialer.Dial.
type DialOutcome struct {
	Driver *MockDriver
	Err    error
}

// MockDialer hands out scripted drivers. The last outcome repeats.
type MockDialer struct {
	mu       sync.Mutex
	outcomes []DialOutcome
	dials    int
}

// NewMockDialer creates a dialer returning outcomes in order.
func NewMockDialer(outcomes ...DialOutcome) *MockDialer {
	return &MockDialer{outcomes: outcomes}
}

// Dial implements Dialer.
func (d *MockDialer) Dial(ctx context.Context, cfg Config) (Driver, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if len(d.outcomes) == 0 {
		return nil, errors.New("no dial outcome scripted")
	}
	outcome := d.outcomes[0]
	if len(d.outcomes) > 1 {
		d.outcomes = d.outcomes[1:]
	}
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	return outcome.Driver, nil
}

// Dials returns how many times Dial was called.
func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
