package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// AccessMode selects read or write routing for a query.
type AccessMode int

const (
	AccessModeRead AccessMode = iota
	AccessModeWrite
)

// String returns the string representation of the AccessMode.
func (m AccessMode) String() string {
	if m == AccessModeWrite {
		return "write"
	}
	return "read"
}

// Counters reports the side effects of a query.
type Counters struct {
	NodesCreated         int `json:"nodesCreated,omitempty"`
	NodesDeleted         int `json:"nodesDeleted,omitempty"`
	RelationshipsCreated int `json:"relationshipsCreated,omitempty"`
	RelationshipsDeleted int `json:"relationshipsDeleted,omitempty"`
	PropertiesSet        int `json:"propertiesSet,omitempty"`
	LabelsAdded          int `json:"labelsAdded,omitempty"`
	LabelsRemoved        int `json:"labelsRemoved,omitempty"`
}

// Summary lists the non-zero counters in a fixed order, for example
// "nodes created: 2, properties set: 4". It is empty for reads.
func (c Counters) Summary() string {
	fields := []struct {
		name string
		n    int
	}{
		{"nodes created", c.NodesCreated},
		{"nodes deleted", c.NodesDeleted},
		{"relationships created", c.RelationshipsCreated},
		{"relationships deleted", c.RelationshipsDeleted},
		{"properties set", c.PropertiesSet},
		{"labels added", c.LabelsAdded},
		{"labels removed", c.LabelsRemoved},
	}

	var parts []string
	for _, f := range fields {
		if f.n != 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", f.name, f.n))
		}
	}
	return strings.Join(parts, ", ")
}

// RawResult is a fully materialized, not yet normalized query result.
type RawResult struct {
	Keys     []string
	Records  [][]any
	Counters Counters
}

// Driver is the minimal store surface the ConnectionManager needs.
// Implementations must be safe for concurrent use; each Run uses its own session.
type Driver interface {
	// Run executes query and returns every record before returning.
	Run(ctx context.Context, query string, params map[string]any, mode AccessMode) (*RawResult, error)

	// Close releases the driver and its pool.
	Close(ctx context.Context) error
}

// Dialer opens a new Driver for cfg. It must not block longer than ctx allows.
type Dialer func(ctx context.Context, cfg Config) (Driver, error)

// neo4jDriver adapts neo4j.DriverWithContext to Driver.
type neo4jDriver struct {
	driver   neo4j.DriverWithContext
	database string
}

// DialNeo4j opens a Neo4j driver. Liveness is verified by the caller.
func DialNeo4j(_ context.Context, cfg Config) (Driver, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.MaxConnectionLifetime > 0 {
			c.MaxConnectionLifetime = cfg.MaxConnectionLifetime
		}
		c.SocketConnectTimeout = cfg.ConnectTimeout
		c.ConnectionAcquisitionTimeout = cfg.ConnectTimeout
	})
	if err != nil {
		return nil, err
	}

	return &neo4jDriver{driver: driver, database: cfg.Database}, nil
}

// Run uses an auto-commit transaction so the driver's managed-transaction
// retries never stack on top of the executor's single retry.
func (d *neo4jDriver) Run(ctx context.Context, query string, params map[string]any, mode AccessMode) (*RawResult, error) {
	accessMode := neo4j.AccessModeRead
	if mode == AccessModeWrite {
		accessMode = neo4j.AccessModeWrite
	}

	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: d.database,
		AccessMode:   accessMode,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	keys, err := result.Keys()
	if err != nil {
		return nil, err
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return nil, err
	}

	raw := &RawResult{
		Keys:    keys,
		Records: make([][]any, 0, len(records)),
	}
	for _, record := range records {
		raw.Records = append(raw.Records, record.Values)
	}

	if summary != nil && summary.Counters() != nil {
		counters := summary.Counters()
		raw.Counters = Counters{
			NodesCreated:         counters.NodesCreated(),
			NodesDeleted:         counters.NodesDeleted(),
			RelationshipsCreated: counters.RelationshipsCreated(),
			RelationshipsDeleted: counters.RelationshipsDeleted(),
			PropertiesSet:        counters.PropertiesSet(),
			LabelsAdded:          counters.LabelsAdded(),
			LabelsRemoved:        counters.LabelsRemoved(),
		}
	}

	return raw, nil
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}
