package builtins

import (
	"context"
	"fmt"

	"github.com/barabonda/linkbrain/internal/graph"
	"github.com/barabonda/linkbrain/internal/tool"
	"github.com/barabonda/linkbrain/internal/types"
)

// Built-in tool names.
const (
	ReadCypherTool      = "read_cypher"
	WriteCypherTool     = "write_cypher"
	GetSchemaTool       = "get_schema"
	GetNodeCountsTool   = "get_node_counts"
	CheckConnectionTool = "check_connection"
)

// SchemaSource provides schema snapshots and node counts.
type SchemaSource interface {
	Snapshot(ctx context.Context) (*graph.Snapshot, error)
	NodeCounts(ctx context.Context) ([]graph.LabelCount, error)
}

// ConnectionChecker verifies and reports the store connection.
type ConnectionChecker interface {
	EnsureLive(ctx context.Context) error
	Status() graph.ConnectionStatus
	Health(ctx context.Context) types.HealthStatus
}

var cypherParams = []tool.Parameter{
	{
		Name:        "query",
		Description: "Cypher query text. Use $name placeholders for values.",
		Types:       []string{"string"},
		Required:    true,
	},
	{
		Name:        "params",
		Description: "Query parameters as an object, or a JSON-encoded object string.",
		Types:       []string{"object", "string", "null"},
	},
}

func readCypherDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        ReadCypherTool,
		Description: "Run a read-only Cypher query against the graph database and return every result row.",
		Parameters:  cypherParams,
		Returns:     "array of row objects, columns in query order",
	}
}

func writeCypherDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        WriteCypherTool,
		Description: "Run a Cypher query that creates, updates or deletes graph data.",
		Parameters:  cypherParams,
		Returns:     "object with rows and update counters",
	}
}

func getSchemaDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        GetSchemaTool,
		Description: "Describe the graph schema: labels, relationship types, property keys and sampled properties per label.",
		Parameters:  []tool.Parameter{},
		Returns:     "{labels, relationshipTypes, propertyKeys, nodeSchema}",
	}
}

func getNodeCountsDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        GetNodeCountsTool,
		Description: "Count nodes grouped by label combination.",
		Parameters:  []tool.Parameter{},
		Returns:     "array of {labels, count}",
	}
}

func checkConnectionDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        CheckConnectionTool,
		Description: "Check whether the graph database is reachable, reconnecting if needed.",
		Parameters:  []tool.Parameter{},
		Returns:     "{connected, uri, state, message}",
	}
}

// cypherHandler runs the query argument in mode.
func cypherHandler(runner graph.QueryRunner, mode graph.AccessMode) tool.HandlerFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := tool.StringArg(args, "query")
		params, err := tool.ObjectArg(args, "params")
		if err != nil {
			return nil, err
		}

		res, err := runner.Execute(ctx, graph.Query{Text: query, Params: params}, mode)
		if err != nil {
			return nil, err
		}

		if mode == graph.AccessModeWrite {
			return writeResult{Rows: res.Rows, Counters: res.Counters}, nil
		}
		return res.Rows, nil
	}
}

type writeResult struct {
	Rows     []*graph.Row   `json:"rows"`
	Counters graph.Counters `json:"counters"`
}

func schemaHandler(source SchemaSource) tool.HandlerFunc {
	return func(ctx context.Context, _ map[string]any) (any, error) {
		return source.Snapshot(ctx)
	}
}

func nodeCountsHandler(source SchemaSource) tool.HandlerFunc {
	return func(ctx context.Context, _ map[string]any) (any, error) {
		return source.NodeCounts(ctx)
	}
}

type connectionReport struct {
	Connected bool                  `json:"connected"`
	URI       string                `json:"uri"`
	State     graph.ConnectionState `json:"state"`
	Health    types.HealthStatus    `json:"health"`
	Message   string                `json:"message"`
}

// connectionHandler recovers a dead handle if it can, then reports the
// probe result. A failed check is a successful report, not a tool error,
// unless the caller cancelled.
func connectionHandler(conn ConnectionChecker) tool.HandlerFunc {
	return func(ctx context.Context, _ map[string]any) (any, error) {
		err := conn.EnsureLive(ctx)
		if err != nil && types.IsCancelled(err) {
			return nil, err
		}

		health := conn.Health(ctx)
		status := conn.Status()
		report := connectionReport{
			Connected: health.IsHealthy(),
			URI:       status.URI,
			State:     status.State,
			Health:    health,
			Message:   health.Message,
		}
		if err != nil {
			report.Message = fmt.Sprintf("graph database unreachable: %v", err)
		}
		return report, nil
	}
}
