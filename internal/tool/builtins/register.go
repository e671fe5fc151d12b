// Package builtins provides the graph tools every linkbrain registry serves.
package builtins

import (
	"errors"

	"github.com/barabonda/linkbrain/internal/graph"
	"github.com/barabonda/linkbrain/internal/tool"
)

// GraphToolsConfig holds the graph components backing the builtin tools.
type GraphToolsConfig struct {
	// Runner executes read_cypher and write_cypher. Required.
	Runner graph.QueryRunner

	// Schema serves get_schema and get_node_counts. Optional.
	Schema SchemaSource

	// Connection serves check_connection. Optional.
	Connection ConnectionChecker

	// ReadOnly skips write_cypher.
	ReadOnly bool
}

// RegisterGraphTools registers the graph tools with reg. Tools whose
// dependency is missing are skipped. All registration errors are joined.
func RegisterGraphTools(reg *tool.Registry, cfg GraphToolsConfig) error {
	if cfg.Runner == nil {
		return errors.New("graph tools require a query runner")
	}

	var errs []error
	register := func(desc tool.Descriptor, h tool.Handler) {
		if err := reg.Register(desc, h); err != nil {
			errs = append(errs, err)
		}
	}

	register(readCypherDescriptor(), cypherHandler(cfg.Runner, graph.AccessModeRead))
	if !cfg.ReadOnly {
		register(writeCypherDescriptor(), cypherHandler(cfg.Runner, graph.AccessModeWrite))
	}
	if cfg.Schema != nil {
		register(getSchemaDescriptor(), schemaHandler(cfg.Schema))
		register(getNodeCountsDescriptor(), nodeCountsHandler(cfg.Schema))
	}
	if cfg.Connection != nil {
		register(checkConnectionDescriptor(), connectionHandler(cfg.Connection))
	}

	return errors.Join(errs...)
}

// GraphToolNames returns the names of all graph tools.
func GraphToolNames() []string {
	return []string{
		ReadCypherTool,
		WriteCypherTool,
		GetSchemaTool,
		GetNodeCountsTool,
		CheckConnectionTool,
	}
}
