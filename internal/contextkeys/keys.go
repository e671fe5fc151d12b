// Package contextkeys defines the context values shared between the agent
// loop and the tool layer, which cannot import each other.
package contextkeys

import "context"

// Key is the type for all linkbrain context keys.
type Key string

const (
	// RunID stores the id of the agent run that issued a tool call.
	RunID Key = "linkbrain.run_id"

	// AgentName stores the name of the agent running the loop.
	AgentName Key = "linkbrain.agent_name"
)

// WithRun returns a context carrying the run id and agent name.
func WithRun(ctx context.Context, runID, agentName string) context.Context {
	ctx = context.WithValue(ctx, RunID, runID)
	return context.WithValue(ctx, AgentName, agentName)
}

// GetRunID retrieves the run id from context.
// Returns empty string if not set.
func GetRunID(ctx context.Context) string {
	if v, ok := ctx.Value(RunID).(string); ok {
		return v
	}
	return ""
}

// GetAgentName retrieves the agent name from context.
// Returns empty string if not set.
func GetAgentName(ctx context.Context) string {
	if v, ok := ctx.Value(AgentName).(string); ok {
		return v
	}
	return ""
}
