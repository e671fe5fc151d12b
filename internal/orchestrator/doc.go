// Package orchestrator routes a request among member agents.
//
// A Supervisor runs the same Awaiting-Model / Executing-Tool / Done loop as
// an agent, but the only tools it offers its model are hand-offs named
// transfer_to_<member>. Calling one runs that member's full loop on the
// user-visible history (plus the optional task argument) and feeds the
// member's final message back to the supervisor as a tool result. The run
// ends when the supervisor's model answers directly or its turn limit is
// reached.
//
// # Usage Example
//
//	team := agent.DefaultTeam(builtins.GraphToolNames())
//	sup, err := orchestrator.NewFromTeam(team, provider, registry,
//	    orchestrator.WithTurnLimit(cfg.Agent.SupervisorTurnLimit),
//	)
//	if err != nil {
//	    return err
//	}
//
//	result, err := sup.Run(ctx, "Which plants are connected to the Lyon site?")
//	if err != nil {
//	    return err // RUN_CANCELLED or MODEL_FAILED
//	}
//	fmt.Println(result.Answer())
//
// # Thread Safety
//
// A Supervisor is immutable after construction. Each Run owns its
// conversation and delegation record, so concurrent runs are safe.
package orchestrator
