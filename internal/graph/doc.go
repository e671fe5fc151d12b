// Package graph provides resilient access to a Neo4j-compatible graph store.
//
// ConnectionManager owns the single live driver handle, verifies it with a
// liveness probe and replaces it when it dies. Executor runs Cypher through
// the manager, materializes and normalizes every row, and maps backend
// failures onto the connectivity/query/serialization/unknown taxonomy with
// at most one retry on connectivity faults. Introspector assembles a
// best-effort schema snapshot from metadata procedures.
//
// Basic usage:
//
//	conn, err := graph.NewConnectionManager(graph.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer conn.Disconnect(ctx)
//
//	exec := graph.NewExecutor(conn)
//	res, err := exec.Execute(ctx, graph.Query{Text: "MATCH (n) RETURN count(n) AS total"}, graph.AccessModeRead)
package graph
