// Package tool provides the named, schema-described operations agents and
// remote clients can invoke.
//
// A Registry maps tool names to handlers. Every handler is registered with a
// Descriptor whose parameter schema is compiled once and checked on each
// Invoke, before the handler runs, so malformed arguments never reach the
// graph store.
//
// # Usage Example
//
//	reg := tool.NewRegistry()
//	err := reg.Register(tool.Descriptor{
//	    Name:        "lookup",
//	    Description: "Look up a plant by id",
//	    Parameters: []tool.Parameter{
//	        {Name: "id", Types: []string{"integer"}, Required: true},
//	    },
//	}, tool.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
//	    return map[string]any{"id": args["id"]}, nil
//	}))
//
//	resp := reg.Invoke(ctx, "lookup", json.RawMessage(`{"id": 1918}`))
//	if !resp.Success {
//	    log.Printf("lookup failed: %s (%s)", resp.Error, resp.Code)
//	}
//
// # Response Envelope
//
// Invoke never returns a Go error. Failures are reported in the Response as
// {success: false, result: null, error: "...", code: "..."}, where code is
// one of the taxonomy codes in package types.
//
// # Thread Safety
//
// All registry operations are safe for concurrent use. Re-registering a name
// replaces the previous tool; in-flight invocations finish on the old handler.
package tool
