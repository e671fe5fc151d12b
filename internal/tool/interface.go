package tool

import (
	"context"
	"encoding/json"
)

// Handler executes a tool. args has already been validated against the
// tool's schema; JSON numbers arrive as int64 when integral, else float64.
// The returned value must be JSON-serializable.
type Handler interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Invoker is the invocation surface agents depend on.
type Invoker interface {
	List() []Descriptor
	Invoke(ctx context.Context, name string, args json.RawMessage) Response
}
