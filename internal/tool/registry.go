package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/barabonda/linkbrain/internal/contextkeys"
	"github.com/barabonda/linkbrain/internal/types"
)

const tracerName = "github.com/barabonda/linkbrain/internal/tool"

type entry struct {
	desc    Descriptor
	handler Handler
	schema  *jsonschema.Schema
}

// Registry maps tool names to handlers. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*entry
	metrics map[string]*ToolMetrics

	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:   make(map[string]*entry),
		metrics: make(map[string]*ToolMetrics),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Registering an existing name replaces the previous
// descriptor and handler; metrics for the name are kept.
func (r *Registry) Register(desc Descriptor, handler Handler) error {
	if desc.Name == "" {
		return types.NewError(ErrToolInvalidDescriptor, "tool name cannot be empty")
	}
	if handler == nil {
		return types.NewError(ErrToolInvalidDescriptor, fmt.Sprintf("tool %q has no handler", desc.Name))
	}

	schema, err := compileSchema(desc)
	if err != nil {
		return types.WrapError(ErrToolInvalidDescriptor, fmt.Sprintf("tool %q has an invalid parameter schema", desc.Name), err)
	}

	r.mu.Lock()
	_, replaced := r.tools[desc.Name]
	r.tools[desc.Name] = &entry{desc: desc, handler: handler, schema: schema}
	if _, ok := r.metrics[desc.Name]; !ok {
		r.metrics[desc.Name] = &ToolMetrics{}
	}
	r.mu.Unlock()

	if replaced {
		r.logger.Info("tool replaced", "tool", desc.Name)
	} else {
		r.logger.Debug("tool registered", "tool", desc.Name)
	}
	return nil
}

// Unregister removes a tool.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return NewNotFoundError(name)
	}
	delete(r.tools, name)
	delete(r.metrics, name)
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// List returns all descriptors sorted by name, so the catalog shown to a
// model is stable across calls.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.tools))
	for _, e := range r.tools {
		descriptors = append(descriptors, e.desc)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// Subset returns a registry view limited to names. Unknown names are
// reported as an error.
func (r *Registry) Subset(names []string) (*Subset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.tools[name]; !ok {
			return nil, NewNotFoundError(name)
		}
		allowed[name] = true
	}
	return &Subset{registry: r, allowed: allowed}, nil
}

// Invoke validates args against the tool's schema and runs its handler.
// It never returns a Go error; every failure is encoded in the Response.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) Response {
	attrs := []attribute.KeyValue{attribute.String("tool.name", name)}
	if runID := contextkeys.GetRunID(ctx); runID != "" {
		attrs = append(attrs,
			attribute.String("agent.run_id", runID),
			attribute.String("agent.name", contextkeys.GetAgentName(ctx)))
	}
	ctx, span := r.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(attrs...))
	defer span.End()

	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		err := NewNotFoundError(name)
		span.SetStatus(codes.Error, err.Error())
		r.logger.WarnContext(ctx, "unknown tool invoked", "tool", name)
		return Failure(err)
	}

	start := time.Now()
	resp := r.invoke(ctx, e, args)
	duration := time.Since(start)

	r.mu.Lock()
	if m, ok := r.metrics[name]; ok {
		m.record(duration, resp.Success)
	}
	r.mu.Unlock()

	span.SetAttributes(attribute.Bool("tool.success", resp.Success))
	if !resp.Success {
		span.SetStatus(codes.Error, resp.Error)
		r.logger.DebugContext(ctx, "tool invocation failed", "tool", name, "code", string(resp.Code), "error", resp.Error,
			"run_id", contextkeys.GetRunID(ctx), "agent", contextkeys.GetAgentName(ctx))
	}
	return resp
}

func (r *Registry) invoke(ctx context.Context, e *entry, raw json.RawMessage) (resp Response) {
	args, err := decodeArgs(raw)
	if err != nil {
		return Failure(NewValidationError(e.desc.Name, err))
	}
	if e.schema != nil {
		if err := e.schema.Validate(any(args)); err != nil {
			return Failure(NewValidationError(e.desc.Name, err))
		}
	}
	resolveNumbers(args)

	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "tool handler panicked", "tool", e.desc.Name, "panic", p)
			resp = Failure(types.NewError(types.ErrCodeUnknown, fmt.Sprintf("tool %q panicked: %v", e.desc.Name, p)))
		}
	}()

	result, err := e.handler.Invoke(ctx, args)
	if err != nil {
		return Failure(err)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return Failure(types.WrapError(types.ErrCodeSerialization,
			fmt.Sprintf("result of tool %q is not serializable", e.desc.Name), err))
	}
	return Success(encoded)
}

// Metrics returns invocation statistics for name.
func (r *Registry) Metrics(name string) (ToolMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.metrics[name]
	if !ok {
		return ToolMetrics{}, NewNotFoundError(name)
	}
	return *m, nil
}

func compileSchema(desc Descriptor) (*jsonschema.Schema, error) {
	raw, err := desc.Schema()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	// Relative resource names resolve against the working directory.
	location := schemaLocation(desc.Name)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(location, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(location)
}

func schemaLocation(name string) string {
	return "mem://tools/" + url.PathEscape(name) + ".json"
}

// Subset restricts invocation to an allowed set of tools of a Registry.
type Subset struct {
	registry *Registry
	allowed  map[string]bool
}

// List returns the allowed descriptors still registered, sorted by name.
func (s *Subset) List() []Descriptor {
	all := s.registry.List()
	out := make([]Descriptor, 0, len(s.allowed))
	for _, d := range all {
		if s.allowed[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// Invoke runs name if it is allowed; otherwise the tool is reported missing.
func (s *Subset) Invoke(ctx context.Context, name string, args json.RawMessage) Response {
	if !s.allowed[name] {
		return Failure(NewNotFoundError(name))
	}
	return s.registry.Invoke(ctx, name, args)
}
