package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/barabonda/linkbrain/internal/types"
)

const (
	labelsQuery            = "CALL db.labels() YIELD label RETURN label"
	relationshipTypesQuery = "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType"
	propertyKeysQuery      = "CALL db.propertyKeys() YIELD propertyKey RETURN propertyKey"
	nodeCountsQuery        = "MATCH (n) RETURN labels(n) AS labels, count(n) AS count"

	// DefaultSampleNodes is how many nodes per label are inspected for property names.
	DefaultSampleNodes = 100
	// DefaultPropertyCap bounds the property names reported per label.
	DefaultPropertyCap = 20
)

// Snapshot is a best-effort description of the graph schema.
type Snapshot struct {
	Labels            []string            `json:"labels"`
	RelationshipTypes []string            `json:"relationshipTypes"`
	PropertyKeys      []string            `json:"propertyKeys"`
	NodeSchema        map[string][]string `json:"nodeSchema"`
	Errors            []SectionError      `json:"errors,omitempty"`
}

// SectionError records a snapshot section that could not be read.
type SectionError struct {
	Section string `json:"section"`
	Error   string `json:"error"`
}

// LabelCount is the number of nodes carrying an exact label combination.
type LabelCount struct {
	Labels string `json:"labels"`
	Count  int64  `json:"count"`
}

// Introspector builds schema snapshots. Snapshots are never cached.
type Introspector struct {
	runner      QueryRunner
	sampleNodes int
	propertyCap int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// IntrospectorOption configures an Introspector.
type IntrospectorOption func(*Introspector)

// WithSampling sets the per-label node sample and property-name cap.
func WithSampling(nodes, properties int) IntrospectorOption {
	return func(i *Introspector) {
		if nodes > 0 {
			i.sampleNodes = nodes
		}
		if properties > 0 {
			i.propertyCap = properties
		}
	}
}

// WithIntrospectorLogger sets the logger.
func WithIntrospectorLogger(logger *slog.Logger) IntrospectorOption {
	return func(i *Introspector) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewIntrospector creates an Introspector over runner.
func NewIntrospector(runner QueryRunner, opts ...IntrospectorOption) *Introspector {
	i := &Introspector{
		runner:      runner,
		sampleNodes: DefaultSampleNodes,
		propertyCap: DefaultPropertyCap,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Snapshot reads labels, relationship types, property keys and sampled
// per-label properties, sequentially. A failing section is left empty and
// recorded in Errors. The only error returned is cancellation.
func (i *Introspector) Snapshot(ctx context.Context) (*Snapshot, error) {
	ctx, span := i.tracer.Start(ctx, "graph.snapshot")
	defer span.End()

	snap := &Snapshot{
		Labels:            []string{},
		RelationshipTypes: []string{},
		PropertyKeys:      []string{},
		NodeSchema:        map[string][]string{},
	}

	sections := []struct {
		name   string
		query  string
		column string
		target *[]string
	}{
		{"labels", labelsQuery, "label", &snap.Labels},
		{"relationshipTypes", relationshipTypesQuery, "relationshipType", &snap.RelationshipTypes},
		{"propertyKeys", propertyKeysQuery, "propertyKey", &snap.PropertyKeys},
	}

	for _, section := range sections {
		values, err := i.column(ctx, Query{Text: section.query}, section.column)
		if err != nil {
			if types.IsCancelled(err) {
				return nil, err
			}
			snap.recordError(section.name, err)
			i.logger.Warn("schema section failed", "section", section.name, "error", err)
			continue
		}
		*section.target = values
	}

	for _, label := range snap.Labels {
		q := Query{
			Text: fmt.Sprintf("MATCH (n:%s) WITH n LIMIT $sample UNWIND keys(n) AS prop RETURN DISTINCT prop LIMIT $cap",
				QuoteIdentifier(label)),
			Params: map[string]any{
				"sample": int64(i.sampleNodes),
				"cap":    int64(i.propertyCap),
			},
		}
		props, err := i.column(ctx, q, "prop")
		if err != nil {
			if types.IsCancelled(err) {
				return nil, err
			}
			snap.NodeSchema[label] = []string{}
			snap.recordError("nodeSchema:"+label, err)
			i.logger.Warn("schema label sample failed", "label", label, "error", err)
			continue
		}
		snap.NodeSchema[label] = props
	}

	span.SetAttributes(
		attribute.Int("graph.labels", len(snap.Labels)),
		attribute.Int("graph.snapshot_errors", len(snap.Errors)),
	)
	return snap, nil
}

// NodeCounts returns node counts grouped by label combination. Nodes
// without labels are reported as "unlabeled".
func (i *Introspector) NodeCounts(ctx context.Context) ([]LabelCount, error) {
	res, err := i.runner.Execute(ctx, Query{Text: nodeCountsQuery}, AccessModeRead)
	if err != nil {
		return nil, err
	}

	counts := make([]LabelCount, 0, len(res.Rows))
	for _, row := range res.Rows {
		labelsValue, _ := row.Get("labels")
		countValue, _ := row.Get("count")

		var labels []string
		if list, ok := labelsValue.([]any); ok {
			for _, l := range list {
				if s, ok := l.(string); ok {
					labels = append(labels, s)
				}
			}
		}
		name := "unlabeled"
		if len(labels) > 0 {
			name = strings.Join(labels, ", ")
		}

		count, _ := countValue.(int64)
		counts = append(counts, LabelCount{Labels: name, Count: count})
	}
	return counts, nil
}

// column runs q and collects the distinct string values of one column,
// preserving first-seen order.
func (i *Introspector) column(ctx context.Context, q Query, column string) ([]string, error) {
	res, err := i.runner.Execute(ctx, q, AccessModeRead)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(res.Rows))
	values := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		v, ok := row.Get(column)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		values = append(values, s)
	}
	return values, nil
}

func (s *Snapshot) recordError(section string, err error) {
	s.Errors = append(s.Errors, SectionError{Section: section, Error: err.Error()})
}

// QuoteIdentifier backtick-quotes a label or relationship type for Cypher.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
