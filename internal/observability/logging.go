package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/barabonda/linkbrain/internal/config"
	"github.com/barabonda/linkbrain/internal/types"
)

// Redacted replaces the value of a sensitive attribute.
const Redacted = "[REDACTED]"

// sensitiveFields are matched after lowercasing and dropping '_' and '-'.
var sensitiveFields = map[string]bool{
	"password":      true,
	"apikey":        true,
	"token":         true,
	"secret":        true,
	"authorization": true,
	"credential":    true,
	"credentials":   true,
}

// NewLogger builds the process logger from the logging section. Records
// carry trace correlation and are redacted by a TracedHandler.
func NewLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = NewJSONHandler(w, level)
	case "text", "":
		handler = NewTextHandler(w, level)
	default:
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unsupported log format %q", cfg.Format))
	}
	return slog.New(NewTracedHandler(handler)), nil
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty is info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unsupported log level %q", level))
	}
}

// NewJSONHandler creates a new JSON log handler with the specified output and level.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// NewTextHandler creates a new text log handler with the specified output and level.
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// TracedHandler decorates records with trace_id and span_id from the span
// in the logging context, and redacts sensitive attributes. Debug records
// keep their values; info and above are redacted. Attributes bound through
// Logger.With are always redacted.
type TracedHandler struct {
	next slog.Handler
}

// NewTracedHandler wraps next.
func NewTracedHandler(next slog.Handler) *TracedHandler {
	return &TracedHandler{next: next}
}

// Enabled reports whether the wrapped handler handles level.
func (h *TracedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle adds trace correlation, redacts, and forwards r.
func (h *TracedHandler) Handle(ctx context.Context, r slog.Record) error {
	redact := r.Level >= slog.LevelInfo

	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		if redact {
			a = redactAttr(a)
		}
		out.AddAttrs(a)
		return true
	})

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, out)
}

// WithAttrs returns a handler with redacted attrs bound.
func (h *TracedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &TracedHandler{next: h.next.WithAttrs(redacted)}
}

// WithGroup returns a handler that nests later attributes under name.
func (h *TracedHandler) WithGroup(name string) slog.Handler {
	return &TracedHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		redacted := make([]any, len(group))
		for i, member := range group {
			redacted[i] = redactAttr(member)
		}
		return slog.Group(a.Key, redacted...)
	}
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// IsSensitiveKey reports whether values logged under key are redacted.
func IsSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(key))
	return sensitiveFields[normalized]
}
