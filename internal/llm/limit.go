package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/barabonda/linkbrain/internal/types"
)

const tracerName = "github.com/barabonda/linkbrain/internal/llm"

// GuardedProvider bounds every call of the wrapped Provider with a timeout
// and, optionally, a shared token-bucket rate limit.
type GuardedProvider struct {
	inner   Provider
	timeout time.Duration
	limiter *rate.Limiter
	tracer  trace.Tracer
}

// Guard wraps p. A zero timeout leaves calls unbounded; requestsPerSecond
// of 0 disables rate limiting.
func Guard(p Provider, timeout time.Duration, requestsPerSecond float64, burst int) *GuardedProvider {
	g := &GuardedProvider{
		inner:   p,
		timeout: timeout,
		tracer:  otel.Tracer(tracerName),
	}
	if requestsPerSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return g
}

// GuardFromConfig wraps p using the timeout and rate settings of cfg.
func GuardFromConfig(p Provider, cfg ProviderConfig) *GuardedProvider {
	return Guard(p, cfg.Timeout, cfg.RequestsPerSecond, cfg.Burst)
}

// Name returns the wrapped provider's name.
func (g *GuardedProvider) Name() string {
	return g.inner.Name()
}

// CompleteWithTools waits for a rate token, then calls the wrapped provider
// under the timeout. Errors are translated to LLM error codes.
func (g *GuardedProvider) CompleteWithTools(ctx context.Context, req CompletionRequest, tools []ToolDef) (*CompletionResponse, error) {
	ctx, span := g.tracer.Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", g.inner.Name()),
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.messages", len(req.Messages)),
			attribute.Int("llm.tools", len(tools)),
		))
	defer span.End()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				err = types.WrapError(types.ErrCodeCancelled, "model call cancelled while rate limited", ctx.Err())
			} else {
				err = types.WrapRetryableError(ErrProviderRateLimited, "rate limit wait exceeds deadline", err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.inner.CompleteWithTools(callCtx, req, tools)
	if err != nil {
		if ctx.Err() != nil {
			err = types.WrapError(types.ErrCodeCancelled, "model call cancelled", ctx.Err())
		} else {
			err = TranslateError(g.inner.Name(), err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("llm.finish_reason", string(resp.FinishReason)),
		attribute.Int("llm.tool_calls", len(resp.Message.ToolCalls)),
		attribute.Int("llm.total_tokens", resp.Usage.TotalTokens),
	)
	return resp, nil
}
