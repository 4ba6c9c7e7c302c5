package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ToolMetrics records tool call latency.
type ToolMetrics interface {
	RecordToolDuration(ctx context.Context, ms float64)
}

type toolCall struct {
	tool  string
	start time.Time
	span  trace.Span
}

// callTracker correlates the before and after hooks of one tools/call by
// request id.
type callTracker struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics ToolMetrics
	open    sync.Map // request id -> *toolCall
}

func (t *callTracker) begin(ctx context.Context, id any, req *mcp.CallToolRequest) {
	c := &toolCall{tool: req.Params.Name, start: time.Now()}
	if t.tracer != nil {
		_, c.span = t.tracer.Start(ctx, "mcp.tool.call "+c.tool,
			trace.WithAttributes(attribute.String("mcp.tool", c.tool)),
		)
	}
	t.open.Store(id, c)
}

// finish closes the call opened under id. failure is empty for a successful
// tool result. Calls that never reached begin are ignored.
func (t *callTracker) finish(ctx context.Context, id any, failure string) {
	v, ok := t.open.LoadAndDelete(id)
	if !ok {
		return
	}
	c := v.(*toolCall)
	elapsed := time.Since(c.start)

	attrs := []slog.Attr{
		slog.String("rpc.method", string(mcp.MethodToolsCall)),
		slog.String("mcp.tool", c.tool),
		slog.Duration("duration", elapsed),
		slog.Bool("error", failure != ""),
	}
	level := slog.LevelDebug
	if failure != "" {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error.message", failure))
	}
	t.logger.LogAttrs(ctx, level, "mcp tool call", attrs...)

	if t.metrics != nil {
		t.metrics.RecordToolDuration(ctx, float64(elapsed.Milliseconds()))
	}

	if c.span != nil {
		if failure != "" {
			c.span.SetStatus(codes.Error, failure)
		}
		c.span.End()
	}
}

// ToolCallHooks logs every tool call and, when tracer or metrics are set,
// wraps it in a span and records its latency. A tool result flagged IsError
// and a protocol error both count as failures.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, metrics ToolMetrics) *server.Hooks {
	t := &callTracker{logger: logger, tracer: tracer, metrics: metrics}
	hooks := &server.Hooks{}

	hooks.AddBeforeCallTool(t.begin)

	hooks.AddAfterCallTool(func(ctx context.Context, id any, _ *mcp.CallToolRequest, result any) {
		failure := ""
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			failure = "tool returned error"
		}
		t.finish(ctx, id, failure)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, _ any, err error) {
		if method != mcp.MethodToolsCall {
			return
		}
		t.finish(ctx, id, err.Error())
	})

	return hooks
}
