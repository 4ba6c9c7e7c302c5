package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with the diagnostics tools and call hooks.
// tracer and metrics may be nil.
func NewServer(version string, diag Diagnostics, stats Stats, logger *slog.Logger, tracer trace.Tracer, metrics ToolMetrics) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(ToolCallHooks(logger, tracer, metrics)),
	)

	RegisterTools(s, diag, stats)

	return s
}
