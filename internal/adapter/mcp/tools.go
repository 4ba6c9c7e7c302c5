package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "obddash"

// Diagnostics is the data access surface the tools operate on.
type Diagnostics interface {
	DBLogs() []domain.LogEntry
	ClearDBLogs()
	ClearQueryCache(ctx context.Context)
	PoolStats() domain.PoolStats
}

// Stats runs the named dashboard queries.
type Stats interface {
	Names() []string
	Run(ctx context.Context, name string, refresh bool) (domain.ResultSet, error)
}

// Tool descriptions
const (
	descGetDBLogs = "Return the recent database operation log, newest first. " +
		"Each entry has a timestamp, operation (CONNECTION_POOL, CONNECTION, QUERY, QUERY_CACHE, TRANSACTION, CACHE), " +
		"success flag, duration in milliseconds and a message. Failed operations are always present; " +
		"successful ones only when the caller asked for logging."

	descGetDBLogsLimit = "Maximum number of entries to return (default: all retained entries)"

	descGetDBLogsFailures = "Only return failed operations"

	descClearDBLogs = "Discard every entry of the database operation log."

	descClearQueryCache = "Drop every cached query result so the next dashboard request reads fresh data."

	descPoolStats = "Report connection pool occupancy: whether the pool exists, its limit, " +
		"open, checked-out and idle connections, and acquisition counters."

	descRunQuery = "Run a named dashboard query and return its result set. " +
		"Results are served from the cache while fresh."

	descRunQueryRefresh = "Bypass the cached value and store the fresh result. Defaults to false."
)

func RegisterTools(s *server.MCPServer, diag Diagnostics, stats Stats) {
	s.AddTool(
		mcp.NewTool("get_db_logs",
			mcp.WithDescription(descGetDBLogs),
			mcp.WithNumber("limit",
				mcp.Description(descGetDBLogsLimit),
			),
			mcp.WithBoolean("failures_only",
				mcp.Description(descGetDBLogsFailures),
			),
		),
		getDBLogsHandler(diag),
	)

	s.AddTool(
		mcp.NewTool("clear_db_logs",
			mcp.WithDescription(descClearDBLogs),
		),
		clearDBLogsHandler(diag),
	)

	s.AddTool(
		mcp.NewTool("clear_query_cache",
			mcp.WithDescription(descClearQueryCache),
		),
		clearQueryCacheHandler(diag),
	)

	s.AddTool(
		mcp.NewTool("pool_stats",
			mcp.WithDescription(descPoolStats),
		),
		poolStatsHandler(diag),
	)

	if stats != nil {
		names := stats.Names()
		s.AddTool(
			mcp.NewTool("run_dashboard_query",
				mcp.WithDescription(descRunQuery+" Available: "+strings.Join(names, ", ")+"."),
				mcp.WithString("name",
					mcp.Required(),
					mcp.Description("Name of the dashboard query"),
				),
				mcp.WithBoolean("refresh",
					mcp.Description(descRunQueryRefresh),
				),
			),
			runQueryHandler(stats),
		)
	}
}

func getDBLogsHandler(diag Diagnostics) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries := diag.DBLogs()

		if failuresOnly, _ := request.GetArguments()["failures_only"].(bool); failuresOnly {
			failed := make([]domain.LogEntry, 0, len(entries))
			for _, e := range entries {
				if !e.Success {
					failed = append(failed, e)
				}
			}
			entries = failed
		}

		if limit, ok := request.GetArguments()["limit"].(float64); ok {
			if limit < 0 {
				return mcp.NewToolResultError("limit must not be negative"), nil
			}
			if limit < float64(len(entries)) {
				entries = entries[:int(limit)]
			}
		}

		return jsonResult(entries)
	}
}

func clearDBLogsHandler(diag Diagnostics) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		diag.ClearDBLogs()
		return mcp.NewToolResultText("database operation log cleared"), nil
	}
}

func clearQueryCacheHandler(diag Diagnostics) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		diag.ClearQueryCache(ctx)
		return mcp.NewToolResultText("query cache cleared"), nil
	}
}

func poolStatsHandler(diag Diagnostics) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(diag.PoolStats())
	}
}

func runQueryHandler(stats Stats) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["name"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		refresh, _ := request.GetArguments()["refresh"].(bool)

		rs, err := stats.Run(ctx, name, refresh)
		if errors.Is(err, domain.ErrUnknownQuery) {
			return mcp.NewToolResultError(fmt.Sprintf("%v (available: %s)", err, strings.Join(stats.Names(), ", "))), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}

		return jsonResult(rs)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
