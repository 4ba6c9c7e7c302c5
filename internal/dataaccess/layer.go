// Package dataaccess is the single entry point the dashboard uses to reach
// the database: queries, transactions, the result cache and the diagnostic
// operation log.
package dataaccess

import (
	"context"
	"log/slog"
	"time"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/guillermoBallester/obddash/internal/core/port"
	"github.com/guillermoBallester/obddash/internal/core/service"
	"go.opentelemetry.io/otel/trace"
)

// LogStore is the read side of the diagnostic operation log.
type LogStore interface {
	Entries() []domain.LogEntry
	Clear()
}

// Deps are the collaborators a Layer is built from.
type Deps struct {
	Pool         port.ConnectionPool
	Cache        port.ResultCache
	Logs         LogStore
	Recorder     port.OpRecorder
	Logger       *slog.Logger
	Tracer       trace.Tracer
	Inst         port.Instrumentation
	QueryTimeout time.Duration
}

// Layer bundles the pool, cache and log behind the operations the dashboard
// calls. It is constructed once and shared.
type Layer struct {
	pool     port.ConnectionPool
	cache    port.ResultCache
	logs     LogStore
	recorder port.OpRecorder
	logger   *slog.Logger

	queries *service.QueryService
	txs     *service.TransactionService
}

func New(d Deps) *Layer {
	return &Layer{
		pool:     d.Pool,
		cache:    d.Cache,
		logs:     d.Logs,
		recorder: d.Recorder,
		logger:   d.Logger,
		queries:  service.NewQueryService(d.Pool, d.Cache, d.Recorder, d.Logger, d.Tracer, d.Inst, d.QueryTimeout),
		txs:      service.NewTransactionService(d.Pool, d.Recorder, d.Logger, d.Tracer, d.Inst),
	}
}

// Queries exposes the query executor for services layered on top of it.
func (l *Layer) Queries() *service.QueryService {
	return l.queries
}

func (l *Layer) ExecuteQuery(ctx context.Context, query string, params []any, opts domain.QueryOptions) (domain.ResultSet, error) {
	return l.queries.ExecuteQuery(ctx, query, params, opts)
}

func (l *Layer) ExecuteTransaction(ctx context.Context, statements []domain.Statement, opts domain.TransactionOptions) ([]domain.ResultSet, error) {
	return l.txs.ExecuteTransaction(ctx, statements, opts)
}

// GetConnection checks out a connection for manual transaction control.
// The caller must Release it.
func (l *Layer) GetConnection(ctx context.Context) (port.Conn, error) {
	start := time.Now()
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		l.recorder.Record(ctx, domain.NewLogEntry(domain.OpConnection, start, false, err.Error()))
		return nil, err
	}
	return conn, nil
}

// ClearQueryCache drops every cached result.
func (l *Layer) ClearQueryCache(ctx context.Context) {
	start := time.Now()
	n := l.cache.Len()
	l.cache.Clear()
	l.recorder.Record(ctx, domain.NewLogEntry(domain.OpCache, start, true, "Query cache cleared"))
	l.logger.InfoContext(ctx, "query cache cleared", slog.Int("cache.entries", n))
}

// CloseConnectionPool shuts the pool down. The next query recreates it.
func (l *Layer) CloseConnectionPool(ctx context.Context) error {
	return l.pool.Close(ctx)
}

// DBLogs returns the diagnostic log, newest first.
func (l *Layer) DBLogs() []domain.LogEntry {
	return l.logs.Entries()
}

// ClearDBLogs empties the diagnostic log. Clearing is not itself logged.
func (l *Layer) ClearDBLogs() {
	l.logs.Clear()
}

func (l *Layer) PoolStats() domain.PoolStats {
	return l.pool.Stats()
}
