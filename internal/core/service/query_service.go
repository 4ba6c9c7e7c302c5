package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/guillermoBallester/obddash/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// QueryService runs single parameterized statements with optional result
// caching. Failures are always recorded; successes only when asked.
type QueryService struct {
	pool         port.ConnectionPool
	cache        port.ResultCache
	recorder     port.OpRecorder
	logger       *slog.Logger
	tracer       trace.Tracer
	inst         port.Instrumentation
	queryTimeout time.Duration
}

func NewQueryService(pool port.ConnectionPool, cache port.ResultCache, recorder port.OpRecorder, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation, queryTimeout time.Duration) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &QueryService{
		pool:         pool,
		cache:        cache,
		recorder:     recorder,
		logger:       logger,
		tracer:       tracer,
		inst:         inst,
		queryTimeout: queryTimeout,
	}
}

// ExecuteQuery returns the cached result for opts.CacheKey when fresh, and
// otherwise runs query against the pool. With SkipCache the lookup is
// bypassed but the fresh result still replaces the cached one.
func (s *QueryService) ExecuteQuery(ctx context.Context, query string, params []any, opts domain.QueryOptions) (domain.ResultSet, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.ExecuteQuery",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", "query"),
			attribute.String("db.statement", query),
			attribute.String("cache.key", opts.CacheKey),
		),
	)
	defer span.End()

	start := time.Now()
	caching := opts.CacheKey != ""

	if caching && !opts.SkipCache {
		if cached, ok := s.cache.Get(opts.CacheKey); ok {
			s.inst.IncrementCacheHits(ctx)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			if opts.LogQuery {
				msg := domain.Describe(opts.Description, fmt.Sprintf("cache hit for %q (%d rows)", opts.CacheKey, cached.RowCount()))
				s.recorder.Record(ctx, domain.NewLogEntry(domain.OpQueryCache, start, true, msg))
			}
			return cached, nil
		}
		s.inst.IncrementCacheMisses(ctx)
	}

	execCtx := ctx
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	result, err := s.pool.Query(execCtx, query, params)
	s.inst.RecordQueryDuration(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		s.recorder.Record(ctx, domain.NewLogEntry(domain.OpQuery, start, false, domain.Describe(opts.Description, err.Error())))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		return domain.ResultSet{}, err
	}

	if caching {
		s.cache.Set(opts.CacheKey, result, opts.CacheTTL)
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", result.RowCount()))

	if opts.LogQuery {
		msg := domain.Describe(opts.Description, fmt.Sprintf("%d rows", result.RowCount()))
		s.recorder.Record(ctx, domain.NewLogEntry(domain.OpQuery, start, true, msg))
	}

	return result, nil
}
