package telemetry

import (
	"context"
	"fmt"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/obddash"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	QueryCount          metric.Int64Counter
	QueryDuration       metric.Float64Histogram
	QueryErrors         metric.Int64Counter
	CacheHits           metric.Int64Counter
	CacheMisses         metric.Int64Counter
	TransactionDuration metric.Float64Histogram
	Rollbacks           metric.Int64Counter
	ToolDuration        metric.Float64Histogram

	meter metric.Meter
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	meter := noop.NewMeterProvider().Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	queryCount, _ := meter.Int64Counter("obddash.query.count",
		metric.WithDescription("Total number of SQL queries executed against the pool"),
	)
	queryDuration, _ := meter.Float64Histogram("obddash.query.duration",
		metric.WithDescription("SQL query execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	queryErrors, _ := meter.Int64Counter("obddash.query.errors",
		metric.WithDescription("Total number of failed SQL queries"),
	)
	cacheHits, _ := meter.Int64Counter("obddash.cache.hits",
		metric.WithDescription("Query results served from the result cache"),
	)
	cacheMisses, _ := meter.Int64Counter("obddash.cache.misses",
		metric.WithDescription("Cacheable queries that had to hit the database"),
	)
	txDuration, _ := meter.Float64Histogram("obddash.transaction.duration",
		metric.WithDescription("Transaction duration in milliseconds, including rollback"),
		metric.WithUnit("ms"),
	)
	rollbacks, _ := meter.Int64Counter("obddash.transaction.rollbacks",
		metric.WithDescription("Total number of rolled back transactions"),
	)
	toolDuration, _ := meter.Float64Histogram("obddash.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		QueryCount:          queryCount,
		QueryDuration:       queryDuration,
		QueryErrors:         queryErrors,
		CacheHits:           cacheHits,
		CacheMisses:         cacheMisses,
		TransactionDuration: txDuration,
		Rollbacks:           rollbacks,
		ToolDuration:        toolDuration,
		meter:               meter,
	}
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, ms float64) {
	i.QueryDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementQueryCount(ctx context.Context) {
	i.QueryCount.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.QueryErrors.Add(ctx, 1)
}

func (i *Instruments) IncrementCacheHits(ctx context.Context) {
	i.CacheHits.Add(ctx, 1)
}

func (i *Instruments) IncrementCacheMisses(ctx context.Context) {
	i.CacheMisses.Add(ctx, 1)
}

func (i *Instruments) RecordTransactionDuration(ctx context.Context, ms float64) {
	i.TransactionDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementRollbacks(ctx context.Context) {
	i.Rollbacks.Add(ctx, 1)
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}

// RegisterPoolMetrics exports connection pool occupancy as observable gauges
// read from stats on every collection.
func (i *Instruments) RegisterPoolMetrics(stats func() domain.PoolStats) (metric.Registration, error) {
	total, err := i.meter.Int64ObservableGauge("obddash.pool.connections.total",
		metric.WithDescription("Open connections in the pool"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pool total gauge: %w", err)
	}
	acquired, err := i.meter.Int64ObservableGauge("obddash.pool.connections.acquired",
		metric.WithDescription("Connections currently checked out"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pool acquired gauge: %w", err)
	}
	idle, err := i.meter.Int64ObservableGauge("obddash.pool.connections.idle",
		metric.WithDescription("Idle connections ready for reuse"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pool idle gauge: %w", err)
	}

	reg, err := i.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(total, int64(s.TotalConns))
		o.ObserveInt64(acquired, int64(s.AcquiredConns))
		o.ObserveInt64(idle, int64(s.IdleConns))
		return nil
	}, total, acquired, idle)
	if err != nil {
		return nil, fmt.Errorf("registering pool callback: %w", err)
	}
	return reg, nil
}
