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

const rollbackTimeout = 5 * time.Second

// TransactionService runs an ordered list of statements atomically on one
// connection.
type TransactionService struct {
	pool     port.ConnectionPool
	recorder port.OpRecorder
	logger   *slog.Logger
	tracer   trace.Tracer
	inst     port.Instrumentation
}

func NewTransactionService(pool port.ConnectionPool, recorder port.OpRecorder, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *TransactionService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &TransactionService{
		pool:     pool,
		recorder: recorder,
		logger:   logger,
		tracer:   tracer,
		inst:     inst,
	}
}

// ExecuteTransaction acquires a connection, begins, runs every statement in
// order and commits. Any failure rolls back and returns the original error.
// The connection is released on every path.
func (s *TransactionService) ExecuteTransaction(ctx context.Context, statements []domain.Statement, opts domain.TransactionOptions) ([]domain.ResultSet, error) {
	ctx, span := s.tracer.Start(ctx, "TransactionService.ExecuteTransaction",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", "transaction"),
			attribute.Int("db.statement.count", len(statements)),
		),
	)
	defer span.End()

	start := time.Now()
	results, err := s.run(ctx, statements)
	s.inst.RecordTransactionDuration(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		s.recorder.Record(ctx, domain.NewLogEntry(domain.OpTransaction, start, false, domain.Describe(opts.Description, err.Error())))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if opts.LogTransaction {
		msg := domain.Describe(opts.Description, fmt.Sprintf("%d statements committed", len(statements)))
		s.recorder.Record(ctx, domain.NewLogEntry(domain.OpTransaction, start, true, msg))
	}
	return results, nil
}

func (s *TransactionService) run(ctx context.Context, statements []domain.Statement) ([]domain.ResultSet, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]domain.ResultSet, 0, len(statements))
	for i, stmt := range statements {
		rs, err := tx.Query(ctx, stmt.Query, stmt.Params)
		if err != nil {
			s.rollback(ctx, tx)
			return nil, fmt.Errorf("statement %d of %d: %w", i+1, len(statements), err)
		}
		results = append(results, rs)
	}

	if err := tx.Commit(ctx); err != nil {
		s.rollback(ctx, tx)
		return nil, err
	}
	return results, nil
}

// rollback aborts tx. A rollback failure is logged and otherwise ignored so
// the caller sees the error that caused it.
func (s *TransactionService) rollback(ctx context.Context, tx port.Tx) {
	s.inst.IncrementRollbacks(ctx)

	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := tx.Rollback(rbCtx); err != nil {
		s.logger.WarnContext(ctx, "transaction rollback failed",
			slog.String("db.operation.name", "rollback"),
			slog.String("error.message", err.Error()),
		)
	}
}
