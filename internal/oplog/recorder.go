package oplog

import (
	"context"
	"log/slog"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/guillermoBallester/obddash/internal/core/port"
)

// Recorder appends entries to the Store and mirrors them to the structured
// logger and an optional audit sink.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	sink   port.AuditSink
}

func NewRecorder(store *Store, logger *slog.Logger, sink port.AuditSink) *Recorder {
	if sink == nil {
		sink = port.NoopAuditor{}
	}
	return &Recorder{store: store, logger: logger, sink: sink}
}

func (r *Recorder) Record(ctx context.Context, entry domain.LogEntry) {
	r.store.Append(entry)

	level := slog.LevelInfo
	if !entry.Success {
		level = slog.LevelWarn
	}
	r.logger.LogAttrs(ctx, level, "db operation",
		slog.String("db.operation.name", string(entry.Operation)),
		slog.Bool("success", entry.Success),
		slog.Int64("duration_ms", entry.Duration),
		slog.String("message", entry.Message),
	)

	r.sink.Write(ctx, entry)
}

func (r *Recorder) Store() *Store {
	return r.store
}
