package port

import (
	"context"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

// OpRecorder receives every diagnostic log entry produced by the data layer.
type OpRecorder interface {
	Record(ctx context.Context, entry domain.LogEntry)
}

// AuditSink persists diagnostic entries outside the process.
type AuditSink interface {
	Write(ctx context.Context, entry domain.LogEntry)
	Close() error
}

// NoopAuditor discards all entries.
type NoopAuditor struct{}

func (NoopAuditor) Write(context.Context, domain.LogEntry) {}
func (NoopAuditor) Close() error                           { return nil }
