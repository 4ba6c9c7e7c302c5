package domain

import "time"

// Operation identifies the kind of database activity a LogEntry describes.
type Operation string

const (
	OpConnectionPool Operation = "CONNECTION_POOL"
	OpConnection     Operation = "CONNECTION"
	OpQuery          Operation = "QUERY"
	OpQueryCache     Operation = "QUERY_CACHE"
	OpTransaction    Operation = "TRANSACTION"
	OpCache          Operation = "CACHE"
)

// MaxLogs is the default capacity of the diagnostic log store.
const MaxLogs = 100

// LogEntry is one record of the diagnostic trail.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Operation Operation `json:"operation"`
	Success   bool      `json:"success"`
	Duration  int64     `json:"duration"` // milliseconds
	Message   string    `json:"message,omitempty"`
}

// NewLogEntry builds an entry completed now, measuring duration from start.
func NewLogEntry(op Operation, start time.Time, success bool, message string) LogEntry {
	now := time.Now()
	return LogEntry{
		Timestamp: now,
		Operation: op,
		Success:   success,
		Duration:  now.Sub(start).Milliseconds(),
		Message:   message,
	}
}

// Describe prefixes msg with a caller-supplied label, if any.
func Describe(description, msg string) string {
	if description == "" {
		return msg
	}
	return description + ": " + msg
}
