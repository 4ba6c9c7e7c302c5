package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

// fileEntry is the NDJSON-serializable form of a diagnostic log entry.
type fileEntry struct {
	Timestamp  string `json:"ts"`
	Operation  string `json:"operation"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

// FileAuditor appends diagnostic entries as NDJSON (one JSON object per line)
// so the trail survives restarts of the in-memory log store.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (a *FileAuditor) Write(_ context.Context, entry domain.LogEntry) {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fe := fileEntry{
		Timestamp:  ts.UTC().Format(time.RFC3339Nano),
		Operation:  string(entry.Operation),
		Success:    entry.Success,
		DurationMS: entry.Duration,
		Message:    entry.Message,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; audit I/O never fails a database call
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}
